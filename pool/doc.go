// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for rostersync. Fixed-size record buffers are recycled between
// the sync worker's scratch receive buffer and roster entries that get pruned,
// so steady-state cycles allocate nothing.
package pool
