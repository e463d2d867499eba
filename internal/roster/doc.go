// Package roster tracks the latest record of every remote client announced by
// the sync server, and expires clients that drop out of the broadcast.
package roster
