// Package control
// Author: momentics <momentics@gmail.com>
//
// Observability layer of rostersync: Prometheus collectors for client
// sessions and the reference server, plus named debug probes exported by the
// server's admin router.
package control
