// File: api/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stream transport contract consumed by the sync worker.

package api

import "context"

// Transport owns a single stream connection to a sync server.
//
// Implementations connect lazily on the first call and again after any
// failure; a failed call always leaves the transport disconnected so the next
// Send redials. Transports are driven by one worker goroutine and need not be
// safe for concurrent Send/Recv, but Close may be called from another
// goroutine once the worker has exited.
type Transport interface {
	// Send writes all of p. A short write is reported as an error.
	Send(ctx context.Context, p []byte) error

	// Recv fills all of p. An orderly close by the peer is reported as
	// ErrReset, any other failure as a wrapped I/O error.
	Recv(ctx context.Context, p []byte) error

	// Close drops the connection, if any.
	Close() error
}

// Dialer is implemented by transports that can report their target.
type Dialer interface {
	// Target returns the host:port the transport dials.
	Target() string
}
