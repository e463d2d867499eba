// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stream is the shared api.Transport implementation: it dials lazily on first
// use, writes and reads whole buffers, and drops the connection on any failure
// so the next Send reconnects. Subpackages supply the DialFunc: tcp for plain
// sockets, ws for WebSocket-framed streams.
package transport
