// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives for rostersync. Gate is the handoff used between an
// application goroutine and a session's I/O worker: a capacity-one channel
// that never accumulates more than one pending signal.
package concurrency
