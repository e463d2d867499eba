// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Public contracts of rostersync: the stream Transport consumed by sync
// sessions, the session State enumeration and the shared error values.
// Implementations live in transport/tcp, transport/ws and fake.
package api
