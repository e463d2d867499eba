// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp implements api.Transport over a plain TCP stream.
//
// The transport dials lazily: the first Send, or the first Send after any
// failure, resolves the target host, tries each candidate address in order and
// keeps the first connection that succeeds. Every failed Send or Recv closes
// the connection so that the next Send reconnects.
package tcp
