//go:build !linux
// +build !linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import "syscall"

// controlSocket is a no-op off Linux; Go already sets TCP_NODELAY by default.
func controlSocket(network, address string, c syscall.RawConn) error {
	return nil
}
