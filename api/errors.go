// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared by transports, codecs and sessions.

package api

import "errors"

// Common errors used across the library.
var (
	ErrReset             = errors.New("connection reset by peer")
	ErrShortWrite        = errors.New("short write")
	ErrDialFailed        = errors.New("unable to connect to server")
	ErrTransportClosed   = errors.New("transport is closed")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrInvalidRecord     = errors.New("invalid record")
	ErrContractViolation = errors.New("session contract violation")
	ErrServerFull        = errors.New("server is full")
)

