// File: internal/concurrency/gate.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-slot handoff between one signalling and one waiting goroutine.

package concurrency

import "errors"

// ErrGateOverflow is the panic value raised when a gate is signalled while a
// previous signal is still pending.
var ErrGateOverflow = errors.New("gate signalled twice without a wait")

// Gate carries at most one pending signal from a producer to a consumer.
type Gate struct {
	ch chan struct{}
}

// NewGate returns a gate with no pending signal.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{}, 1)}
}

// Signal hands one permit to the waiter. A second Signal before the waiter
// consumed the first is a protocol error and panics.
func (g *Gate) Signal() {
	select {
	case g.ch <- struct{}{}:
	default:
		panic(ErrGateOverflow)
	}
}

// Wait blocks until a permit arrives or done is closed.
// It reports false when woken by done.
func (g *Gate) Wait(done <-chan struct{}) bool {
	select {
	case <-done:
		return false
	default:
	}
	select {
	case <-g.ch:
		return true
	case <-done:
		return false
	}
}
