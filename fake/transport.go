// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the transport contract.

package fake

import (
	"context"
	"sync"

	"github.com/momentics/rostersync/api"
)

type reply struct {
	data   []byte
	hangup bool
}

// Transport is a scripted in-memory api.Transport.
//
// It behaves like a server that answers each successful Send with the next
// queued reply. Failures injected with FailSends/FailRecvs are consumed one
// per call, and every failure discards unread bytes the way a dropped
// connection would.
type Transport struct {
	mu       sync.Mutex
	notify   chan struct{}
	sendErrs []error
	recvErrs []error
	replies  []reply
	stream   []byte
	hangup   bool
	sent     [][]byte
	attempts int
	closed   bool
	onSend   func(attempt int)
}

var _ api.Transport = (*Transport)(nil)

// NewTransport creates a fake transport with nothing scripted.
func NewTransport() *Transport {
	return &Transport{notify: make(chan struct{}, 1)}
}

// QueueReply schedules data to become readable after the next successful Send.
func (t *Transport) QueueReply(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies = append(t.replies, reply{data: clone(data)})
}

// QueueTruncatedReply schedules data followed by the peer hanging up: once
// data is drained, a Recv that needs more bytes fails with api.ErrReset.
func (t *Transport) QueueTruncatedReply(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies = append(t.replies, reply{data: clone(data), hangup: true})
}

// FailSends makes the next len(errs) Send calls fail in order.
func (t *Transport) FailSends(errs ...error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErrs = append(t.sendErrs, errs...)
}

// FailRecvs makes the next len(errs) Recv calls fail in order.
func (t *Transport) FailRecvs(errs ...error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recvErrs = append(t.recvErrs, errs...)
}

// OnSend registers a hook run on the caller's goroutine at the start of
// every Send with the 1-based attempt number.
func (t *Transport) OnSend(fn func(attempt int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSend = fn
}

// Send implements api.Transport.Send.
func (t *Transport) Send(ctx context.Context, p []byte) error {
	t.mu.Lock()
	t.attempts++
	attempt, hook := t.attempts, t.onSend
	t.mu.Unlock()

	if hook != nil {
		hook(attempt)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return api.ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(t.sendErrs) > 0 {
		err := t.sendErrs[0]
		t.sendErrs = t.sendErrs[1:]
		t.disconnect()
		return err
	}

	t.sent = append(t.sent, clone(p))
	if len(t.replies) > 0 {
		r := t.replies[0]
		t.replies = t.replies[1:]
		t.stream = append(t.stream, r.data...)
		t.hangup = r.hangup
		t.wake()
	}
	return nil
}

// Recv implements api.Transport.Recv, blocking until enough scripted bytes
// are readable or ctx is done.
func (t *Transport) Recv(ctx context.Context, p []byte) error {
	for {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return api.ErrTransportClosed
		}
		if len(t.recvErrs) > 0 {
			err := t.recvErrs[0]
			t.recvErrs = t.recvErrs[1:]
			t.disconnect()
			t.mu.Unlock()
			return err
		}
		if len(t.stream) >= len(p) {
			copy(p, t.stream)
			t.stream = t.stream[len(p):]
			t.mu.Unlock()
			return nil
		}
		if t.hangup {
			t.disconnect()
			t.mu.Unlock()
			return api.ErrReset
		}
		t.mu.Unlock()

		select {
		case <-t.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close implements api.Transport.Close.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.wake()
	return nil
}

// Sent returns a copy of every successfully sent buffer.
func (t *Transport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

// SendAttempts counts Send calls, failed ones included.
func (t *Transport) SendAttempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// Closed reports whether Close was called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// disconnect forgets unread bytes; caller holds mu.
func (t *Transport) disconnect() {
	t.stream = nil
	t.hangup = false
}

// wake nudges a blocked Recv; caller holds mu.
func (t *Transport) wake() {
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
