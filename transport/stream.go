// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lazily connected stream implementing api.Transport on top of any DialFunc.

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/momentics/rostersync/api"
)

// Stream keeps at most one Conn open and redials after every failure.
type Stream struct {
	target string
	dial   DialFunc
	cfg    Config

	mu     sync.Mutex
	conn   Conn
	closed bool
}

var (
	_ api.Transport = (*Stream)(nil)
	_ api.Dialer    = (*Stream)(nil)
)

// NewStream creates a disconnected stream for target.
func NewStream(target string, dial DialFunc, cfg Config) *Stream {
	return &Stream{target: target, dial: dial, cfg: cfg}
}

// Target returns the address the stream dials.
func (s *Stream) Target() string {
	return s.target
}

// Connected reports whether a connection is currently held.
func (s *Stream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send writes all of p, dialing first if needed.
func (s *Stream) Send(ctx context.Context, p []byte) error {
	conn, err := s.ensure(ctx)
	if err != nil {
		return err
	}
	stop := s.arm(ctx, conn)
	defer stop()

	for off := 0; off < len(p); {
		n, err := conn.Write(p[off:])
		off += n
		if err != nil {
			s.drop(conn)
			return s.wrap(ctx, "send", err)
		}
		if n == 0 {
			s.drop(conn)
			return fmt.Errorf("send %d/%d bytes: %w", off, len(p), api.ErrShortWrite)
		}
	}
	return nil
}

// Recv fills all of p, dialing first if needed. A peer that closes the
// stream, even mid-frame, yields api.ErrReset.
func (s *Stream) Recv(ctx context.Context, p []byte) error {
	conn, err := s.ensure(ctx)
	if err != nil {
		return err
	}
	stop := s.arm(ctx, conn)
	defer stop()

	if _, err := io.ReadFull(conn, p); err != nil {
		s.drop(conn)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.cfg.Logger.Debug("connection closed by peer", "target", s.target)
			return api.ErrReset
		}
		return s.wrap(ctx, "recv", err)
	}
	return nil
}

// Close drops the connection; later calls fail with api.ErrTransportClosed.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// ensure returns the live connection, dialing if there is none.
func (s *Stream) ensure(ctx context.Context) (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, api.ErrTransportClosed
	}
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.cfg.Logger.Debug("connected", "target", s.target, "remote", conn.RemoteAddr().String())
	s.conn = conn
	return conn, nil
}

// drop closes conn if it is still the current connection.
func (s *Stream) drop(conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// arm applies the I/O deadline and makes ctx cancellation unblock conn.
func (s *Stream) arm(ctx context.Context, conn Conn) (stop func()) {
	var deadline time.Time
	if s.cfg.IOTimeout > 0 {
		deadline = time.Now().Add(s.cfg.IOTimeout)
	}
	_ = conn.SetDeadline(deadline)
	cancel := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	return func() { cancel() }
}

func (s *Stream) wrap(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}
