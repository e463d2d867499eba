// File: client/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/momentics/rostersync/api"
	"github.com/momentics/rostersync/control"
	"github.com/momentics/rostersync/internal/concurrency"
	"github.com/momentics/rostersync/internal/roster"
	"github.com/momentics/rostersync/pool"
	"github.com/momentics/rostersync/protocol"
	"github.com/momentics/rostersync/transport"
	"github.com/momentics/rostersync/transport/tcp"
	"github.com/momentics/rostersync/transport/ws"
)

const tracerName = "github.com/momentics/rostersync/client"

// Session keeps one local record synchronized with a sync server.
//
// The application goroutine polls State and may call Publish only in
// api.StateWrite and Next/Snapshot only in api.StateRead; calls in any other
// state panic. All network I/O happens on the session's worker goroutine.
type Session struct {
	cfg       Config
	id        string
	codec     protocol.Codec
	transport api.Transport
	logger    *slog.Logger
	metrics   *control.SessionMetrics
	registry  prometheus.Registerer
	tracer    trace.Tracer
	frames    *pool.BytePool

	state    atomic.Int32
	assigned atomic.Int32
	started  atomic.Bool
	gate     *concurrency.Gate

	ctx       context.Context // cancelled on Close: the termination flag
	cancel    context.CancelFunc
	exited    chan struct{}
	closeOnce sync.Once
	closeErr  error

	local    *protocol.Record // application-owned publish buffer
	sendCopy []byte           // written only inside Publish, read by the worker
	roster   *roster.Roster   // worker-owned outside api.StateRead
	cursor   int              // application-owned; -1 when no iteration is open
}

// NewSession creates a stopped session publishing local.
//
// local.Payload must be exactly cfg.RecordSize-4 bytes and local.ID must be
// zero; the session never writes local, the server-assigned id is reported
// by AssignedID instead.
func NewSession(cfg *Config, local *protocol.Record, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Session{
		cfg:    *cfg,
		id:     uuid.NewString(),
		gate:   concurrency.NewGate(),
		exited: make(chan struct{}),
		local:  local,
		cursor: -1,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.cfg.validate(s.transport == nil); err != nil {
		s.releaseTransport()
		return nil, err
	}
	codec, _ := protocol.NewCodec(s.cfg.RecordSize)
	if local == nil {
		s.releaseTransport()
		return nil, fmt.Errorf("%w: nil local record", api.ErrInvalidConfig)
	}
	if len(local.Payload) != codec.PayloadSize() {
		s.releaseTransport()
		return nil, fmt.Errorf("%w: local payload is %d bytes, want %d",
			api.ErrInvalidConfig, len(local.Payload), codec.PayloadSize())
	}
	if local.ID != protocol.UnassignedID {
		s.releaseTransport()
		return nil, fmt.Errorf("%w: local record id must start at 0, got %d", api.ErrInvalidConfig, local.ID)
	}

	s.codec = codec
	s.frames = pool.NewBytePool(codec.RecordSize())
	s.sendCopy = make([]byte, codec.PayloadSize())
	s.roster = roster.New(s.cfg.MaxClients)
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("session_id", s.id)
	if s.metrics == nil {
		s.metrics = control.NewSessionMetrics(
			control.WithRegistry(s.registry),
			control.WithConstLabels(prometheus.Labels{"session_id": s.id}),
		)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.transport == nil {
		s.transport = s.newTransport()
	}
	if d, ok := s.transport.(api.Dialer); ok {
		s.logger = s.logger.With("target", d.Target())
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.state.Store(int32(api.StateBusy))
	return s, nil
}

func (s *Session) newTransport() api.Transport {
	opts := []transport.Option{
		transport.WithDialTimeout(s.cfg.DialTimeout),
		transport.WithIOTimeout(s.cfg.IOTimeout),
		transport.WithLogger(s.logger),
	}
	if s.cfg.Network == NetworkWS {
		return ws.New(s.cfg.Host, s.cfg.Port, s.cfg.WSPath, opts...)
	}
	return tcp.New(s.cfg.Host, s.cfg.Port, opts...)
}

// releaseTransport closes a caller-supplied transport when construction fails.
func (s *Session) releaseTransport() {
	if s.transport != nil {
		_ = s.transport.Close()
	}
}

// ID returns the session's instance id, used in logs and metric labels.
func (s *Session) ID() string {
	return s.id
}

// State returns the currently permitted operation. Safe to poll anytime.
func (s *Session) State() api.State {
	return api.State(s.state.Load())
}

// AssignedID returns the id the server last assigned to this client, or 0
// while disconnected.
func (s *Session) AssignedID() int32 {
	return s.assigned.Load()
}

// Running reports whether the worker has been started and has not exited.
func (s *Session) Running() bool {
	if !s.started.Load() {
		return false
	}
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// Start launches the worker goroutine. Starting twice, or after Close, panics.
func (s *Session) Start() {
	if s.ctx.Err() != nil {
		violation("Start after Close")
	}
	if !s.started.CompareAndSwap(false, true) {
		violation("Start called twice")
	}
	go s.run()
}

// Publish hands the current contents of the local record to the worker for
// the next cycle. Valid only in api.StateWrite.
func (s *Session) Publish() {
	if !s.state.CompareAndSwap(int32(api.StateWrite), int32(api.StateBusy)) {
		violation("Publish in state " + s.State().String())
	}
	copy(s.sendCopy, s.local.Payload)
	s.gate.Signal()
}

// Next iterates the roster. Valid only in api.StateRead.
//
// Each call returns the next entry in insertion order; the record is owned by
// the session and must be copied if kept. The call that finds the end returns
// nil and hands control back to the worker. Stopping before nil leaves the
// worker parked until Close; use Snapshot to avoid that obligation.
func (s *Session) Next() *protocol.Record {
	if s.State() != api.StateRead {
		violation("Next in state " + s.State().String())
	}
	s.cursor++
	if s.cursor < s.roster.Len() {
		return s.roster.At(s.cursor)
	}
	s.cursor = -1
	s.release()
	return nil
}

// Snapshot returns a deep copy of the roster and hands control back to the
// worker in one step. Valid only in api.StateRead before any Next call.
func (s *Session) Snapshot() []protocol.Record {
	if s.State() != api.StateRead {
		violation("Snapshot in state " + s.State().String())
	}
	if s.cursor >= 0 {
		violation("Snapshot during a Next iteration")
	}
	out := s.roster.Snapshot()
	s.release()
	return out
}

// release ends the read phase.
func (s *Session) release() {
	s.state.Store(int32(api.StateBusy))
	s.gate.Signal()
}

// Close stops the worker, waits for it to exit and closes the transport.
// It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.started.Load() {
			<-s.exited
		}
		s.state.Store(int32(api.StateBusy))
		s.assigned.Store(0)
		s.closeErr = s.transport.Close()
		s.logger.Debug("session closed")
	})
	return s.closeErr
}

func violation(what string) {
	panic(fmt.Errorf("%w: %s", api.ErrContractViolation, what))
}
