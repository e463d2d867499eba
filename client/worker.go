// File: client/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Background I/O loop: waits for a publish, runs one send-then-receive cycle
// with retries, refreshes the roster and waits for the application to read it.

package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/momentics/rostersync/api"
	"github.com/momentics/rostersync/protocol"
)

// errTerminated ends a cycle when Close was called.
var errTerminated = errors.New("session terminated")

func (s *Session) run() {
	defer close(s.exited)
	s.logger.Info("sync worker started", "max_clients", s.cfg.MaxClients, "record_size", s.cfg.RecordSize)
	defer s.logger.Info("sync worker stopped")

	tx := s.codec.NewFrame()
	hdr := make([]byte, protocol.HeaderSize)
	scratch := s.frames.Get()
	defer func() { s.frames.Put(scratch) }()

	for {
		s.state.Store(int32(api.StateWrite))
		if !s.gate.Wait(s.ctx.Done()) {
			return
		}

		rec := protocol.Record{ID: uint32(s.assigned.Load()), Payload: s.sendCopy}
		if err := s.codec.Encode(tx, &rec); err != nil {
			// sizes are validated at construction
			panic(err)
		}
		if err := s.cycle(tx, hdr, &scratch); err != nil {
			return
		}

		s.state.Store(int32(api.StateRead))
		if !s.gate.Wait(s.ctx.Done()) {
			return
		}
	}
}

// cycle runs send-then-receive until one full broadcast has been ingested.
// Any receive failure restarts at send: the server answers only after a
// record, never spontaneously. The only error returned is errTerminated.
func (s *Session) cycle(tx, hdr []byte, scratch *[]byte) error {
	ctx, span := s.tracer.Start(s.ctx, "rostersync.cycle")
	defer span.End()
	start := time.Now()
	warned := false

	for restarts := 0; ; restarts++ {
		attempts, err := s.send(ctx, tx, &warned)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		count, err := s.receive(ctx, hdr, scratch)
		if s.terminating() {
			span.SetStatus(codes.Error, errTerminated.Error())
			return errTerminated
		}
		if err != nil {
			span.RecordError(err)
			s.disconnect()
			s.logFailure(&warned, "receive failed, resending", "error", err, "restarts", restarts+1)
			continue
		}
		if warned {
			s.logger.Info("cycle recovered", "send_attempts", attempts, "restarts", restarts)
		}

		s.metrics.Cycles.Inc()
		s.metrics.CycleDuration.Observe(time.Since(start).Seconds())
		span.SetAttributes(
			attribute.Int("rostersync.send_attempts", attempts),
			attribute.Int("rostersync.restarts", restarts),
			attribute.Int64("rostersync.assigned_id", int64(s.assigned.Load())),
			attribute.Int64("rostersync.record_count", int64(count)),
			attribute.Int("rostersync.roster_size", s.roster.Len()),
			attribute.Int("rostersync.seen", s.roster.Seen()),
		)
		return nil
	}
}

// send retries tx until it is accepted or the session terminates.
func (s *Session) send(ctx context.Context, tx []byte, warned *bool) (int, error) {
	for attempts := 1; ; attempts++ {
		if s.terminating() {
			return attempts, errTerminated
		}
		err := s.transport.Send(ctx, tx)
		if s.terminating() {
			return attempts, errTerminated
		}
		if err == nil {
			return attempts, nil
		}

		s.disconnect()
		s.metrics.SendFailures.Inc()
		s.logFailure(warned, "send failed, retrying", "error", err, "attempt", attempts, "retry_delay", s.cfg.RetryDelay)
		if !s.sleep(s.cfg.RetryDelay) {
			return attempts, errTerminated
		}
	}
}

// receive reads the header and its records, updating the roster as records
// arrive. Records ingested before a failure stay in the roster.
func (s *Session) receive(ctx context.Context, hdr []byte, scratch *[]byte) (uint32, error) {
	if err := s.transport.Recv(ctx, hdr); err != nil {
		s.metrics.RecvFailures.WithLabelValues("header").Inc()
		return 0, fmt.Errorf("header: %w", err)
	}
	if s.terminating() {
		return 0, errTerminated
	}
	h, err := protocol.DecodeHeader(hdr)
	if err != nil {
		return 0, err
	}
	s.setAssigned(h.AssignedID)
	s.roster.BeginCycle()

	for i := uint32(0); i < h.RecordCount; i++ {
		if err := s.transport.Recv(ctx, *scratch); err != nil {
			s.metrics.RecvFailures.WithLabelValues("record").Inc()
			return i, fmt.Errorf("record %d of %d: %w", i+1, h.RecordCount, err)
		}
		if s.terminating() {
			return i, errTerminated
		}

		taken, ok := s.roster.Ingest(*scratch)
		if !ok {
			s.metrics.Discarded.Inc()
			s.logger.Debug("discarding record with out-of-range id",
				"client_id", protocol.RecordID(*scratch), "max_clients", s.cfg.MaxClients)
			continue
		}
		if taken {
			*scratch = s.frames.Get()
		}
	}

	freed := s.roster.Sweep()
	for _, f := range freed {
		s.frames.Put(f)
	}
	if len(freed) > 0 {
		s.metrics.Pruned.Add(float64(len(freed)))
		s.logger.Debug("pruned departed clients", "count", len(freed))
	}
	s.metrics.RosterSize.Set(float64(s.roster.Len()))
	s.logger.Debug("roster refreshed", "assigned_id", h.AssignedID,
		"records", h.RecordCount, "seen", s.roster.Seen(), "roster_size", s.roster.Len())
	return h.RecordCount, nil
}

// logFailure logs the first failure of a cycle at Warn and the rest at
// Debug, so a server that keeps dropping the client cannot flood the log.
func (s *Session) logFailure(warned *bool, msg string, args ...any) {
	if *warned {
		s.logger.Debug(msg, args...)
		return
	}
	*warned = true
	s.logger.Warn(msg, args...)
}

// disconnect makes the application see itself as offline until the next header.
func (s *Session) disconnect() {
	s.assigned.Store(protocol.UnassignedID)
	s.metrics.Connected.Set(0)
}

func (s *Session) setAssigned(id int32) {
	s.assigned.Store(id)
	if id != protocol.UnassignedID {
		s.metrics.Connected.Set(1)
	} else {
		s.metrics.Connected.Set(0)
	}
}

func (s *Session) terminating() bool {
	return s.ctx.Err() != nil
}

// sleep waits d, returning false if the session terminates first.
func (s *Session) sleep(d time.Duration) bool {
	if d <= 0 {
		return !s.terminating()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}
