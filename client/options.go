// File: client/options.go
// Functional options for Session.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/momentics/rostersync/api"
	"github.com/momentics/rostersync/control"
)

// Option customizes session construction.
type Option func(*Session)

// WithTransport replaces the transport built from Config.Host/Port.
// The session takes ownership and closes it on Close.
func WithTransport(t api.Transport) Option {
	return func(s *Session) {
		s.transport = t
	}
}

// WithLogger sets the structured logger; the session adds its own id.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithMetrics uses pre-built collectors.
func WithMetrics(m *control.SessionMetrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithRegistry registers the session collectors on reg, labelled with the
// session id so several sessions can share one registry.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(s *Session) {
		s.registry = reg
	}
}

// WithTracer sets the tracer used for per-cycle spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Session) {
		s.tracer = t
	}
}
