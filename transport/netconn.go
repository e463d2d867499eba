// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package transport

import (
	"context"
	"io"
	"log/slog"
	"net"
	"time"
)

// Conn is the stream a Stream drives: a net.Conn, or a WebSocket adapted to
// behave like one.
type Conn interface {
	io.ReadWriteCloser
	SetDeadline(t time.Time) error
	RemoteAddr() net.Addr
}

// DialFunc opens a new Conn to the stream's target.
type DialFunc func(ctx context.Context) (Conn, error)

// Config holds the knobs shared by every stream transport.
type Config struct {
	DialTimeout time.Duration // per connection attempt, 0 = unbounded
	IOTimeout   time.Duration // per Send/Recv call, 0 = unbounded
	Resolver    *net.Resolver
	Logger      *slog.Logger
}

// Option customizes a Config.
type Option func(*Config)

// WithDialTimeout bounds each connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.DialTimeout = d
	}
}

// WithIOTimeout bounds every Send and Recv call.
func WithIOTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.IOTimeout = d
	}
}

// WithResolver replaces net.DefaultResolver.
func WithResolver(r *net.Resolver) Option {
	return func(c *Config) {
		c.Resolver = r
	}
}

// WithLogger sets the logger used for connection lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// NewConfig applies opts over the defaults.
func NewConfig(opts ...Option) Config {
	cfg := Config{
		DialTimeout: 5 * time.Second,
		Resolver:    net.DefaultResolver,
		Logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
