// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/momentics/rostersync/api"
	"github.com/momentics/rostersync/transport"
)

// New creates a lazily connected TCP transport for host:port.
func New(host, port string, opts ...transport.Option) *transport.Stream {
	cfg := transport.NewConfig(opts...)
	return transport.NewStream(net.JoinHostPort(host, port), Dialer(host, port, cfg), cfg)
}

// NewDialer returns a net.Dialer carrying the package socket options.
func NewDialer(timeout time.Duration) *net.Dialer {
	return &net.Dialer{
		Timeout: timeout,
		Control: controlSocket,
	}
}

// Dialer resolves host, then tries every candidate address in order and
// returns the first connection that succeeds.
func Dialer(host, port string, cfg transport.Config) transport.DialFunc {
	return func(ctx context.Context) (transport.Conn, error) {
		ips, err := cfg.Resolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve %s: %w", api.ErrDialFailed, host, err)
		}
		p, err := cfg.Resolver.LookupPort(ctx, "tcp", port)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve port %s: %w", api.ErrDialFailed, port, err)
		}

		addrs := make([]string, len(ips))
		for i, ip := range ips {
			addrs[i] = net.JoinHostPort(ip.String(), strconv.Itoa(p))
		}
		return dialCandidates(ctx, NewDialer(cfg.DialTimeout), net.JoinHostPort(host, port), addrs, cfg.Logger)
	}
}

// dialCandidates connects to the first address in addrs that accepts.
// When every attempt fails the error wraps api.ErrDialFailed and joins all
// of them.
func dialCandidates(ctx context.Context, d *net.Dialer, target string, addrs []string, log *slog.Logger) (transport.Conn, error) {
	errs := make([]error, 0, len(addrs))
	for _, addr := range addrs {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		log.Debug("dial candidate failed", "addr", addr, "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w %s: no candidate addresses", api.ErrDialFailed, target)
	}
	return nil, fmt.Errorf("%w %s: %w", api.ErrDialFailed, target, errors.Join(errs...))
}
