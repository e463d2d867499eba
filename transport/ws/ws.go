// Package ws carries the roster sync stream inside WebSocket binary messages,
// for deployments where only HTTP ports are reachable.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package ws

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/momentics/rostersync/api"
	"github.com/momentics/rostersync/transport"
	"github.com/momentics/rostersync/transport/tcp"
)

// DefaultPath is where the reference server mounts its WebSocket endpoint.
const DefaultPath = "/sync"

// New creates a lazily connected transport for ws://host:port/path.
func New(host, port, path string, opts ...transport.Option) *transport.Stream {
	cfg := transport.NewConfig(opts...)
	if path == "" {
		path = DefaultPath
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, port), Path: path}
	return transport.NewStream(u.String(), Dialer(u.String(), cfg), cfg)
}

// Dialer performs the WebSocket handshake against target.
func Dialer(target string, cfg transport.Config) transport.DialFunc {
	d := websocket.Dialer{
		NetDialContext:   tcp.NewDialer(cfg.DialTimeout).DialContext,
		HandshakeTimeout: cfg.DialTimeout,
	}
	return func(ctx context.Context) (transport.Conn, error) {
		c, resp, err := d.DialContext(ctx, target, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", api.ErrDialFailed, target, err)
		}
		return NewConn(c), nil
	}
}
