// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/rostersync/api"
	"github.com/momentics/rostersync/control"
	"github.com/momentics/rostersync/protocol"
	"github.com/momentics/rostersync/transport"
	"github.com/momentics/rostersync/transport/tcp"
)

// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown.
var ErrServerClosed = errors.New("server closed")

// Server relays every client's latest record to all other clients.
type Server struct {
	cfg      Config
	codec    protocol.Codec
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *control.ServerMetrics
	probes   *control.DebugProbes

	mu        sync.Mutex
	clients   map[uint32][]byte // id -> latest stamped record
	ids       *idAllocator
	listeners map[net.Listener]struct{}
	conns     map[transport.Conn]struct{}
	admin     *http.Server
	closed    bool
	wg        sync.WaitGroup
}

// New builds a stopped server.
func New(cfg *Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, _ := protocol.NewCodec(cfg.RecordSize)

	s := &Server{
		cfg:       *cfg,
		codec:     codec,
		probes:    control.NewDebugProbes(),
		clients:   make(map[uint32][]byte),
		ids:       newIDAllocator(cfg.MaxClients),
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[transport.Conn]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = control.NewServerMetrics(control.WithRegistry(s.registry))

	s.probes.RegisterProbe("clients", func() any { return s.ClientCount() })
	s.probes.RegisterProbe("ids", func() any {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.ids.state()
	})
	s.probes.RegisterProbe("connections", func() any {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.conns)
	})
	return s, nil
}

// Config returns a copy of the active configuration.
func (s *Server) Config() Config {
	return s.cfg
}

// Probes exposes the debug probe registry served on /debug.
func (s *Server) Probes() *control.DebugProbes {
	return s.probes
}

// ListenAndServe listens on Config.Addr, starts the admin server when
// Config.AdminAddr is set and serves until Shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := tcp.Listen(ctx, s.cfg.Addr)
	if err != nil {
		return err
	}
	if s.cfg.AdminAddr != "" {
		if err := s.startAdmin(ctx); err != nil {
			_ = ln.Close()
			return err
		}
	}
	return s.Serve(ln)
}

func (s *Server) startAdmin(ctx context.Context) error {
	ln, err := tcp.Listen(ctx, s.cfg.AdminAddr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.admin = srv
	s.mu.Unlock()

	s.logger.Info("admin server listening", "addr", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server failed", "error", err)
		}
	}()
	return nil
}

// Serve accepts connections on ln until Shutdown. It always returns a
// non-nil error; after Shutdown that is ErrServerClosed.
func (s *Server) Serve(ln net.Listener) error {
	if !s.trackListener(ln) {
		_ = ln.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(ln)
	s.logger.Info("sync server listening", "addr", ln.Addr().String(),
		"record_size", s.cfg.RecordSize, "max_clients", s.cfg.MaxClients)

	for {
		c, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		if !s.trackConn(c) {
			_ = c.Close()
			return ErrServerClosed
		}
		go func() {
			defer s.wg.Done()
			s.serveConn(c)
		}()
	}
}

// ServeConn runs the sync protocol on an established stream and blocks
// until it ends. It closes c.
func (s *Server) ServeConn(c transport.Conn) {
	if !s.trackConn(c) {
		_ = c.Close()
		return
	}
	defer s.wg.Done()
	s.serveConn(c)
}

// serveConn requires c to be tracked.
func (s *Server) serveConn(c transport.Conn) {
	log := s.logger.With("remote", c.RemoteAddr().String())
	defer s.untrackConn(c)

	s.mu.Lock()
	room := s.ids.available()
	s.mu.Unlock()
	if !room {
		s.metrics.Connections.WithLabelValues("refused").Inc()
		log.Warn("refusing connection", "error", api.ErrServerFull)
		return
	}
	s.metrics.Connections.WithLabelValues("accepted").Inc()
	log.Debug("client connected")

	var (
		id    uint32
		frame = s.codec.NewFrame()
	)
	defer func() {
		if id != protocol.UnassignedID {
			s.remove(id)
			log.Info("client left", "client_id", id)
		}
	}()

	for {
		if s.cfg.IdleTimeout > 0 {
			_ = c.SetDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		if err := s.codec.ReadFrame(c, frame); err != nil {
			if !errors.Is(err, io.EOF) && !s.isClosed() {
				log.Debug("read failed", "error", err, "client_id", id)
			}
			return
		}

		if id == protocol.UnassignedID {
			var ok bool
			if id, ok = s.assign(); !ok {
				s.metrics.Connections.WithLabelValues("refused").Inc()
				log.Warn("refusing client", "error", api.ErrServerFull)
				return
			}
			log.Info("client joined", "client_id", id)
		}

		reply, n := s.store(id, frame)
		if err := writeFull(c, reply); err != nil {
			log.Debug("write failed", "error", err, "client_id", id)
			return
		}
		s.metrics.Cycles.Inc()
		s.metrics.RecordsOut.Add(float64(n))
	}
}

func (s *Server) assign() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids.acquire()
}

// store saves frame as id's latest record and builds the reply: a header
// followed by every other client's record in ascending id order.
func (s *Server) store(id uint32, frame []byte) ([]byte, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.clients[id]
	if !ok {
		rec = make([]byte, len(frame))
		s.clients[id] = rec
		s.metrics.Clients.Set(float64(len(s.clients)))
	}
	copy(rec, frame)
	protocol.PutRecordID(rec, id)

	others := make([]uint32, 0, len(s.clients)-1)
	for other := range s.clients {
		if other != id {
			others = append(others, other)
		}
	}
	sort.Slice(others, func(i, j int) bool { return others[i] < others[j] })

	reply := make([]byte, protocol.HeaderSize, protocol.HeaderSize+len(others)*len(frame))
	_ = protocol.Header{AssignedID: int32(id), RecordCount: uint32(len(others))}.MarshalTo(reply)
	for _, other := range others {
		reply = append(reply, s.clients[other]...)
	}
	return reply, len(others)
}

func (s *Server) remove(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, id)
	s.ids.release(id)
	s.metrics.Clients.Set(float64(len(s.clients)))
}

// ClientCount returns the number of clients holding an id.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Records returns copies of the stored records in ascending id order.
func (s *Server) Records() []protocol.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Record, 0, len(s.clients))
	for _, frame := range s.clients {
		rec, _ := s.codec.Decode(frame)
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shutdown closes listeners and client connections, stops the admin server
// and waits for connection handlers to return or ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var errs []error
	for ln := range s.listeners {
		if err := ln.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for c := range s.conns {
		_ = c.Close()
	}
	admin := s.admin
	s.mu.Unlock()

	if admin != nil {
		if err := admin.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	s.logger.Info("sync server stopped")
	return errors.Join(errs...)
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) trackListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrackListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

// trackConn registers c and adds it to the handler wait group.
func (s *Server) trackConn(c transport.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrackConn(c transport.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	_ = c.Close()
}

func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return api.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
