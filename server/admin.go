// File: server/admin.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Admin HTTP surface: health, roster inspection, metrics, debug probes and
// the WebSocket flavour of the sync protocol.

package server

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/momentics/rostersync/transport/ws"
)

// ClientInfo is one entry of the /clients listing.
type ClientInfo struct {
	ID      uint32 `json:"id"`
	Payload string `json:"payload"` // hex
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Handler returns the admin router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if s.isClosed() {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/clients", s.handleClients)
	r.Get("/debug", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, s.probes.DumpState())
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get(ws.DefaultPath, s.handleSync)
	return r
}

func (s *Server) handleClients(w http.ResponseWriter, _ *http.Request) {
	recs := s.Records()
	out := make([]ClientInfo, len(recs))
	for i, rec := range recs {
		out[i] = ClientInfo{ID: rec.ID, Payload: hex.EncodeToString(rec.Payload)}
	}
	writeJSON(w, out)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	s.ServeConn(ws.NewConn(c))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
