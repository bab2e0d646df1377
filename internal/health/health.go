// Package health serves the readiness endpoint for graft.
//
// The server listens on its own port, apart from the proxy. GET /health
// answers 503 Service Unavailable with body "starting" until the rules have
// loaded and again once shutdown begins, and 200 OK with body "ok" while
// ready. When a RuleCounter is attached the ready response also carries the
// number of loaded rules in X-Graft-Rules.
package health

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// RuleCounter reports how many rewrite rules are loaded.
type RuleCounter interface {
	RuleCount() int
}

// Server provides health check endpoints for graft
type Server struct {
	server *http.Server
	ready  atomic.Bool
	rules  atomic.Pointer[RuleCounter]
}

// New creates a new health server on the specified port
func New(port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		server: &http.Server{
			Addr:              ":" + strconv.Itoa(port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("/health", s.healthHandler)

	return s
}

// Start begins listening for health check requests
func (s *Server) Start() error {
	slog.Info("Starting health server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Serve accepts health check requests on l.
func (s *Server) Serve(l net.Listener) error {
	slog.Info("Starting health server", "addr", l.Addr().String())
	return s.server.Serve(l)
}

// Stop gracefully shuts down the health server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// MarkReady sets the server state to ready, causing /health to return 200.
// rc may be nil.
func (s *Server) MarkReady(rc RuleCounter) {
	if rc != nil {
		s.rules.Store(&rc)
	}
	s.ready.Store(true)
	slog.Info("Health server marked as ready")
}

// MarkNotReady sets the server state to not ready, causing /health to return 503
func (s *Server) MarkNotReady() {
	s.ready.Store(false)
	slog.Info("Health server marked as not ready")
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	// A 1xx status is informational and would be followed by an implicit
	// 200, so not-ready must be a final status.
	status, body := http.StatusServiceUnavailable, "starting"
	if s.ready.Load() {
		status, body = http.StatusOK, "ok"
		if rc := s.rules.Load(); rc != nil {
			w.Header().Set("X-Graft-Rules", strconv.Itoa((*rc).RuleCount()))
		}
	}

	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}
