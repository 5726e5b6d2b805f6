// Package health exposes the daemon's liveness and readiness over HTTP.
//
// /healthz answers as soon as the process is up; /readyz answers only after
// the llama completion server has passed its health probe, since the
// assistant cannot serve a single query without it.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Server is a lightweight HTTP server for health probes.
type Server struct {
	port   int
	ready  atomic.Bool
	server *http.Server

	mu      sync.RWMutex
	backend string
}

// New creates a health server on the given port.
func New(port int) *Server {
	return &Server{port: port}
}

// SetReady marks the assistant ready and records the backend status message
// (typically the result of the llama health check).
func (s *Server) SetReady(ready bool, backendStatus string) {
	s.ready.Store(ready)
	s.mu.Lock()
	s.backend = backendStatus
	s.mu.Unlock()
}

func (s *Server) status() map[string]string {
	s.mu.RLock()
	backend := s.backend
	s.mu.RUnlock()
	st := map[string]string{"status": "ok"}
	if !s.ready.Load() {
		st["status"] = "not_ready"
	}
	if backend != "" {
		st["llama"] = backend
	}
	return st
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		st := s.status()
		if st["status"] != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(st)
	})

	return mux
}

// ListenAndServe starts the health server and blocks until the context is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := s.routes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("health server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
