package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/newsletter/internal/config"
)

// Server represents the API server.
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a server around the routed handlers.
func NewServer(cfg config.ServerConfig, h *Handlers, hc *HealthChecker, opts RouteOptions) *Server {
	return &Server{
		config:  cfg,
		handler: SetupRoutes(h, hc, opts),
	}
}

// ListenAndServe starts the HTTP server on the configured address.
func (s *Server) ListenAndServe() error {
	s.server = &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
