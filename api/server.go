// Package api exposes the assistant over HTTP: turn submission as a
// server-sent event stream, cancellation, feedback and health probes.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopquery/shopquery"
	"github.com/shopquery/shopquery/logging"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Assistant is the façade the handlers call into. Required.
	Assistant *shopquery.ShopQuery

	// Addr is the listen address, e.g. ":8080".
	Addr string

	// Pinger backs the readiness probe. Optional; nil means readiness only
	// checks that the process is up.
	Pinger Pinger

	// Logger defaults to the no-op logger.
	Logger logging.Logger

	// ShutdownGrace bounds graceful shutdown. Defaults to 10s.
	ShutdownGrace time.Duration
}

// Server is the HTTP front of the assistant.
type Server struct {
	cfg     ServerConfig
	handler http.Handler
}

// NewServer wires routes and middleware.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Assistant == nil {
		return nil, errors.New("assistant is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}

	th := &turnHandler{assistant: cfg.Assistant, logger: cfg.Logger}
	fh := &feedbackHandler{assistant: cfg.Assistant, logger: cfg.Logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/turns", th.submit)
	mux.HandleFunc("DELETE /api/turns/{trace_id}", th.cancel)
	mux.HandleFunc("POST /api/feedback", fh.submit)
	mux.HandleFunc("GET /api/feedback/{trace_id}", fh.byTrace)
	mux.HandleFunc("GET /health", health(cfg.Logger))
	mux.HandleFunc("GET /ready", ready(cfg.Pinger, cfg.Logger))

	// Outermost first: recovery, request id, logging, routes. Request id
	// runs before logging so the id shows up in the request line.
	var handler http.Handler = mux
	handler = loggingMiddleware(cfg.Logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(cfg.Logger)(handler)

	return &Server{cfg: cfg, handler: handler}, nil
}

// Handler returns the middleware-wrapped root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully. Turn streams have no write timeout; slow-client protection is
// the engine's unit buffer plus the read header timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info("api.listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.cfg.Logger.Info("api.stopped")
		return nil
	}
}
