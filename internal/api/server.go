// Package api exposes the HTTP surface: the streaming chat endpoint, the
// model preference endpoints, and health probes.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/quill/internal/auth"
	"github.com/koopa0/quill/internal/log"
)

// Config contains everything needed to build the HTTP server.
type Config struct {
	Addr     string
	Logger   log.Logger
	Resolver *auth.Resolver
	Store    Store
	Runner   StepRunner
	Titles   Summarizer

	// Pool is optional; when set, /ready checks database reachability.
	Pool *pgxpool.Pool

	// RateLimit is tokens per second per IP; RateBurst the bucket size.
	RateLimit  float64
	RateBurst  int
	TrustProxy bool
}

func (c *Config) validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Resolver == nil {
		return errors.New("resolver is required")
	}
	if c.Store == nil {
		return errors.New("store is required")
	}
	if c.Runner == nil {
		return errors.New("runner is required")
	}
	if c.Titles == nil {
		return errors.New("summarizer is required")
	}
	return nil
}

// Server is the HTTP server.
type Server struct {
	srv    *http.Server
	logger log.Logger
}

// NewServer wires routes and middleware.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:3400"
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}

	ch := &chatHandler{
		logger:   cfg.Logger,
		resolver: cfg.Resolver,
		store:    cfg.Store,
		runner:   cfg.Runner,
		titles:   cfg.Titles,
	}
	mh := &modelHandler{logger: cfg.Logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", ch.send)
	mux.HandleFunc("DELETE /api/chat", ch.delete)
	mux.HandleFunc("GET /api/models", mh.list)
	mux.HandleFunc("POST /api/model", mh.save)

	// Middleware stack, outermost first: recovery, logging, rate limit.
	rl := newRateLimiter(cfg.RateLimit, cfg.RateBurst)
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, cfg.Logger)(handler)
	handler = loggingMiddleware(cfg.Logger)(handler)
	handler = recoveryMiddleware(cfg.Logger)(handler)

	// Health probes bypass the middleware stack.
	top := http.NewServeMux()
	top.HandleFunc("GET /health", health(cfg.Logger))
	top.HandleFunc("GET /ready", readiness(cfg.Pool, cfg.Logger))
	top.Handle("/", handler)

	return &Server{
		srv: &http.Server{
			Addr:    cfg.Addr,
			Handler: top,
			// No WriteTimeout: chat responses are long-lived SSE streams.
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		logger: cfg.Logger,
	}, nil
}

// Handler returns the server as an http.Handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down http server")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return <-errCh
}
