// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"hls-relay/pkg/config"
	"hls-relay/pkg/logging"
	"hls-relay/pkg/middleware"
)

const shutdownTimeout = 30 * time.Second

// Server is the main HTTP server.
type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	log        *logging.Logger
	router     *chi.Mux
}

// New creates a new server with the given configuration. Route-aware
// middleware is installed on the router before any route is registered.
func New(cfg *config.Config, log *logging.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		log:    log.WithComponent("server"),
		router: chi.NewRouter(),
	}
	if cfg.MetricsEnabled {
		s.router.Use(middleware.Metrics)
	}
	return s
}

// Router returns the server's router for registering handlers.
func (s *Server) Router() chi.Router {
	return s.router
}

// Handler returns the router wrapped in the middleware chain and tracing.
func (s *Server) Handler() http.Handler {
	handler := middleware.Chain(
		s.router,
		middleware.Recovery(s.log),
		middleware.RequestID,
		middleware.Logging(s.log),
		middleware.CORS,
		middleware.RateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst),
		middleware.Auth(s.cfg, s.log),
	)

	return otelhttp.NewHandler(handler, "hls-relay",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	// Graceful shutdown
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		s.log.Info("server shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.Error("server shutdown error", "error", err)
		}
		close(done)
	}()

	s.log.Info("server starting", "port", s.cfg.Port, "base_url", s.cfg.BaseURL)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	s.log.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
