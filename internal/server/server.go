// AngelaMos | 2026
// server.go

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wealthsupernova/supernova/internal/config"
	"github.com/wealthsupernova/supernova/internal/health"
)

type Config struct {
	ServerConfig  config.ServerConfig
	HealthHandler *health.Handler
	Logger        *slog.Logger
}

type Server struct {
	http    *http.Server
	router  *chi.Mux
	health  *health.Handler
	logger  *slog.Logger
	timeout time.Duration
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()

	return &Server{
		http: &http.Server{
			Addr:              cfg.ServerConfig.Address(),
			Handler:           router,
			ReadTimeout:       cfg.ServerConfig.ReadTimeout,
			ReadHeaderTimeout: cfg.ServerConfig.ReadTimeout,
			WriteTimeout:      cfg.ServerConfig.WriteTimeout,
			IdleTimeout:       cfg.ServerConfig.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
		router:  router,
		health:  cfg.HealthHandler,
		logger:  logger,
		timeout: cfg.ServerConfig.ShutdownTimeout,
	}
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown flips readiness off, waits drain for load balancers to notice,
// then stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context, drain time.Duration) error {
	if s.health != nil {
		s.health.SetReady(false)
	}

	if drain > 0 {
		s.logger.Info("draining connections", "delay", drain)
		select {
		case <-time.After(drain):
		case <-ctx.Done():
		}
	}

	if s.health != nil {
		s.health.SetShutdown(true)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}
