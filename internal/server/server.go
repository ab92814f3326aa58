// Package server exposes Prometheus metrics and a health probe while a
// long pipeline run is in progress.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lifely/lifely/internal/logging"
	"github.com/lifely/lifely/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(ctx context.Context) error

// Server is the HTTP listener for /metrics and /healthz.
type Server struct {
	logger *slog.Logger
	http   *http.Server
}

// New constructs a Server on addr. health may be nil.
func New(addr string, logger *slog.Logger, collector *metrics.Collector, health HealthFunc) *Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(collector, health),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return &Server{
		logger: logging.OrDiscard(logger),
		http:   srv,
	}
}

// Handler routes /metrics to the collector and /healthz to health.
func Handler(collector *metrics.Collector, health HealthFunc) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	if collector != nil {
		router.Handle("/metrics", collector.Handler())
	}
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		body := map[string]string{}
		if health != nil {
			if err := health(r.Context()); err != nil {
				status, code = "unhealthy", http.StatusServiceUnavailable
				body["error"] = err.Error()
			}
		}
		body["status"] = status

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	})
	return router
}

// Start begins serving HTTP traffic. It blocks until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting metrics server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Shutdown gracefully terminates the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down metrics server")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
