// Package api exposes the operational HTTP surface: health, processor
// status, the audit trail and Prometheus metrics. RPC traffic itself never
// goes through HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/urlic/licenced/internal/audit"
	"github.com/urlic/licenced/internal/bus"
	"github.com/urlic/licenced/internal/config"
	"github.com/urlic/licenced/internal/rpc"
)

// StatsSource reports live processor counters.
type StatsSource interface {
	Stats() rpc.Stats
}

// AuditReader reads back recorded request outcomes.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]audit.Entry, error)
}

// EventSource replays buffered bus traffic for debugging.
type EventSource interface {
	SnapshotSince(topic string, lastID int64) []bus.Message
}

// Server is the operational HTTP server.
type Server struct {
	config        config.APIConfig
	stats         StatsSource
	trail         AuditReader
	events        EventSource
	responseTopic string
	logger        *slog.Logger
	server        *http.Server
	startedAt     time.Time
}

func New(cfg config.APIConfig, stats StatsSource, trail AuditReader, events EventSource, responseTopic string, logger *slog.Logger) *Server {
	return &Server{
		config:        cfg,
		stats:         stats,
		trail:         trail,
		events:        events,
		responseTopic: responseTopic,
		logger:        logger,
		startedAt:     time.Now(),
	}
}

// Start runs the HTTP server until ctx is cancelled (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Get("/audit/recent", s.handleAuditRecent)
	r.Get("/events/responses", s.handleRecentResponses)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
