package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/continuum/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the API HTTP server
type Server struct {
	httpServer *http.Server
	router     chi.Router
	version    string
	logger     *slog.Logger

	// Services
	sourceService     driving.SourceService
	syncRunner        driving.SyncRunner
	moderationService driving.ModerationService
	postmortemService driving.PostmortemService

	// Infrastructure
	db   Pinger // PostgreSQL health check
	lock Pinger // Lock backend health check (optional)
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	Version     string
	AdminSecret string

	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8000,
		Version:           "dev",
		CORSOrigins:       []string{"*"},
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
}

// Services bundles the driving ports the API exposes
type Services struct {
	Sources     driving.SourceService
	Sync        driving.SyncRunner
	Moderation  driving.ModerationService
	Postmortems driving.PostmortemService
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, svc Services, db Pinger, lock Pinger) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		version:           cfg.Version,
		logger:            logger.With("component", "api"),
		sourceService:     svc.Sources,
		syncRunner:        svc.Sync,
		moderationService: svc.Moderation,
		postmortemService: svc.Postmortems,
		db:                db,
		lock:              lock,
	}

	s.router = s.setupRoutes(cfg)
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// Sync streams clear their own write deadline.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config) chi.Router {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging(s.logger))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", AdminSecretHeader},
		MaxAge:         86400,
	}))
	r.Use(PrometheusMetrics)

	// Health endpoints (no auth)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/version", s.handleVersion)
	r.Handle("/metrics", promhttp.Handler())

	// Public catalogue
	r.Group(func(r chi.Router) {
		if cfg.RateLimitRequests > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}
		r.Get("/postmortems", s.handleListPostmortems)
		r.Get("/postmortems/{id}", s.handleGetPostmortem)
		r.Get("/companies", s.handleListCompanies)
	})

	// Admin endpoints
	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireAdminSecret(cfg.AdminSecret))

		r.Get("/sources", s.handleListSources)
		r.Post("/sources", s.handleCreateSource)
		r.Get("/sources/{id}", s.handleGetSource)
		r.Patch("/sources/{id}", s.handleUpdateSource)
		r.Delete("/sources/{id}", s.handleDeleteSource)
		r.Post("/sources/{id}/sync", s.handleSyncSource)

		r.Get("/queue", s.handleQueue)
		r.Post("/bulk-publish", s.handleBulkPublish)
		r.Post("/bulk-reject", s.handleBulkReject)
		r.Patch("/{id}/publish", s.handlePublish)
		r.Patch("/{id}/reject", s.handleReject)
		r.Delete("/{id}", s.handleDeletePostmortem)
	})

	return r
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
