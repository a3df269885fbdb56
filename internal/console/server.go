// Package console serves the admin console backend. It authenticates the
// operator with a session cookie and forwards admin actions, including the
// sync progress stream, to the API.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	httpapi "github.com/custodia-labs/continuum/internal/adapters/driving/http"
	"github.com/custodia-labs/continuum/internal/core/domain"
	"github.com/custodia-labs/continuum/internal/core/ports/driving"
	"github.com/custodia-labs/continuum/internal/metrics"
)

// AdminAPI is the part of the API the console forwards to
type AdminAPI interface {
	ListSources(ctx context.Context) ([]*domain.Source, error)
	CreateSource(ctx context.Context, in domain.SourceInput) (*domain.Source, error)
	DeleteSource(ctx context.Context, id string) error
	Queue(ctx context.Context) ([]*domain.Postmortem, error)
	Published(ctx context.Context) ([]*domain.Postmortem, error)
	Publish(ctx context.Context, id string) (*domain.Postmortem, error)
	Reject(ctx context.Context, id string) (*domain.Postmortem, error)
	DeletePostmortem(ctx context.Context, id string) error
	BulkPublish(ctx context.Context, ids []string) (*domain.BulkResult, error)
	BulkReject(ctx context.Context, ids []string) (*domain.BulkResult, error)
	OpenSyncStream(ctx context.Context, id string) (io.ReadCloser, error)
}

// Config holds console server configuration
type Config struct {
	Host         string
	Port         int
	CookieSecure bool
	// LoginRateLimit caps login attempts per client IP and minute. Zero disables it.
	LoginRateLimit int
	Logger         *slog.Logger
}

// Server is the console HTTP server
type Server struct {
	httpServer   *http.Server
	router       chi.Router
	auth         driving.AuthService
	api          AdminAPI
	cookieSecure bool
	logger       *slog.Logger
}

// NewServer creates a console server
func NewServer(cfg Config, auth driving.AuthService, api AdminAPI) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		auth:         auth,
		api:          api,
		cookieSecure: cfg.CookieSecure,
		logger:       logger.With("component", "console"),
	}
	s.router = s.setupRoutes(cfg)
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// The relay clears its own write deadline.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(cfg Config) chi.Router {
	r := chi.NewRouter()
	r.Use(httpapi.RequestIDWithLogging(s.logger))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(httpapi.PrometheusMetrics)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/admin", func(r chi.Router) {
		login := http.Handler(http.HandlerFunc(s.handleLogin))
		if cfg.LoginRateLimit > 0 {
			login = httprate.LimitByIP(cfg.LoginRateLimit, time.Minute)(login)
		}
		r.Method(http.MethodPost, "/login", login)

		r.Group(func(r chi.Router) {
			r.Use(s.RequireSession)

			r.Post("/logout", s.handleLogout)
			r.Get("/session", s.handleSession)

			r.Get("/sources", s.handleListSources)
			r.Post("/sources", s.handleCreateSource)
			r.Delete("/sources/{id}", s.handleDeleteSource)

			r.Get("/queue", s.handleQueue)
			r.Get("/published", s.handlePublished)
			r.Get("/overview", s.handleOverview)
			r.Post("/postmortems/bulk-publish", s.handleBulkPublish)
			r.Post("/postmortems/bulk-reject", s.handleBulkReject)
			r.Post("/postmortems/{id}/publish", s.handlePublish)
			r.Post("/postmortems/{id}/reject", s.handleReject)
			r.Delete("/postmortems/{id}", s.handleDeletePostmortem)
		})

		r.With(s.sessionGuard(func() {
			metrics.RecordRelayStream(outcomeUnauthorized, 0)
		})).Post("/sync/{id}", s.handleSyncRelay)
	})

	return r
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting console", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("console error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("console shutdown failed: %w", err)
	}
	s.logger.Info("console stopped")
	return nil
}
