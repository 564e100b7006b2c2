package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/forkjoin/internal/auth"
	"github.com/mattjoyce/forkjoin/internal/journal"
)

// History is the read side of the task journal.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]journal.Run, error)
	GetRun(ctx context.Context, id string) (*journal.Run, error)
	ListTasks(ctx context.Context, runID string) ([]*journal.TaskRecord, error)
	GetTask(ctx context.Context, id string) (*journal.TaskRecord, error)
	FindByFingerprint(ctx context.Context, fingerprint string) ([]*journal.TaskRecord, error)
}

// Config holds API server configuration
type Config struct {
	Listen string
	// Tokens enables bearer authentication on everything but /healthz.
	Tokens []auth.TokenConfig
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	history   History
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance
func New(config Config, history History, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		history:   history,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server (blocking)
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

// Handler returns the routed handler without binding a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.With(s.requireScopes(auth.ScopeRuns)).Get("/runs", s.handleListRuns)
		r.With(s.requireScopes(auth.ScopeRuns)).Get("/runs/{runID}", s.handleGetRun)
		r.With(s.requireScopes(auth.ScopeTasks)).Get("/runs/{runID}/tasks", s.handleListTasks)
		r.With(s.requireScopes(auth.ScopeTasks)).Get("/tasks/{taskID}", s.handleGetTask)
		r.With(s.requireScopes(auth.ScopeTasks)).Get("/fingerprints/{fingerprint}/tasks", s.handleFindByFingerprint)
	})

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
