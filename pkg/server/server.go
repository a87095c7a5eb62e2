// Package server exposes the noteum core over HTTP: hybrid search,
// AI chat and streaming, background index control, OAuth connections,
// and feedback recording. Routing is chi; responses are JSON except
// the SSE stream endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noteum-io/noteum"
	"github.com/noteum-io/noteum/pkg/auth"
	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/index"
	"github.com/noteum-io/noteum/pkg/llms"
	"github.com/noteum-io/noteum/pkg/metrics"
	"github.com/noteum-io/noteum/pkg/oauth"
	"github.com/noteum-io/noteum/pkg/observability"
	"github.com/noteum-io/noteum/pkg/prompts"
	"github.com/noteum-io/noteum/pkg/quality"
	"github.com/noteum-io/noteum/pkg/search"
)

// Searcher runs the retrieval pipeline.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
}

// IndexDriver controls the background embedding index run.
type IndexDriver interface {
	Start() error
	Progress() index.Progress
}

// NoteCounter reports index coverage for the status endpoint.
type NoteCounter interface {
	CountNotes(ctx context.Context) (int, error)
	CountIndexedNotes(ctx context.Context) (int, error)
}

// FeedbackStore records user feedback and serves aggregate stats.
// *metrics.Store satisfies it.
type FeedbackStore interface {
	RecordSearchFeedback(ctx context.Context, eventID string, noteID int64, userID string, relevant bool) error
	RecordAIFeedback(ctx context.Context, fb *metrics.AIFeedback) error
	Stats(ctx context.Context) (*metrics.SearchStats, error)
}

// OAuthManager runs the user OAuth connection flows and hands access
// tokens to the per-request router swap. *oauth.Manager satisfies it.
type OAuthManager interface {
	Authorize(ctx context.Context, userID, provider string) (*oauth.Grant, error)
	Callback(ctx context.Context, userID, provider, code, state string) (*oauth.Connection, error)
	Status(ctx context.Context, userID, provider string) (*oauth.Connection, error)
	Disconnect(ctx context.Context, userID, provider string) error
	AccessToken(ctx context.Context, userID, provider string) (string, error)
	Providers() []string
}

// Dependencies are the wired components the HTTP surface serves.
// Gate, Evaluator, Settings, and Validator may be nil: the quality
// calls are skipped and authentication is disabled.
type Dependencies struct {
	Search    Searcher
	Driver    IndexDriver
	Notes     NoteCounter
	Feedback  FeedbackStore
	Router    *llms.Router
	Prompts   *prompts.Builder
	Gate      *quality.Gate
	Evaluator *quality.Evaluator
	Settings  *config.Settings
	OAuth     OAuthManager
	Validator auth.TokenValidator
}

// Server is the HTTP surface.
type Server struct {
	cfg        *config.Config
	deps       Dependencies
	httpServer *http.Server
}

// New builds the server and its routes.
func New(cfg *config.Config, deps Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	s := &Server{cfg: cfg, deps: deps}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s, nil
}

// Handler builds the route tree. Middleware order is logging, then
// observability, then CORS, then auth. None of them wrap the
// ResponseWriter, so the stream handlers keep their http.Flusher.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(observability.Middleware(observability.GetGlobalMetrics(), observability.GetTracer("noteum.http")))
	if len(s.cfg.Server.AllowedOrigins) > 0 {
		r.Use(corsMiddleware(s.cfg.Server.AllowedOrigins))
	}
	if s.deps.Validator != nil {
		r.Use(auth.Middleware(s.deps.Validator, s.cfg.Auth.ExcludedPaths, s.respondError))
	}

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/search", func(r chi.Router) {
		r.Get("/", s.handleSearch)
		r.With(auth.RequireRole(s.respondError, "admin")).Post("/index", s.handleIndexStart)
		r.Get("/index/status", s.handleIndexStatus)
		r.Post("/feedback", s.handleSearchFeedback)
		r.Get("/stats", s.handleSearchStats)
	})

	r.Route("/ai", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/stream", s.handleStream)
		r.Get("/models", s.handleModels)
		r.Get("/providers", s.handleProviders)
		r.Post("/feedback", s.handleAIFeedback)
	})

	r.Get("/oauth/providers", s.handleOAuthProviders)
	r.Route("/oauth/{provider}", func(r chi.Router) {
		r.Get("/authorize", s.handleOAuthAuthorize)
		r.Post("/callback", s.handleOAuthCallback)
		r.Get("/status", s.handleOAuthStatus)
		r.Delete("/disconnect", s.handleOAuthDisconnect)
	})

	return r
}

// Start runs the server until Stop or a listener failure. It blocks.
func (s *Server) Start() error {
	slog.Info("HTTP server starting",
		"addr", s.httpServer.Addr,
		"auth", s.deps.Validator != nil)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests up to the
// context deadline.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("HTTP server stopping")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": noteum.Version,
	})
}
