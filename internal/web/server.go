// Package web serves the scoreboard page and its JSON/SSE API.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrVeink/svr/internal/config"
	"github.com/MrVeink/svr/internal/core"
	svrmw "github.com/MrVeink/svr/internal/web/middleware"
)

// SnapshotSource is what the server needs from the poller.
type SnapshotSource interface {
	Snapshot() core.Snapshot
	Source() core.SourceDescriptor
	SetSource(ctx context.Context, d core.SourceDescriptor)
	Subscribe() (<-chan core.Snapshot, func())
	PoolStatus() core.PoolStatus
}

// Options carries presentation settings resolved at startup.
type Options struct {
	Theme   string
	Version string

	// KeepAlive is the SSE ping interval (default: 15s).
	KeepAlive time.Duration
}

// Server is the HTTP server for the scoreboard.
type Server struct {
	source SnapshotSource
	cfg    config.ServerConfig
	opts   Options
	router *chi.Mux
	server *http.Server

	// streams is cancelled when shutdown begins so event streams end
	// instead of holding their connections open.
	streams      context.Context
	closeStreams context.CancelFunc
}

// NewServer creates a new Server instance.
func NewServer(source SnapshotSource, cfg config.ServerConfig, opts Options) *Server {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 15 * time.Second
	}
	if opts.Theme == "" {
		opts.Theme = "dark"
	}
	s := &Server{
		source: source,
		cfg:    cfg,
		opts:   opts,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	s.streams, s.closeStreams = context.WithCancel(context.Background())
	s.server.RegisterOnShutdown(s.closeStreams)
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(svrmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	// The event stream is long-lived, so the timeout only wraps the rest.
	s.router.Get("/api/events", s.handleEvents)

	s.router.Group(func(r chi.Router) {
		if s.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		}

		r.Get("/", s.handleScoreboard)
		r.Get("/healthz", s.handleHealth)

		r.Route("/api", func(r chi.Router) {
			r.Get("/table", s.handleTable)
			r.Get("/source", s.handleGetSource)
			r.Post("/source", s.handleSetSource)
		})
	})
}

// Start begins listening for HTTP requests on the configured address. After
// Shutdown it returns http.ErrServerClosed.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")

		// Inline style and script only; the page has no other assets.
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
