// Package server exposes the minimal read-only status surface a
// dashboard process consumes: health, scheduler snapshot, and recent
// logs. It is explicitly not the dashboard itself (spec §1: the
// dashboard is a consumer of scheduler status, logs, and database
// reads, not a module of this kernel). Grounded on the teacher's
// internal/server package for middleware/router shape, collapsed from
// its dozens of module routers to three endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/antonkoetzler/arbihawk/internal/scheduler"
)

// Scheduler is the narrow surface the status handlers depend on,
// satisfied by *scheduler.Scheduler.
type Scheduler interface {
	CurrentTask() string
	LastRun(task string) (time.Time, time.Duration)
	Logs(n int) []scheduler.LogEntry
	DaemonRunning() bool
	TradingDaemonRunning() bool
}

// StoreHealth is the narrow store surface /healthz depends on.
type StoreHealth interface {
	HealthCheck(ctx context.Context) error
}

// Config configures the status server.
type Config struct {
	Log       zerolog.Logger
	Port      int
	Scheduler Scheduler
	Store     StoreHealth
	TaskNames []string // tasks to report LastRun for in /status
}

// Server wraps the HTTP handler and its own http.Server.
type Server struct {
	router *chi.Mux
	http   *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New builds the router and binds it to :Port.
func New(cfg Config) *Server {
	s := &Server{router: chi.NewRouter(), log: cfg.Log.With().Str("component", "server").Logger(), cfg: cfg}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(15 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/status", s.handleStatus)
	s.router.Get("/logs", s.handleLogs)

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router directly, for use with httptest in callers' tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks serving HTTP until the listener errors or is shut down.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("starting status server")
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Msg("http request")
	})
}
