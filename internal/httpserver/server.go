// Package httpserver wires the chi router, middleware stack, and every
// HTTP handler for nightwatchd, per spec §6.1's endpoint table.
package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/alkorolyov/dcmon/internal/audit"
	"github.com/alkorolyov/dcmon/internal/auth"
	"github.com/alkorolyov/dcmon/internal/command"
	"github.com/alkorolyov/dcmon/internal/ingest"
	"github.com/alkorolyov/dcmon/internal/query"
	"github.com/alkorolyov/dcmon/internal/store"
	"github.com/alkorolyov/dcmon/internal/telemetry"
)

// Config bundles the dependencies the HTTP surface needs. It intentionally
// takes concrete stores and engines rather than raw connections: wiring
// them up is internal/app's job, not this package's.
type Config struct {
	Pool   *pgxpool.Pool
	Redis  *redis.Client // nil disables the redis readiness check
	Logger *slog.Logger

	Agents   *store.AgentStore
	Series   *store.SeriesStore
	Points   *store.PointStore
	Logs     *store.LogStore
	Commands *store.CommandStore
	Stats    *store.StatsStore

	Enroller  *auth.Enroller
	Metrics   *ingest.Metrics
	LogIngest *ingest.Logs
	Query     *query.Engine
	Plane     *command.Plane
	Hub       *command.Hub // nil disables the streaming command-delivery path

	AdminToken       func() string
	TestMode         bool
	ClientStaleAfter time.Duration
	AuditLog         *audit.Writer
	StartedAt        time.Time
}

// Server wraps the chi router and every dependency a handler needs.
type Server struct {
	cfg    Config
	Router *chi.Mux
}

// NewServer builds the router, mounts global middleware, and registers
// every route. The returned Server implements http.Handler via Router.
func NewServer(cfg Config) *Server {
	s := &Server{cfg: cfg, Router: chi.NewRouter()}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(cfg.Logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	s.Router.Get("/health", s.handleHealth)
	s.Router.Handle("/metrics", promhttp.HandlerFor(telemetry.NewRegistry(), promhttp.HandlerOpts{}))

	// Registration is reachable without a bearer token: the agent has none
	// yet. It carries its own admin-token + signature proof in the body.
	s.Router.Post("/api/clients/register", s.handleRegister)

	s.Router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Agents, cfg.AdminToken, cfg.TestMode, cfg.AuditLog, cfg.Logger))
		s.routes(r)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// handleHealth reports liveness and datastore connectivity, per spec
// §6.1's "Liveness; returns datastore status". It is intentionally
// unauthenticated so external health checkers never need credentials.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	dbStatus := "ok"
	if err := s.cfg.Pool.Ping(ctx); err != nil {
		dbStatus = "unreachable"
		status = "degraded"
	}

	redisStatus := "disabled"
	if s.cfg.Redis != nil {
		redisStatus = "ok"
		if err := s.cfg.Redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unreachable"
			status = "degraded"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	Respond(w, code, map[string]any{
		"status":     status,
		"datastore":  dbStatus,
		"redis":      redisStatus,
		"uptime_sec": int64(time.Since(s.cfg.StartedAt).Seconds()),
	})
}
