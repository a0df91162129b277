// Package app wires nightwatchd's startup and shutdown sequence: load
// config, open the datastore, ensure schema, load admin/TLS material,
// start the retention sweeper, bind the listener, and drain in-flight
// requests on shutdown, per spec §4.7.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alkorolyov/dcmon/internal/audit"
	"github.com/alkorolyov/dcmon/internal/auth"
	"github.com/alkorolyov/dcmon/internal/command"
	"github.com/alkorolyov/dcmon/internal/config"
	"github.com/alkorolyov/dcmon/internal/httpserver"
	"github.com/alkorolyov/dcmon/internal/ingest"
	"github.com/alkorolyov/dcmon/internal/platform"
	"github.com/alkorolyov/dcmon/internal/query"
	"github.com/alkorolyov/dcmon/internal/retention"
	"github.com/alkorolyov/dcmon/internal/store"
	"github.com/alkorolyov/dcmon/internal/telemetry"
)

// Run is nightwatchd's entry point, called from cmd/nightwatchd/main.go. It
// blocks until ctx is cancelled (SIGINT/SIGTERM) and returns the shutdown
// error, if any.
func Run(ctx context.Context, cfg *config.Server, migrationsDir string) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel, "nightwatchd")
	slog.SetDefault(logger)
	logger.Info("starting nightwatchd", "listen", cfg.ListenAddr(), "test_mode", cfg.TestMode)

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, "nightwatchd", "dev", cfg.Host)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("shutting down tracer", "error", err)
		}
	}()

	if err := os.MkdirAll(cfg.AuthDir, 0700); err != nil {
		return fmt.Errorf("creating auth dir: %w", err)
	}

	pool, err := platform.NewPostgresPool(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to datastore: %w", err)
	}
	defer pool.Close()

	if migrationsDir != "" {
		if err := platform.RunMigrations(cfg.DBPath, migrationsDir); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("schema migrations applied")
	}

	adminToken, err := loadOrCreateAdminToken(cfg.AuthDir)
	if err != nil {
		return fmt.Errorf("loading admin token: %w", err)
	}

	redisConn, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, continuing without it", "error", err)
		redisConn = nil
	} else {
		defer func() {
			if err := redisConn.Close(); err != nil {
				logger.Error("closing redis", "error", err)
			}
		}()
	}

	agents := store.NewAgentStore(pool)
	series := store.NewSeriesStore(pool)
	points := store.NewPointStore(pool)
	logs := store.NewLogStore(pool)
	commands := store.NewCommandStore(pool)
	leases := store.NewLeaseStore(pool)
	stats := store.NewStatsStore(pool)

	auditWriter := audit.NewWriter(cfg.AuditLogPath, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	enroller := auth.NewEnroller(agents, func() string { return adminToken }, cfg.TestMode)
	metricsIngest := ingest.NewMetrics(series, points, agents)
	logIngest := ingest.NewLogs(logs, agents)
	queryEngine := query.NewEngine(series, points)

	var hub *command.Hub
	if !cfg.TestMode {
		hub = command.NewHub(logger, nil)
	}
	plane := command.NewPlane(pool, commands, hub)

	sweeper := retention.NewSweeper(retention.Config{
		Interval:         time.Duration(cfg.CleanupIntervalSec) * time.Second,
		MetricsRetention: time.Duration(cfg.MetricsRetentionDays) * 24 * time.Hour,
		LogsRetention:    time.Duration(cfg.LogsRetentionDays) * 24 * time.Hour,
		CommandGrace:     time.Duration(cfg.CommandGraceDays) * 24 * time.Hour,
	}, points, logs, commands, leases, logger)

	staleAfter := time.Duration(cfg.ClientStaleAfterSec) * time.Second

	srv := httpserver.NewServer(httpserver.Config{
		Pool:             pool,
		Redis:            redisConn,
		Logger:           logger,
		Agents:           agents,
		Series:           series,
		Points:           points,
		Logs:             logs,
		Commands:         commands,
		Stats:            stats,
		Enroller:         enroller,
		Metrics:          metricsIngest,
		LogIngest:        logIngest,
		Query:            queryEngine,
		Plane:            plane,
		Hub:              hub,
		AdminToken:       func() string { return adminToken },
		TestMode:         cfg.TestMode,
		ClientStaleAfter: staleAfter,
		AuditLog:         auditWriter,
		StartedAt:        time.Now(),
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second, // long-poll command delivery holds the connection open
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sweeper.Run(gctx) })

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.ListenAddr(), "tls", cfg.UseTLS)
		var err error
		if cfg.UseTLS {
			certPath := filepath.Join(cfg.AuthDir, "server.crt")
			keyPath := filepath.Join(cfg.AuthDir, "server.key")
			err = httpSrv.ListenAndServeTLS(certPath, keyPath)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// loadOrCreateAdminToken reads auth_dir/admin_token, generating and
// persisting a fresh one on first run, per spec §6.3's "admin_token — 0600"
// persisted-state entry. Rotation is external: an operator replaces the
// file and restarts the process.
func loadOrCreateAdminToken(authDir string) (string, error) {
	path := filepath.Join(authDir, "admin_token")

	data, err := os.ReadFile(path)
	if err == nil {
		return string(data), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading admin token: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating admin token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := os.WriteFile(path, []byte(token), 0600); err != nil {
		return "", fmt.Errorf("persisting admin token: %w", err)
	}
	return token, nil
}
