package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/BitSlicer/internal/config"
	"github.com/JonMunkholm/BitSlicer/internal/core"
	"github.com/JonMunkholm/BitSlicer/internal/logging"
	"github.com/JonMunkholm/BitSlicer/internal/metrics"
	"github.com/JonMunkholm/BitSlicer/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists; real environment variables win
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"job_max_concurrent", cfg.Jobs.MaxConcurrent,
		"job_workers", cfg.Jobs.Workers,
		"history_db", cfg.Database.HistoryEnabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	history, closeDB, err := openHistory(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open job history", "error", err)
		os.Exit(1)
	}
	defer closeDB()

	layouts, err := core.LoadLayoutsFile(cfg.Layouts.Path)
	if err != nil {
		slog.Error("failed to load layouts", "path", cfg.Layouts.Path, "error", err)
		os.Exit(1)
	}
	slog.Info("layouts registered", "count", layouts.Len())

	m := metrics.New()
	service := core.NewService(core.Options{
		Workers:     cfg.Jobs.Workers,
		JobTimeout:  cfg.Jobs.Timeout,
		ResultTTL:   cfg.Jobs.ResultTTL,
		MaxFileSize: cfg.Jobs.MaxFileSize,
		Limiter:     core.NewJobLimiter(cfg.Jobs.MaxConcurrent, cfg.Jobs.MaxWaitTime),
		Layouts:     layouts,
		History:     history,
		Metrics:     m,
	})

	server := web.NewServer(service, cfg, m)

	// Create cancellable context for background jobs
	bgCtx, cancelBackground := context.WithCancel(ctx)

	go service.StartRetentionScheduler(bgCtx, core.RetentionConfig{
		RetentionDays: cfg.History.RetentionDays,
		CheckInterval: cfg.History.CheckInterval,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelBackground()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop taking requests first, then give running jobs the rest of the budget
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for jobs to complete", "active", status.Active)
			if err := service.Wait(shutdownCtx); err != nil {
				slog.Warn("jobs did not complete in time, cancelling", "error", err)
				service.CancelAll()
			} else {
				slog.Info("all jobs completed")
			}
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
}

// openHistory connects to Postgres when a database URL is configured and
// falls back to in-memory history otherwise.
func openHistory(ctx context.Context, cfg config.DatabaseConfig) (core.HistoryStore, func(), error) {
	if !cfg.HistoryEnabled() {
		slog.Info("no database configured, keeping job history in memory")
		return core.NewMemoryHistory(), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	history := core.NewPostgresHistory(pool)
	if err := history.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return history, pool.Close, nil
}
