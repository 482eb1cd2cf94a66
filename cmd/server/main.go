// Package main is the entry point for the audit trail server. It loads
// configuration, establishes database connections, wires the audit
// pipeline, and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/audittrail/internal/app"
	"github.com/keyxmakerx/audittrail/internal/config"
	"github.com/keyxmakerx/audittrail/internal/database"
	"github.com/keyxmakerx/audittrail/internal/lifecycle"
)

// shutdownTimeout is how long in-flight requests get to complete.
const shutdownTimeout = 10 * time.Second

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Configure structured logging based on environment.
	setupLogging(cfg)

	slog.Info("starting audit trail",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
	)

	// Cancelled on SIGINT/SIGTERM; stops background workers and the server.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to the log store ---
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open log store", slog.String("driver", cfg.Database.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to log store", slog.String("driver", cfg.Database.Driver))

	if err := database.RunMigrations(db, cfg.Database.Driver, cfg.Database.MigrationsPath); err != nil {
		slog.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Connect to Redis (only when a component needs it) ---
	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb, err = database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to Redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
		slog.Info("connected to Redis")
	}

	// --- Create Application ---
	application, err := app.New(ctx, cfg, db, rdb)
	if err != nil {
		slog.Error("failed to build audit pipeline", slog.Any("error", err))
		os.Exit(1)
	}
	application.RegisterRoutes()

	// --- Background workers ---
	go application.Pipeline.RunSweeper(ctx)

	if cfg.Redis.NotifyChannel != "" {
		source := lifecycle.NewRedisSource(rdb, cfg.Redis.NotifyChannel, application.Pipeline.Coordinator)
		go func() {
			if err := source.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("notification subscriber stopped", slog.Any("error", err))
			}
		}()
	}

	// --- Graceful Shutdown ---
	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	// --- Start Server ---
	if err := application.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// setupLogging configures the global slog logger. Development uses text
// format for readability, production uses JSON for log aggregation.
// LOG_LEVEL picks the minimum level.
func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel maps a LOG_LEVEL value to a slog level. Unknown values mean info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
