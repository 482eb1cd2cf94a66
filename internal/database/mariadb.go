// Package database provides connection setup for the log store (MariaDB or
// SQLite) and Redis. Connections are created once at startup and shared
// across the application via dependency injection. This package owns the
// connection lifecycle (open, configure pool, ping, close) and migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// MariaDB driver -- imported for side effect of registering the driver.
	_ "github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/audittrail/internal/config"
)

// Open connects to the log store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return NewSQLite(cfg.SQLitePath)
	case config.DriverMySQL, "":
		return NewMariaDB(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewMariaDB creates a new MariaDB connection pool configured with the
// settings from the provided config. It pings the database to verify
// connectivity before returning.
func NewMariaDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening mariadb connection: %w", err)
	}

	// Pool limits prevent connection exhaustion and stale connections under load.
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := pingWithRetry(ctx, db, "mariadb", 10); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// pingWithRetry pings db with exponential backoff. MariaDB may still be
// starting up when the service container launches; retrying avoids
// crash-loop restarts during compose cold-starts.
func pingWithRetry(ctx context.Context, db *sql.DB, name string, maxRetries int) error {
	backoff := 1 * time.Second
	var pingErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pingErr = db.PingContext(pingCtx)
		cancel()

		if pingErr == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}

		slog.Warn(name+" not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxRetries),
			slog.Duration("backoff", backoff),
			slog.Any("error", pingErr),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("pinging %s: %w", name, ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}

	return fmt.Errorf("pinging %s after %d attempts: %w", name, maxRetries, pingErr)
}
