package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// File source driver for reading migration files from disk.
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/keyxmakerx/audittrail/db"
	"github.com/keyxmakerx/audittrail/internal/config"
)

// RunMigrations applies all pending migrations for driver. When dir is empty
// the migrations embedded in the binary are used; otherwise dir is the
// directory holding the driver's .sql files. Safe to call on every startup:
// already-applied migrations are skipped.
func RunMigrations(conn *sql.DB, driver, dir string) error {
	m, err := newMigrator(conn, driver, dir)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	slog.Info("migrations applied",
		slog.String("driver", driver),
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)

	return nil
}

// MigrationVersion reports the applied schema version. A database with no
// migrations applied reports version 0.
func MigrationVersion(conn *sql.DB, driver, dir string) (uint, bool, error) {
	m, err := newMigrator(conn, driver, dir)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading migration version: %w", err)
	}
	return version, dirty, nil
}

// newMigrator wires the database driver and migration source together.
func newMigrator(conn *sql.DB, driver, dir string) (*migrate.Migrate, error) {
	var (
		dbDriver migratedb.Driver
		err      error
	)
	switch driver {
	case config.DriverSQLite:
		dbDriver, err = sqlite.WithInstance(conn, &sqlite.Config{})
	case config.DriverMySQL, "":
		driver = config.DriverMySQL
		dbDriver, err = mysql.WithInstance(conn, &mysql.Config{})
	default:
		return nil, fmt.Errorf("unsupported migration driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("creating migration driver: %w", err)
	}

	if dir != "" {
		m, err := migrate.NewWithDatabaseInstance("file://"+dir, driver, dbDriver)
		if err != nil {
			return nil, fmt.Errorf("creating migrator: %w", err)
		}
		return m, nil
	}

	var src source.Driver
	src, err = iofs.New(db.Migrations, path.Join("migrations", driver))
	if err != nil {
		return nil, fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, driver, dbDriver)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}
