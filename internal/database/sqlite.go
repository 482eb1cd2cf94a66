package database

import (
	"context"
	"database/sql"
	"fmt"

	// Pure-Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

// NewSQLite opens a SQLite log store at path (":memory:" for a throwaway
// database). SQLite serializes writers, so the pool holds one connection;
// this also keeps an in-memory database alive across queries.
func NewSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring sqlite (%s): %w", pragma, err)
		}
	}

	if err := pingWithRetry(context.Background(), db, "sqlite", 1); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
