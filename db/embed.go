// Package db holds the SQL migrations, embedded so binaries and tests do not
// depend on the working directory.
package db

import "embed"

// Migrations contains one directory of golang-migrate files per driver:
// migrations/mysql and migrations/sqlite.
//
//go:embed migrations
var Migrations embed.FS
