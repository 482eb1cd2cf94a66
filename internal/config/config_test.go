package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so the host environment does not
// leak into a test. Original values are restored on cleanup.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"AUDITTRAIL_CONFIG", "ENV", "PORT", "LOG_LEVEL",
		"DB_DRIVER", "DB_HOST", "DB_USER", "DB_PASSWORD", "DB_NAME", "SQLITE_PATH",
		"MIGRATIONS_PATH", "DATABASE_URL",
		"REDIS_URL", "NOTIFY_CHANNEL",
		"SNAPSHOT_BACKEND", "SNAPSHOT_TTL", "SNAPSHOT_SWEEP_INTERVAL",
		"ENTITY_STORE_URL", "ENTITY_STORE_TIMEOUT", "ENTITY_STORE_TOKEN",
		"INGEST_KEY_HASH", "TEXT_MAX_LENGTH", "CURRENCY",
		"BRUTE_FORCE_THRESHOLD", "BRUTE_FORCE_WINDOW",
		"TRUSTED_PROXIES", "CORS_ORIGINS", "QUERY_RATE_LIMIT",
	}
	for _, k := range keys {
		if old, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { os.Setenv(k, old) })
		} else {
			t.Cleanup(func() { os.Unsetenv(k) })
		}
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Database.Driver != DriverMySQL {
		t.Errorf("Driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Snapshot.Backend != SnapshotMemory {
		t.Errorf("Backend = %q, want memory", cfg.Snapshot.Backend)
	}
	if cfg.Audit.TextMaxLength != 200 {
		t.Errorf("TextMaxLength = %d, want 200", cfg.Audit.TextMaxLength)
	}
	if cfg.Audit.BruteForceThreshold != 10 || cfg.Audit.BruteForceWindow != 15*time.Minute {
		t.Errorf("brute force = %d/%s, want 10/15m", cfg.Audit.BruteForceThreshold, cfg.Audit.BruteForceWindow)
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development mode by default")
	}
	if cfg.UsesRedis() {
		t.Error("default config should not need Redis")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", ":memory:")
	t.Setenv("SNAPSHOT_TTL", "90s")
	t.Setenv("CURRENCY", "€")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.SQLitePath != ":memory:" {
		t.Errorf("SQLitePath = %q", cfg.Database.SQLitePath)
	}
	if cfg.Snapshot.TTL != 90*time.Second {
		t.Errorf("TTL = %s, want 90s", cfg.Snapshot.TTL)
	}
	if cfg.Audit.Currency != "€" {
		t.Errorf("Currency = %q", cfg.Audit.Currency)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 || cfg.HTTP.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.HTTP.CORSOrigins)
	}
}

func TestLoad_InvalidDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "postgres")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoad_ProductionRequiresIngestKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "Production")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "INGEST_KEY_HASH") {
		t.Fatalf("expected INGEST_KEY_HASH error, got %v", err)
	}

	t.Setenv("INGEST_KEY_HASH", "$2a$10$abcdefghijklmnopqrstuv")
	if _, err := Load(); err != nil {
		t.Fatalf("Load with key hash: %v", err)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "audittrail.yaml")
	content := "db_driver: sqlite\nsnapshot_backend: redis\nport: 9090\ncurrency: \"£\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUDITTRAIL_CONFIG", path)
	// The environment wins over the file.
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Driver = %q, want sqlite from file", cfg.Database.Driver)
	}
	if cfg.Snapshot.Backend != SnapshotRedis {
		t.Errorf("Backend = %q, want redis from file", cfg.Snapshot.Backend)
	}
	if cfg.Audit.Currency != "£" {
		t.Errorf("Currency = %q, want £ from file", cfg.Audit.Currency)
	}
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want env value 7070", cfg.Port)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUDITTRAIL_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", User: "u", Password: "p@ss:word", Name: "audit"}
	dsn := d.DSN()
	if !strings.Contains(dsn, "tcp(db:3306)") {
		t.Errorf("DSN %q missing default port", dsn)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("DSN %q missing parseTime", dsn)
	}

	d.dsnOverride = "root@tcp(x:1)/y"
	if d.DSN() != "root@tcp(x:1)/y" {
		t.Errorf("DATABASE_URL override ignored: %q", d.DSN())
	}
}

func TestEnsurePort(t *testing.T) {
	tests := []struct{ in, want string }{
		{"mydb", "mydb:3306"},
		{"mydb:3307", "mydb:3307"},
		{"10.0.0.1", "10.0.0.1:3306"},
	}
	for _, tt := range tests {
		if got := ensurePort(tt.in, "3306"); got != tt.want {
			t.Errorf("ensurePort(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
