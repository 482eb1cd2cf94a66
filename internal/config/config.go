// Package config handles loading application configuration from environment
// variables and an optional YAML file. All config is centralized here so no
// other package reads env vars directly. Sensible defaults are provided for
// development.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Database drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Snapshot backends.
const (
	SnapshotMemory = "memory"
	SnapshotRedis  = "redis"
)

// Config holds all application configuration. Populated at startup and
// passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// HTTP holds settings of the HTTP surface.
	HTTP HTTPConfig

	// Database holds log store connection settings.
	Database DatabaseConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Snapshot configures where pre-mutation snapshots live.
	Snapshot SnapshotConfig

	// EntityStore configures the host's read API for current entity state.
	EntityStore EntityStoreConfig

	// Ingest configures the notification ingest API.
	Ingest IngestConfig

	// Audit holds formatting and classification settings.
	Audit AuditConfig
}

// HTTPConfig holds settings of the HTTP surface.
type HTTPConfig struct {
	// TrustedProxies lists the CIDRs whose forwarding headers are believed.
	TrustedProxies []string

	// CORSOrigins lists the origins allowed to call the query API from a
	// browser. Empty disables CORS.
	CORSOrigins []string

	// QueryRateLimit caps log query requests per client IP per minute.
	QueryRateLimit int
}

// DatabaseConfig holds log store connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so container
// orchestrators can manage each independently. If DATABASE_URL is set, it
// takes precedence over the individual fields.
type DatabaseConfig struct {
	// Driver is "mysql" (MariaDB) or "sqlite".
	Driver string

	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	User     string
	Password string
	Name     string

	// SQLitePath is the SQLite file, or ":memory:".
	SQLitePath string

	// MigrationsPath points at a migrations directory on disk. Empty uses
	// the migrations embedded in the binary.
	MigrationsPath string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// fields using the driver's Config.FormatDSN() to safely handle special
// characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
// Allows users to set DB_HOST=mydb (gets :3306) or DB_HOST=mydb:3307 (as-is).
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string

	// NotifyChannel, when set, subscribes the coordinator to lifecycle
	// notifications published on this pub/sub channel.
	NotifyChannel string
}

// SnapshotConfig selects the snapshot store backend.
type SnapshotConfig struct {
	// Backend is "memory" or "redis".
	Backend string

	// TTL bounds how long an unconsumed snapshot is kept.
	TTL time.Duration

	// SweepInterval is how often the memory backend evicts expired entries.
	SweepInterval time.Duration
}

// EntityStoreConfig points at the host application's entity read API.
type EntityStoreConfig struct {
	// URL is the base URL. Empty means only pushed state is available.
	URL string

	Timeout time.Duration

	// Token is sent as a bearer token on every request.
	Token string
}

// IngestConfig guards the ingest and query API.
type IngestConfig struct {
	// KeyHash is the bcrypt hash of the API key callers must present.
	// Empty disables the check (development only).
	KeyHash string
}

// AuditConfig holds formatting and severity settings.
type AuditConfig struct {
	// TextMaxLength truncates formatted free text, in characters.
	TextMaxLength int

	// Currency is the symbol prefixed to price values.
	Currency string

	// BruteForceThreshold is how many failed logins from one address within
	// BruteForceWindow escalate to critical.
	BruteForceThreshold int
	BruteForceWindow    time.Duration
}

// Load reads configuration with sensible defaults. When AUDITTRAIL_CONFIG
// names a YAML file its values replace the defaults; environment variables
// win over both. Returns an error if required variables are missing.
func Load() (*Config, error) {
	if path := os.Getenv("AUDITTRAIL_CONFIG"); path != "" {
		if err := loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		HTTP: HTTPConfig{
			TrustedProxies: getEnvList("TRUSTED_PROXIES", []string{"127.0.0.1/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128", "fd00::/8"}),
			CORSOrigins:    getEnvList("CORS_ORIGINS", nil),
			QueryRateLimit: getEnvInt("QUERY_RATE_LIMIT", 120),
		},

		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", DriverMySQL)),
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "audittrail"),
			Password:        getEnv("DB_PASSWORD", "audittrail"),
			Name:            getEnv("DB_NAME", "audittrail"),
			SQLitePath:      getEnv("SQLITE_PATH", "audittrail.db"),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", ""),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			NotifyChannel: getEnv("NOTIFY_CHANNEL", ""),
		},

		Snapshot: SnapshotConfig{
			Backend:       strings.ToLower(getEnv("SNAPSHOT_BACKEND", SnapshotMemory)),
			TTL:           getEnvDuration("SNAPSHOT_TTL", 10*time.Minute),
			SweepInterval: getEnvDuration("SNAPSHOT_SWEEP_INTERVAL", time.Minute),
		},

		EntityStore: EntityStoreConfig{
			URL:     getEnv("ENTITY_STORE_URL", ""),
			Timeout: getEnvDuration("ENTITY_STORE_TIMEOUT", 5*time.Second),
			Token:   getEnv("ENTITY_STORE_TOKEN", ""),
		},

		Ingest: IngestConfig{
			KeyHash: getEnv("INGEST_KEY_HASH", ""),
		},

		Audit: AuditConfig{
			TextMaxLength:       getEnvInt("TEXT_MAX_LENGTH", 200),
			Currency:            getEnv("CURRENCY", "$"),
			BruteForceThreshold: getEnvInt("BRUTE_FORCE_THRESHOLD", 10),
			BruteForceWindow:    getEnvDuration("BRUTE_FORCE_WINDOW", 15*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks value ranges and production requirements.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverMySQL, DriverSQLite, c.Database.Driver)
	}
	switch c.Snapshot.Backend {
	case SnapshotMemory, SnapshotRedis:
	default:
		return fmt.Errorf("SNAPSHOT_BACKEND must be %q or %q, got %q", SnapshotMemory, SnapshotRedis, c.Snapshot.Backend)
	}
	if c.Snapshot.TTL <= 0 {
		return fmt.Errorf("SNAPSHOT_TTL must be positive")
	}
	if c.Audit.TextMaxLength < 1 {
		return fmt.Errorf("TEXT_MAX_LENGTH must be at least 1")
	}
	if c.Audit.BruteForceThreshold < 1 {
		return fmt.Errorf("BRUTE_FORCE_THRESHOLD must be at least 1")
	}

	// Case-insensitive check catches common variants like "Production", "prod".
	if c.IsProduction() && c.Ingest.KeyHash == "" {
		return fmt.Errorf("INGEST_KEY_HASH is required in production")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// UsesRedis reports whether any component needs the Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Snapshot.Backend == SnapshotRedis || c.Redis.NotifyChannel != ""
}

// loadFile reads a YAML config file with viper and exports every key that is
// not already set in the environment, so the getEnv helpers see it. Keys are
// the env var names, case-insensitive:
//
//	db_driver: sqlite
//	snapshot_ttl: 5m
func loadFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	for _, key := range v.AllKeys() {
		env := strings.ToUpper(key)
		if _, ok := os.LookupEnv(env); ok {
			continue
		}
		if err := os.Setenv(env, v.GetString(key)); err != nil {
			return fmt.Errorf("applying config key %s: %w", key, err)
		}
	}

	slog.Debug("config file loaded", slog.String("path", path), slog.Int("keys", len(v.AllKeys())))
	return nil
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvList reads a comma-separated env var or returns the default. Blank
// items are dropped.
func getEnvList(key string, defaultVal []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvDuration reads a duration env var (e.g., "15m") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
