package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/keyxmakerx/audittrail/internal/config"
	"github.com/keyxmakerx/audittrail/internal/database"
	"github.com/keyxmakerx/audittrail/internal/middleware"
	"github.com/keyxmakerx/audittrail/internal/plugins/audit"
)

func testConfig() *config.Config {
	return &config.Config{
		Env: "development",
		HTTP: config.HTTPConfig{
			QueryRateLimit: 100,
		},
		Database: config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"},
		Snapshot: config.SnapshotConfig{
			Backend:       config.SnapshotMemory,
			TTL:           time.Minute,
			SweepInterval: time.Minute,
		},
		Audit: config.AuditConfig{
			TextMaxLength:       200,
			Currency:            "$",
			BruteForceThreshold: 10,
			BruteForceWindow:    15 * time.Minute,
		},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()

	db, err := database.NewSQLite(cfg.Database.SQLitePath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db, config.DriverSQLite, ""))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	a, err := New(ctx, cfg, db, nil)
	require.NoError(t, err)
	a.RegisterRoutes()
	return a
}

func do(a *App, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func TestApp_IngestThenQuery(t *testing.T) {
	a := newTestApp(t, testConfig())

	body := `[
		{"event":"before_mutation","kind":"term","id":"3","state":{"name":"News","slug":"news"}},
		{"event":"after_mutation","kind":"term","id":"3","actor_id":7,"state":{"name":"Breaking News","slug":"news"}}
	]`
	rec := do(a, http.MethodPost, "/api/v1/notifications", body,
		map[string]string{middleware.RequestIDHeader: "req-abc"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Equal(t, "req-abc", rec.Header().Get(middleware.RequestIDHeader))

	rec = do(a, http.MethodGet, "/api/v1/logs?object_kind=term", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page audit.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)
	got := page.Records[0]
	require.Equal(t, "term_updated", got.Action)
	require.Equal(t, int64(7), got.ActorID)
	require.Equal(t, "req-abc", got.CorrelationID)

	rec = do(a, http.MethodGet, "/api/v1/logs/"+strconv.FormatInt(got.ID, 10), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestApp_IngestKeyRequired(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("ingest-key"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Ingest.KeyHash = string(hash)
	a := newTestApp(t, cfg)

	rec := do(a, http.MethodGet, "/api/v1/logs", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "unauthorized", body["error"])

	rec = do(a, http.MethodGet, "/api/v1/logs", "", map[string]string{"Authorization": "Bearer ingest-key"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Health and metrics stay open.
	require.Equal(t, http.StatusOK, do(a, http.MethodGet, "/healthz", "", nil).Code)
	require.Equal(t, http.StatusOK, do(a, http.MethodGet, "/metrics", "", nil).Code)
}

func TestApp_ErrorsAreJSON(t *testing.T) {
	a := newTestApp(t, testConfig())

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
		wantType string
	}{
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound, "not_found"},
		{"bad record id", http.MethodGet, "/api/v1/logs/abc", "", http.StatusBadRequest, "bad_request"},
		{"missing record", http.MethodGet, "/api/v1/logs/999", "", http.StatusNotFound, "not_found"},
		{"bad filter", http.MethodGet, "/api/v1/logs?severity=loud", "", http.StatusBadRequest, "bad_request"},
		{"bad notification", http.MethodPost, "/api/v1/notifications", `{"event":"exploded"}`, http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(a, tt.method, tt.path, tt.body, nil)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tt.wantType, body["error"])
			require.NotEmpty(t, body["message"])
		})
	}
}

func TestNewPipeline_RedisBackendNeedsClient(t *testing.T) {
	cfg := testConfig()
	cfg.Snapshot.Backend = config.SnapshotRedis

	_, err := NewPipeline(cfg, nil, nil, nil)
	require.Error(t, err)
}
