package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/audittrail/internal/plugins/audit"
)

const termUpdate = `[
	{"event":"before_mutation","kind":"term","id":"3","state":{"name":"News","slug":"news"}},
	{"event":"after_mutation","kind":"term","id":"3","actor_id":2,"state":{"name":"Breaking News","slug":"news"}}
]`

// setupEnv points the CLI at a fresh SQLite file.
func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AUDITTRAIL_CONFIG", "")
	t.Setenv("ENV", "development")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "audit.db"))
	t.Setenv("MIGRATIONS_PATH", "")
	t.Setenv("SNAPSHOT_BACKEND", "memory")
	t.Setenv("NOTIFY_CHANNEL", "")
	t.Setenv("ENTITY_STORE_URL", "")
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notifications.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestMigrate(t *testing.T) {
	setupEnv(t)

	out, _, err := run(t, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "schema version 1")
	require.NotContains(t, out, "DIRTY")
}

func TestReplay_DryRun(t *testing.T) {
	setupEnv(t)
	path := writeFile(t, termUpdate)

	out, stderr, err := run(t, "replay", "--dry-run", path)
	require.NoError(t, err)
	require.Contains(t, stderr, "1 records, 0 failed")

	var rec audit.LogRecord
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &rec))
	require.Equal(t, "term_updated", rec.Action)
	require.Equal(t, "Breaking News", rec.ObjectLabel)

	// Nothing was stored.
	out, _, err = run(t, "query", "-o", "json")
	require.NoError(t, err)
	var page audit.Page
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Zero(t, page.Total)
}

func TestReplayThenQuery(t *testing.T) {
	setupEnv(t)
	path := writeFile(t, termUpdate)

	_, _, err := run(t, "replay", path)
	require.NoError(t, err)

	out, _, err := run(t, "query", "--kind", "term", "-o", "json")
	require.NoError(t, err)
	var page audit.Page
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Equal(t, 1, page.Total)
	require.Equal(t, int64(2), page.Records[0].ActorID)

	out, _, err = run(t, "query", "--actor", "2")
	require.NoError(t, err)
	require.Contains(t, out, "term_updated")
	require.Contains(t, out, "term:3 (Breaking News)")

	out, _, err = run(t, "query", "-o", "yaml")
	require.NoError(t, err)
	require.Contains(t, out, "action: term_updated")

	out, _, err = run(t, "purge", "--older-than", "1h")
	require.NoError(t, err)
	require.Contains(t, out, "purged 0 records")
}

func TestReplay_Invalid(t *testing.T) {
	setupEnv(t)

	_, _, err := run(t, "replay", writeFile(t, `{"event":"nope","kind":"post","id":"1"}`))
	require.Error(t, err)

	_, _, err = run(t, "replay", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestQuery_BadArguments(t *testing.T) {
	setupEnv(t)

	_, _, err := run(t, "query", "-o", "xml")
	require.Error(t, err)

	_, _, err = run(t, "query", "--severity", "loud")
	require.Error(t, err)
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"90d", 90 * 24 * time.Hour, false},
		{"720h", 720 * time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"0d", 0, true},
		{"-1h", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := parseAge(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
	}
}
