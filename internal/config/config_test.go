package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "onebook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "resources", cfg.Uploads)
	assert.Equal(t, 5, cfg.Server.Workers)
	assert.False(t, cfg.Gemini.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
uploads: gs://bills/uploads
storage:
  backend: bigquery
  project_id: my-project
  dataset_id: ledger
server:
  workers: 2
gemini:
  enabled: true
notion:
  entries_database: db-entries
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "gs://bills/uploads", cfg.Uploads)
	assert.Equal(t, BackendBigQuery, cfg.Storage.Backend)
	assert.Equal(t, "my-project", cfg.Storage.ProjectID)
	assert.Equal(t, 2, cfg.Server.Workers)
	assert.Equal(t, 100, cfg.Server.QueueSize, "unset keys keep defaults")
	assert.True(t, cfg.Gemini.Enabled)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, "db-entries", cfg.Notion.EntriesDatabase)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "storage:\n  sqlite_path: from-file.db\n")
	t.Setenv("ONEBOOK_SQLITE_PATH", "from-env.db")
	t.Setenv("ONEBOOK_WORKERS", "9")
	t.Setenv("NOTION_TOKEN", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 9, cfg.Server.Workers)
	assert.Equal(t, "secret", cfg.Notion.Token)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr string
	}{
		{"bad yaml", "storage: [", nil, "parsing"},
		{"unknown backend", "storage:\n  backend: postgres\n", nil, "unknown storage backend"},
		{"bigquery without project", "storage:\n  backend: bigquery\n", nil, "project_id"},
		{"zero workers", "server:\n  workers: 0\n", nil, "workers must be positive"},
		{"bad env int", "log_level: info\n", map[string]string{"ONEBOOK_WORKERS": "many"}, "ONEBOOK_WORKERS"},
		{"bad env bool", "log_level: info\n", map[string]string{"ONEBOOK_GEMINI_ENABLED": "sometimes"}, "ONEBOOK_GEMINI_ENABLED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnv_GCSBucket(t *testing.T) {
	env := map[string]string{"GCS_BUCKET": "bills"}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Default()
	require.NoError(t, applyEnv(&cfg, lookup))
	assert.Equal(t, "gs://bills", cfg.Uploads)

	env["ONEBOOK_UPLOADS"] = "/srv/bills"
	cfg = Default()
	require.NoError(t, applyEnv(&cfg, lookup))
	assert.Equal(t, "/srv/bills", cfg.Uploads)
}
