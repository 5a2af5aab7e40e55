package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig drops a config file into a temp dir and returns its path
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "https://jsonplaceholder.typicode.com", cfg.Remote.BaseURL)
	assert.Equal(t, "https://rickandmortyapi.com/api", cfg.Catalog.BaseURL)
	assert.Equal(t, 15000, cfg.Remote.TimeoutMs)
	assert.Equal(t, 5, cfg.Sync.MaxAttempts)
	assert.Equal(t, 1000, cfg.Sync.BackoffStepMs)
	assert.Equal(t, 5000, cfg.Sync.BackoffMaxMs)
	assert.Equal(t, 30000, cfg.Sync.ProbeIntervalMs)
	assert.NotEmpty(t, cfg.Database.Path)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
remote:
  base_url: http://localhost:8080/
sync:
  max_attempts: 3
  backoff_step_ms: 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Trailing slash is stripped
	assert.Equal(t, "http://localhost:8080", cfg.Remote.BaseURL)
	assert.Equal(t, 3, cfg.Sync.MaxAttempts)
	assert.Equal(t, 250, cfg.Sync.BackoffStepMs)
	// Untouched keys keep their defaults
	assert.Equal(t, 5000, cfg.Sync.BackoffMaxMs)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("CHARNOTES_SYNC_MAX_ATTEMPTS", "9")
	t.Setenv("CHARNOTES_REMOTE_BASE_URL", "http://127.0.0.1:9999")

	path := writeConfig(t, `
sync:
  max_attempts: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Sync.MaxAttempts)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.Remote.BaseURL)
}

func TestLoad_ValidationRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "remote base_url not a url",
			content: `
remote:
  base_url: not-a-url
`,
		},
		{
			name: "zero max_attempts",
			content: `
sync:
  max_attempts: 0
`,
		},
		{
			name: "probe interval below floor",
			content: `
sync:
  probe_interval_ms: 10
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestSyncConfig_DurationHelpers(t *testing.T) {
	s := SyncConfig{
		BackoffStepMs:   1000,
		BackoffMaxMs:    5000,
		ProbeIntervalMs: 30000,
	}

	assert.Equal(t, time.Second, s.BackoffStep())
	assert.Equal(t, 5*time.Second, s.BackoffMax())
	assert.Equal(t, 30*time.Second, s.ProbeInterval())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "notes.db"), expandPath("~/notes.db"))

	t.Setenv("CHARNOTES_TEST_DIR", "/tmp/charnotes")
	assert.Equal(t, "/tmp/charnotes/notes.db", expandPath("$CHARNOTES_TEST_DIR/notes.db"))
}
