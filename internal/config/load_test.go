package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 4, cfg.Scheduler.WorkerCount)
	assert.Equal(t, 0, cfg.Scheduler.MaxQueueDepth)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.TaskTimeout)
	assert.Equal(t, "", cfg.Webhook.URL, "webhook is disabled by default")
	assert.Equal(t, 3, cfg.Webhook.MaxRetries)
	assert.Equal(t, time.Second, cfg.Webhook.RetryBaseDelay)
	assert.Equal(t, "output", cfg.Storage.OutputDir)
	assert.Equal(t, 24*time.Hour, cfg.Retention.MaxTaskAge)
	assert.Equal(t, 10*time.Minute, cfg.Retention.SweepInterval)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("RENDER_SERVER_PORT", "9090")
	t.Setenv("RENDER_SERVER_LOG_LEVEL", "debug")
	t.Setenv("RENDER_SCHEDULER_WORKER_COUNT", "4")
	t.Setenv("RENDER_SCHEDULER_TASK_TIMEOUT", "30s")
	t.Setenv("RENDER_WEBHOOK_URL", "https://hooks.example.com/render")
	t.Setenv("RENDER_WEBHOOK_SECRET", "topsecret")
	t.Setenv("RENDER_STORAGE_OUTPUT_DIR", "/var/lib/render/output")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 4, cfg.Scheduler.WorkerCount)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.TaskTimeout)
	assert.Equal(t, "https://hooks.example.com/render", cfg.Webhook.URL)
	assert.Equal(t, "topsecret", cfg.Webhook.Secret)
	assert.Equal(t, "/var/lib/render/output", cfg.Storage.OutputDir)
}

func TestLoadFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7070
  log_level: warn
scheduler:
  worker_count: 8
  max_queue_depth: 100
webhook:
  url: https://hooks.example.com/file
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
	assert.Equal(t, 8, cfg.Scheduler.WorkerCount)
	assert.Equal(t, 100, cfg.Scheduler.MaxQueueDepth)
	assert.Equal(t, "https://hooks.example.com/file", cfg.Webhook.URL)
}

func TestEnvironmentOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o644))

	t.Setenv("RENDER_SERVER_PORT", "9191")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		envVar string
		value  string
	}{
		{name: "invalid log level", envVar: "RENDER_SERVER_LOG_LEVEL", value: "verbose"},
		{name: "port out of range", envVar: "RENDER_SERVER_PORT", value: "70000"},
		{name: "negative worker count", envVar: "RENDER_SCHEDULER_WORKER_COUNT", value: "-1"},
		{name: "malformed webhook url", envVar: "RENDER_WEBHOOK_URL", value: "not a url"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.envVar, tc.value)

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "validation failed")
		})
	}
}

func TestLoadMalformedConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: valid\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Nil(t, cfg)
}
