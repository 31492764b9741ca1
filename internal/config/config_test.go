package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFrom(t *testing.T, dir string) *Config {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadFrom(t, t.TempDir())

	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, "mtr-cache.db", cfg.Cache.Path)
	assert.Equal(t, 5, cfg.Pipeline.Workers)
	assert.Equal(t, 3, cfg.Pipeline.RetryMaxAttempts)
	assert.Equal(t, 2.0, cfg.Pipeline.RequestsPerSecond)
	assert.Equal(t, 0.6, cfg.Pipeline.MinFieldConfidence)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "https://s.jina.ai", cfg.Search.BaseURL)
	assert.NotEmpty(t, cfg.Anthropic.HaikuModel)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
cache:
  driver: postgres
  database_url: postgres://localhost/mtr
pipeline:
  workers: 12
  retry_max_attempts: 5
log:
  level: debug
  format: console
`), 0o644))

	cfg := loadFrom(t, dir)
	assert.Equal(t, "postgres", cfg.Cache.Driver)
	assert.Equal(t, "postgres://localhost/mtr", cfg.Cache.DatabaseURL)
	assert.Equal(t, 12, cfg.Pipeline.Workers)
	assert.Equal(t, 5, cfg.Pipeline.RetryMaxAttempts)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MTR_PIPELINE_WORKERS", "9")
	t.Setenv("MTR_ANTHROPIC_KEY", "sk-test")

	cfg := loadFrom(t, t.TempDir())
	assert.Equal(t, 9, cfg.Pipeline.Workers)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nonsense"}))
}
