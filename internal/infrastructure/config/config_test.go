package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("parses yaml and expands environment variables", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test-123")

		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
storage:
  database_path: custom.db
redis:
  enabled: true
  addr: redis:6379
openai:
  api_key: ${OPENAI_API_KEY}
  model: gpt-4o-mini
analysis:
  tolerance_fraction: 0.3
observability:
  logging:
    level: debug
    format: json
`), 0o644))

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "custom.db", cfg.Storage.DatabasePath)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, "sk-test-123", cfg.OpenAI.APIKey)
		assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
		assert.Equal(t, 0.3, cfg.Analysis.ToleranceFraction)
		assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("partial yaml gets defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("openai:\n  api_key: sk-x\n"), 0o644))

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "spendlens.db", cfg.Storage.DatabasePath)
		assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
		assert.Equal(t, 0.2, cfg.OpenAI.Temperature)
		assert.Equal(t, 0.2, cfg.Analysis.ToleranceFraction)
		assert.Equal(t, "info", cfg.Observability.Logging.Level)
	})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("SPENDLENS_DB_PATH", "env.db")
	t.Setenv("REDIS_ADDR", "localhost:6380")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := LoadFromEnv()

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env.db", cfg.Storage.DatabasePath)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6380", cfg.Redis.Addr)
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "warn", cfg.Observability.Logging.Level)
}

func TestLoadOrEnvWithPath(t *testing.T) {
	t.Run("falls back to env when file is absent", func(t *testing.T) {
		cfg := LoadOrEnvWithPath(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Equal(t, 8080, cfg.Server.Port)
	})
}
