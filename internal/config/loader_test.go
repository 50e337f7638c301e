package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(configPath string, env map[string]string) *Loader {
	loader := NewLoader(configPath)
	loader.getenv = func(key string) string { return env[key] }
	return loader
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("defaults when file doesn't exist", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nonexistent.json")

		cfg, err := newTestLoader(configPath, nil).Load()

		require.NoError(t, err)
		assert.Equal(t, 25, cfg.Agent.MaxIterations)
		assert.Empty(t, cfg.AI.Profiles)
		assert.NotEmpty(t, cfg.DataDir)
	})

	t.Run("load config from file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		testConfig := `{
			"ai": {"profiles": [{"id": "main", "provider": "anthropic", "api_key": "sk-ant-file", "priority": 1}]},
			"agent": {"max_iterations": 5, "call_timeout_ms": 2000},
			"plugins": {"dirs": ["./agents", "./more"]},
			"logging": {"level": "debug"}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := newTestLoader(configPath, map[string]string{"ANTHROPIC_API_KEY": "sk-ant-env"}).Load()

		require.NoError(t, err)
		require.Len(t, cfg.AI.Profiles, 1)
		assert.Equal(t, "sk-ant-file", cfg.AI.Profiles[0].APIKey)
		assert.Equal(t, 5, cfg.Agent.MaxIterations)
		assert.Equal(t, 2000, cfg.Agent.CallTimeoutMs)
		assert.Equal(t, 3, cfg.Agent.MaxRetries)
		assert.Equal(t, []string{"./agents", "./more"}, cfg.Plugins.Dirs)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("env key fallback", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")

		cfg, err := newTestLoader(configPath, map[string]string{
			"ANTHROPIC_API_KEY": "sk-ant-env",
			"OPENAI_API_KEY":    "sk-openai-env",
		}).Load()

		require.NoError(t, err)
		require.Len(t, cfg.AI.Profiles, 2)
		assert.Equal(t, "anthropic", cfg.AI.Profiles[0].Provider)
		assert.Equal(t, "sk-ant-env", cfg.AI.Profiles[0].APIKey)
		assert.Equal(t, "openai", cfg.AI.Profiles[1].Provider)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("prefixed env override", func(t *testing.T) {
		t.Setenv("ORCHESTRATOR_AGENT_MAX_ITERATIONS", "7")
		t.Setenv("ORCHESTRATOR_LOGGING_LEVEL", "warn")

		cfg, err := newTestLoader(filepath.Join(t.TempDir(), "missing.json"), nil).Load()

		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Agent.MaxIterations)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("invalid json", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{not json`), 0644))

		_, err := newTestLoader(configPath, nil).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSaveRoundTrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.json")
	loader := newTestLoader(configPath, nil)

	cfg := DefaultConfig()
	cfg.AI.Profiles = []AIProfile{{ID: "main", Provider: "openai", APIKey: "sk-saved", Priority: 1}}
	cfg.Agent.MaxIterations = 9
	cfg.Metrics.Addr = ":9090"
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, loaded.AI.Profiles, 1)
	assert.Equal(t, "sk-saved", loaded.AI.Profiles[0].APIKey)
	assert.Equal(t, 9, loaded.Agent.MaxIterations)
	assert.Equal(t, ":9090", loaded.Metrics.Addr)
}
