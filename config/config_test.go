package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Limits.MaxSubTasks)
	assert.Equal(t, 15, cfg.Limits.ParentTurns)
	assert.Equal(t, 7, cfg.Limits.SubTaskTurns)
	assert.Equal(t, []string{"claude", "deepseek", "text"}, cfg.ModelNames())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
defaults:
  model: vision
models:
  vision:
    provider: openai
    model_id: qwen/qwen3-vl
    base_url: https://openrouter.ai/api/v1
    api_key_env: OPENROUTER_API_KEY
    temperature: 0.1
limits:
  subtask_turns: 4
storage:
  session_dir: /tmp/sessions
`))
	require.NoError(t, err)

	assert.Equal(t, "vision", cfg.Defaults.Model)
	assert.Equal(t, 4, cfg.Limits.SubTaskTurns)
	assert.Equal(t, 15, cfg.Limits.ParentTurns)
	assert.Equal(t, "/tmp/sessions", cfg.Storage.SessionDir)
	assert.Contains(t, cfg.Models, "text")

	mc, err := cfg.ModelConfig("")
	require.NoError(t, err)
	assert.Equal(t, "qwen/qwen3-vl", mc.ModelID)
	assert.InDelta(t, 0.1, mc.Temperature, 1e-9)
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("limits:\n  max_agents: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_agents")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"ceiling", func(c *Config) { c.Limits.MaxSubTasks = 6 }, "limits.max_subtasks"},
		{"zero subtasks", func(c *Config) { c.Limits.MaxSubTasks = 0 }, "limits.max_subtasks"},
		{"parent turns", func(c *Config) { c.Limits.ParentTurns = 0 }, "limits.parent_turns"},
		{"subtask turns not below parent", func(c *Config) { c.Limits.SubTaskTurns = 15 }, "limits.subtask_turns"},
		{"subtask turns zero", func(c *Config) { c.Limits.SubTaskTurns = 0 }, "limits.subtask_turns"},
		{"negative timeout", func(c *Config) { c.Tools.BashTimeout = -1 }, "tools.bash_timeout"},
		{"unknown default", func(c *Config) { c.Defaults.Model = "missing" }, "defaults.model"},
		{"provider", func(c *Config) {
			c.Models["text"] = ModelConfig{Provider: "gemini", ModelID: "x"}
		}, "models.text.provider"},
		{"model id", func(c *Config) {
			c.Models["text"] = ModelConfig{Provider: ProviderOpenAI}
		}, "models.text.model_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limits:\n  max_subtasks: 3\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Limits.MaxSubTasks)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestModelConfigUnknown(t *testing.T) {
	_, err := Default().ModelConfig("vision")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available: claude, deepseek, text")
}

func TestAPIKey(t *testing.T) {
	t.Setenv("TEST_AGENT_KEY", "sk-test")
	key, err := ModelConfig{APIKeyEnv: "TEST_AGENT_KEY"}.APIKey()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", key)

	t.Setenv("TEST_AGENT_KEY", "")
	_, err = ModelConfig{APIKeyEnv: "TEST_AGENT_KEY"}.APIKey()
	require.EqualError(t, err, "missing API key: set TEST_AGENT_KEY environment variable")

	key, err = ModelConfig{}.APIKey()
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestBashTimeoutDuration(t *testing.T) {
	assert.Equal(t, "1m0s", Default().BashTimeoutDuration().String())
}
