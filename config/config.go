// Package config loads the YAML configuration of the research agent.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in ModelConfig.Provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// OpenRouterBaseURL is the endpoint of the default model entry.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// MaxSubTasksCeiling is the hard upper bound of limits.max_subtasks.
const MaxSubTasksCeiling = 5

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the root of agent_config.yaml.
type Config struct {
	Defaults Defaults               `yaml:"defaults"`
	Models   map[string]ModelConfig `yaml:"models"`
	Limits   Limits                 `yaml:"limits"`
	Storage  Storage                `yaml:"storage"`
	Tools    Tools                  `yaml:"tools"`
	Logging  Logging                `yaml:"logging"`
}

// Defaults selects the model used when none is named.
type Defaults struct {
	Model string `yaml:"model"`
}

// ModelConfig describes one completion endpoint.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	ModelID     string  `yaml:"model_id"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens,omitempty"`
}

// Limits holds the fan-out ceiling and the turn budgets.
type Limits struct {
	MaxSubTasks  int `yaml:"max_subtasks"`
	ParentTurns  int `yaml:"parent_turns"`
	SubTaskTurns int `yaml:"subtask_turns"`
}

// Storage locates the session store.
type Storage struct {
	SessionDir string `yaml:"session_dir"`
}

// Tools configures the built-in tools.
type Tools struct {
	WorkDir string `yaml:"workdir"`
	// BashTimeout is the default command timeout in seconds.
	BashTimeout int `yaml:"bash_timeout"`
}

// Logging configures the process logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Defaults: Defaults{Model: "text"},
		Models: map[string]ModelConfig{
			"text": {
				Provider:    ProviderOpenAI,
				ModelID:     "deepseek/deepseek-v3.2",
				BaseURL:     OpenRouterBaseURL,
				APIKeyEnv:   "OPENROUTER_API_KEY",
				Temperature: 0.3,
			},
			"deepseek": {
				Provider:    ProviderOpenAI,
				ModelID:     "deepseek-chat",
				BaseURL:     "https://api.deepseek.com",
				APIKeyEnv:   "DEEPSEEK_API_KEY",
				Temperature: 0.3,
			},
			"claude": {
				Provider:    ProviderAnthropic,
				ModelID:     "claude-3-7-sonnet-latest",
				APIKeyEnv:   "ANTHROPIC_API_KEY",
				Temperature: 0.3,
				MaxTokens:   4096,
			},
		},
		Limits: Limits{
			MaxSubTasks:  MaxSubTasksCeiling,
			ParentTurns:  15,
			SubTaskTurns: 7,
		},
		Storage: Storage{SessionDir: "sessions"},
		Tools:   Tools{BashTimeout: 60},
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate performs the range and ceiling checks.
func (c *Config) Validate() error {
	var errs []error
	l := c.Limits
	if l.MaxSubTasks < 1 || l.MaxSubTasks > MaxSubTasksCeiling {
		errs = append(errs, fmt.Errorf("limits.max_subtasks must be between 1 and %d, got %d", MaxSubTasksCeiling, l.MaxSubTasks))
	}
	if l.ParentTurns < 1 {
		errs = append(errs, fmt.Errorf("limits.parent_turns must be at least 1, got %d", l.ParentTurns))
	}
	if l.SubTaskTurns < 1 || l.SubTaskTurns >= l.ParentTurns {
		errs = append(errs, fmt.Errorf("limits.subtask_turns must be between 1 and parent_turns-1, got %d", l.SubTaskTurns))
	}
	if c.Tools.BashTimeout < 0 {
		errs = append(errs, fmt.Errorf("tools.bash_timeout must not be negative, got %d", c.Tools.BashTimeout))
	}
	if _, ok := c.Models[c.Defaults.Model]; !ok {
		errs = append(errs, fmt.Errorf("defaults.model %q is not defined in models", c.Defaults.Model))
	}
	for _, name := range c.ModelNames() {
		mc := c.Models[name]
		switch mc.Provider {
		case ProviderOpenAI, ProviderAnthropic:
		default:
			errs = append(errs, fmt.Errorf("models.%s.provider %q is not supported", name, mc.Provider))
		}
		if strings.TrimSpace(mc.ModelID) == "" {
			errs = append(errs, fmt.Errorf("models.%s.model_id is required", name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// ModelNames returns the configured model names in sorted order.
func (c *Config) ModelNames() []string {
	names := make([]string, 0, len(c.Models))
	for name := range c.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModelConfig returns the entry called name, or the default entry when name
// is empty.
func (c *Config) ModelConfig(name string) (ModelConfig, error) {
	if name == "" {
		name = c.Defaults.Model
	}
	mc, ok := c.Models[name]
	if !ok {
		return ModelConfig{}, fmt.Errorf("unknown model %q, available: %s", name, strings.Join(c.ModelNames(), ", "))
	}
	return mc, nil
}

// BashTimeoutDuration returns tools.bash_timeout as a duration.
func (c *Config) BashTimeoutDuration() time.Duration {
	return time.Duration(c.Tools.BashTimeout) * time.Second
}

// APIKey resolves the key from the environment variable named by APIKeyEnv.
func (m ModelConfig) APIKey() (string, error) {
	if m.APIKeyEnv == "" {
		return "", nil
	}
	key := os.Getenv(m.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("missing API key: set %s environment variable", m.APIKeyEnv)
	}
	return key, nil
}
