package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix of environment overrides, e.g. ORCHESTRATOR_LOGGING_LEVEL
	EnvPrefix = "ORCHESTRATOR"

	configDirName  = ".orchestrator"
	configFileName = "orchestrator.json"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
	getenv     func(string) string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		getenv:     os.Getenv,
	}
}

// Load loads the configuration from file. A missing file yields the defaults.
// Environment variables prefixed with ORCHESTRATOR_ override file values, and
// ANTHROPIC_API_KEY / OPENAI_API_KEY become profiles when none are configured.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	l.applyEnvProfiles(cfg)

	// Set data directory if not specified
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, configDirName)
	}

	return cfg, nil
}

// applyEnvProfiles adds profiles from the provider key variables when the
// configuration carries none
func (l *Loader) applyEnvProfiles(cfg *Config) {
	if len(cfg.AI.Profiles) > 0 {
		return
	}

	if key := l.getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.AI.Profiles = append(cfg.AI.Profiles, AIProfile{
			ID:       "env-anthropic",
			Provider: "anthropic",
			APIKey:   key,
			BaseURL:  l.getenv("ANTHROPIC_BASE_URL"),
			Priority: 1,
		})
	}
	if key := l.getenv("OPENAI_API_KEY"); key != "" {
		cfg.AI.Profiles = append(cfg.AI.Profiles, AIProfile{
			ID:       "env-openai",
			Provider: "openai",
			APIKey:   key,
			BaseURL:  l.getenv("OPENAI_BASE_URL"),
			Priority: 2,
		})
	}
}

// bindEnvKeys registers the scalar keys so AutomaticEnv reaches them during
// Unmarshal even when the config file omits them
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"agent.model",
		"agent.max_tokens",
		"agent.temperature",
		"agent.max_iterations",
		"agent.max_retries",
		"agent.retry_base_delay_ms",
		"agent.call_timeout_ms",
		"sandbox.command_timeout_ms",
		"skills_dir",
		"plugins.host_version",
		"logging.level",
		"logging.file",
		"logging.pretty",
		"logging.audit_file",
		"metrics.addr",
		"tracing.sample_ratio",
		"data_dir",
	} {
		_ = v.BindEnv(key)
	}
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to get home directory")
	}

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("ai", cfg.AI)
	v.Set("agent", cfg.Agent)
	v.Set("sandbox", cfg.Sandbox)
	v.Set("skills_dir", cfg.SkillsDir)
	v.Set("plugins", cfg.Plugins)
	v.Set("logging", cfg.Logging)
	v.Set("metrics", cfg.Metrics)
	v.Set("tracing", cfg.Tracing)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, configDirName, configFileName)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
