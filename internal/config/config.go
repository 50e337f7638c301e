package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/harun/orchestrator/pkg/agent"
)

// Config represents the orchestrator configuration
type Config struct {
	// AI configuration
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Agent holds turn loop settings
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Sandbox holds tool executor settings
	Sandbox SandboxConfig `json:"sandbox" mapstructure:"sandbox"`

	// Skills directory scanned for SKILL.md definitions
	SkillsDir string `json:"skills_dir" mapstructure:"skills_dir"`

	// Plugins configuration
	Plugins PluginsConfig `json:"plugins" mapstructure:"plugins"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Tracing configuration
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	BaseURL  string `json:"base_url,omitempty" mapstructure:"base_url"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// AgentConfig holds turn loop configuration
type AgentConfig struct {
	Model         string  `json:"model" mapstructure:"model"`
	MaxTokens     int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature   float64 `json:"temperature" mapstructure:"temperature"`
	MaxIterations int     `json:"max_iterations" mapstructure:"max_iterations"`
	MaxRetries    int     `json:"max_retries" mapstructure:"max_retries"`

	RetryBaseDelayMs int `json:"retry_base_delay_ms" mapstructure:"retry_base_delay_ms"`
	CallTimeoutMs    int `json:"call_timeout_ms" mapstructure:"call_timeout_ms"` // 0 = no per-call timeout
}

// SandboxConfig holds tool executor configuration
type SandboxConfig struct {
	CommandTimeoutMs int `json:"command_timeout_ms" mapstructure:"command_timeout_ms"`
}

// PluginsConfig holds plugin agent configuration
type PluginsConfig struct {
	Dirs        []string `json:"dirs" mapstructure:"dirs"`
	HostVersion string   `json:"host_version" mapstructure:"host_version"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`

	// AuditFile receives one JSON line per tool call and plugin run; empty disables it
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// MetricsConfig holds the prometheus endpoint configuration
type MetricsConfig struct {
	Addr string `json:"addr" mapstructure:"addr"` // empty disables the endpoint
}

// TracingConfig holds the span sampling configuration
type TracingConfig struct {
	// SampleRatio is the fraction of root spans recorded, 0 to 1
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Model:            agent.DefaultModel,
			MaxTokens:        agent.DefaultMaxTokens,
			Temperature:      0,
			MaxIterations:    agent.DefaultMaxIterations,
			MaxRetries:       agent.DefaultMaxRetries,
			RetryBaseDelayMs: int(agent.DefaultRetryBaseDelay / time.Millisecond),
		},
		Sandbox: SandboxConfig{
			CommandTimeoutMs: 60000,
		},
		SkillsDir: "skills",
		Plugins: PluginsConfig{
			Dirs:        []string{"agents"},
			HostVersion: "0.1.0",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
	}
}

// AuthProfiles converts the AI profiles for the agent runner
func (c *Config) AuthProfiles() []agent.AuthProfile {
	profiles := make([]agent.AuthProfile, 0, len(c.AI.Profiles))
	for _, p := range c.AI.Profiles {
		profiles = append(profiles, agent.AuthProfile{
			ID:       p.ID,
			Provider: p.Provider,
			APIKey:   p.APIKey,
			BaseURL:  p.BaseURL,
			Priority: p.Priority,
		})
	}
	return profiles
}

// PrimaryAPIKey returns the key of the highest-priority profile
func (c *Config) PrimaryAPIKey() string {
	var (
		key  string
		best int
	)
	for i, p := range c.AI.Profiles {
		if i == 0 || p.Priority < best {
			key = p.APIKey
			best = p.Priority
		}
	}
	return key
}

// RunnerConfig maps the agent and sandbox sections onto an agent.Config.
// Provider and tool executor wiring is left to the caller.
func (c *Config) RunnerConfig() agent.Config {
	return agent.Config{
		AuthProfiles:   c.AuthProfiles(),
		CommandTimeout: time.Duration(c.Sandbox.CommandTimeoutMs) * time.Millisecond,
		Model:          c.Agent.Model,
		MaxTokens:      c.Agent.MaxTokens,
		Temperature:    c.Agent.Temperature,
		MaxIterations:  c.Agent.MaxIterations,
		MaxRetries:     c.Agent.MaxRetries,
		RetryBaseDelay: time.Duration(c.Agent.RetryBaseDelayMs) * time.Millisecond,
		CallTimeout:    time.Duration(c.Agent.CallTimeoutMs) * time.Millisecond,
	}
}

// String returns the configuration as indented JSON. API keys are masked.
func (c *Config) String() string {
	masked := *c
	masked.AI.Profiles = make([]AIProfile, len(c.AI.Profiles))
	for i, p := range c.AI.Profiles {
		if p.APIKey != "" {
			p.APIKey = "***"
		}
		masked.AI.Profiles[i] = p
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Require at least one AI profile
	if len(c.AI.Profiles) == 0 {
		return fmt.Errorf("no AI credentials configured: at least one AI profile is required")
	}

	seen := make(map[string]bool, len(c.AI.Profiles))
	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if seen[profile.ID] {
			return fmt.Errorf("AI profile %s: duplicate ID", profile.ID)
		}
		seen[profile.ID] = true
		if profile.APIKey == "" {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
		switch profile.Provider {
		case "anthropic", "openai":
		case "":
			return fmt.Errorf("AI profile %s: provider is required", profile.ID)
		default:
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: anthropic, openai)", profile.ID, profile.Provider)
		}
	}

	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.MaxRetries <= 0 {
		return fmt.Errorf("agent.max_retries must be positive, got %d", c.Agent.MaxRetries)
	}
	if c.Agent.RetryBaseDelayMs < 0 {
		return fmt.Errorf("agent.retry_base_delay_ms must be >= 0")
	}
	if c.Agent.CallTimeoutMs < 0 {
		return fmt.Errorf("agent.call_timeout_ms must be >= 0")
	}
	if c.Sandbox.CommandTimeoutMs < 0 {
		return fmt.Errorf("sandbox.command_timeout_ms must be >= 0")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %g", c.Tracing.SampleRatio)
	}

	return nil
}
