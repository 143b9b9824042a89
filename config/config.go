// Package config loads gateway configuration from YAML with defaults merged
// underneath and credential fallbacks left to the provider registry.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/relayforge/llmrelay/gateway"
	"github.com/relayforge/llmrelay/llm"
)

// ProviderConfig holds one provider's settings. Credentials omitted here fall
// back to environment variables when the registry resolves the provider.
type ProviderConfig struct {
	APIKey      string `yaml:"api_key,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	Model       string `yaml:"model,omitempty"`
	Host        string `yaml:"host,omitempty"`         // ollama only
	ToolCalling *bool  `yaml:"tool_calling,omitempty"` // nil means provider default

	// OpenRouter only: models served for the claude/gemini routing aliases.
	ClaudeModel string `yaml:"claude_model,omitempty"`
	GeminiModel string `yaml:"gemini_model,omitempty"`
}

// GatewayConfig tunes admission and retry behavior. Durations are Go
// duration strings ("1s", "2m"). Zero or empty values use the gateway
// defaults.
type GatewayConfig struct {
	MaxConcurrent  int    `yaml:"max_concurrent,omitempty"`
	MaxPerMinute   int    `yaml:"max_per_minute,omitempty"`
	MaxRetries     int    `yaml:"max_retries,omitempty"`
	BaseDelay      string `yaml:"base_delay,omitempty"`
	MaxDelay       string `yaml:"max_delay,omitempty"`
	AttemptTimeout string `yaml:"attempt_timeout,omitempty"`
	ToolTimeout    string `yaml:"tool_timeout,omitempty"`
}

// UsageConfig controls usage accounting. An empty database path disables the
// SQLite store; an empty schedule disables periodic reporting.
type UsageConfig struct {
	Database       string `yaml:"database,omitempty"`
	LogRecords     bool   `yaml:"log_records,omitempty"`
	ReportSchedule string `yaml:"report_schedule,omitempty"` // cron expression or duration
	MemoryBuffer   int    `yaml:"memory_buffer,omitempty"`   // recent records kept in memory, 0 disables
}

// Config is the root configuration for the relay.
type Config struct {
	Primary   string                    `yaml:"primary,omitempty"`
	Providers map[string]ProviderConfig `yaml:"providers,omitempty"`
	Gateway   GatewayConfig             `yaml:"gateway,omitempty"`
	Usage     UsageConfig               `yaml:"usage,omitempty"`
}

// providerNames maps config keys to registry providers.
var providerNames = map[string]llm.Provider{
	"openai":     llm.ProviderOpenAI,
	"deepseek":   llm.ProviderDeepSeek,
	"dashscope":  llm.ProviderDashscope,
	"hunyuan":    llm.ProviderHunyuan,
	"openrouter": llm.ProviderOpenRouter,
	"anthropic":  llm.ProviderAnthropic,
	"ollama":     llm.ProviderOllama,
}

// GetConfigPath returns the config file path. Can be overridden via the
// LLMRELAY_CONFIG_PATH environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("LLMRELAY_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.llmrelay/config.yaml"
	}
	return filepath.Join(homeDir, ".llmrelay", "config.yaml")
}

// Load reads configuration from path and merges it over the defaults. A
// missing file is not an error: the defaults stand and provider credentials
// come from the environment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		data, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
		}

		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", expandedPath, err)
		}

		if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	cfg.Usage.Database = expandPath(cfg.Usage.Database)

	return &cfg, nil
}

// Save writes the configuration to path, creating the directory if needed.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Registry builds the provider registry from the configured providers.
// Provider names are case-insensitive; an unknown name is a hard error so
// typos surface at startup rather than as silently missing providers.
func (c *Config) Registry() (*llm.Registry, error) {
	settings := make(map[llm.Provider]llm.ProviderSettings, len(c.Providers))
	for name, pc := range c.Providers {
		provider, ok := providerNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q in config", name)
		}
		settings[provider] = llm.ProviderSettings{
			APIKey:      pc.APIKey,
			BaseURL:     pc.BaseURL,
			Model:       pc.Model,
			Host:        pc.Host,
			ToolCalling: pc.ToolCalling,
			ClaudeModel: pc.ClaudeModel,
			GeminiModel: pc.GeminiModel,
		}
	}

	var primary llm.Provider
	if c.Primary != "" {
		p, ok := providerNames[strings.ToLower(c.Primary)]
		if !ok {
			return nil, fmt.Errorf("unknown primary provider %q in config", c.Primary)
		}
		primary = p
	}

	return llm.NewRegistry(settings, primary), nil
}

// GateConfig converts the gateway section to admission gate tuning.
func (c *Config) GateConfig() gateway.GateConfig {
	return gateway.GateConfig{
		MaxConcurrent: c.Gateway.MaxConcurrent,
		MaxPerWindow:  c.Gateway.MaxPerMinute,
	}
}

// RetryConfig converts the gateway section to retry tuning.
func (c *Config) RetryConfig() (gateway.RetryConfig, error) {
	out := gateway.RetryConfig{MaxRetries: c.Gateway.MaxRetries}

	var err error
	if out.BaseDelay, err = parseDuration("base_delay", c.Gateway.BaseDelay); err != nil {
		return out, err
	}
	if out.MaxDelay, err = parseDuration("max_delay", c.Gateway.MaxDelay); err != nil {
		return out, err
	}
	if out.AttemptTimeout, err = parseDuration("attempt_timeout", c.Gateway.AttemptTimeout); err != nil {
		return out, err
	}
	if out.ToolTimeout, err = parseDuration("tool_timeout", c.Gateway.ToolTimeout); err != nil {
		return out, err
	}
	return out, nil
}

func defaults() Config {
	return Config{
		Providers: make(map[string]ProviderConfig),
		Gateway: GatewayConfig{
			MaxConcurrent:  gateway.DefaultMaxConcurrent,
			MaxPerMinute:   gateway.DefaultMaxPerWindow,
			MaxRetries:     gateway.DefaultMaxRetries,
			BaseDelay:      gateway.DefaultBaseDelay.String(),
			MaxDelay:       gateway.DefaultMaxDelay.String(),
			AttemptTimeout: gateway.DefaultAttemptTimeout.String(),
			ToolTimeout:    gateway.DefaultToolTimeout.String(),
		},
		Usage: UsageConfig{
			MemoryBuffer: 0,
		},
	}
}

// parseDuration parses a config duration string; empty means unset and the
// gateway default applies.
func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return d, nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
