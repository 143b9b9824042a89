package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relayforge/llmrelay/gateway"
	"github.com/relayforge/llmrelay/llm"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, envVar := range []string{
		"OPENAI_API_KEY",
		"DEEPSEEK_API_KEY",
		"DASHSCOPE_API_KEY",
		"HUNYUAN_API_KEY",
		"OPENROUTER_API_KEY",
		"ANTHROPIC_API_KEY",
		"OLLAMA_HOST",
		"OLLAMA_MODEL",
	} {
		t.Setenv(envVar, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gateway.MaxConcurrent != gateway.DefaultMaxConcurrent {
		t.Errorf("Expected default concurrency %d, got %d", gateway.DefaultMaxConcurrent, cfg.Gateway.MaxConcurrent)
	}
	if cfg.Gateway.MaxPerMinute != gateway.DefaultMaxPerWindow {
		t.Errorf("Expected default rate limit %d, got %d", gateway.DefaultMaxPerWindow, cfg.Gateway.MaxPerMinute)
	}
	if cfg.Gateway.BaseDelay != gateway.DefaultBaseDelay.String() {
		t.Errorf("Expected default base delay %q, got %q", gateway.DefaultBaseDelay.String(), cfg.Gateway.BaseDelay)
	}
	if len(cfg.Providers) != 0 {
		t.Errorf("Expected no providers by default, got %d", len(cfg.Providers))
	}
	if cfg.Usage.Database != "" {
		t.Errorf("Expected usage store disabled by default, got %q", cfg.Usage.Database)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
primary: deepseek
providers:
  deepseek:
    api_key: sk-test-deepseek
  openrouter:
    api_key: sk-test-openrouter
    claude_model: anthropic/claude-opus-4
  ollama:
    model: llama3.2
    tool_calling: false
gateway:
  max_concurrent: 4
  max_retries: 2
  base_delay: 500ms
usage:
  database: /tmp/llmrelay-test.db
  report_schedule: 30m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Primary != "deepseek" {
		t.Errorf("Expected primary deepseek, got %q", cfg.Primary)
	}
	if cfg.Providers["deepseek"].APIKey != "sk-test-deepseek" {
		t.Errorf("Expected deepseek api key from file, got %q", cfg.Providers["deepseek"].APIKey)
	}
	if cfg.Providers["openrouter"].ClaudeModel != "anthropic/claude-opus-4" {
		t.Errorf("Expected claude model override, got %q", cfg.Providers["openrouter"].ClaudeModel)
	}
	tc := cfg.Providers["ollama"].ToolCalling
	if tc == nil || *tc {
		t.Error("Expected explicit tool_calling false for ollama")
	}

	// Explicit values override; untouched fields keep their defaults.
	if cfg.Gateway.MaxConcurrent != 4 {
		t.Errorf("Expected configured concurrency 4, got %d", cfg.Gateway.MaxConcurrent)
	}
	if cfg.Gateway.MaxPerMinute != gateway.DefaultMaxPerWindow {
		t.Errorf("Expected default rate limit preserved, got %d", cfg.Gateway.MaxPerMinute)
	}
	if cfg.Gateway.BaseDelay != "500ms" {
		t.Errorf("Expected configured base delay, got %q", cfg.Gateway.BaseDelay)
	}
	if cfg.Gateway.MaxDelay != gateway.DefaultMaxDelay.String() {
		t.Errorf("Expected default max delay preserved, got %q", cfg.Gateway.MaxDelay)
	}

	if cfg.Usage.Database != "/tmp/llmrelay-test.db" {
		t.Errorf("Expected usage database path, got %q", cfg.Usage.Database)
	}
	if cfg.Usage.ReportSchedule != "30m" {
		t.Errorf("Expected report schedule, got %q", cfg.Usage.ReportSchedule)
	}
}

func TestRegistryFromConfig(t *testing.T) {
	clearProviderEnv(t)
	cfg := &Config{
		Primary: "deepseek",
		Providers: map[string]ProviderConfig{
			"deepseek": {APIKey: "sk-test"},
			"ollama":   {Model: "llama3.2"},
		},
	}

	registry, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry failed: %v", err)
	}
	if registry.Primary() != llm.ProviderDeepSeek {
		t.Errorf("Expected deepseek primary, got %s", registry.Primary())
	}
	if !registry.Configured(llm.ProviderDeepSeek) {
		t.Error("Expected deepseek configured")
	}
	if !registry.Configured(llm.ProviderOllama) {
		t.Error("Expected ollama configured via its model")
	}
	if registry.Configured(llm.ProviderOpenAI) {
		t.Error("Expected openai unconfigured")
	}
}

func TestRegistryProviderNameCaseInsensitive(t *testing.T) {
	clearProviderEnv(t)
	cfg := &Config{
		Primary: "DeepSeek",
		Providers: map[string]ProviderConfig{
			"DeepSeek": {APIKey: "sk-test"},
		},
	}

	registry, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry failed: %v", err)
	}
	if !registry.Configured(llm.ProviderDeepSeek) {
		t.Error("Expected mixed-case provider name accepted")
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	cfg := &Config{
		Providers: map[string]ProviderConfig{
			"watson": {APIKey: "sk-test"},
		},
	}
	if _, err := cfg.Registry(); err == nil {
		t.Error("Expected error for an unknown provider name")
	} else if !strings.Contains(err.Error(), "watson") {
		t.Errorf("Expected the offending name in the error, got %v", err)
	}
}

func TestRegistryUnknownPrimary(t *testing.T) {
	cfg := &Config{Primary: "skynet"}
	if _, err := cfg.Registry(); err == nil {
		t.Error("Expected error for an unknown primary name")
	}
}

func TestRetryConfigParsesDurations(t *testing.T) {
	cfg := &Config{Gateway: GatewayConfig{
		MaxRetries:     5,
		BaseDelay:      "2s",
		MaxDelay:       "1m",
		AttemptTimeout: "45s",
		ToolTimeout:    "3m",
	}}

	rc, err := cfg.RetryConfig()
	if err != nil {
		t.Fatalf("RetryConfig failed: %v", err)
	}
	if rc.MaxRetries != 5 {
		t.Errorf("Expected 5 retries, got %d", rc.MaxRetries)
	}
	if rc.BaseDelay != 2*time.Second || rc.MaxDelay != time.Minute {
		t.Errorf("Expected parsed delays, got base=%v max=%v", rc.BaseDelay, rc.MaxDelay)
	}
	if rc.AttemptTimeout != 45*time.Second || rc.ToolTimeout != 3*time.Minute {
		t.Errorf("Expected parsed timeouts, got attempt=%v tool=%v", rc.AttemptTimeout, rc.ToolTimeout)
	}
}

func TestRetryConfigEmptyDurationsMeanDefaults(t *testing.T) {
	cfg := &Config{}
	rc, err := cfg.RetryConfig()
	if err != nil {
		t.Fatalf("RetryConfig failed: %v", err)
	}
	if rc.BaseDelay != 0 || rc.MaxDelay != 0 {
		t.Errorf("Expected zero durations for unset fields, got %+v", rc)
	}
}

func TestRetryConfigInvalidDuration(t *testing.T) {
	cfg := &Config{Gateway: GatewayConfig{BaseDelay: "soonish"}}
	if _, err := cfg.RetryConfig(); err == nil {
		t.Error("Expected error for an unparseable duration")
	}
}

func TestGateConfig(t *testing.T) {
	cfg := &Config{Gateway: GatewayConfig{MaxConcurrent: 7, MaxPerMinute: 42}}
	gc := cfg.GateConfig()
	if gc.MaxConcurrent != 7 || gc.MaxPerWindow != 42 {
		t.Errorf("Expected gate tuning carried over, got %+v", gc)
	}
}

func TestGetConfigPathEnvOverride(t *testing.T) {
	t.Setenv("LLMRELAY_CONFIG_PATH", "/tmp/custom-llmrelay.yaml")
	if got := GetConfigPath(); got != "/tmp/custom-llmrelay.yaml" {
		t.Errorf("Expected env override path, got %q", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	original := &Config{
		Primary: "openai",
		Providers: map[string]ProviderConfig{
			"openai": {APIKey: "sk-round-trip", Model: "gpt-4o"},
		},
		Gateway: GatewayConfig{MaxConcurrent: 3},
	}

	if err := Save(original, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Primary != "openai" {
		t.Errorf("Expected primary preserved, got %q", loaded.Primary)
	}
	if loaded.Providers["openai"].APIKey != "sk-round-trip" {
		t.Errorf("Expected api key preserved, got %q", loaded.Providers["openai"].APIKey)
	}
	if loaded.Gateway.MaxConcurrent != 3 {
		t.Errorf("Expected concurrency preserved, got %d", loaded.Gateway.MaxConcurrent)
	}
}
