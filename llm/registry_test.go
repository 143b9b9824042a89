package llm

import (
	"strings"
	"testing"
)

// clearProviderEnv blanks every credential and Ollama variable so tests see
// only the settings they pass in.
func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, envVar := range apiKeyEnvVars {
		t.Setenv(envVar, "")
	}
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("OLLAMA_MODEL", "")
}

func TestRegistryConfigured(t *testing.T) {
	clearProviderEnv(t)

	registry := NewRegistry(map[Provider]ProviderSettings{
		ProviderOpenAI: {APIKey: "test-key"},
	}, ProviderOpenAI)

	if !registry.Configured(ProviderOpenAI) {
		t.Error("openai should be configured with API key")
	}
	if registry.Configured(ProviderAnthropic) {
		t.Error("anthropic should not be configured without API key")
	}
	if registry.Configured(ProviderOllama) {
		t.Error("ollama should not be configured without a model")
	}
}

func TestRegistryConfiguredFromEnv(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("DEEPSEEK_API_KEY", "env-key")

	registry := NewRegistry(nil, "")
	if !registry.Configured(ProviderDeepSeek) {
		t.Error("deepseek should be configured from environment")
	}
	if registry.Configured(ProviderOpenAI) {
		t.Error("openai should not be configured")
	}
}

func TestRegistryAvailableOrder(t *testing.T) {
	clearProviderEnv(t)

	registry := NewRegistry(map[Provider]ProviderSettings{
		ProviderAnthropic: {APIKey: "key-a"},
		ProviderDeepSeek:  {APIKey: "key-d"},
		ProviderOllama:    {Model: "llama3.2"},
	}, "")

	available := registry.Available()
	want := []Provider{ProviderDeepSeek, ProviderAnthropic, ProviderOllama}
	if len(available) != len(want) {
		t.Fatalf("Expected %d available providers, got %d", len(want), len(available))
	}
	for i, p := range want {
		if available[i] != p {
			t.Errorf("Expected provider %s at position %d, got %s", p, i, available[i])
		}
	}
}

func TestRegistryResolveDefaults(t *testing.T) {
	clearProviderEnv(t)

	registry := NewRegistry(map[Provider]ProviderSettings{
		ProviderDeepSeek: {APIKey: "test-key"},
	}, "")

	desc, err := registry.Resolve(ProviderDeepSeek)
	if err != nil {
		t.Fatalf("Failed to resolve deepseek: %v", err)
	}
	if desc.APIKey != "test-key" {
		t.Errorf("Expected API key from settings, got '%s'", desc.APIKey)
	}
	if desc.BaseURL != deepseekBaseURL {
		t.Errorf("Expected default base URL %s, got %s", deepseekBaseURL, desc.BaseURL)
	}
	if desc.Model != "deepseek-chat" {
		t.Errorf("Expected default model 'deepseek-chat', got '%s'", desc.Model)
	}
	if !desc.ToolCalling {
		t.Error("deepseek should support tool calling by default")
	}
}

func TestRegistryResolveOverrides(t *testing.T) {
	clearProviderEnv(t)

	toolCalling := false
	registry := NewRegistry(map[Provider]ProviderSettings{
		ProviderOpenAI: {
			APIKey:      "test-key",
			BaseURL:     "https://proxy.internal/v1",
			Model:       "gpt-4o",
			ToolCalling: &toolCalling,
		},
	}, "")

	desc, err := registry.Resolve(ProviderOpenAI)
	if err != nil {
		t.Fatalf("Failed to resolve openai: %v", err)
	}
	if desc.BaseURL != "https://proxy.internal/v1" {
		t.Errorf("Expected configured base URL, got %s", desc.BaseURL)
	}
	if desc.Model != "gpt-4o" {
		t.Errorf("Expected configured model, got %s", desc.Model)
	}
	if desc.ToolCalling {
		t.Error("Expected tool calling disabled by settings override")
	}
}

func TestRegistryResolveUnconfigured(t *testing.T) {
	clearProviderEnv(t)

	registry := NewRegistry(nil, "")
	_, err := registry.Resolve(ProviderAnthropic)
	if err == nil {
		t.Fatal("Expected error resolving unconfigured provider")
	}
	if !IsConfigError(err) {
		t.Errorf("Expected config error, got %v", err)
	}
}

func TestRegistryResolveHunyuanDefaults(t *testing.T) {
	clearProviderEnv(t)

	registry := NewRegistry(map[Provider]ProviderSettings{
		ProviderHunyuan: {APIKey: "test-key"},
	}, "")

	desc, err := registry.Resolve(ProviderHunyuan)
	if err != nil {
		t.Fatalf("Failed to resolve hunyuan: %v", err)
	}
	if desc.ToolCalling {
		t.Error("hunyuan should not support tool calling by default")
	}
	if !strings.Contains(desc.BaseURL, "hunyuan") {
		t.Errorf("Expected hunyuan base URL, got %s", desc.BaseURL)
	}
}

func TestRegistryResolveOllama(t *testing.T) {
	clearProviderEnv(t)

	registry := NewRegistry(map[Provider]ProviderSettings{
		ProviderOllama: {Model: "llama3.2"},
	}, "")

	desc, err := registry.Resolve(ProviderOllama)
	if err != nil {
		t.Fatalf("Failed to resolve ollama: %v", err)
	}
	if desc.Host != "http://localhost:11434" {
		t.Errorf("Expected default host, got %s", desc.Host)
	}
	if desc.APIKey != "" {
		t.Error("ollama should not carry an API key")
	}

	registry2 := NewRegistry(map[Provider]ProviderSettings{
		ProviderOllama: {},
	}, "")
	if _, err := registry2.Resolve(ProviderOllama); err == nil {
		t.Error("Expected error resolving ollama without a model")
	}
}

func TestRegistryResolveOpenRouterAliases(t *testing.T) {
	clearProviderEnv(t)

	registry := NewRegistry(map[Provider]ProviderSettings{
		ProviderOpenRouter: {APIKey: "test-key"},
	}, "")

	desc, err := registry.Resolve(ProviderOpenRouter)
	if err != nil {
		t.Fatalf("Failed to resolve openrouter: %v", err)
	}
	if desc.ClaudeModel != defaultOpenRouterClaude {
		t.Errorf("Expected default claude model %s, got %s", defaultOpenRouterClaude, desc.ClaudeModel)
	}
	if desc.GeminiModel != defaultOpenRouterGemini {
		t.Errorf("Expected default gemini model %s, got %s", defaultOpenRouterGemini, desc.GeminiModel)
	}

	registry2 := NewRegistry(map[Provider]ProviderSettings{
		ProviderOpenRouter: {APIKey: "test-key", ClaudeModel: "anthropic/claude-opus-4.1"},
	}, "")
	desc2, err := registry2.Resolve(ProviderOpenRouter)
	if err != nil {
		t.Fatalf("Failed to resolve openrouter: %v", err)
	}
	if desc2.ClaudeModel != "anthropic/claude-opus-4.1" {
		t.Errorf("Expected configured claude model, got %s", desc2.ClaudeModel)
	}
}

func TestDescriptorCacheKeyDistinguishesModels(t *testing.T) {
	a := Descriptor{Provider: ProviderOpenAI, Model: "gpt-4o", APIKey: "k"}
	b := Descriptor{Provider: ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "k"}
	if a.CacheKey() == b.CacheKey() {
		t.Error("Expected different cache keys for different models")
	}
}
