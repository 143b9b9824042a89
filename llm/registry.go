package llm

import (
	"fmt"
	"os"
	"sync"
)

// Provider identifies one backend LLM service.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderDeepSeek   Provider = "deepseek"
	ProviderDashscope  Provider = "dashscope"
	ProviderHunyuan    Provider = "hunyuan"
	ProviderOpenRouter Provider = "openrouter"
	ProviderAnthropic  Provider = "anthropic"
	ProviderOllama     Provider = "ollama"
)

// DefaultPriority is the fixed order in which providers are considered when
// no explicit selection applies and when building fallback chains.
var DefaultPriority = []Provider{
	ProviderOpenAI,
	ProviderDeepSeek,
	ProviderDashscope,
	ProviderHunyuan,
	ProviderOpenRouter,
	ProviderAnthropic,
	ProviderOllama,
}

// Default endpoints for the OpenAI-compatible vendors. The OpenAI SDK's own
// default is used when BaseURL stays empty.
const (
	deepseekBaseURL   = "https://api.deepseek.com/v1"
	dashscopeBaseURL  = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	hunyuanBaseURL    = "https://api.hunyuan.cloud.tencent.com/v1"
	openrouterBaseURL = "https://openrouter.ai/api/v1"
)

// defaultModels are used when neither config nor environment names a model.
var defaultModels = map[Provider]string{
	ProviderOpenAI:     "gpt-4o-mini",
	ProviderDeepSeek:   "deepseek-chat",
	ProviderDashscope:  "qwen-plus",
	ProviderHunyuan:    "hunyuan-turbo",
	ProviderOpenRouter: "openai/gpt-4o-mini",
	ProviderAnthropic:  "claude-haiku-4-5",
}

// Models OpenRouter serves for the premium routing aliases.
const (
	defaultOpenRouterClaude = "anthropic/claude-sonnet-4.5"
	defaultOpenRouterGemini = "google/gemini-2.5-pro"
)

// apiKeyEnvVars maps each credential-based provider to its environment
// fallback variable.
var apiKeyEnvVars = map[Provider]string{
	ProviderOpenAI:     "OPENAI_API_KEY",
	ProviderDeepSeek:   "DEEPSEEK_API_KEY",
	ProviderDashscope:  "DASHSCOPE_API_KEY",
	ProviderHunyuan:    "HUNYUAN_API_KEY",
	ProviderOpenRouter: "OPENROUTER_API_KEY",
	ProviderAnthropic:  "ANTHROPIC_API_KEY",
}

// toolCapableByDefault records which providers answer tool-enabled requests
// natively. Hunyuan's chat endpoint does not; its calls degrade to plain text.
var toolCapableByDefault = map[Provider]bool{
	ProviderOpenAI:     true,
	ProviderDeepSeek:   true,
	ProviderDashscope:  true,
	ProviderHunyuan:    false,
	ProviderOpenRouter: true,
	ProviderAnthropic:  true,
	ProviderOllama:     true,
}

// Descriptor fully describes one provider binding: endpoint, credential,
// model, and capability. One resolved Descriptor maps to exactly one cached
// client instance; construction binds transport configuration.
type Descriptor struct {
	Provider    Provider
	APIKey      string
	BaseURL     string
	Model       string
	Host        string // Ollama server address
	ToolCalling bool

	// OpenRouter-hosted models backing the premium routing aliases.
	ClaudeModel string
	GeminiModel string
}

// CacheKey returns a string identifying this descriptor for client caching.
// It contains the credential, so it must never be logged.
func (d Descriptor) CacheKey() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", d.Provider, d.Model, d.BaseURL, d.Host, d.APIKey)
}

// ProviderSettings holds one provider's raw configuration. The config package
// maps its YAML shape into this struct, which keeps this package free of
// config imports.
type ProviderSettings struct {
	APIKey      string
	BaseURL     string
	Model       string
	Host        string // Ollama only
	ToolCalling *bool  // nil means provider default

	// OpenRouter only: models to use for the claude/gemini routing aliases.
	ClaudeModel string
	GeminiModel string
}

// Registry resolves provider descriptors from configuration plus environment
// fallbacks and answers which providers are usable. Client creation and
// caching is handled by the caller to avoid import cycles.
type Registry struct {
	mu       sync.RWMutex
	settings map[Provider]ProviderSettings
	primary  Provider
}

// NewRegistry creates a Registry from per-provider settings. An empty primary
// means no provider is preferred and the default priority order decides.
func NewRegistry(settings map[Provider]ProviderSettings, primary Provider) *Registry {
	if settings == nil {
		settings = make(map[Provider]ProviderSettings)
	}
	return &Registry{
		settings: settings,
		primary:  primary,
	}
}

// Primary returns the configured primary provider, which may be unconfigured
// or empty.
func (r *Registry) Primary() Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primary
}

// Configured reports whether a provider has the configuration it needs to
// accept calls (API key for hosted providers, a model for Ollama).
func (r *Registry) Configured(provider Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.configuredLocked(provider)
}

// Available returns every configured provider in the fixed priority order.
func (r *Registry) Available() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Provider
	for _, p := range DefaultPriority {
		if r.configuredLocked(p) {
			out = append(out, p)
		}
	}
	return out
}

// Resolve returns the full descriptor for a provider, applying config,
// environment fallbacks, and defaults in that order.
func (r *Registry) Resolve(provider Provider) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.settings[provider]
	d := Descriptor{
		Provider:    provider,
		BaseURL:     s.BaseURL,
		Model:       s.Model,
		ToolCalling: toolCapableByDefault[provider],
	}
	if s.ToolCalling != nil {
		d.ToolCalling = *s.ToolCalling
	}

	switch provider {
	case ProviderOllama:
		d.Host = s.Host
		if d.Host == "" {
			d.Host = os.Getenv("OLLAMA_HOST")
		}
		if d.Host == "" {
			d.Host = "http://localhost:11434"
		}
		if d.Model == "" {
			d.Model = os.Getenv("OLLAMA_MODEL")
		}
		if d.Model == "" {
			return Descriptor{}, NewConfigError("ollama model not specified and no default configured")
		}
		return d, nil

	case ProviderOpenAI, ProviderDeepSeek, ProviderDashscope, ProviderHunyuan, ProviderOpenRouter, ProviderAnthropic:
		d.APIKey = s.APIKey
		if d.APIKey == "" {
			d.APIKey = os.Getenv(apiKeyEnvVars[provider])
		}
		if d.APIKey == "" {
			return Descriptor{}, NewConfigError(fmt.Sprintf("%s API key not configured", provider))
		}
	default:
		return Descriptor{}, NewConfigError(fmt.Sprintf("unknown provider: %s", provider))
	}

	if d.BaseURL == "" {
		switch provider {
		case ProviderDeepSeek:
			d.BaseURL = deepseekBaseURL
		case ProviderDashscope:
			d.BaseURL = dashscopeBaseURL
		case ProviderHunyuan:
			d.BaseURL = hunyuanBaseURL
		case ProviderOpenRouter:
			d.BaseURL = openrouterBaseURL
		}
	}
	if d.Model == "" {
		d.Model = defaultModels[provider]
	}

	if provider == ProviderOpenRouter {
		d.ClaudeModel = s.ClaudeModel
		if d.ClaudeModel == "" {
			d.ClaudeModel = defaultOpenRouterClaude
		}
		d.GeminiModel = s.GeminiModel
		if d.GeminiModel == "" {
			d.GeminiModel = defaultOpenRouterGemini
		}
	}

	return d, nil
}

// configuredLocked must be called with r.mu held.
func (r *Registry) configuredLocked(provider Provider) bool {
	s := r.settings[provider]
	switch provider {
	case ProviderOllama:
		// Ollama needs no credential, but without a model there is nothing
		// to call.
		return s.Model != "" || os.Getenv("OLLAMA_MODEL") != ""
	case ProviderOpenAI, ProviderDeepSeek, ProviderDashscope, ProviderHunyuan, ProviderOpenRouter, ProviderAnthropic:
		if s.APIKey != "" {
			return true
		}
		return os.Getenv(apiKeyEnvVars[provider]) != ""
	default:
		return false
	}
}
