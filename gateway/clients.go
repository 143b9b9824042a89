package gateway

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/relayforge/llmrelay/llm"
	"github.com/relayforge/llmrelay/llm/anthropic"
	"github.com/relayforge/llmrelay/llm/ollama"
	"github.com/relayforge/llmrelay/llm/openai"
)

// Clients creates and caches one client per resolved descriptor. Construction
// binds transport configuration, so a descriptor's client is built once and
// reused for every call; a routing model override gets its own cache entry.
type Clients struct {
	registry *llm.Registry
	logger   zerolog.Logger

	mu    sync.RWMutex
	cache map[string]llm.Client
}

// NewClients creates the client cache over the given registry.
func NewClients(registry *llm.Registry, logger zerolog.Logger) *Clients {
	return &Clients{
		registry: registry,
		logger:   logger.With().Str("component", "clients").Logger(),
		cache:    make(map[string]llm.Client),
	}
}

// For returns the client for a provider along with its resolved descriptor,
// creating the client on first use. A non-empty model override replaces the
// descriptor's model before the cache lookup.
func (c *Clients) For(provider llm.Provider, modelOverride string) (llm.Client, llm.Descriptor, error) {
	desc, err := c.registry.Resolve(provider)
	if err != nil {
		return nil, llm.Descriptor{}, err
	}
	if modelOverride != "" {
		desc.Model = modelOverride
	}

	key := desc.CacheKey()

	c.mu.RLock()
	if client, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return client, desc, nil
	}
	c.mu.RUnlock()

	// Build outside the lock; client construction may touch the environment.
	client, err := c.build(desc)
	if err != nil {
		return nil, llm.Descriptor{}, err
	}

	c.mu.Lock()
	if existing, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return existing, desc, nil
	}
	c.cache[key] = client
	c.mu.Unlock()

	c.logger.Debug().
		Str("provider", string(desc.Provider)).
		Str("model", desc.Model).
		Bool("tool_calling", desc.ToolCalling).
		Msg("Created provider client")
	return client, desc, nil
}

// build constructs the concrete client for a descriptor. Providers with an
// OpenAI-compatible API share one implementation parameterized by base URL.
// Descriptors that declare tool calling unavailable get a wrapper that hides
// the capability from type assertions.
func (c *Clients) build(desc llm.Descriptor) (llm.Client, error) {
	var client llm.Client
	var err error

	switch desc.Provider {
	case llm.ProviderAnthropic:
		client, err = anthropic.NewClient(desc)
	case llm.ProviderOllama:
		client, err = ollama.NewClient(desc)
	case llm.ProviderOpenAI, llm.ProviderDeepSeek, llm.ProviderDashscope,
		llm.ProviderHunyuan, llm.ProviderOpenRouter:
		client, err = openai.NewClient(desc)
	default:
		return nil, llm.NewConfigError(fmt.Sprintf("unknown provider: %s", desc.Provider))
	}
	if err != nil {
		return nil, err
	}

	if !desc.ToolCalling {
		client = llm.TextOnly(client)
	}
	return client, nil
}
