// Package llm provides a provider-neutral abstraction layer for Large Language Model (LLM) APIs.
//
// This package defines common types, interfaces, and utilities that allow the
// gateway to work with multiple LLM providers (OpenAI, DeepSeek, Dashscope,
// Hunyuan, OpenRouter, Anthropic, Ollama) without being tightly coupled to any
// specific provider's SDK.
//
// # Core Concepts
//
//  1. Messages: The Message type represents a conversation turn with a role
//     (user, assistant, system, tool) and text content, plus the tool-call
//     plumbing needed to round-trip assistant tool requests and tool results.
//
//  2. Requests and Responses: Request carries messages, an optional system
//     prompt, sampling parameters, and optional tool definitions; Response
//     carries generated text and, for tool-enabled calls, the tool calls the
//     model requested. Requests are immutable once submitted.
//
//  3. Client and ToolCaller: the Client interface is the minimal capability
//     every provider implements (plain chat). Providers with native tool
//     calling additionally implement ToolCaller; capability is discovered by
//     type assertion, never by runtime probing. TextOnly hides tool capability
//     for providers configured without it.
//
//  4. UsageSink: an injected accounting interface that receives exactly one
//     UsageRecord per logical call per engaged provider, success or failure.
//     Sink failures are logged and swallowed by callers; accounting must never
//     take down a working model call.
//
//  5. Registry: resolves provider Descriptors (endpoint, credential, model,
//     tool capability) from configuration and environment fallbacks, and
//     reports which providers are usable.
//
//  6. Errors: the Error type provides provider-neutral error handling. The
//     Retryable flag is the single classification the retry layer consults;
//     FromStatus and FromTransport normalize HTTP and transport failures
//     uniformly across providers.
//
// Usage Example
//
//	// Resolve a provider and create its client
//	reg := llm.NewRegistry(settings, llm.ProviderOpenAI)
//	desc, err := reg.Resolve(llm.ProviderDeepSeek)
//	client := openai.NewClient(desc)
//
//	// Make a request
//	req := &llm.Request{
//	    Messages:  []llm.Message{llm.NewUserMessage("Hello!")},
//	    MaxTokens: 1024,
//	}
//
//	resp, err := client.Chat(ctx, req)
//
// # Extension Points
//
// To add a new LLM provider:
//  1. Implement the Client interface (and ToolCaller if the provider
//     supports tool calling)
//  2. Translate between provider-specific types and llm package types
//  3. Return normalized *llm.Error values via FromStatus/FromTransport so
//     the retry layer classifies failures uniformly
//  4. Add the provider to the Registry's resolution switch
//
// To add middleware:
//  1. Implement the Middleware interface
//  2. Use WrapWithMiddleware to wrap a Client; tool capability is preserved
//  3. The returned Client can be used anywhere a Client is expected
package llm
