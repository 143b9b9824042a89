// Package ollama implements the llm.Client interface for a local or remote
// Ollama server.
package ollama

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/relayforge/llmrelay/llm"
)

// Client implements llm.Client and llm.ToolCaller for Ollama's API.
type Client struct {
	client *api.Client
	model  string
}

// NewClient creates a client bound to one resolved provider descriptor.
// An empty host falls back to the environment (OLLAMA_HOST or
// http://localhost:11434).
func NewClient(desc llm.Descriptor) (*Client, error) {
	if desc.Model == "" {
		return nil, llm.NewConfigError("ollama: model is required")
	}

	var client *api.Client
	if desc.Host != "" {
		baseURL, err := parseHost(desc.Host)
		if err != nil {
			return nil, llm.NewConfigError("ollama: invalid host: " + err.Error())
		}
		client = api.NewClient(baseURL, &http.Client{})
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, llm.NewConfigError("ollama: failed to create client: " + err.Error())
		}
	}

	return &Client{
		client: client,
		model:  desc.Model,
	}, nil
}

// parseHost parses a host string into a URL, defaulting the scheme to http.
func parseHost(host string) (*url.URL, error) {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

// Chat implements llm.Client.Chat.
func (c *Client) Chat(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, llm.NewProviderError(llm.ProviderOllama, "request is required", nil)
	}
	return c.complete(ctx, req, false)
}

// ChatWithTools implements llm.ToolCaller.ChatWithTools.
func (c *Client) ChatWithTools(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, llm.NewProviderError(llm.ProviderOllama, "request is required", nil)
	}
	return c.complete(ctx, req, true)
}

func (c *Client) complete(ctx context.Context, req *llm.Request, withTools bool) (*llm.Response, error) {
	chatReq := BuildChatRequest(c.model, req, withTools)

	var chatResp api.ChatResponse
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		chatResp = resp
		return nil
	})
	if err != nil {
		return nil, c.convertError(err)
	}

	resp := &llm.Response{
		Content:    chatResp.Message.Content,
		ToolCalls:  FromToolCalls(chatResp.Message.ToolCalls),
		Provider:   llm.ProviderOllama,
		Model:      c.model,
		StopReason: stopReason(&chatResp),
	}

	// Ollama reports eval counts rather than a usage object, and omits
	// them entirely on cache hits.
	if chatResp.PromptEvalCount > 0 || chatResp.EvalCount > 0 {
		resp.Usage = &llm.Usage{
			InputTokens:  int64(chatResp.PromptEvalCount),
			OutputTokens: int64(chatResp.EvalCount),
		}
	} else {
		resp.Usage = &llm.Usage{
			InputTokens:  llm.EstimateRequestTokens(req),
			OutputTokens: llm.EstimateTokens(resp.Content),
			Estimated:    true,
		}
	}

	return resp, nil
}

// stopReason maps Ollama's done reason onto the neutral vocabulary.
func stopReason(resp *api.ChatResponse) string {
	if len(resp.Message.ToolCalls) > 0 {
		return "tool_calls"
	}
	if resp.DoneReason == "length" {
		return "max_tokens"
	}
	return "stop"
}

// convertError normalizes SDK errors so the retry layer can classify them
// uniformly across providers.
func (c *Client) convertError(err error) error {
	if err == nil {
		return nil
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return llm.FromStatus(llm.ProviderOllama, statusErr.StatusCode, statusErr.ErrorMessage, err)
	}

	return llm.FromTransport(llm.ProviderOllama, err)
}

// Ensure Client implements the tool-capable interface
var _ llm.ToolCaller = (*Client)(nil)
