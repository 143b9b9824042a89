// Package openai implements the llm.Client interface on top of the OpenAI
// chat completion API. Because DeepSeek, Dashscope, Hunyuan, and OpenRouter
// all speak the same wire protocol, one client type serves every
// OpenAI-compatible provider; the descriptor's base URL decides which backend
// answers.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/relayforge/llmrelay/llm"
)

// Client implements llm.Client and llm.ToolCaller for OpenAI-compatible APIs.
type Client struct {
	client   *openai.Client
	provider llm.Provider
	model    string
}

// NewClient creates a client bound to one resolved provider descriptor.
func NewClient(desc llm.Descriptor) (*Client, error) {
	if desc.APIKey == "" {
		return nil, llm.NewConfigError(fmt.Sprintf("%s: api key is required", desc.Provider))
	}
	if desc.Model == "" {
		return nil, llm.NewConfigError(fmt.Sprintf("%s: model is required", desc.Provider))
	}

	config := openai.DefaultConfig(desc.APIKey)
	if desc.BaseURL != "" {
		config.BaseURL = desc.BaseURL
	}

	return &Client{
		client:   openai.NewClientWithConfig(config),
		provider: desc.Provider,
		model:    desc.Model,
	}, nil
}

// Chat implements llm.Client.Chat.
func (c *Client) Chat(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, llm.NewProviderError(c.provider, "request is required", nil)
	}
	return c.complete(ctx, req, false)
}

// ChatWithTools implements llm.ToolCaller.ChatWithTools.
func (c *Client) ChatWithTools(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, llm.NewProviderError(c.provider, "request is required", nil)
	}
	return c.complete(ctx, req, true)
}

func (c *Client) complete(ctx context.Context, req *llm.Request, withTools bool) (*llm.Response, error) {
	chatReq, err := BuildChatRequest(c.model, req, withTools)
	if err != nil {
		return nil, err
	}

	chatResp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, c.convertError(err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, llm.NewDecodeError(c.provider, "no choices in response", nil)
	}
	choice := chatResp.Choices[0]

	resp := &llm.Response{
		Content:    choice.Message.Content,
		ToolCalls:  FromToolCalls(choice.Message.ToolCalls),
		Provider:   c.provider,
		Model:      chatResp.Model,
		StopReason: stopReason(choice.FinishReason),
	}
	if resp.Model == "" {
		resp.Model = c.model
	}

	// Usage is reported by every OpenAI-compatible backend, but some
	// gateways omit it; fall back to the local estimate so accounting
	// still has numbers.
	if chatResp.Usage.PromptTokens > 0 || chatResp.Usage.CompletionTokens > 0 {
		resp.Usage = &llm.Usage{
			InputTokens:  int64(chatResp.Usage.PromptTokens),
			OutputTokens: int64(chatResp.Usage.CompletionTokens),
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

// stopReason maps an OpenAI finish reason onto the neutral vocabulary.
func stopReason(reason openai.FinishReason) string {
	switch reason {
	case openai.FinishReasonLength:
		return "max_tokens"
	case openai.FinishReasonToolCalls:
		return "tool_calls"
	case openai.FinishReasonStop:
		return "stop"
	default:
		return "stop"
	}
}

// convertError normalizes SDK errors so the retry layer can classify them
// uniformly across providers.
func (c *Client) convertError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llm.FromStatus(c.provider, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return llm.FromStatus(c.provider, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return llm.FromTransport(c.provider, err)
}

// Ensure Client implements the tool-capable interface
var _ llm.ToolCaller = (*Client)(nil)
