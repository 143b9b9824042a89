// Package anthropic implements the llm.Client interface for Anthropic's
// Messages API.
package anthropic

import (
	"context"
	"errors"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/relayforge/llmrelay/llm"
)

// Anthropic requires max_tokens on every request; used when the caller
// supplied none.
const defaultMaxTokens = 4096

// Client implements llm.Client and llm.ToolCaller for Anthropic's API.
type Client struct {
	client *anthropic.Client
	model  string
}

// NewClient creates a client bound to one resolved provider descriptor.
func NewClient(desc llm.Descriptor) (*Client, error) {
	if desc.APIKey == "" {
		return nil, llm.NewConfigError("anthropic: api key is required")
	}
	if desc.Model == "" {
		return nil, llm.NewConfigError("anthropic: model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(desc.APIKey)}
	if desc.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(desc.BaseURL))
	}

	client := anthropic.NewClient(opts...)
	return &Client{
		client: &client,
		model:  desc.Model,
	}, nil
}

// Chat implements llm.Client.Chat.
func (c *Client) Chat(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, llm.NewProviderError(llm.ProviderAnthropic, "request is required", nil)
	}
	return c.complete(ctx, req, false)
}

// ChatWithTools implements llm.ToolCaller.ChatWithTools.
func (c *Client) ChatWithTools(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, llm.NewProviderError(llm.ProviderAnthropic, "request is required", nil)
	}
	return c.complete(ctx, req, true)
}

func (c *Client) complete(ctx context.Context, req *llm.Request, withTools bool) (*llm.Response, error) {
	params := BuildMessageParams(c.model, req, withTools)

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, c.convertError(err)
	}

	content, toolCalls, err := FromContentBlocks(message.Content)
	if err != nil {
		return nil, err
	}

	resp := &llm.Response{
		Content:    content,
		ToolCalls:  toolCalls,
		Provider:   llm.ProviderAnthropic,
		Model:      string(message.Model),
		StopReason: stopReason(string(message.StopReason)),
	}
	if resp.Model == "" {
		resp.Model = c.model
	}

	if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
		resp.Usage = &llm.Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
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

// stopReason maps an Anthropic stop reason onto the neutral vocabulary.
func stopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "max_tokens"
	case "tool_use":
		return "tool_calls"
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

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return llm.FromStatus(llm.ProviderAnthropic, apiErr.StatusCode, "API error", err)
	}

	return llm.FromTransport(llm.ProviderAnthropic, err)
}

// Ensure Client implements the tool-capable interface
var _ llm.ToolCaller = (*Client)(nil)
