package llm

import (
	"context"
)

// Client provides a provider-neutral interface for making LLM chat calls.
// Implementations handle provider-specific transport, auth, and wire shapes
// internally and return normalized *Error values on failure.
type Client interface {
	// Chat sends a plain chat request and returns the complete response.
	// Tool definitions on the request are ignored by implementations that
	// only satisfy Client; callers wanting tool calls should check for
	// ToolCaller first.
	Chat(ctx context.Context, req *Request) (*Response, error)
}

// ToolCaller is implemented by clients whose provider supports native
// tool/function calling. Whether a provider supports tools is a type
// assertion on its client, not a runtime probe.
type ToolCaller interface {
	Client

	// ChatWithTools sends a chat request carrying tool definitions and
	// returns a response that may contain tool calls.
	ChatWithTools(ctx context.Context, req *Request) (*Response, error)
}

// SupportsTools reports whether a client can handle tool-enabled requests.
func SupportsTools(c Client) bool {
	_, ok := c.(ToolCaller)
	return ok
}

// TextOnly wraps a client so that tool capability is hidden even when the
// underlying implementation has it. Used for providers whose configuration
// declares tool calling unavailable.
func TextOnly(c Client) Client {
	return textOnly{c}
}

// textOnly embeds only Client, so a ToolCaller assertion on it fails.
type textOnly struct {
	Client
}

// UsageSink receives one UsageRecord per logical call per engaged provider,
// win or lose. Implementations must tolerate being called after the
// originating request's context is done; the gateway strips cancellation
// before recording.
type UsageSink interface {
	RecordUsage(ctx context.Context, rec UsageRecord) error
}

// NopSink discards every record. It stands in when no sink is configured so
// accounting call sites stay branchless.
var NopSink UsageSink = nopSink{}

type nopSink struct{}

func (nopSink) RecordUsage(context.Context, UsageRecord) error { return nil }

// Middleware provides hooks for decorating Client calls.
// This allows adding cross-cutting concerns like request logging or response
// inspection without touching client implementations.
type Middleware interface {
	// BeforeRequest is called before making an API request.
	// It can modify the request or return an error to abort the request.
	BeforeRequest(ctx context.Context, req *Request) (*Request, error)

	// AfterResponse is called after receiving a response.
	// It can modify the response or return an error.
	AfterResponse(ctx context.Context, req *Request, resp *Response) (*Response, error)

	// OnError is called when an error occurs.
	// It can return a modified error or nil to use the original error.
	OnError(ctx context.Context, req *Request, err error) error
}

// MiddlewareFunc is a function type that implements Middleware.
type MiddlewareFunc struct {
	BeforeRequestFunc func(ctx context.Context, req *Request) (*Request, error)
	AfterResponseFunc func(ctx context.Context, req *Request, resp *Response) (*Response, error)
	OnErrorFunc       func(ctx context.Context, req *Request, err error) error
}

// BeforeRequest calls the BeforeRequestFunc if set.
func (f MiddlewareFunc) BeforeRequest(ctx context.Context, req *Request) (*Request, error) {
	if f.BeforeRequestFunc != nil {
		return f.BeforeRequestFunc(ctx, req)
	}
	return req, nil
}

// AfterResponse calls the AfterResponseFunc if set.
func (f MiddlewareFunc) AfterResponse(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	if f.AfterResponseFunc != nil {
		return f.AfterResponseFunc(ctx, req, resp)
	}
	return resp, nil
}

// OnError calls the OnErrorFunc if set.
func (f MiddlewareFunc) OnError(ctx context.Context, req *Request, err error) error {
	if f.OnErrorFunc != nil {
		return f.OnErrorFunc(ctx, req, err)
	}
	return err
}

// WrapWithMiddleware wraps a Client with middleware and returns a new Client.
// If the wrapped client supports tools the returned client does too, so
// wrapping never degrades capability.
func WrapWithMiddleware(client Client, middleware ...Middleware) Client {
	if len(middleware) == 0 {
		return client
	}
	wrapped := &clientWithMiddleware{
		client:     client,
		middleware: middleware,
	}
	if tc, ok := client.(ToolCaller); ok {
		return &toolCallerWithMiddleware{
			clientWithMiddleware: wrapped,
			toolCaller:           tc,
		}
	}
	return wrapped
}

// clientWithMiddleware wraps a Client with middleware.
type clientWithMiddleware struct {
	client     Client
	middleware []Middleware
}

// Chat implements Client.Chat with middleware support.
func (c *clientWithMiddleware) Chat(ctx context.Context, req *Request) (*Response, error) {
	return c.invoke(ctx, req, c.client.Chat)
}

func (c *clientWithMiddleware) invoke(ctx context.Context, req *Request, call func(context.Context, *Request) (*Response, error)) (*Response, error) {
	// Apply BeforeRequest middleware
	for _, mw := range c.middleware {
		var err error
		req, err = mw.BeforeRequest(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	resp, err := call(ctx, req)
	if err != nil {
		// Apply OnError middleware
		for _, mw := range c.middleware {
			err = mw.OnError(ctx, req, err)
			if err == nil {
				break // Middleware handled the error
			}
		}
		return nil, err
	}

	// Apply AfterResponse middleware in reverse registration order
	for i := len(c.middleware) - 1; i >= 0; i-- {
		var err error
		resp, err = c.middleware[i].AfterResponse(ctx, req, resp)
		if err != nil {
			return nil, err
		}
	}

	return resp, nil
}

// toolCallerWithMiddleware adds the ChatWithTools passthrough for wrapped
// clients that support tools.
type toolCallerWithMiddleware struct {
	*clientWithMiddleware
	toolCaller ToolCaller
}

// ChatWithTools implements ToolCaller.ChatWithTools with middleware support.
func (c *toolCallerWithMiddleware) ChatWithTools(ctx context.Context, req *Request) (*Response, error) {
	return c.invoke(ctx, req, c.toolCaller.ChatWithTools)
}

// Ensure wrappers implement their interfaces
var (
	_ Client     = textOnly{}
	_ Client     = (*clientWithMiddleware)(nil)
	_ ToolCaller = (*toolCallerWithMiddleware)(nil)
)
