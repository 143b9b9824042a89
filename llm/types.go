package llm

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleTool      MessageRole = "tool"
)

// Message represents a single turn in a conversation.
// This is provider-neutral; adapters map it onto each provider's wire shape.
type Message struct {
	Role    MessageRole
	Content string

	// ToolCalls echoes a prior assistant turn that requested tool invocations.
	// Only meaningful when Role is RoleAssistant.
	ToolCalls []ToolCall

	// ToolCallID links a tool result back to the call that produced it.
	// Only meaningful when Role is RoleTool.
	ToolCallID string
}

// ToolSpec represents a tool definition offered to the model. Parameters is
// an opaque JSON-schema object passed through to the provider verbatim.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolChoice controls whether the model may, must not, or must call a tool.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceRequired ToolChoice = "required"
)

// ToolCall represents a single tool invocation requested by the model.
// Arguments is the raw JSON argument object exactly as the provider sent it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Request represents a complete chat request. A Request is treated as
// immutable once submitted: no gateway layer modifies it, and the degraded
// tool-less path operates on a copy (see WithoutTools).
type Request struct {
	Messages    []Message
	System      string
	Tools       []ToolSpec
	ToolChoice  ToolChoice
	MaxTokens   int64
	Temperature *float64 // Optional temperature override
}

// HasTools reports whether the request offers tool definitions.
func (r *Request) HasTools() bool {
	return len(r.Tools) > 0 && r.ToolChoice != ToolChoiceNone
}

// WithoutTools returns a shallow copy of the request with tool definitions
// stripped, for providers that cannot accept them.
func (r *Request) WithoutTools() *Request {
	clone := *r
	clone.Tools = nil
	clone.ToolChoice = ""
	return &clone
}

// Response represents a complete chat response. Content carries the generated
// text; ToolCalls is populated only when the provider answered a tool-enabled
// request with tool invocations.
type Response struct {
	Content    string
	ToolCalls  []ToolCall
	Provider   Provider
	Model      string
	Usage      *Usage
	StopReason string
}

// Usage represents token usage reported by a provider, or estimated locally
// when the provider omits it.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	Estimated    bool // true when counts come from EstimateTokens, not the provider
}

// CallContext carries per-call accounting metadata. It is passed explicitly
// through the call chain and never stored in package-level state; TaskType is
// the only field routing may read.
type CallContext struct {
	CallerName string
	TaskType   string
	CallerID   string
	RequestID  string
}

// EnsureRequestID returns a copy of the context with RequestID populated,
// generating one when the caller supplied none.
func (c CallContext) EnsureRequestID() CallContext {
	if c.RequestID == "" {
		c.RequestID = "req_" + uuid.New().String()[:8]
	}
	return c
}

// UsageRecord captures the accounting outcome of one logical call against one
// provider: success or failure, token counts, and total latency across every
// attempt for that provider.
type UsageRecord struct {
	Provider     Provider
	Model        string
	InputTokens  int64
	OutputTokens int64
	Latency      time.Duration
	Success      bool
	ErrorMessage string
	RequestID    string
	CallerName   string
	CallerID     string
	TaskType     string
	Attempts     int
	CreatedAt    time.Time
}

// NewUserMessage creates a user turn with text content.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewAssistantMessage creates an assistant turn with text content.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// NewToolResultMessage creates a tool-result turn answering a prior tool call.
func NewToolResultMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}
