package openai

import (
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/relayforge/llmrelay/llm"
)

// BuildChatRequest maps the universal request fields onto the OpenAI chat
// completion shape. The caller's request is never modified. When withTools is
// false any tool definitions on the request are left out, which is how the
// degraded tool-less path is produced.
func BuildChatRequest(model string, req *llm.Request, withTools bool) (openai.ChatCompletionRequest, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: ToMessages(req.Messages),
	}

	// OpenAI takes the system prompt as a leading system-role message.
	if req.System != "" {
		systemMsg := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		}
		chatReq.Messages = append([]openai.ChatCompletionMessage{systemMsg}, chatReq.Messages...)
	}

	if withTools && len(req.Tools) > 0 {
		chatReq.Tools = ToTools(req.Tools)
		chatReq.ToolChoice = ToToolChoice(req.ToolChoice)
	}

	if req.MaxTokens > 0 {
		chatReq.MaxTokens = int(req.MaxTokens)
	}

	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
		if chatReq.Temperature == 0 {
			// The SDK drops a zero temperature on marshal (omitempty);
			// nudge it to the smallest representable value so an explicit
			// 0 still reaches the wire.
			chatReq.Temperature = math.SmallestNonzeroFloat32
		}
	}

	return chatReq, nil
}

// ToMessages converts llm.Messages to OpenAI chat message format.
func ToMessages(msgs []llm.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, ToMessage(msg))
	}
	return result
}

// ToMessage converts a single llm.Message to OpenAI format.
func ToMessage(msg llm.Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{Content: msg.Content}

	switch msg.Role {
	case llm.RoleAssistant:
		out.Role = openai.ChatMessageRoleAssistant
		for _, tc := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
	case llm.RoleSystem:
		out.Role = openai.ChatMessageRoleSystem
	case llm.RoleTool:
		out.Role = openai.ChatMessageRoleTool
		out.ToolCallID = msg.ToolCallID
	default:
		out.Role = openai.ChatMessageRoleUser
	}

	return out
}

// ToTools converts llm.ToolSpecs to the OpenAI function format. The
// parameters schema is passed through verbatim.
func ToTools(specs []llm.ToolSpec) []openai.Tool {
	result := make([]openai.Tool, 0, len(specs))
	for i := range specs {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        specs[i].Name,
				Description: specs[i].Description,
				Parameters:  specs[i].Parameters,
			},
		})
	}
	return result
}

// ToToolChoice maps the neutral tool choice policy onto OpenAI's encoding.
// An unset policy defaults to letting the model decide.
func ToToolChoice(choice llm.ToolChoice) any {
	switch choice {
	case llm.ToolChoiceNone:
		return "none"
	case llm.ToolChoiceRequired:
		return "required"
	default:
		return "auto"
	}
}

// FromToolCalls converts OpenAI tool call responses to llm.ToolCalls,
// preserving the raw argument JSON exactly as the provider sent it.
func FromToolCalls(toolCalls []openai.ToolCall) []llm.ToolCall {
	if len(toolCalls) == 0 {
		return nil
	}
	result := make([]llm.ToolCall, 0, len(toolCalls))
	for _, tc := range toolCalls {
		args := tc.Function.Arguments
		if args == "" {
			args = "{}"
		}
		result = append(result, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return result
}
