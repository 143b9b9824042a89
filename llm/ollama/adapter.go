package ollama

import (
	"encoding/json"
	"fmt"

	"github.com/ollama/ollama/api"

	"github.com/relayforge/llmrelay/llm"
)

// BuildChatRequest maps the universal request fields onto Ollama's chat
// shape. Sampling parameters travel in the Options map; the system prompt
// becomes a leading system-role message. The caller's request is never
// modified.
func BuildChatRequest(model string, req *llm.Request, withTools bool) *api.ChatRequest {
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: ToMessages(req.Messages),
		Stream:   new(bool), // non-streaming
		Options:  make(map[string]interface{}),
	}

	if req.System != "" {
		systemMsg := api.Message{Role: "system", Content: req.System}
		chatReq.Messages = append([]api.Message{systemMsg}, chatReq.Messages...)
	}

	if withTools && len(req.Tools) > 0 {
		chatReq.Tools = ToTools(req.Tools)
	}

	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = int(req.MaxTokens)
	}

	if req.Temperature != nil {
		chatReq.Options["temperature"] = *req.Temperature
	}

	return chatReq
}

// ToMessages converts llm.Messages to Ollama chat message format. Ollama's
// role strings match the neutral ones, including the tool role for results.
func ToMessages(msgs []llm.Message) []api.Message {
	result := make([]api.Message, 0, len(msgs))
	for _, msg := range msgs {
		out := api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		for _, tc := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, api.ToolCall{
				Function: api.ToolCallFunction{
					Name:      tc.Name,
					Arguments: parseArguments(tc.Arguments),
				},
			})
		}
		result = append(result, out)
	}
	return result
}

// parseArguments decodes a raw JSON argument object into the map shape
// Ollama expects, falling back to an empty map on malformed input.
func parseArguments(raw string) api.ToolCallFunctionArguments {
	args := make(api.ToolCallFunctionArguments)
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return make(api.ToolCallFunctionArguments)
	}
	return args
}

// ToTools converts llm.ToolSpecs to Ollama's function format. Ollama wants a
// typed parameter schema, so the opaque JSON-schema map is lowered into it;
// unknown property shapes default to string.
func ToTools(specs []llm.ToolSpec) []api.Tool {
	result := make([]api.Tool, 0, len(specs))
	for i := range specs {
		result = append(result, ToTool(&specs[i]))
	}
	return result
}

// ToTool converts a single llm.ToolSpec to Ollama Tool format.
func ToTool(spec *llm.ToolSpec) api.Tool {
	parameters := api.ToolFunctionParameters{
		Type:       "object",
		Properties: make(map[string]api.ToolProperty),
	}

	if t, ok := spec.Parameters["type"].(string); ok && t != "" {
		parameters.Type = t
	}

	if props, ok := spec.Parameters["properties"].(map[string]interface{}); ok {
		for name, v := range props {
			prop := api.ToolProperty{Type: []string{"string"}}
			if propMap, ok := v.(map[string]interface{}); ok {
				if propType, ok := propMap["type"].(string); ok {
					prop.Type = []string{propType}
				}
				if desc, ok := propMap["description"].(string); ok {
					prop.Description = desc
				}
			}
			parameters.Properties[name] = prop
		}
	}

	switch required := spec.Parameters["required"].(type) {
	case []string:
		parameters.Required = required
	case []interface{}:
		for _, r := range required {
			if s, ok := r.(string); ok {
				parameters.Required = append(parameters.Required, s)
			}
		}
	}

	return api.Tool{
		Type: "function",
		Function: api.ToolFunction{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  parameters,
		},
	}
}

// FromToolCalls converts Ollama tool call responses to llm.ToolCalls. Ollama
// does not assign call IDs, so deterministic ones are generated from the
// function name and position.
func FromToolCalls(toolCalls []api.ToolCall) []llm.ToolCall {
	if len(toolCalls) == 0 {
		return nil
	}
	result := make([]llm.ToolCall, 0, len(toolCalls))
	for i, tc := range toolCalls {
		args := "{}"
		if tc.Function.Arguments != nil {
			if b, err := json.Marshal(tc.Function.Arguments); err == nil {
				args = string(b)
			}
		}
		result = append(result, llm.ToolCall{
			ID:        fmt.Sprintf("call_%s_%d", tc.Function.Name, i),
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return result
}
