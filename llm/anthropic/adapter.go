package anthropic

import (
	"encoding/json"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/samber/lo"

	"github.com/relayforge/llmrelay/llm"
)

// BuildMessageParams maps the universal request fields onto Anthropic's
// Messages API shape. The caller's request is never modified; when withTools
// is false any tool definitions on the request are left out.
func BuildMessageParams(model string, req *llm.Request, withTools bool) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: req.MaxTokens,
		Messages:  ToMessageParams(req.Messages),
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = defaultMaxTokens
	}

	if req.System != "" {
		params.System = buildSystemBlocks(req.System)
	}

	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	if withTools && len(req.Tools) > 0 {
		params.Tools = ToToolUnionParams(req.Tools)
		params.ToolChoice = ToToolChoice(req.ToolChoice)
	}

	return params
}

// buildSystemBlocks creates system text blocks with prompt caching enabled.
// Placing cache_control on the system block caches the full prefix (tools,
// system, and messages up to the marked block), cutting cost and latency for
// repeated requests with the same tools and system prompt.
func buildSystemBlocks(systemPrompt string) []anthropic.TextBlockParam {
	return []anthropic.TextBlockParam{
		{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
	}
}

// ToMessageParams converts a slice of llm.Messages to Anthropic MessageParams.
func ToMessageParams(msgs []llm.Message) []anthropic.MessageParam {
	return lo.Map(msgs, func(msg llm.Message, _ int) anthropic.MessageParam {
		return ToMessageParam(msg)
	})
}

// ToMessageParam converts a single llm.Message to an Anthropic MessageParam.
// Tool results become user-side tool_result blocks, which is how Anthropic
// round-trips tool output.
func ToMessageParam(msg llm.Message) anthropic.MessageParam {
	switch msg.Role {
	case llm.RoleAssistant:
		blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(msg.ToolCalls))
		if msg.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		}
		for _, tc := range msg.ToolCalls {
			blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(tc.Arguments), tc.Name))
		}
		if len(blocks) == 0 {
			blocks = append(blocks, anthropic.NewTextBlock(""))
		}
		return anthropic.NewAssistantMessage(blocks...)
	case llm.RoleTool:
		return anthropic.NewUserMessage(anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
	default:
		// System prompts ride in MessageNewParams.System; a stray
		// system-role turn degrades to a user turn.
		return anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content))
	}
}

// ToToolUnionParams converts llm.ToolSpecs to Anthropic tool definitions.
// The parameters schema is passed through verbatim as the input schema
// properties.
func ToToolUnionParams(specs []llm.ToolSpec) []anthropic.ToolUnionParam {
	return lo.Map(specs, func(spec llm.ToolSpec, _ int) anthropic.ToolUnionParam {
		return ToToolUnionParam(&spec)
	})
}

// ToToolUnionParam converts a single llm.ToolSpec to an Anthropic tool param.
func ToToolUnionParam(spec *llm.ToolSpec) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{Type: "object"}
	if props, ok := spec.Parameters["properties"]; ok {
		schema.Properties = props
		switch required := spec.Parameters["required"].(type) {
		case []string:
			schema.Required = required
		case []interface{}:
			for _, r := range required {
				if s, ok := r.(string); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}
	} else {
		// Schema given without the standard wrapper; treat the whole
		// object as the property map.
		schema.Properties = spec.Parameters
	}

	return anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
		Name:        spec.Name,
		Description: anthropic.String(spec.Description),
		InputSchema: schema,
	}}
}

// ToToolChoice maps the neutral tool choice policy onto Anthropic's encoding.
// An unset policy defaults to letting the model decide.
func ToToolChoice(choice llm.ToolChoice) anthropic.ToolChoiceUnionParam {
	switch choice {
	case llm.ToolChoiceNone:
		return anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
	case llm.ToolChoiceRequired:
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	default:
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}
}

// FromContentBlocks splits Anthropic response content into generated text and
// tool calls, preserving each call's raw argument JSON.
func FromContentBlocks(blocks []anthropic.ContentBlockUnion) (string, []llm.ToolCall, error) {
	var content string
	var toolCalls []llm.ToolCall

	for _, blockUnion := range blocks {
		switch block := blockUnion.AsAny().(type) {
		case anthropic.TextBlock:
			if content != "" {
				content += "\n"
			}
			content += block.Text
		case anthropic.ToolUseBlock:
			args := "{}"
			if block.Input != nil {
				b, err := json.Marshal(block.Input)
				if err != nil {
					return "", nil, llm.NewDecodeError(llm.ProviderAnthropic, "undecodable tool input", err)
				}
				args = string(b)
			}
			toolCalls = append(toolCalls, llm.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}

	return content, toolCalls, nil
}
