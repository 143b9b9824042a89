package anthropic

import (
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/relayforge/llmrelay/llm"
)

func TestBuildMessageParams(t *testing.T) {
	temp := 0.3
	req := &llm.Request{
		System:      "You are terse",
		Messages:    []llm.Message{llm.NewUserMessage("hello")},
		MaxTokens:   1024,
		Temperature: &temp,
	}

	params := BuildMessageParams("claude-haiku-4-5", req, false)
	if params.Model != "claude-haiku-4-5" {
		t.Errorf("Expected model claude-haiku-4-5, got %s", params.Model)
	}
	if params.MaxTokens != 1024 {
		t.Errorf("Expected max tokens 1024, got %d", params.MaxTokens)
	}
	if len(params.System) != 1 {
		t.Fatalf("Expected 1 system block, got %d", len(params.System))
	}
	if params.System[0].Text != "You are terse" {
		t.Errorf("Expected system prompt preserved, got %q", params.System[0].Text)
	}
	if params.Temperature.Value != 0.3 {
		t.Errorf("Expected temperature 0.3, got %f", params.Temperature.Value)
	}
	if len(params.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(params.Messages))
	}
}

func TestBuildMessageParamsMaxTokensDefault(t *testing.T) {
	req := &llm.Request{Messages: []llm.Message{llm.NewUserMessage("hello")}}
	params := BuildMessageParams("claude-haiku-4-5", req, false)
	if params.MaxTokens != defaultMaxTokens {
		t.Errorf("Expected default max tokens %d, got %d", defaultMaxTokens, params.MaxTokens)
	}
	if len(params.System) != 0 {
		t.Errorf("Expected no system blocks, got %d", len(params.System))
	}
}

func TestBuildMessageParamsToolGating(t *testing.T) {
	req := &llm.Request{
		Messages: []llm.Message{llm.NewUserMessage("weather?")},
		Tools: []llm.ToolSpec{
			{Name: "get_weather", Description: "Current weather", Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"city": map[string]interface{}{"type": "string"},
				},
				"required": []string{"city"},
			}},
		},
	}

	withTools := BuildMessageParams("claude-haiku-4-5", req, true)
	if len(withTools.Tools) != 1 {
		t.Fatalf("Expected 1 tool, got %d", len(withTools.Tools))
	}
	if withTools.Tools[0].OfTool == nil {
		t.Fatal("Expected a plain tool param")
	}
	if withTools.Tools[0].OfTool.Name != "get_weather" {
		t.Errorf("Expected tool name get_weather, got %s", withTools.Tools[0].OfTool.Name)
	}

	withoutTools := BuildMessageParams("claude-haiku-4-5", req, false)
	if len(withoutTools.Tools) != 0 {
		t.Errorf("Expected no tools on degraded request, got %d", len(withoutTools.Tools))
	}
}

func TestSystemBlockCaching(t *testing.T) {
	blocks := buildSystemBlocks("You are terse")
	if len(blocks) != 1 {
		t.Fatalf("Expected 1 block, got %d", len(blocks))
	}
	if blocks[0].CacheControl.Type != "ephemeral" {
		t.Errorf("Expected ephemeral cache control, got %q", blocks[0].CacheControl.Type)
	}
}

func TestToMessageParamAssistantToolCalls(t *testing.T) {
	msg := llm.Message{
		Role:    llm.RoleAssistant,
		Content: "checking",
		ToolCalls: []llm.ToolCall{
			{ID: "toolu_1", Name: "get_weather", Arguments: `{"city":"Berlin"}`},
		},
	}

	param := ToMessageParam(msg)
	if param.Role != anthropic.MessageParamRoleAssistant {
		t.Errorf("Expected assistant role, got %s", param.Role)
	}
	if len(param.Content) != 2 {
		t.Fatalf("Expected text + tool_use blocks, got %d", len(param.Content))
	}
	if param.Content[0].OfText == nil || param.Content[0].OfText.Text != "checking" {
		t.Error("Expected leading text block with content")
	}
	if param.Content[1].OfToolUse == nil {
		t.Fatal("Expected tool_use block")
	}
	if param.Content[1].OfToolUse.ID != "toolu_1" {
		t.Errorf("Expected tool use ID toolu_1, got %s", param.Content[1].OfToolUse.ID)
	}
}

func TestToMessageParamToolResult(t *testing.T) {
	msg := llm.NewToolResultMessage("toolu_1", "12 degrees")
	param := ToMessageParam(msg)
	if param.Role != anthropic.MessageParamRoleUser {
		t.Errorf("Expected tool results to ride on a user turn, got %s", param.Role)
	}
	if len(param.Content) != 1 || param.Content[0].OfToolResult == nil {
		t.Fatal("Expected a single tool_result block")
	}
	if param.Content[0].OfToolResult.ToolUseID != "toolu_1" {
		t.Errorf("Expected tool use ID toolu_1, got %s", param.Content[0].OfToolResult.ToolUseID)
	}
}

func TestToToolUnionParamSchemaUnwrap(t *testing.T) {
	spec := &llm.ToolSpec{
		Name: "get_weather",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"city": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"city"},
		},
	}

	param := ToToolUnionParam(spec)
	if param.OfTool == nil {
		t.Fatal("Expected a plain tool param")
	}
	props, ok := param.OfTool.InputSchema.Properties.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected properties map, got %T", param.OfTool.InputSchema.Properties)
	}
	if _, ok := props["city"]; !ok {
		t.Error("Expected city property to be unwrapped")
	}
	if len(param.OfTool.InputSchema.Required) != 1 || param.OfTool.InputSchema.Required[0] != "city" {
		t.Errorf("Expected required [city], got %v", param.OfTool.InputSchema.Required)
	}
}

func TestToToolUnionParamBareSchema(t *testing.T) {
	spec := &llm.ToolSpec{
		Name: "echo",
		Parameters: map[string]interface{}{
			"value": map[string]interface{}{"type": "string"},
		},
	}

	param := ToToolUnionParam(spec)
	props, ok := param.OfTool.InputSchema.Properties.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected properties map, got %T", param.OfTool.InputSchema.Properties)
	}
	if _, ok := props["value"]; !ok {
		t.Error("Expected bare schema treated as the property map")
	}
}

func TestToToolChoice(t *testing.T) {
	if ToToolChoice(llm.ToolChoiceNone).OfNone == nil {
		t.Error("Expected none choice")
	}
	if ToToolChoice(llm.ToolChoiceRequired).OfAny == nil {
		t.Error("Expected required to map to any")
	}
	if ToToolChoice(llm.ToolChoiceAuto).OfAuto == nil {
		t.Error("Expected auto choice")
	}
	if ToToolChoice("").OfAuto == nil {
		t.Error("Expected unset choice to default to auto")
	}
}
