package providers

import (
	"testing"

	"google.golang.org/genai"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestOpenAIMessages_RolesAndToolTurns(t *testing.T) {
	msgs := openAIMessages([]Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", ToolCalls: []models.ToolCall{{ID: "t1", Name: "search", Input: []byte(`{"q":"x"}`)}}},
		{Role: "tool", ToolResults: []models.ToolResult{{ToolCallID: "t1", Content: `{"hits":1}`}}},
	}, "be helpful")

	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages (system + 3 turns), got %d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "be helpful" {
		t.Fatalf("unexpected system message: %+v", msgs[0])
	}
	if msgs[2].Role != "assistant" || len(msgs[2].ToolCalls) != 1 {
		t.Fatalf("unexpected assistant turn: %+v", msgs[2])
	}
	if msgs[2].ToolCalls[0].Function.Arguments != `{"q":"x"}` {
		t.Fatalf("tool arguments lost: %+v", msgs[2].ToolCalls[0])
	}
	if msgs[3].Role != "tool" || msgs[3].ToolCallID != "t1" {
		t.Fatalf("unexpected tool turn: %+v", msgs[3])
	}
}

func TestOpenAITools_DefaultsEmptySchema(t *testing.T) {
	tools := openAITools([]models.ToolDefinition{
		{Name: "lookup", Description: "looks things up"},
		{Name: "typed", InputSchema: map[string]any{"type": "object", "properties": map[string]any{"q": map[string]any{"type": "string"}}}},
	})
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	if tools[0].Function.Name != "lookup" || tools[0].Function.Parameters == nil {
		t.Fatalf("schema-less tool should get an empty object schema: %+v", tools[0])
	}
}

func TestAnthropicMessages_FoldsToolTurnsIntoUser(t *testing.T) {
	msgs, err := anthropicMessages([]Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", ToolCalls: []models.ToolCall{{ID: "t1", Name: "search", Input: []byte(`{"q":"x"}`)}}},
		{Role: "tool", ToolResults: []models.ToolResult{{ToolCallID: "t1", Content: "ok"}}},
	})
	if err != nil {
		t.Fatalf("anthropicMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[1].Role != "assistant" {
		t.Fatalf("tool-call turn should be an assistant message, got %q", msgs[1].Role)
	}
	if msgs[2].Role != "user" {
		t.Fatalf("tool-result turn should fold into a user message, got %q", msgs[2].Role)
	}
}

func TestAnthropicMessages_RejectsMalformedToolInput(t *testing.T) {
	_, err := anthropicMessages([]Message{
		{Role: "assistant", ToolCalls: []models.ToolCall{{ID: "t1", Name: "search", Input: []byte(`{broken`)}}},
	})
	if err == nil {
		t.Fatal("expected error for malformed tool-call input")
	}
}

func TestAnthropicTools_CarriesDescription(t *testing.T) {
	tools, err := anthropicTools([]models.ToolDefinition{{
		Name:        "search",
		Description: "find things",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{"q": map[string]any{"type": "string"}}},
	}})
	if err != nil {
		t.Fatalf("anthropicTools: %v", err)
	}
	if len(tools) != 1 || tools[0].OfTool == nil {
		t.Fatalf("expected one tool param, got %+v", tools)
	}
	if tools[0].OfTool.Name != "search" {
		t.Fatalf("unexpected tool name %q", tools[0].OfTool.Name)
	}
}

func TestGoogleSchema_RecursesNestedShapes(t *testing.T) {
	schema := googleSchema(map[string]any{
		"type":        "object",
		"description": "query input",
		"properties": map[string]any{
			"q":    map[string]any{"type": "string", "enum": []any{"a", "b"}},
			"tags": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"q"},
	})

	if schema.Type != genai.TypeObject {
		t.Fatalf("expected OBJECT type, got %v", schema.Type)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "q" {
		t.Fatalf("required not carried: %+v", schema.Required)
	}
	q := schema.Properties["q"]
	if q == nil || q.Type != genai.TypeString || len(q.Enum) != 2 {
		t.Fatalf("nested property lost: %+v", q)
	}
	tags := schema.Properties["tags"]
	if tags == nil || tags.Items == nil || tags.Items.Type != genai.TypeString {
		t.Fatalf("array items lost: %+v", tags)
	}
}

func TestBedrockMessages_SkipsEmptyTurns(t *testing.T) {
	msgs := bedrockMessages([]Message{
		{Role: "user", Content: "hi"},
		{Role: "user"}, // nothing to send
		{Role: "assistant", ToolCalls: []models.ToolCall{{ID: "t1", Name: "search", Input: []byte(`{}`)}}},
	})
	if len(msgs) != 2 {
		t.Fatalf("expected empty turn dropped, got %d messages", len(msgs))
	}
}

func TestProviderConstructors_RequireCredentials(t *testing.T) {
	if _, err := NewAnthropic(models.ProviderConfig{}); err == nil {
		t.Fatal("anthropic should require an api key")
	}
	if _, err := NewOpenAI(models.ProviderConfig{}); err == nil {
		t.Fatal("openai should require an api key")
	}
	if _, err := NewAzureOpenAI(models.ProviderConfig{APIKey: "k"}); err == nil {
		t.Fatal("azure should require a base url")
	}
	if _, err := NewOpenRouter(models.ProviderConfig{}); err == nil {
		t.Fatal("openrouter should require an api key")
	}
	if _, err := NewVenice(models.ProviderConfig{}); err == nil {
		t.Fatal("venice should require an api key")
	}

	// Keyless local providers construct unconditionally.
	if p := NewOllama(models.ProviderConfig{}); p.Name() != "ollama" {
		t.Fatalf("unexpected name %q", p.Name())
	}
	if p := NewCopilotProxy(models.ProviderConfig{Models: []string{"gpt-4o"}}); len(p.Models()) != 1 {
		t.Fatalf("copilot catalog not taken from config: %+v", p.Models())
	}
}
