package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/nexus/pkg/models"
)

// OpenAICompatible serves completions from any endpoint speaking the OpenAI
// chat-completions protocol. One implementation covers the whole family:
// OpenAI itself plus Azure, Ollama, OpenRouter, Venice, and a local Copilot
// proxy, which differ only in client configuration and model catalog.
type OpenAICompatible struct {
	client       *openai.Client
	name         string
	defaultModel string
	catalog      []Model
}

// NewOpenAI builds the provider against api.openai.com (or cfg.BaseURL).
func NewOpenAI(cfg models.ProviderConfig) (*OpenAICompatible, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	return &OpenAICompatible{
		client:       openai.NewClientWithConfig(cc),
		name:         "openai",
		defaultModel: orDefault(cfg.DefaultModel, "gpt-4o"),
		catalog: []Model{
			{ID: "gpt-4o", Name: "GPT-4o", ContextWindow: 128000},
			{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextWindow: 128000},
			{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", ContextWindow: 16385},
		},
	}, nil
}

// NewAzureOpenAI targets an Azure OpenAI deployment. cfg.BaseURL is the
// resource endpoint; cfg.APIVersion overrides the SDK's default when the
// deployment pins one.
func NewAzureOpenAI(cfg models.ProviderConfig) (*OpenAICompatible, error) {
	if cfg.APIKey == "" || cfg.BaseURL == "" {
		return nil, errors.New("azure_openai: api key and base url are required")
	}
	cc := openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
	if cfg.APIVersion != "" {
		cc.APIVersion = cfg.APIVersion
	}
	return &OpenAICompatible{
		client:       openai.NewClientWithConfig(cc),
		name:         "azure_openai",
		defaultModel: orDefault(cfg.DefaultModel, "gpt-4o"),
		catalog:      catalogFromIDs(cfg.Models),
	}, nil
}

// NewOllama targets a local Ollama daemon through its OpenAI-compatible
// /v1 surface. No key is needed; the placeholder satisfies the client.
func NewOllama(cfg models.ProviderConfig) *OpenAICompatible {
	base := strings.TrimRight(orDefault(cfg.BaseURL, "http://localhost:11434"), "/")
	cc := openai.DefaultConfig("ollama")
	cc.BaseURL = base + "/v1"
	return &OpenAICompatible{
		client:       openai.NewClientWithConfig(cc),
		name:         "ollama",
		defaultModel: orDefault(cfg.DefaultModel, "llama3.1"),
		catalog:      catalogFromIDs(cfg.Models),
	}
}

// NewOpenRouter targets openrouter.ai's aggregation endpoint.
func NewOpenRouter(cfg models.ProviderConfig) (*OpenAICompatible, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openrouter: api key is required")
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	cc.BaseURL = orDefault(cfg.BaseURL, "https://openrouter.ai/api/v1")
	return &OpenAICompatible{
		client:       openai.NewClientWithConfig(cc),
		name:         "openrouter",
		defaultModel: orDefault(cfg.DefaultModel, "anthropic/claude-3.5-sonnet"),
		catalog:      catalogFromIDs(cfg.Models),
	}, nil
}

// NewVenice targets api.venice.ai, another OpenAI-protocol host.
func NewVenice(cfg models.ProviderConfig) (*OpenAICompatible, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("venice: api key is required")
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	cc.BaseURL = orDefault(cfg.BaseURL, "https://api.venice.ai/api/v1")
	return &OpenAICompatible{
		client:       openai.NewClientWithConfig(cc),
		name:         "venice",
		defaultModel: orDefault(cfg.DefaultModel, "llama-3.3-70b"),
		catalog:      catalogFromIDs(cfg.Models),
	}, nil
}

// NewCopilotProxy targets a local Copilot proxy, which authenticates out of
// band; the catalog is whatever the proxy was configured to expose.
func NewCopilotProxy(cfg models.ProviderConfig) *OpenAICompatible {
	cc := openai.DefaultConfig("n/a")
	cc.BaseURL = orDefault(cfg.BaseURL, "http://localhost:3000/v1")
	return &OpenAICompatible{
		client:       openai.NewClientWithConfig(cc),
		name:         "copilot_proxy",
		defaultModel: orDefault(cfg.DefaultModel, firstOr(cfg.Models, "gpt-4o")),
		catalog:      catalogFromIDs(cfg.Models),
	}
}

func (p *OpenAICompatible) Name() string    { return p.name }
func (p *OpenAICompatible) Models() []Model { return p.catalog }

// Complete opens a streaming chat completion and relays deltas as Chunks.
// Tool-call fragments arrive interleaved across deltas, keyed by index;
// they are assembled here and emitted whole once the stream ends.
func (p *OpenAICompatible) Complete(ctx context.Context, req *Request) (<-chan Chunk, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	chatReq := openai.ChatCompletionRequest{
		Model:         model,
		Messages:      openAIMessages(req.Messages, req.System),
		MaxTokens:     boundedMaxTokens(req.MaxTokens),
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = openAITools(req.Tools)
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()
		p.relayStream(ctx, stream, out)
	}()
	return out, nil
}

func (p *OpenAICompatible) relayStream(ctx context.Context, stream *openai.ChatCompletionStream, out chan<- Chunk) {
	pending := make(map[int]*models.ToolCall)
	args := make(map[int]*strings.Builder)
	var inputTokens, outputTokens int

	flushTools := func() {
		for i := 0; i < len(pending); i++ {
			tc, ok := pending[i]
			if !ok || tc.ID == "" || tc.Name == "" {
				continue
			}
			tc.Input = json.RawMessage(args[i].String())
			out <- Chunk{ToolCall: tc}
		}
	}

	for {
		if ctx.Err() != nil {
			out <- Chunk{Err: ctx.Err()}
			return
		}

		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				flushTools()
				out <- Chunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
				return
			}
			out <- Chunk{Err: fmt.Errorf("%s: %w", p.name, err)}
			return
		}

		if resp.Usage != nil {
			inputTokens = resp.Usage.PromptTokens
			outputTokens = resp.Usage.CompletionTokens
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			out <- Chunk{Text: delta.Content}
		}
		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if pending[index] == nil {
				pending[index] = &models.ToolCall{}
				args[index] = &strings.Builder{}
			}
			if tc.ID != "" {
				pending[index].ID = tc.ID
			}
			if tc.Function.Name != "" {
				pending[index].Name = tc.Function.Name
			}
			args[index].WriteString(tc.Function.Arguments)
		}
	}
}

func openAIMessages(messages []Message, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, msg := range messages {
		switch msg.Role {
		case "assistant":
			m := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Input),
					},
				})
			}
			result = append(result, m)
		case "tool":
			for _, tr := range msg.ToolResults {
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: tr.ToolCallID,
					Content:    tr.Content,
				})
			}
		default:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})
		}
	}
	return result
}

func openAITools(tools []models.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		schema := tool.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schema,
			},
		}
	}
	return result
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func firstOr(values []string, fallback string) string {
	if len(values) > 0 {
		return values[0]
	}
	return fallback
}

func catalogFromIDs(ids []string) []Model {
	catalog := make([]Model, len(ids))
	for i, id := range ids {
		catalog[i] = Model{ID: id, Name: id}
	}
	return catalog
}
