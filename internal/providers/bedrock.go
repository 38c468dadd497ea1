package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Bedrock serves completions from AWS Bedrock's Converse API. Credentials
// come from the default AWS chain (environment, shared config, IAM role)
// unless an explicit static pair is supplied.
type Bedrock struct {
	client       *bedrockruntime.Client
	defaultModel string
}

// NewBedrock builds a Bedrock provider for cfg.Region (default us-east-1).
func NewBedrock(cfg models.ProviderConfig) (*Bedrock, error) {
	region := orDefault(cfg.Region, "us-east-1")

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}

	return &Bedrock{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: orDefault(cfg.DefaultModel, "anthropic.claude-3-5-sonnet-20241022-v2:0"),
	}, nil
}

func (p *Bedrock) Name() string { return "bedrock" }

func (p *Bedrock) Models() []Model {
	return []Model{
		{ID: "anthropic.claude-3-5-sonnet-20241022-v2:0", Name: "Claude 3.5 Sonnet (Bedrock)", ContextWindow: 200000},
		{ID: "anthropic.claude-3-haiku-20240307-v1:0", Name: "Claude 3 Haiku (Bedrock)", ContextWindow: 200000},
		{ID: "meta.llama3-1-70b-instruct-v1:0", Name: "Llama 3.1 70B", ContextWindow: 128000},
	}
}

// Complete opens a ConverseStream call and relays its event stream.
func (p *Bedrock) Complete(ctx context.Context, req *Request) (<-chan Chunk, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(model),
		Messages: bedrockMessages(req.Messages),
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	maxTokens := min(boundedMaxTokens(req.MaxTokens), math.MaxInt32)
	input.InferenceConfig = &types.InferenceConfiguration{
		// #nosec G115 -- bounded by min above
		MaxTokens: aws.Int32(int32(maxTokens)),
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = bedrockTools(req.Tools)
	}

	stream, err := p.client.ConverseStream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock: %w", err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		relayBedrockStream(ctx, stream, out)
	}()
	return out, nil
}

func relayBedrockStream(ctx context.Context, stream *bedrockruntime.ConverseStreamOutput, out chan<- Chunk) {
	events := stream.GetStream()
	defer events.Close()

	var pendingTool *models.ToolCall
	var pendingInput strings.Builder
	var inputTokens, outputTokens int

	for {
		select {
		case <-ctx.Done():
			out <- Chunk{Err: ctx.Err()}
			return
		case event, ok := <-events.Events():
			if !ok {
				if pendingTool != nil && pendingTool.ID != "" {
					pendingTool.Input = json.RawMessage(pendingInput.String())
					out <- Chunk{ToolCall: pendingTool}
				}
				if err := events.Err(); err != nil {
					out <- Chunk{Err: fmt.Errorf("bedrock: %w", err)}
					return
				}
				out <- Chunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
				return
			}

			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if use, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					pendingTool = &models.ToolCall{
						ID:   aws.ToString(use.Value.ToolUseId),
						Name: aws.ToString(use.Value.Name),
					}
					pendingInput.Reset()
				}
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := ev.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					if delta.Value != "" {
						out <- Chunk{Text: delta.Value}
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if delta.Value.Input != nil {
						pendingInput.WriteString(*delta.Value.Input)
					}
				}
			case *types.ConverseStreamOutputMemberContentBlockStop:
				if pendingTool != nil {
					pendingTool.Input = json.RawMessage(pendingInput.String())
					out <- Chunk{ToolCall: pendingTool}
					pendingTool = nil
				}
			case *types.ConverseStreamOutputMemberMetadata:
				if ev.Value.Usage != nil {
					inputTokens = int(aws.ToInt32(ev.Value.Usage.InputTokens))
					outputTokens = int(aws.ToInt32(ev.Value.Usage.OutputTokens))
				}
			case *types.ConverseStreamOutputMemberMessageStop:
				out <- Chunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
				return
			}
		}
	}
}

func bedrockMessages(messages []Message) []types.Message {
	result := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		var content []types.ContentBlock
		if msg.Content != "" {
			content = append(content, &types.ContentBlockMemberText{Value: msg.Content})
		}
		for _, tr := range msg.ToolResults {
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(tr.ToolCallID),
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberText{Value: tr.Content},
					},
				},
			})
		}
		for _, tc := range msg.ToolCalls {
			var input any
			if err := json.Unmarshal(tc.Input, &input); err != nil {
				input = map[string]any{}
			}
			content = append(content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(input),
				},
			})
		}
		if len(content) == 0 {
			continue
		}
		role := types.ConversationRoleUser
		if msg.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		result = append(result, types.Message{Role: role, Content: content})
	}
	return result
}

func bedrockTools(tools []models.ToolDefinition) *types.ToolConfiguration {
	specs := make([]types.Tool, len(tools))
	for i, tool := range tools {
		schema := any(tool.InputSchema)
		if tool.InputSchema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		specs[i] = &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(tool.Name),
				Description: aws.String(tool.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		}
	}
	return &types.ToolConfiguration{Tools: specs}
}
