// Package providers hosts the model-provider implementations (Anthropic,
// the OpenAI-protocol family, Bedrock, Gemini) behind one LLMProvider
// contract, adapts them to the single-method Collaborator shape the DAG
// scheduler (C8) and orchestrator (C10) prompt against, and routes between
// them by configured provider name.
package providers

import (
	"context"
	"fmt"

	"github.com/haasonsaas/nexus/internal/errs"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Bridge adapts one LLMProvider into the Collaborator interface by draining
// its streaming response into a single aggregated CollaboratorResponse —
// the provider's streaming shape stays intact for any caller that wants it
// directly; only this adapter forces it to a single round trip.
type Bridge struct {
	provider LLMProvider
}

// NewBridge wraps provider as a Collaborator.
func NewBridge(provider LLMProvider) *Bridge {
	return &Bridge{provider: provider}
}

// Complete implements dag.Collaborator (and, identically, orchestrator's
// collaborator dependency) by translating req's parts into a Request,
// draining the provider's Chunk stream, and re-assembling the result into
// the Part union CollaboratorResponse uses.
func (b *Bridge) Complete(ctx context.Context, req models.CollaboratorRequest) (models.CollaboratorResponse, error) {
	chunks, err := b.provider.Complete(ctx, &Request{
		Model:    req.Model,
		Messages: toProviderMessages(req.Parts),
		Tools:    req.Tools,
	})
	if err != nil {
		return models.CollaboratorResponse{}, errs.Wrap(errs.Remote, err, fmt.Sprintf("%s: completion request failed", b.provider.Name()))
	}

	var text string
	var parts []models.MessagePart
	var usage models.CollaboratorUsage
	stopReason := "stop"

	for chunk := range chunks {
		if chunk.Err != nil {
			return models.CollaboratorResponse{}, errs.Wrap(errs.Remote, chunk.Err, fmt.Sprintf("%s: stream error", b.provider.Name()))
		}
		if chunk.Text != "" {
			text += chunk.Text
		}
		if chunk.ToolCall != nil {
			parts = append(parts, models.MessagePart{
				Type:       "tool_call",
				ToolCallID: chunk.ToolCall.ID,
				ToolName:   chunk.ToolCall.Name,
				ArgsJSON:   string(chunk.ToolCall.Input),
			})
			stopReason = "tool_use"
		}
		if chunk.Done {
			usage.InputTokens = chunk.InputTokens
			usage.OutputTokens = chunk.OutputTokens
		}
	}

	if text != "" {
		parts = append([]models.MessagePart{models.TextPart(text)}, parts...)
	}

	return models.CollaboratorResponse{Parts: parts, Usage: usage, StopReason: stopReason}, nil
}

// toProviderMessages converts the scheduler's flat Part list into the
// provider's message history: a text part becomes a user turn, a tool_call
// part an assistant turn requesting that tool, and a tool_result part a
// tool turn carrying its output back to the model.
func toProviderMessages(parts []models.MessagePart) []Message {
	var messages []Message
	for _, p := range parts {
		switch p.Type {
		case "text":
			messages = append(messages, Message{Role: "user", Content: p.Text})
		case "tool_call":
			messages = append(messages, Message{
				Role: "assistant",
				ToolCalls: []models.ToolCall{{
					ID:    p.ToolCallID,
					Name:  p.ToolName,
					Input: []byte(p.ArgsJSON),
				}},
			})
		case "tool_result":
			messages = append(messages, Message{
				Role: "tool",
				ToolResults: []models.ToolResult{{
					ToolCallID: p.ToolCallID,
					Content:    p.ResultJSON,
					IsError:    p.IsError,
				}},
			})
		}
	}
	return messages
}
