package providers

import (
	"context"

	"github.com/haasonsaas/nexus/pkg/models"
)

// LLMProvider is the narrow surface the runtime needs from a hosted model
// service: a name, a model catalog, and one streaming completion call. The
// concrete implementations in this package each wrap one vendor SDK; nothing
// outside this package touches a vendor client directly.
type LLMProvider interface {
	Name() string
	Models() []Model
	Complete(ctx context.Context, req *Request) (<-chan Chunk, error)
}

// Model is one entry in a provider's catalog.
type Model struct {
	ID            string
	Name          string
	ContextWindow int
}

// Request is a single completion call: a model id (empty selects the
// provider's default), an optional system prompt, a bounded output budget,
// the conversation so far, and the tool definitions the model may call.
type Request struct {
	Model     string
	System    string
	MaxTokens int
	Messages  []Message
	Tools     []models.ToolDefinition
}

// Message is one turn of the conversation in provider-neutral form. Role is
// "user", "assistant", or "tool"; assistant turns may carry tool calls, tool
// turns carry the results being fed back.
type Message struct {
	Role        string
	Content     string
	ToolCalls   []models.ToolCall
	ToolResults []models.ToolResult
}

// Chunk is one increment of a streaming completion. Exactly one of Text,
// ToolCall, Done, or Err is meaningful per chunk; token counts ride on the
// Done chunk when the vendor reports them.
type Chunk struct {
	Text         string
	ToolCall     *models.ToolCall
	Done         bool
	InputTokens  int
	OutputTokens int
	Err          error
}

const defaultCompletionTokens = 4096

func boundedMaxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	return defaultCompletionTokens
}
