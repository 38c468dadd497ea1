package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/haasonsaas/nexus/pkg/models"
)

var unsafeNameChar = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func sanitizeName(name string) string {
	return strings.Trim(unsafeNameChar.ReplaceAllString(name, "_"), "_")
}

// NamespacedName returns the host-facing dispatch name for a server's
// tool, matching the aggregation in Manager.Tools.
func NamespacedName(server, tool string) string {
	return sanitizeName(server) + "_" + sanitizeName(tool)
}

// Client wraps one server's Transport with a cached tool list verified at
// connect time.
type Client struct {
	config    models.ServerConfig
	transport Transport
	logger    *slog.Logger

	mu    sync.RWMutex
	tools []ToolDescriptor
}

// NewClient creates a client for cfg.
func NewClient(cfg models.ServerConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config:    cfg,
		transport: NewTransport(cfg),
		logger:    logger.With("tool_server", cfg.Name),
	}
}

// Connect establishes the transport and verifies the server by requesting
// its tool list within the configured timeout.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("fleet: transport connect: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, c.config.Timeout())
	defer cancel()

	result, err := c.transport.Call(verifyCtx, "tools/list", nil)
	if err != nil {
		c.transport.Close()
		return fmt.Errorf("fleet: verify tools/list: %w", err)
	}

	var listed struct {
		Tools []ToolDescriptor `json:"tools"`
	}
	if err := json.Unmarshal(result, &listed); err != nil {
		c.transport.Close()
		return fmt.Errorf("fleet: parse tools/list: %w", err)
	}

	c.mu.Lock()
	c.tools = listed.Tools
	c.mu.Unlock()

	c.logger.Info("tool server verified", "tools", len(listed.Tools))
	return nil
}

// Close tears down the transport.
func (c *Client) Close() error { return c.transport.Close() }

// Connected reports the underlying transport's liveness.
func (c *Client) Connected() bool { return c.transport.Connected() }

// Tools returns the cached tool list from the last successful connect.
func (c *Client) Tools() []ToolDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ToolDescriptor, len(c.tools))
	copy(out, c.tools)
	return out
}

// PromptDescriptor is one server-owned prompt template.
type PromptDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListPrompts returns the server's prompt templates.
func (c *Client) ListPrompts(ctx context.Context) ([]PromptDescriptor, error) {
	result, err := c.transport.Call(ctx, "prompts/list", nil)
	if err != nil {
		return nil, err
	}
	var listed struct {
		Prompts []PromptDescriptor `json:"prompts"`
	}
	if err := json.Unmarshal(result, &listed); err != nil {
		return nil, fmt.Errorf("fleet: parse prompts/list result: %w", err)
	}
	return listed.Prompts, nil
}

// GetPrompt fetches one named prompt template's rendered content.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]any) (json.RawMessage, error) {
	return c.transport.Call(ctx, "prompts/get", map[string]any{
		"name":      name,
		"arguments": arguments,
	})
}

// CallTool invokes toolName on the server.
func (c *Client) CallTool(ctx context.Context, toolName string, arguments map[string]any) (*ToolCallResult, error) {
	result, err := c.transport.Call(ctx, "tools/call", map[string]any{
		"name":      toolName,
		"arguments": arguments,
	})
	if err != nil {
		return nil, err
	}
	var callResult ToolCallResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		return nil, fmt.Errorf("fleet: parse tools/call result: %w", err)
	}
	return &callResult, nil
}
