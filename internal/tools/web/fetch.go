// Package web implements the web worked-example tool: a bounded HTTP
// fetcher the call pipeline can retry safely.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Config controls fetch defaults.
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int
	Client       *http.Client
}

// FetchTool performs a bounded GET against an http(s) URL.
type FetchTool struct {
	client   *http.Client
	maxBytes int
}

// NewFetchTool creates a fetch tool. The default timeout is 30s, the web
// fetch bound the concurrency model assigns to outbound web calls.
func NewFetchTool(cfg Config) *FetchTool {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	return &FetchTool{client: client, maxBytes: maxBytes}
}

func (t *FetchTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        "web_fetch",
		Description: "Fetch an http or https URL with a bounded body size and timeout.",
		Domain:      "web",
		Permission:  models.PermissionRead,
		AllowedRoles: []models.Role{
			models.RoleDeveloper, models.RoleAdmin,
		},
		Idempotent: true,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "Absolute http or https URL to fetch.",
				},
			},
			"required": []any{"url"},
		},
	}
}

func (t *FetchTool) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var input struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	parsed, err := url.Parse(input.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", parsed.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(t.maxBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	truncated := false
	if len(body) > t.maxBytes {
		body = body[:t.maxBytes]
		truncated = true
	}

	return json.Marshal(struct {
		URL         string `json:"url"`
		Status      int    `json:"status"`
		ContentType string `json:"content_type,omitempty"`
		Body        string `json:"body"`
		Truncated   bool   `json:"truncated"`
	}{
		URL:         input.URL,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        string(body),
		Truncated:   truncated,
	})
}
