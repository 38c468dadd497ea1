// Package files implements the filesystem worked-example tools registered
// into the tool registry at startup: a workspace-scoped reader, writer,
// and directory lister.
package files

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Config controls filesystem tool defaults.
type Config struct {
	Workspace    string
	MaxReadBytes int
}

// ReadTool reads a file inside the workspace with safety limits.
type ReadTool struct {
	resolver Resolver
	maxRead  int
}

// NewReadTool creates a read tool scoped to the workspace.
func NewReadTool(cfg Config) *ReadTool {
	limit := cfg.MaxReadBytes
	if limit <= 0 {
		limit = 200000
	}
	return &ReadTool{resolver: Resolver{Root: cfg.Workspace}, maxRead: limit}
}

func (t *ReadTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        "read",
		Description: "Read a file from the workspace with optional offset and byte limit.",
		Domain:      "files",
		Permission:  models.PermissionRead,
		AllowedRoles: []models.Role{
			models.RoleStakeholder, models.RoleDeveloper, models.RoleAdmin,
		},
		Idempotent: true,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file, relative to the workspace.",
				},
				"offset": map[string]any{
					"type":        "integer",
					"description": "Byte offset to start reading from.",
					"minimum":     0,
				},
				"max_bytes": map[string]any{
					"type":        "integer",
					"description": "Maximum bytes to read, capped by the tool default.",
					"minimum":     0,
				},
			},
			"required": []any{"path"},
		},
	}
}

func (t *ReadTool) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var input struct {
		Path     string `json:"path"`
		Offset   int64  `json:"offset"`
		MaxBytes int    `json:"max_bytes"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if input.Offset < 0 {
		return nil, fmt.Errorf("offset must be >= 0")
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if input.Offset > 0 {
		if _, err := file.Seek(input.Offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek file: %w", err)
		}
	}

	limit := t.maxRead
	if input.MaxBytes > 0 && input.MaxBytes < limit {
		limit = input.MaxBytes
	}

	buf, err := io.ReadAll(io.LimitReader(file, int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return json.Marshal(struct {
		Path      string `json:"path"`
		Content   string `json:"content"`
		Size      int64  `json:"size"`
		Truncated bool   `json:"truncated"`
	}{
		Path:      input.Path,
		Content:   string(buf),
		Size:      info.Size(),
		Truncated: input.Offset+int64(len(buf)) < info.Size(),
	})
}
