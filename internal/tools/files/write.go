package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/haasonsaas/nexus/pkg/models"
)

// WriteTool writes a file inside the workspace, creating parent
// directories as needed.
type WriteTool struct {
	resolver Resolver
}

// NewWriteTool creates a write tool scoped to the workspace.
func NewWriteTool(cfg Config) *WriteTool {
	return &WriteTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *WriteTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        "write",
		Description: "Write content to a file in the workspace, creating parent directories.",
		Domain:      "files",
		Permission:  models.PermissionWrite,
		AllowedRoles: []models.Role{
			models.RoleDeveloper, models.RoleAdmin,
		},
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file, relative to the workspace.",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Content to write.",
				},
				"append": map[string]any{
					"type":        "boolean",
					"description": "Append instead of overwriting.",
				},
			},
			"required": []any{"path", "content"},
		},
	}
}

func (t *WriteTool) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
		Append  bool   `json:"append"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if input.Append {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	file, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	n, err := file.WriteString(input.Content)
	if err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	return json.Marshal(struct {
		Path         string `json:"path"`
		BytesWritten int    `json:"bytes_written"`
		Appended     bool   `json:"appended"`
	}{Path: input.Path, BytesWritten: n, Appended: input.Append})
}
