package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/haasonsaas/nexus/pkg/models"
)

// ListTool lists a directory inside the workspace.
type ListTool struct {
	resolver Resolver
}

// NewListTool creates a list tool scoped to the workspace.
func NewListTool(cfg Config) *ListTool {
	return &ListTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *ListTool) Definition() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        "list",
		Description: "List the entries of a workspace directory.",
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
					"description": "Directory to list, relative to the workspace. Defaults to the workspace root.",
				},
			},
		},
	}
}

type listEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

func (t *ListTool) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var input struct {
		Path string `json:"path"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &input); err != nil {
			return nil, fmt.Errorf("invalid parameters: %w", err)
		}
	}
	if input.Path == "" {
		input.Path = "."
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	entries := make([]listEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		entry := listEntry{Name: de.Name(), IsDir: de.IsDir()}
		if info, err := de.Info(); err == nil {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
	}

	return json.Marshal(struct {
		Path    string      `json:"path"`
		Entries []listEntry `json:"entries"`
	}{Path: input.Path, Entries: entries})
}
