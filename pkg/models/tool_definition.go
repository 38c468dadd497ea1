package models

// Role is a caller's permission role. Default when absent is RoleDeveloper.
type Role string

const (
	RoleStakeholder Role = "stakeholder"
	RoleDeveloper   Role = "developer"
	RoleAdmin       Role = "admin"
)

// Permission is the sensitivity level of a tool operation.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionAdmin Permission = "admin"
)

// ToolDefinition describes a single callable tool: its schema, the domain it
// belongs to, and which roles may invoke it. Unique by Name across a registry.
type ToolDefinition struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"input_schema"`
	Domain       string         `json:"domain"`
	Permission   Permission     `json:"permission"`
	AllowedRoles []Role         `json:"allowed_roles"`

	// Idempotent marks read-only, safe-to-retry operations; the unified tool
	// host only retries calls to tools with Idempotent set.
	Idempotent bool `json:"idempotent,omitempty"`
}

// AllowsRole reports whether role is present in AllowedRoles.
func (t *ToolDefinition) AllowsRole(role Role) bool {
	for _, r := range t.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ToolIndexEntry is the searchable projection of a ToolDefinition kept by the
// tool-search index (C5).
type ToolIndexEntry struct {
	ID          string   `json:"id"`
	Description string   `json:"description"` // truncated to <=200 chars
	Category    string   `json:"category"`    // == domain
	Keywords    []string `json:"keywords"`
	Deferred    bool     `json:"deferred"`
}

// CallerContext identifies the principal making a request to the unified
// tool host.
type CallerContext struct {
	Role      Role   `json:"role"`
	SessionID string `json:"session_id,omitempty"`
	ExpiresAt *int64 `json:"expires_at,omitempty"` // unix seconds, JWT exp
}

// EffectiveRole returns Role, defaulting to RoleDeveloper when unset.
func (c CallerContext) EffectiveRole() Role {
	if c.Role == "" {
		return RoleDeveloper
	}
	return c.Role
}
