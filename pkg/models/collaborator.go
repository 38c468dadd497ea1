package models

import "encoding/json"

// CollaboratorRequest is what the scheduler/orchestrator sends to a
// model-provider bridge (C13) to advance a task.
type CollaboratorRequest struct {
	SessionID string        `json:"session_id"`
	Agent     string        `json:"agent"`
	Model     string        `json:"model"`
	Parts     []MessagePart `json:"parts"`
	// Tools, when set, exposes these definitions to the model for this
	// completion; the scheduler leaves it empty and the host fills it in
	// when a task is allowed to call tools.
	Tools []ToolDefinition `json:"tools,omitempty"`
}

// ToolCall is a model's request to execute one tool with JSON arguments.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult carries a tool's output back to the model, paired to the
// originating call by ToolCallID.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// CollaboratorUsage reports token accounting for a single completion.
type CollaboratorUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CollaboratorResponse is the reply from a model-provider bridge: zero or
// more text/tool-call parts plus usage and a stop reason.
type CollaboratorResponse struct {
	Parts      []MessagePart      `json:"parts"`
	Usage      CollaboratorUsage  `json:"usage"`
	StopReason string             `json:"stop_reason"`
}

// ProviderName identifies a concrete model-provider bridge implementation.
type ProviderName string

const (
	ProviderAnthropic   ProviderName = "anthropic"
	ProviderOpenAI      ProviderName = "openai"
	ProviderBedrock     ProviderName = "bedrock"
	ProviderGoogle      ProviderName = "google"
	ProviderAzureOpenAI ProviderName = "azure_openai"
	ProviderOllama      ProviderName = "ollama"
	ProviderOpenRouter  ProviderName = "openrouter"
	ProviderCopilot     ProviderName = "copilot_proxy"
	ProviderVenice      ProviderName = "venice"
)

// ProviderConfig resolves a named provider to credentials/endpoint and a
// default model for agents that do not specify one.
type ProviderConfig struct {
	Name         ProviderName `json:"name" yaml:"name"`
	APIKey       string       `json:"api_key,omitempty" yaml:"api_key"`
	Region       string       `json:"region,omitempty" yaml:"region"`
	BaseURL      string       `json:"base_url,omitempty" yaml:"base_url"`
	DefaultModel string       `json:"default_model" yaml:"default_model"`
	// APIVersion is consulted by providers with a versioned REST surface
	// (currently azure_openai).
	APIVersion string `json:"api_version,omitempty" yaml:"api_version"`
	// Models lists the model ids a fixed-catalog provider serves (currently
	// copilot_proxy, which proxies whatever the gateway exposes).
	Models []string `json:"models,omitempty" yaml:"models"`
	// Static AWS credentials for bedrock; left empty, the default AWS
	// credential chain applies.
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key"`
	SessionToken    string `json:"session_token,omitempty" yaml:"session_token"`
}
