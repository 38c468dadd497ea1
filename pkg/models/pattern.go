package models

import "time"

// ObjectiveType classifies an orchestrator objective into a fixed family the
// pattern store learns success rates for.
type ObjectiveType string

const (
	ObjectiveWidget      ObjectiveType = "widget"
	ObjectiveFlow        ObjectiveType = "flow"
	ObjectiveApp         ObjectiveType = "app"
	ObjectiveIntegration ObjectiveType = "integration"
	ObjectiveGeneric     ObjectiveType = "generic"
)

// Pattern is a learned agent/tool sequence for an objective type, updated by
// an exponential moving average over past run outcomes.
type Pattern struct {
	TaskType      ObjectiveType `json:"task_type"`
	AgentSequence []string      `json:"agent_sequence"`
	ToolSequence  []string      `json:"tool_sequence,omitempty"`
	AvgDuration   time.Duration `json:"avg_duration"`
	SuccessRate   float64       `json:"success_rate"`
	SampleCount   int           `json:"sample_count"`
	LastSeen      time.Time     `json:"last_seen"`
}

// FailurePattern records a classified error kind observed for an objective
// type, so future planning can down-weight sequences prone to it.
type FailurePattern struct {
	TaskType  ObjectiveType `json:"task_type"`
	ErrorKind string        `json:"error_kind"`
	Count     int           `json:"count"`
	LastSeen  time.Time     `json:"last_seen"`
}

// ProjectPatterns is the per-project patterns.json document: one Pattern per
// (task type, agent sequence) key, plus failure counters per (task type,
// error kind).
type ProjectPatterns struct {
	ProjectID string                     `json:"project_id"`
	Patterns  map[string]*Pattern        `json:"patterns"`
	Failures  map[string]*FailurePattern `json:"failures"`
}
