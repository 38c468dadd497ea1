package models

import (
	"time"
)

// Task is a single unit of work in a Plan, dispatched to a named agent with a
// prompt and an optional set of upstream dependencies.
type Task struct {
	ID           string   `json:"id"`
	AgentName    string   `json:"agent_name"`
	Prompt       string   `json:"prompt"`
	Description  string   `json:"description,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Plan is the result of stratifying a task set into dependency-respecting
// levels. Levels[i] holds task ids that may run concurrently once every level
// before it has completed.
type Plan struct {
	ID          string             `json:"id"`
	Tasks       map[string]*Task   `json:"tasks"`
	Levels      [][]string         `json:"levels"`
	RootTaskIDs []string           `json:"root_task_ids"`
}

// MessagePart is a tagged union of the content produced while executing a
// task: free text, an outbound tool call, or an inbound tool result.
type MessagePart struct {
	Type       string          `json:"type"` // "text" | "tool_call" | "tool_result"
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ArgsJSON   string          `json:"args_json,omitempty"`
	ResultJSON string          `json:"result_json,omitempty"`
	IsError    bool            `json:"is_error,omitempty"`
}

// TextPart builds a plain-text MessagePart, the shape the scheduler uses to
// prompt a collaborator with a task's prompt.
func TextPart(text string) MessagePart {
	return MessagePart{Type: "text", Text: text}
}

// TaskResult captures the outcome of executing a single task.
type TaskResult struct {
	TaskID    string        `json:"task_id"`
	Success   bool          `json:"success"`
	Output    string        `json:"output"`
	Artifacts []string      `json:"artifacts,omitempty"`
	Parts     []MessagePart `json:"parts,omitempty"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// PlanResult is the aggregate outcome of executing every task in a Plan.
type PlanResult struct {
	PlanID              string                 `json:"plan_id"`
	Success             bool                   `json:"success"`
	TasksCompleted      int                    `json:"tasks_completed"`
	TasksFailed         int                    `json:"tasks_failed"`
	TasksSkipped        int                    `json:"tasks_skipped"`
	Results             map[string]*TaskResult `json:"results"`
	TotalDuration        time.Duration          `json:"total_duration"`
	ParallelizationGain  float64                `json:"parallelization_gain"`
}
