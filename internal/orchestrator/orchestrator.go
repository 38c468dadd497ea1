// Package orchestrator implements C10: it resolves an objective against
// session memory and past patterns, classifies it, builds and executes a
// DAG, and folds the outcome back into memory as a learned pattern or a
// recorded failure.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/bus"
	"github.com/haasonsaas/nexus/internal/dag"
	"github.com/haasonsaas/nexus/internal/errs"
	"github.com/haasonsaas/nexus/internal/memory"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Event types published on the Bus for each objective-execution milestone.
const (
	EventObjectiveStarted    = "objective.started"
	EventObjectiveClassified = "objective.classified"
	EventPlanBuilt           = "plan.built"
	EventObjectiveComplete   = "objective.complete"
	EventObjectiveFailed     = "objective.failed"
)

// ObjectiveEvent is the payload published for every Event* above. Result is
// only populated on EventObjectiveComplete/EventObjectiveFailed.
type ObjectiveEvent struct {
	SessionID      string
	ProjectID      string
	ObjectiveText  string
	Classification Classification
	PlanID         string
	Result         *models.PlanResult
	Timestamp      time.Time
}

// Orchestrator binds an objective to a plan and its execution, consulting
// and updating the memory store's project patterns at each run.
type Orchestrator struct {
	store        *memory.Store
	bus          *bus.Bus
	collaborator dag.Collaborator

	baseAgent   string
	baseModel   string
	skipOnError bool
}

// New creates an Orchestrator. collaborator is the model-provider bridge
// (C13) used both to build the task DAG's prompts and, indirectly, by the
// scheduler it invokes.
func New(store *memory.Store, b *bus.Bus, collaborator dag.Collaborator, baseAgent, baseModel string) *Orchestrator {
	return &Orchestrator{
		store:        store,
		bus:          b,
		collaborator: collaborator,
		baseAgent:    baseAgent,
		baseModel:    baseModel,
		skipOnError:  true,
	}
}

// Result is the outcome of ExecuteObjective: the classification, the built
// plan, and its execution result.
type Result struct {
	Classification Classification
	Plan           *models.Plan
	PlanResult     *models.PlanResult
}

// ExecuteObjective runs the full C10 algorithm: resolve context, classify,
// build and execute a DAG, learn from the outcome, and update session
// memory at each milestone.
func (o *Orchestrator) ExecuteObjective(ctx context.Context, sessionID, objective string, onProgress dag.OnProgress) (*Result, error) {
	mem, err := o.store.Read(sessionID)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, err, fmt.Sprintf("session %s not found", sessionID))
	}

	planID := uuid.NewString()
	o.publish(EventObjectiveStarted, ObjectiveEvent{
		SessionID: sessionID, ProjectID: mem.ProjectID, ObjectiveText: objective,
		PlanID: planID,
	})

	patterns, err := o.store.ReadPatterns(mem.ProjectID)
	if err != nil {
		return nil, err
	}

	classification := ClassifyObjective(objective)
	if seq := bestKnownSequence(patterns, classification.TaskType); seq != nil {
		classification.AgentSequence = seq
	}

	o.publish(EventObjectiveClassified, ObjectiveEvent{
		SessionID: sessionID, ProjectID: mem.ProjectID, ObjectiveText: objective,
		Classification: classification, PlanID: planID,
	})

	plan, err := BuildDAG(planID, objective, classification)
	if err != nil {
		return nil, err
	}

	o.publish(EventPlanBuilt, ObjectiveEvent{
		SessionID: sessionID, ProjectID: mem.ProjectID, ObjectiveText: objective,
		Classification: classification, PlanID: planID,
	})

	execCtx := dag.ExecContext{
		SessionID:   sessionID,
		BaseAgent:   o.baseAgent,
		BaseModel:   o.baseModel,
		SkipOnError: o.skipOnError,
	}
	planResult, err := dag.Execute(ctx, plan, o.collaborator, execCtx, onProgress)
	if err != nil {
		return nil, err
	}

	o.learn(mem.ProjectID, classification, plan, planResult)
	o.updateSessionMemory(sessionID, objective, plan, planResult)

	event := EventObjectiveComplete
	if !planResult.Success {
		event = EventObjectiveFailed
	}
	o.publish(event, ObjectiveEvent{
		SessionID: sessionID, ProjectID: mem.ProjectID, ObjectiveText: objective,
		Classification: classification, PlanID: planID, Result: planResult,
	})

	return &Result{Classification: classification, Plan: plan, PlanResult: planResult}, nil
}

// bestKnownSequence returns the highest success-rate agent sequence
// recorded for taskType, or nil if no pattern has been learned yet.
func bestKnownSequence(patterns *models.ProjectPatterns, taskType models.ObjectiveType) []string {
	var best *models.Pattern
	for _, p := range patterns.Patterns {
		if p.TaskType != taskType {
			continue
		}
		if best == nil || p.SuccessRate > best.SuccessRate {
			best = p
		}
	}
	if best == nil || best.SampleCount == 0 {
		return nil
	}
	return best.AgentSequence
}

// learn persists the run's outcome as a pattern update on success, or a
// classified failure record on failure.
func (o *Orchestrator) learn(projectID string, c Classification, plan *models.Plan, result *models.PlanResult) {
	toolSequence := collectToolSequence(result)
	if result.Success {
		_ = o.store.UpsertPattern(projectID, c.TaskType, c.AgentSequence, toolSequence, result.TotalDuration, true)
		return
	}

	_ = o.store.UpsertPattern(projectID, c.TaskType, c.AgentSequence, toolSequence, result.TotalDuration, false)
	for _, tr := range result.Results {
		if tr.Success || tr.Error == "" {
			continue
		}
		kind := errs.Classify(fmt.Errorf("%s", tr.Error))
		_ = o.store.RecordFailure(projectID, c.TaskType, string(kind))
	}
}

// collectToolSequence flattens the distinct tool names invoked across every
// task result, in task-id order, for the pattern store's tool_sequence
// field.
func collectToolSequence(result *models.PlanResult) []string {
	ids := make([]string, 0, len(result.Results))
	for id := range result.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	seen := make(map[string]bool)
	var seq []string
	for _, id := range ids {
		tr := result.Results[id]
		for _, part := range tr.Parts {
			if part.Type != "tool_call" || part.ToolName == "" || seen[part.ToolName] {
				continue
			}
			seen[part.ToolName] = true
			seq = append(seq, part.ToolName)
		}
	}
	return seq
}

// updateSessionMemory records the run's milestones: a summary of the plan
// outcome (a completed item on success, a key result on failure), and a
// work-log entry per task result.
func (o *Orchestrator) updateSessionMemory(sessionID, objective string, plan *models.Plan, result *models.PlanResult) {
	summary := fmt.Sprintf("Objective %q: %d/%d tasks completed", objective, result.TasksCompleted, result.TasksCompleted+result.TasksFailed)
	if result.Success {
		_, _ = o.store.AddCompleted(sessionID, summary)
	} else {
		_, _ = o.store.AddKeyResult(sessionID, summary+fmt.Sprintf(" (%d failed)", result.TasksFailed))
	}

	for _, taskID := range allTaskIDsInOrder(plan) {
		tr, ok := result.Results[taskID]
		if !ok {
			continue
		}
		entryType := models.WorkLogAIResponse
		if !tr.Success {
			entryType = models.WorkLogError
		}
		_ = o.store.AppendWorkLog(sessionID, models.WorkLogEntry{
			Timestamp: time.Now(),
			Type:      entryType,
			Summary:   fmt.Sprintf("task %s: %s", taskID, truncate(tr.Output, 200)),
			Metadata: map[string]any{
				"task_id":  taskID,
				"plan_id":  plan.ID,
				"duration": tr.Duration.String(),
			},
		})
	}
}

func allTaskIDsInOrder(plan *models.Plan) []string {
	var ids []string
	for _, level := range plan.Levels {
		ids = append(ids, level...)
	}
	return ids
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (o *Orchestrator) publish(event string, payload ObjectiveEvent) {
	if o.bus == nil {
		return
	}
	payload.Timestamp = time.Now()
	o.bus.Publish(event, payload)
}
