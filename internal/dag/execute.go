package dag

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Collaborator is the one-method interface the scheduler prompts to advance
// a task. Declared here, at the consumer, rather than alongside its concrete
// implementations, so C13's providers only need to satisfy this shape.
type Collaborator interface {
	Complete(ctx context.Context, req models.CollaboratorRequest) (models.CollaboratorResponse, error)
}

// ExecContext carries the per-run defaults and policy execute needs beyond
// the plan and collaborator themselves.
type ExecContext struct {
	SessionID   string
	BaseAgent   string
	BaseModel   string
	SkipOnError bool
}

// ProgressEventType names a single task-lifecycle transition reported
// through OnProgress.
type ProgressEventType string

const (
	TaskStart    ProgressEventType = "task_start"
	TaskComplete ProgressEventType = "task_complete"
	TaskFailed   ProgressEventType = "task_failed"
	TaskSkipped  ProgressEventType = "task_skipped"
)

// ProgressEvent is one notification emitted while executing a plan.
type ProgressEvent struct {
	Type   ProgressEventType
	TaskID string
	Result *models.TaskResult
}

// OnProgress receives lifecycle notifications for a running plan. May be nil.
type OnProgress func(ProgressEvent)

var hexRun = regexp.MustCompile(`[0-9a-fA-F]{32}`)

// Execute runs plan level by level, launching every task in a level
// concurrently and waiting for the whole level before advancing. Unlike the
// corpus's swarm executor, a task's own failure never cancels its siblings
// already launched in the same level, nor does it cancel the plan: only
// execCtx.SkipOnError drives skipping of later-level tasks whose dependency
// is in the failed set. ctx itself is only canceled by the caller.
func Execute(ctx context.Context, plan *models.Plan, collaborator Collaborator, execCtx ExecContext, onProgress OnProgress) (*models.PlanResult, error) {
	results := make(map[string]*models.TaskResult, len(plan.Tasks))
	failed := make(map[string]bool)
	skipped := make(map[string]bool)
	var mu sync.Mutex

	notify := func(evt ProgressEvent) {
		if onProgress != nil {
			onProgress(evt)
		}
	}

	start := time.Now()
	var sumDurations time.Duration

	for _, level := range plan.Levels {
		var runnable []string

		mu.Lock()
		for _, taskID := range level {
			task := plan.Tasks[taskID]
			if execCtx.SkipOnError && dependsOnFailed(task, failed) {
				result := &models.TaskResult{
					TaskID:  taskID,
					Success: false,
					Output:  "Skipped due to failed dependency",
					Error:   "Skipped due to failed dependency",
				}
				results[taskID] = result
				skipped[taskID] = true
				notify(ProgressEvent{Type: TaskSkipped, TaskID: taskID, Result: result})
				continue
			}
			runnable = append(runnable, taskID)
		}
		mu.Unlock()

		var wg sync.WaitGroup
		for _, taskID := range runnable {
			taskID := taskID
			task := plan.Tasks[taskID]
			wg.Add(1)
			go func() {
				defer wg.Done()
				notify(ProgressEvent{Type: TaskStart, TaskID: taskID})

				agent := task.AgentName
				if agent == "" {
					agent = execCtx.BaseAgent
				}

				taskStart := time.Now()
				result := runTask(ctx, collaborator, execCtx.SessionID, agent, execCtx.BaseModel, task)
				result.Duration = time.Since(taskStart)

				mu.Lock()
				results[taskID] = result
				if !result.Success {
					failed[taskID] = true
				}
				sumDurations += result.Duration
				mu.Unlock()

				if result.Success {
					notify(ProgressEvent{Type: TaskComplete, TaskID: taskID, Result: result})
				} else {
					notify(ProgressEvent{Type: TaskFailed, TaskID: taskID, Result: result})
				}
			}()
		}
		wg.Wait()
	}

	totalDuration := time.Since(start)

	planResult := &models.PlanResult{
		PlanID:       plan.ID,
		Results:      results,
		TotalDuration: totalDuration,
	}
	for _, r := range results {
		switch {
		case skipped[r.TaskID]:
			planResult.TasksSkipped++
		case r.Success:
			planResult.TasksCompleted++
		default:
			planResult.TasksFailed++
		}
	}
	planResult.Success = planResult.TasksFailed == 0
	planResult.ParallelizationGain = parallelizationGain(sumDurations, totalDuration)

	return planResult, nil
}

// dependsOnFailed reports whether any of task's dependencies are already in
// the failed set.
func dependsOnFailed(task *models.Task, failed map[string]bool) bool {
	for _, dep := range task.Dependencies {
		if failed[dep] {
			return true
		}
	}
	return false
}

func runTask(ctx context.Context, collaborator Collaborator, sessionID, agent, model string, task *models.Task) *models.TaskResult {
	req := models.CollaboratorRequest{
		SessionID: sessionID,
		Agent:     agent,
		Model:     model,
		Parts:     []models.MessagePart{models.TextPart(task.Prompt)},
	}

	resp, err := collaborator.Complete(ctx, req)
	if err != nil {
		return &models.TaskResult{TaskID: task.ID, Success: false, Error: err.Error()}
	}

	var output string
	var toolOutputs []string
	for _, part := range resp.Parts {
		switch part.Type {
		case "text":
			output += part.Text
		case "tool_result":
			toolOutputs = append(toolOutputs, part.ResultJSON)
			if part.IsError {
				return &models.TaskResult{
					TaskID:    task.ID,
					Success:   false,
					Output:    output,
					Artifacts: extractArtifacts(toolOutputs),
					Parts:     resp.Parts,
					Error:     part.ResultJSON,
				}
			}
		}
	}

	return &models.TaskResult{
		TaskID:    task.ID,
		Success:   true,
		Output:    output,
		Artifacts: extractArtifacts(toolOutputs),
		Parts:     resp.Parts,
	}
}

// extractArtifacts returns the distinct 32-hex substrings found across a
// task's completed tool outputs, sorted for determinism.
func extractArtifacts(outputs []string) []string {
	seen := make(map[string]struct{})
	for _, out := range outputs {
		for _, match := range hexRun.FindAllString(out, -1) {
			seen[match] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	artifacts := make([]string, 0, len(seen))
	for a := range seen {
		artifacts = append(artifacts, a)
	}
	sort.Strings(artifacts)
	return artifacts
}

// parallelizationGain is max(0, (Σ durations − totalDuration)/Σ durations)
// when Σ > 0, else 0.
func parallelizationGain(sum, total time.Duration) float64 {
	if sum <= 0 {
		return 0
	}
	gain := float64(sum-total) / float64(sum)
	if gain < 0 {
		return 0
	}
	return gain
}
