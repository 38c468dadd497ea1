package control

import (
	"context"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/internal/dag"
	"github.com/haasonsaas/nexus/internal/orchestrator"
)

// objectiveStatus is one in-flight or completed ExecuteObjective run.
type objectiveStatus struct {
	SessionID string                `json:"session_id"`
	Objective string                `json:"objective"`
	State     string                `json:"state"` // running | completed | failed
	StartedAt time.Time             `json:"started_at"`
	EndedAt   time.Time             `json:"ended_at,omitempty"`
	Result    *orchestrator.Result  `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// objectiveTracker runs ExecuteObjective asynchronously so the HTTP handler
// can return immediately and the caller polls for completion. Submissions
// are tracked by sessionID: a session has at most one in-flight objective,
// matching how session memory itself is scoped.
type objectiveTracker struct {
	orch    *orchestrator.Orchestrator
	onEvent dag.OnProgress

	mu     sync.RWMutex
	status map[string]*objectiveStatus
}

func newObjectiveTracker(orch *orchestrator.Orchestrator, onEvent dag.OnProgress) *objectiveTracker {
	return &objectiveTracker{
		orch:    orch,
		onEvent: onEvent,
		status:  make(map[string]*objectiveStatus),
	}
}

// Submit starts an objective for sessionID in the background. It returns
// false if one is already running for that session.
func (t *objectiveTracker) Submit(sessionID, objective string) bool {
	t.mu.Lock()
	if existing, ok := t.status[sessionID]; ok && existing.State == "running" {
		t.mu.Unlock()
		return false
	}
	t.status[sessionID] = &objectiveStatus{
		SessionID: sessionID,
		Objective: objective,
		State:     "running",
		StartedAt: time.Now(),
	}
	t.mu.Unlock()

	go func() {
		ctx := context.Background()
		result, err := t.orch.ExecuteObjective(ctx, sessionID, objective, t.onEvent)

		t.mu.Lock()
		defer t.mu.Unlock()
		entry := t.status[sessionID]
		entry.EndedAt = time.Now()
		if err != nil {
			entry.State = "failed"
			entry.Error = err.Error()
			return
		}
		entry.Result = result
		if result.PlanResult != nil && !result.PlanResult.Success {
			entry.State = "failed"
		} else {
			entry.State = "completed"
		}
	}()
	return true
}

// Status returns the tracked status for sessionID, if any.
func (t *objectiveTracker) Status(sessionID string) (objectiveStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.status[sessionID]
	if !ok {
		return objectiveStatus{}, false
	}
	return *entry, true
}
