package control

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/bus"
	"github.com/haasonsaas/nexus/internal/dag"
	"github.com/haasonsaas/nexus/internal/memory"
	"github.com/haasonsaas/nexus/internal/orchestrator"
	"github.com/haasonsaas/nexus/pkg/models"
)

// stubCollaborator answers every prompt with a trivial terminating
// response, so ExecuteObjective completes quickly without a real
// model-provider bridge.
type stubCollaborator struct{}

func (stubCollaborator) Complete(_ context.Context, _ models.CollaboratorRequest) (models.CollaboratorResponse, error) {
	return models.CollaboratorResponse{StopReason: "end_turn"}, nil
}

func newTestOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	store, err := memory.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.Create("sess-1", "proj-1", "test session"); err != nil {
		t.Fatalf("Create session: %v", err)
	}
	return orchestrator.New(store, bus.New(), stubCollaborator{}, "generic-agent", "default-model")
}

func TestObjectiveTracker_SubmitAndPoll(t *testing.T) {
	tracker := newObjectiveTracker(newTestOrchestrator(t), func(dag.ProgressEvent) {})

	if !tracker.Submit("sess-1", "fix the failing build") {
		t.Fatalf("Submit() = false, want true for a fresh session")
	}

	deadline := time.Now().Add(5 * time.Second)
	var status objectiveStatus
	for time.Now().Before(deadline) {
		var ok bool
		status, ok = tracker.Status("sess-1")
		if !ok {
			t.Fatalf("Status() missing entry immediately after Submit")
		}
		if status.State != "running" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if status.State == "running" {
		t.Fatalf("objective still running after deadline")
	}
}

func TestObjectiveTracker_RejectsConcurrentSubmitForSameSession(t *testing.T) {
	tracker := newObjectiveTracker(newTestOrchestrator(t), func(dag.ProgressEvent) {})

	if !tracker.Submit("sess-1", "first objective") {
		t.Fatalf("first Submit() = false, want true")
	}
	if tracker.Submit("sess-1", "second objective") {
		t.Fatalf("second Submit() = true, want false while first is running")
	}
}

func TestObjectiveTracker_StatusMissing(t *testing.T) {
	tracker := newObjectiveTracker(newTestOrchestrator(t), func(dag.ProgressEvent) {})
	if _, ok := tracker.Status("unknown-session"); ok {
		t.Fatalf("Status() = true for a session that was never submitted")
	}
}
