package dag

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

func tasks(specs ...[2]any) []*models.Task {
	var out []*models.Task
	for _, s := range specs {
		id := s[0].(string)
		var deps []string
		if s[1] != nil {
			deps = s[1].([]string)
		}
		out = append(out, &models.Task{ID: id, Prompt: "do " + id, Dependencies: deps})
	}
	return out
}

func TestBuildPlan_LinearPipeline(t *testing.T) {
	plan, err := BuildPlan("p1", tasks(
		[2]any{"A", nil},
		[2]any{"B", []string{"A"}},
		[2]any{"C", []string{"B"}},
	))
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(plan.Levels) != 3 {
		t.Fatalf("expected 3 levels, got %d: %v", len(plan.Levels), plan.Levels)
	}
	if plan.Levels[0][0] != "A" || plan.Levels[1][0] != "B" || plan.Levels[2][0] != "C" {
		t.Fatalf("unexpected level order: %v", plan.Levels)
	}
	if len(plan.RootTaskIDs) != 1 || plan.RootTaskIDs[0] != "A" {
		t.Fatalf("unexpected roots: %v", plan.RootTaskIDs)
	}
}

func TestBuildPlan_Diamond(t *testing.T) {
	plan, err := BuildPlan("p2", tasks(
		[2]any{"A", nil},
		[2]any{"B", []string{"A"}},
		[2]any{"C", []string{"A"}},
		[2]any{"D", []string{"B", "C"}},
	))
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(plan.Levels) != 3 {
		t.Fatalf("expected 3 levels, got %d: %v", len(plan.Levels), plan.Levels)
	}
	if len(plan.Levels[1]) != 2 {
		t.Fatalf("expected level 1 to have 2 tasks, got %v", plan.Levels[1])
	}
}

func TestBuildPlan_MissingDependency(t *testing.T) {
	_, err := BuildPlan("p3", tasks([2]any{"A", []string{"ghost"}}))
	if err == nil {
		t.Fatal("expected error for missing dependency")
	}
}

func TestBuildPlan_CycleDetected(t *testing.T) {
	_, err := BuildPlan("p4", tasks(
		[2]any{"A", []string{"B"}},
		[2]any{"B", []string{"A"}},
	))
	if err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestValidatePlan_ReportsLevelViolation(t *testing.T) {
	plan := &models.Plan{
		ID: "p5",
		Tasks: map[string]*models.Task{
			"A": {ID: "A"},
			"B": {ID: "B", Dependencies: []string{"A"}},
		},
		Levels: [][]string{{"A", "B"}},
	}
	issues := ValidatePlan(plan)
	if len(issues) == 0 {
		t.Fatal("expected a level-violation issue")
	}
}

type fakeCollaborator struct {
	fail map[string]bool
	sleep time.Duration
}

func (f *fakeCollaborator) Complete(ctx context.Context, req models.CollaboratorRequest) (models.CollaboratorResponse, error) {
	if f.sleep > 0 {
		time.Sleep(f.sleep)
	}
	if f.fail[req.Agent] {
		return models.CollaboratorResponse{
			Parts: []models.MessagePart{{Type: "tool_result", ResultJSON: "boom", IsError: true}},
		}, nil
	}
	return models.CollaboratorResponse{
		Parts: []models.MessagePart{{Type: "text", Text: "done " + req.Agent}},
	}, nil
}

func TestExecute_SiblingIsolationOnFailure(t *testing.T) {
	plan, err := BuildPlan("p6", tasks(
		[2]any{"A", nil},
		[2]any{"B", nil},
		[2]any{"C", []string{"A"}},
		[2]any{"D", []string{"B"}},
	))
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	plan.Tasks["A"].AgentName = "A"
	plan.Tasks["B"].AgentName = "B"
	plan.Tasks["C"].AgentName = "C"
	plan.Tasks["D"].AgentName = "D"

	collaborator := &fakeCollaborator{fail: map[string]bool{"A": true}}
	result, err := Execute(context.Background(), plan, collaborator, ExecContext{SkipOnError: true}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.Results["A"].Success {
		t.Fatal("expected A to fail")
	}
	if !result.Results["B"].Success {
		t.Fatal("expected B to succeed despite A's failure in the same level")
	}
	if result.Results["C"].Output != "Skipped due to failed dependency" {
		t.Fatalf("expected C to be skipped, got %+v", result.Results["C"])
	}
	if !result.Results["D"].Success {
		t.Fatal("expected D to succeed since its dependency B succeeded")
	}
	if result.TasksFailed != 1 || result.TasksSkipped != 1 || result.TasksCompleted != 2 {
		t.Fatalf("unexpected counts: failed=%d skipped=%d completed=%d", result.TasksFailed, result.TasksSkipped, result.TasksCompleted)
	}
	if result.Success {
		t.Fatal("expected overall success=false since a task failed")
	}
}

func TestExecute_NoSkipOnErrorRunsDependents(t *testing.T) {
	plan, err := BuildPlan("p7", tasks(
		[2]any{"A", nil},
		[2]any{"B", []string{"A"}},
	))
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	plan.Tasks["A"].AgentName = "A"
	plan.Tasks["B"].AgentName = "B"

	collaborator := &fakeCollaborator{fail: map[string]bool{"A": true}}
	result, err := Execute(context.Background(), plan, collaborator, ExecContext{SkipOnError: false}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Results["B"] == nil || !result.Results["B"].Success {
		t.Fatal("expected B to still run when SkipOnError is false")
	}
	if result.TasksSkipped != 0 {
		t.Fatalf("expected no skips, got %d", result.TasksSkipped)
	}
}

func TestExtractArtifacts(t *testing.T) {
	outputs := []string{
		`{"id":"a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4"}`,
		`duplicate a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4 and new 00000000000000000000000000000000`,
	}
	artifacts := extractArtifacts(outputs)
	if len(artifacts) != 2 {
		t.Fatalf("expected 2 distinct artifacts, got %v", artifacts)
	}
}

func TestParallelizationGain(t *testing.T) {
	gain := parallelizationGain(4*time.Second, 3*time.Second)
	if gain < 0.24 || gain > 0.26 {
		t.Fatalf("expected gain near 0.25, got %f", gain)
	}
	if parallelizationGain(0, 0) != 0 {
		t.Fatal("expected zero gain when sum is zero")
	}
}

func TestVisualizePlan(t *testing.T) {
	plan, _ := BuildPlan("p8", tasks([2]any{"A", nil}, [2]any{"B", []string{"A"}}))
	out := VisualizePlan(plan)
	if out == "" {
		t.Fatal("expected non-empty visualization")
	}
}
