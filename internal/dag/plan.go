// Package dag implements the DAG scheduler (C8): it stratifies a task set
// into dependency-respecting levels, validates the resulting plan, and
// executes it level by level, isolating each task's failure from its
// siblings.
package dag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/haasonsaas/nexus/internal/errs"
	"github.com/haasonsaas/nexus/pkg/models"
)

// BuildPlan validates tasks and stratifies them into execution levels,
// adapting the corpus's Kahn's-algorithm stage builder but adding explicit
// id-existence validation and depth-first cycle detection ahead of it, per
// the component spec.
func BuildPlan(id string, tasks []*models.Task) (*models.Plan, error) {
	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		tid := strings.TrimSpace(t.ID)
		if tid == "" {
			return nil, errs.New(errs.Validation, "task id cannot be empty")
		}
		if _, exists := byID[tid]; exists {
			return nil, errs.New(errs.Validation, fmt.Sprintf("duplicate task id %q", tid))
		}
		byID[tid] = t
	}

	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			dep = strings.TrimSpace(dep)
			if dep == "" {
				continue
			}
			if _, ok := byID[dep]; !ok {
				return nil, errs.New(errs.Validation, fmt.Sprintf("task %q depends on non-existent task %q", t.ID, dep))
			}
		}
	}

	if err := detectCycle(byID); err != nil {
		return nil, err
	}

	levels, roots, err := assignLevels(byID)
	if err != nil {
		return nil, err
	}

	return &models.Plan{
		ID:          id,
		Tasks:       byID,
		Levels:      levels,
		RootTaskIDs: roots,
	}, nil
}

// detectCycle runs a depth-first search with a recursion set over the
// dependency edges, failing on any back edge into a node still on the
// current path.
func detectCycle(byID map[string]*models.Task) error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(byID))

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var visit func(id string) error
	visit = func(id string) error {
		state[id] = visiting
		deps := append([]string(nil), byID[id].Dependencies...)
		sort.Strings(deps)
		for _, dep := range deps {
			dep = strings.TrimSpace(dep)
			if dep == "" {
				continue
			}
			switch state[dep] {
			case visiting:
				return errs.New(errs.Validation, "Cyclic dependency detected")
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		state[id] = done
		return nil
	}

	for _, id := range ids {
		if state[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// assignLevels stratifies byID into dependency-respecting levels via Kahn's
// algorithm: at each step the level is every uncompleted task whose
// dependencies are all already scheduled.
func assignLevels(byID map[string]*models.Task) (levels [][]string, roots []string, err error) {
	remaining := make(map[string][]string, len(byID))
	for id, t := range byID {
		remaining[id] = append([]string(nil), t.Dependencies...)
	}

	scheduled := make(map[string]bool, len(byID))
	total := len(byID)
	done := 0

	for done < total {
		var level []string
		for id, deps := range remaining {
			if scheduled[id] {
				continue
			}
			ready := true
			for _, dep := range deps {
				if !scheduled[dep] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, id)
			}
		}

		if len(level) == 0 {
			return nil, nil, errs.New(errs.Internal, "DAG scheduler safety check failed: no zero-in-degree task set before all tasks scheduled")
		}

		sort.Strings(level)
		levels = append(levels, level)
		if done == 0 {
			roots = append([]string(nil), level...)
		}
		for _, id := range level {
			scheduled[id] = true
		}
		done += len(level)
	}

	sort.Strings(roots)
	return levels, roots, nil
}

// ValidationIssue is one problem reported by ValidatePlan.
type ValidationIssue struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

// ValidatePlan idempotently reports structural problems with plan without
// mutating it or returning an error: missing dependencies, and any
// dependency edge that crosses levels in the wrong direction.
func ValidatePlan(plan *models.Plan) []ValidationIssue {
	var issues []ValidationIssue

	levelOf := make(map[string]int, len(plan.Tasks))
	for i, level := range plan.Levels {
		for _, id := range level {
			levelOf[id] = i
		}
	}

	ids := make([]string, 0, len(plan.Tasks))
	for id := range plan.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		task := plan.Tasks[id]
		taskLevel, scheduled := levelOf[id]
		if !scheduled {
			issues = append(issues, ValidationIssue{TaskID: id, Message: "task is not scheduled in any level"})
			continue
		}
		for _, dep := range task.Dependencies {
			dep = strings.TrimSpace(dep)
			if dep == "" {
				continue
			}
			depLevel, ok := levelOf[dep]
			if !ok {
				issues = append(issues, ValidationIssue{TaskID: id, Message: fmt.Sprintf("missing dependency %q", dep)})
				continue
			}
			if depLevel >= taskLevel {
				issues = append(issues, ValidationIssue{TaskID: id, Message: fmt.Sprintf("dependency %q at level %d does not precede level %d", dep, depLevel, taskLevel)})
			}
		}
	}

	return issues
}
