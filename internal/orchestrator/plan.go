package orchestrator

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/internal/dag"
	"github.com/haasonsaas/nexus/pkg/models"
)

// phaseFamily buckets an agent role into the coarse phase it belongs to, so
// adjacent roles from the same phase become one parallel level: research and
// design roles fan out, the remaining roles (implement, test, document, ...)
// each run alone.
func phaseFamily(role string) string {
	switch {
	case strings.Contains(role, "research"):
		return "research"
	case strings.Contains(role, "design") || strings.Contains(role, "architect"):
		return "design"
	default:
		return role
	}
}

func phaseVerb(family string) string {
	switch family {
	case "research":
		return "research the relevant prior art and constraints"
	case "design":
		return "produce a design"
	case "implementer":
		return "implement"
	case "tester":
		return "write and run tests for"
	case "documenter":
		return "document"
	default:
		return "work on"
	}
}

// groupSequence collapses an ordered agent sequence into phase groups,
// merging consecutive entries that share a phaseFamily so research*/design*
// fan out in parallel while the rest of the pipeline stays linear.
func groupSequence(seq []string) [][]string {
	var groups [][]string
	var cur []string
	var curFamily string
	for _, role := range seq {
		family := phaseFamily(role)
		if len(cur) == 0 || family != curFamily {
			if len(cur) > 0 {
				groups = append(groups, cur)
			}
			cur = []string{role}
			curFamily = family
		} else {
			cur = append(cur, role)
		}
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// BuildDAG turns a classified objective into a dependency plan: each phase
// group becomes a level whose tasks all depend on every task in the
// preceding group, so research*/design* fan-outs run in parallel and the
// remaining phases run one after another.
func BuildDAG(planID, objective string, c Classification) (*models.Plan, error) {
	groups := groupSequence(c.AgentSequence)
	if len(groups) == 0 {
		groups = [][]string{{"implementer"}}
	}

	var tasks []*models.Task
	var prevIDs []string
	for gi, group := range groups {
		family := phaseFamily(group[0])
		var curIDs []string
		for _, role := range group {
			id := fmt.Sprintf("%s_%d", role, gi)
			prompt := fmt.Sprintf("As %s, %s for objective: %s", role, phaseVerb(family), objective)
			deps := append([]string(nil), prevIDs...)
			tasks = append(tasks, &models.Task{
				ID:           id,
				AgentName:    role,
				Prompt:       prompt,
				Description:  fmt.Sprintf("%s phase", family),
				Dependencies: deps,
			})
			curIDs = append(curIDs, id)
		}
		prevIDs = curIDs
	}

	return dag.BuildPlan(planID, tasks)
}
