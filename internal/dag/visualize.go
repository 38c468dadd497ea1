package dag

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/pkg/models"
)

// VisualizePlan renders a textual summary of plan: one line per level,
// listing each task id with its agent and upstream dependencies.
func VisualizePlan(plan *models.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan %s: %d tasks, %d levels\n", plan.ID, len(plan.Tasks), len(plan.Levels))

	for i, level := range plan.Levels {
		fmt.Fprintf(&b, "Level %d (%d parallel):\n", i, len(level))
		for _, taskID := range level {
			task := plan.Tasks[taskID]
			agent := task.AgentName
			if agent == "" {
				agent = "(default)"
			}
			if len(task.Dependencies) == 0 {
				fmt.Fprintf(&b, "  - %s [%s]\n", taskID, agent)
			} else {
				fmt.Fprintf(&b, "  - %s [%s] <- %s\n", taskID, agent, strings.Join(task.Dependencies, ", "))
			}
		}
	}
	return b.String()
}
