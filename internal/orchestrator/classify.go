package orchestrator

import (
	"strings"

	"github.com/haasonsaas/nexus/pkg/models"
)

// objectiveKeywords maps each ObjectiveType to the fixed keyword set scored
// against an objective's text. Grounded on the corpus's router keyword
// trigger, which scores a trigger by matched-keyword ratio rather than a
// single hit.
var objectiveKeywords = map[models.ObjectiveType][]string{
	models.ObjectiveWidget: {
		"widget", "component", "button", "card", "badge", "icon", "form field",
	},
	models.ObjectiveFlow: {
		"flow", "workflow", "pipeline", "sequence", "wizard", "onboarding",
	},
	models.ObjectiveApp: {
		"app", "application", "dashboard", "platform", "system", "service",
	},
	models.ObjectiveIntegration: {
		"integration", "webhook", "api", "connector", "sync", "third-party", "external",
	},
}

// complexityFeatures are weighted terms whose presence in an objective's
// text nudges the estimated complexity score toward 1.
var complexityFeatures = []struct {
	keyword string
	weight  float64
}{
	{"multi", 0.15},
	{"distributed", 0.2},
	{"real-time", 0.15},
	{"realtime", 0.15},
	{"concurrent", 0.15},
	{"migrate", 0.2},
	{"migration", 0.2},
	{"scale", 0.15},
	{"security", 0.15},
	{"auth", 0.1},
	{"payment", 0.2},
	{"integration", 0.1},
	{"legacy", 0.15},
}

// Classification is the result of scoring an objective's text: its inferred
// type, an estimated complexity in [0,1], and a suggested agent sequence.
type Classification struct {
	TaskType      models.ObjectiveType
	Confidence    float64
	Complexity    float64
	AgentSequence []string
}

// agentSequenceFor returns the default agent pipeline for a task type,
// typically research*(parallel) -> design*(parallel) -> implement -> test ->
// document, with the research/design fan-out width chosen per type.
func agentSequenceFor(taskType models.ObjectiveType) []string {
	switch taskType {
	case models.ObjectiveWidget:
		return []string{"researcher", "designer", "implementer", "tester", "documenter"}
	case models.ObjectiveFlow:
		return []string{"researcher", "designer", "implementer", "tester", "documenter"}
	case models.ObjectiveApp:
		return []string{"researcher", "architect", "designer", "implementer", "tester", "documenter"}
	case models.ObjectiveIntegration:
		return []string{"researcher", "implementer", "tester", "documenter"}
	default:
		return []string{"researcher", "implementer", "tester"}
	}
}

// ClassifyObjective scores text against the fixed keyword map for every
// ObjectiveType, picks the highest-scoring type (ObjectiveGeneric if nothing
// matches), and estimates a complexity score from weighted feature presence.
func ClassifyObjective(text string) Classification {
	content := strings.ToLower(text)

	best := models.ObjectiveGeneric
	bestScore := 0.0
	for taskType, keywords := range objectiveKeywords {
		score := keywordMatchRatio(content, keywords)
		if score > bestScore {
			bestScore = score
			best = taskType
		}
	}

	complexity := 0.0
	for _, f := range complexityFeatures {
		if strings.Contains(content, f.keyword) {
			complexity += f.weight
		}
	}
	if complexity > 1 {
		complexity = 1
	}

	return Classification{
		TaskType:      best,
		Confidence:    bestScore,
		Complexity:    complexity,
		AgentSequence: agentSequenceFor(best),
	}
}

// keywordMatchRatio mirrors the corpus's evaluateKeywordTrigger: the
// confidence of a match is the fraction of the keyword set that appears in
// content, not just whether any keyword appeared.
func keywordMatchRatio(content string, keywords []string) float64 {
	matchCount := 0
	for _, kw := range keywords {
		if strings.Contains(content, strings.ToLower(kw)) {
			matchCount++
		}
	}
	if matchCount == 0 {
		return 0
	}
	return float64(matchCount) / float64(len(keywords))
}
