// Package sessiontree implements the session manager and fork tree (C9):
// ancestry walks, project-scoped tree building with derived stats, and the
// supplemental fork/merge/archive/compare/stats operations, all layered over
// the C3 session-memory store.
package sessiontree

import (
	"errors"
	"sort"

	"github.com/haasonsaas/nexus/internal/memory"
	"github.com/haasonsaas/nexus/pkg/models"
)

// ErrSessionNotFound is returned when a requested session id has no memory
// document.
var ErrSessionNotFound = errors.New("sessiontree: session not found")

// ErrCycleDetected guards getAncestry against a corrupted parent chain; a
// cycle here is always a usage/data error, never a feature to support.
var ErrCycleDetected = errors.New("sessiontree: cyclic session ancestry detected")

// Manager builds and mutates the fork tree for a project's sessions, backed
// by a C3 memory.Store.
type Manager struct {
	store *memory.Store
}

// NewManager wraps store.
func NewManager(store *memory.Store) *Manager {
	return &Manager{store: store}
}

// GetAncestry returns the ordered root-to-leaf chain of sessions ending at
// sessionID, inclusive. A cycle in the parent chain is reported as
// ErrCycleDetected rather than silently truncated.
func (m *Manager) GetAncestry(sessionID string) ([]*models.SessionMemory, error) {
	var chain []*models.SessionMemory
	visited := make(map[string]bool)

	currentID := sessionID
	for currentID != "" {
		if visited[currentID] {
			return nil, ErrCycleDetected
		}
		visited[currentID] = true

		mem, err := m.store.Read(currentID)
		if err != nil {
			if len(chain) == 0 {
				return nil, ErrSessionNotFound
			}
			break
		}
		chain = append([]*models.SessionMemory{mem}, chain...)

		if mem.ParentSessionID == nil {
			break
		}
		currentID = *mem.ParentSessionID
	}
	return chain, nil
}

// ListProjectSessions returns every session belonging to projectID.
func (m *Manager) ListProjectSessions(projectID string) ([]*models.SessionMemory, error) {
	return m.store.ListProjectSessions(projectID)
}

// BuildTree loads every session for projectID, enriches each node with
// derived stats, marks currentSessionID, and sorts children by creation time
// ascending. Roots are sorted by update time descending. Returns nil if the
// project has no sessions.
func (m *Manager) BuildTree(projectID, currentSessionID string) ([]*models.SessionTreeNode, error) {
	sessions, err := m.store.ListProjectSessions(projectID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	nodes := make(map[string]*models.SessionTreeNode, len(sessions))
	for _, s := range sessions {
		stats, statErr := m.GetSessionStats(s.SessionID)
		messageCount := 0
		if statErr == nil {
			messageCount = stats.TotalMessages
		}
		nodes[s.SessionID] = &models.SessionTreeNode{
			ID:           s.SessionID,
			Title:        s.Title,
			ParentID:     s.ParentSessionID,
			Depth:        0,
			MessageCount: messageCount,
			Cost:         s.Cost,
			Time:         s.Time,
			IsCurrent:    s.SessionID == currentSessionID,
		}
	}

	var roots []*models.SessionTreeNode
	for _, s := range sessions {
		node := nodes[s.SessionID]
		if s.ParentSessionID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*s.ParentSessionID]
		if !ok {
			// Parent not in this project's session set (or missing): treat
			// as a root rather than dropping the node.
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	var assignDepth func(node *models.SessionTreeNode, depth int)
	assignDepth = func(node *models.SessionTreeNode, depth int) {
		node.Depth = depth
		sort.Slice(node.Children, func(i, j int) bool {
			return node.Children[i].Time.Created.Before(node.Children[j].Time.Created)
		})
		for i, child := range node.Children {
			child.IsLast = i == len(node.Children)-1
			assignDepth(child, depth+1)
		}
	}
	for _, root := range roots {
		assignDepth(root, 0)
	}

	sort.Slice(roots, func(i, j int) bool {
		return roots[i].Time.Updated.After(roots[j].Time.Updated)
	})
	for i := range roots {
		roots[i].IsLast = i == len(roots)-1
	}

	return roots, nil
}

// ForkSession creates a new session whose ancestry points back to parentID
// at branchPoint (the parent's work-log line count at fork time).
func (m *Manager) ForkSession(newSessionID, parentID string, branchPoint int, title string) (*models.SessionMemory, error) {
	parent, err := m.store.Read(parentID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if title == "" {
		title = parent.Title + " (fork)"
	}
	_, err = m.store.Create(newSessionID, parent.ProjectID, title)
	if err != nil {
		return nil, err
	}
	return m.store.SetParent(newSessionID, parentID, branchPoint)
}

// MergeResult describes what MergeSession moved from source onto target.
type MergeResult struct {
	SourceSessionID string               `json:"source_session_id"`
	TargetSessionID string               `json:"target_session_id"`
	Strategy        models.MergeStrategy `json:"strategy"`
	EntriesMerged   int                  `json:"entries_merged"`
}

// MergeSession merges source's work-log history onto target per strategy:
// replace overwrites target's log with source's; continue appends source's
// entries after target's current tail; interleave merges both logs sorted
// by timestamp. Regardless of strategy, source is marked archived afterward.
func (m *Manager) MergeSession(sourceID, targetID string, strategy models.MergeStrategy) (*MergeResult, error) {
	sourceLog, err := m.store.ReadWorkLog(sourceID)
	if err != nil {
		return nil, err
	}
	targetLog, err := m.store.ReadWorkLog(targetID)
	if err != nil {
		return nil, err
	}

	var toAppend []models.WorkLogEntry
	switch strategy {
	case models.MergeStrategyReplace:
		toAppend = sourceLog
	case models.MergeStrategyInterleave:
		merged := append(append([]models.WorkLogEntry(nil), targetLog...), sourceLog...)
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].Timestamp.Before(merged[j].Timestamp)
		})
		toAppend = merged
	case models.MergeStrategyContinue:
		fallthrough
	default:
		toAppend = sourceLog
	}

	if err := m.store.AppendWorkLogEntries(targetID, toAppend); err != nil {
		return nil, err
	}
	if _, err := m.store.SetArchived(sourceID, true); err != nil {
		return nil, err
	}

	return &MergeResult{
		SourceSessionID: sourceID,
		TargetSessionID: targetID,
		Strategy:        strategy,
		EntriesMerged:   len(toAppend),
	}, nil
}

// ArchiveSession marks a session archived; it remains readable but is
// excluded from active tree views by callers that filter on Archived.
func (m *Manager) ArchiveSession(sessionID string) (*models.SessionMemory, error) {
	return m.store.SetArchived(sessionID, true)
}

// CompareResult is the outcome of comparing two sessions' ancestry.
type CompareResult struct {
	CommonAncestor   string `json:"common_ancestor,omitempty"`
	DivergencePoint  int    `json:"divergence_point"`
	AAhead           int    `json:"a_ahead"`
	BAhead           int    `json:"b_ahead"`
}

// CompareSessions finds the closest common ancestor of a and b by walking
// both ancestry chains, and reports how many work-log entries each has
// accrued past that point.
func (m *Manager) CompareSessions(a, b string) (*CompareResult, error) {
	chainA, err := m.GetAncestry(a)
	if err != nil {
		return nil, err
	}
	chainB, err := m.GetAncestry(b)
	if err != nil {
		return nil, err
	}

	inA := make(map[string]int, len(chainA))
	for i, s := range chainA {
		inA[s.SessionID] = i
	}

	var commonAncestor string
	var divergence int
	for _, s := range chainB {
		if idx, ok := inA[s.SessionID]; ok {
			commonAncestor = s.SessionID
			divergence = idx
		}
	}

	logA, err := m.store.ReadWorkLog(a)
	if err != nil {
		return nil, err
	}
	logB, err := m.store.ReadWorkLog(b)
	if err != nil {
		return nil, err
	}

	return &CompareResult{
		CommonAncestor:  commonAncestor,
		DivergencePoint: divergence,
		AAhead:          len(logA),
		BAhead:          len(logB),
	}, nil
}

// SessionStats summarizes a session's message volume and family shape.
type SessionStats struct {
	SessionID     string               `json:"session_id"`
	TotalMessages int                  `json:"total_messages"`
	OwnMessages   int                  `json:"own_messages"`
	ChildCount    int                  `json:"child_count"`
	LastMessageAt *models.SessionTimes `json:"-"`
}

// GetSessionStats reports own/total work-log entry counts (own plus every
// ancestor's entries up to its recorded branch point) and direct child
// count for sessionID.
func (m *Manager) GetSessionStats(sessionID string) (*SessionStats, error) {
	mem, err := m.store.Read(sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	ownLog, err := m.store.ReadWorkLog(sessionID)
	if err != nil {
		return nil, err
	}
	own := len(ownLog)
	total := own

	if mem.ParentSessionID != nil {
		parentLog, err := m.store.ReadWorkLog(*mem.ParentSessionID)
		if err == nil {
			inherited := len(parentLog)
			if mem.BranchPoint > 0 && mem.BranchPoint < inherited {
				inherited = mem.BranchPoint
			}
			total += inherited
		}
	}

	children := 0
	if mem.ProjectID != "" {
		siblings, err := m.store.ListProjectSessions(mem.ProjectID)
		if err == nil {
			for _, s := range siblings {
				if s.ParentSessionID != nil && *s.ParentSessionID == sessionID {
					children++
				}
			}
		}
	}

	return &SessionStats{
		SessionID:     sessionID,
		TotalMessages: total,
		OwnMessages:   own,
		ChildCount:    children,
	}, nil
}
