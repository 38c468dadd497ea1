package sessiontree

import (
	"testing"

	"github.com/haasonsaas/nexus/internal/memory"
	"github.com/haasonsaas/nexus/pkg/models"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	store, err := memory.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return NewManager(store)
}

func TestForkSessionAndAncestry(t *testing.T) {
	m := newManager(t)
	if _, err := m.store.Create("root", "proj1", "Root"); err != nil {
		t.Fatalf("Create root: %v", err)
	}
	if err := m.store.AppendWorkLog("root", models.WorkLogEntry{Type: models.WorkLogUserRequest, Summary: "hi"}); err != nil {
		t.Fatalf("AppendWorkLog: %v", err)
	}

	child, err := m.ForkSession("child", "root", 1, "")
	if err != nil {
		t.Fatalf("ForkSession: %v", err)
	}
	if child.ParentSessionID == nil || *child.ParentSessionID != "root" {
		t.Fatalf("expected child to point at root, got %+v", child)
	}

	ancestry, err := m.GetAncestry("child")
	if err != nil {
		t.Fatalf("GetAncestry: %v", err)
	}
	if len(ancestry) != 2 || ancestry[0].SessionID != "root" || ancestry[1].SessionID != "child" {
		t.Fatalf("unexpected ancestry: %+v", ancestry)
	}
}

func TestGetAncestry_CycleDetected(t *testing.T) {
	m := newManager(t)
	m.store.Create("a", "proj1", "A")
	m.store.Create("b", "proj1", "B")
	if _, err := m.store.SetParent("a", "b", 0); err != nil {
		t.Fatalf("SetParent: %v", err)
	}
	if _, err := m.store.SetParent("b", "a", 0); err != nil {
		t.Fatalf("SetParent: %v", err)
	}

	if _, err := m.GetAncestry("a"); err != ErrCycleDetected {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestBuildTree_SortingAndCurrent(t *testing.T) {
	m := newManager(t)
	m.store.Create("root", "proj1", "Root")
	m.ForkSession("fork1", "root", 0, "Fork 1")
	m.ForkSession("fork2", "root", 0, "Fork 2")

	roots, err := m.BuildTree("proj1", "fork1")
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if len(roots) != 1 {
		t.Fatalf("expected a single root, got %d", len(roots))
	}
	root := roots[0]
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(root.Children))
	}
	var foundCurrent bool
	for _, c := range root.Children {
		if c.IsCurrent {
			foundCurrent = true
			if c.ID != "fork1" {
				t.Fatalf("expected fork1 marked current, got %s", c.ID)
			}
		}
	}
	if !foundCurrent {
		t.Fatal("expected one child marked current")
	}
}

func TestMergeSession_Continue(t *testing.T) {
	m := newManager(t)
	m.store.Create("root", "proj1", "Root")
	m.ForkSession("fork1", "root", 0, "Fork 1")

	m.store.AppendWorkLog("fork1", models.WorkLogEntry{Type: models.WorkLogUserRequest, Summary: "one"})
	m.store.AppendWorkLog("fork1", models.WorkLogEntry{Type: models.WorkLogAIResponse, Summary: "two"})

	result, err := m.MergeSession("fork1", "root", models.MergeStrategyContinue)
	if err != nil {
		t.Fatalf("MergeSession: %v", err)
	}
	if result.EntriesMerged != 2 {
		t.Fatalf("expected 2 entries merged, got %d", result.EntriesMerged)
	}

	rootLog, err := m.store.ReadWorkLog("root")
	if err != nil {
		t.Fatalf("ReadWorkLog: %v", err)
	}
	if len(rootLog) != 2 {
		t.Fatalf("expected root worklog to have 2 entries, got %d", len(rootLog))
	}

	sourceMem, err := m.store.Read("fork1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !sourceMem.Archived {
		t.Fatal("expected source session to be archived after merge")
	}
}

func TestCompareSessions(t *testing.T) {
	m := newManager(t)
	m.store.Create("root", "proj1", "Root")
	m.ForkSession("a", "root", 0, "A")
	m.ForkSession("b", "root", 0, "B")
	m.store.AppendWorkLog("a", models.WorkLogEntry{Summary: "a1"})
	m.store.AppendWorkLog("b", models.WorkLogEntry{Summary: "b1"})
	m.store.AppendWorkLog("b", models.WorkLogEntry{Summary: "b2"})

	cmp, err := m.CompareSessions("a", "b")
	if err != nil {
		t.Fatalf("CompareSessions: %v", err)
	}
	if cmp.CommonAncestor != "root" {
		t.Fatalf("expected common ancestor root, got %q", cmp.CommonAncestor)
	}
	if cmp.AAhead != 1 || cmp.BAhead != 2 {
		t.Fatalf("unexpected ahead counts: %+v", cmp)
	}
}

func TestGetSessionStats(t *testing.T) {
	m := newManager(t)
	m.store.Create("root", "proj1", "Root")
	m.store.AppendWorkLog("root", models.WorkLogEntry{Summary: "r1"})
	m.ForkSession("child", "root", 1, "Child")
	m.store.AppendWorkLog("child", models.WorkLogEntry{Summary: "c1"})

	stats, err := m.GetSessionStats("child")
	if err != nil {
		t.Fatalf("GetSessionStats: %v", err)
	}
	if stats.OwnMessages != 1 {
		t.Fatalf("expected 1 own message, got %d", stats.OwnMessages)
	}
	if stats.TotalMessages != 2 {
		t.Fatalf("expected 2 total messages (own + inherited), got %d", stats.TotalMessages)
	}

	rootStats, err := m.GetSessionStats("root")
	if err != nil {
		t.Fatalf("GetSessionStats: %v", err)
	}
	if rootStats.ChildCount != 1 {
		t.Fatalf("expected root to have 1 child, got %d", rootStats.ChildCount)
	}
}

func TestRenderVisualizers(t *testing.T) {
	m := newManager(t)
	m.store.Create("root", "proj1", "Root")
	m.ForkSession("fork1", "root", 0, "Fork 1")
	roots, err := m.BuildTree("proj1", "root")
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if RenderTree(roots) == "" {
		t.Fatal("expected non-empty RenderTree output")
	}
	if Indented(roots) == "" {
		t.Fatal("expected non-empty Indented output")
	}
	if Boxed(roots) == "" {
		t.Fatal("expected non-empty Boxed output")
	}
}
