package memory

import (
	"path/filepath"
	"testing"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestStore_CreateAndRead(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	mem, err := store.Create("sess-1", "proj-1", "first session")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if mem.SessionID != "sess-1" || mem.Title != "first session" {
		t.Fatalf("unexpected memory: %+v", mem)
	}

	if _, err := store.Create("sess-1", "proj-1", "dup"); err == nil {
		t.Fatal("expected error creating duplicate session")
	}

	read, err := store.Read("sess-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if read.Title != "first session" {
		t.Fatalf("expected persisted title, got %q", read.Title)
	}
}

func TestStore_MutatorsAndWorkLog(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.Create("sess-1", "proj-1", "title"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := store.AddCompleted("sess-1", "wrote the store"); err != nil {
		t.Fatalf("AddCompleted: %v", err)
	}
	if _, err := store.AddKeyResult("sess-1", "shipped"); err != nil {
		t.Fatalf("AddKeyResult: %v", err)
	}
	learning, err := store.AddLearning("sess-1", "design", "debounce writes", "")
	if err != nil {
		t.Fatalf("AddLearning: %v", err)
	}

	if err := store.AppendWorkLog("sess-1", models.WorkLogEntry{Type: models.WorkLogToolCall, Summary: "ran a tool"}); err != nil {
		t.Fatalf("AppendWorkLog: %v", err)
	}
	if err := store.AppendWorkLog("sess-1", models.WorkLogEntry{Type: models.WorkLogToolResult, Summary: "tool succeeded"}); err != nil {
		t.Fatalf("AppendWorkLog: %v", err)
	}

	entries, err := store.ReadWorkLog("sess-1")
	if err != nil {
		t.Fatalf("ReadWorkLog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 worklog entries, got %d", len(entries))
	}

	if err := store.Flush(filepath.Join(dir, "sessions", "sess-1", "memory.json")); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	mem, err := store.Read("sess-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(mem.CurrentStatus.Completed) != 1 || len(mem.KeyResults) != 1 || len(mem.Learnings) != 1 {
		t.Fatalf("unexpected memory after mutations: %+v", mem)
	}
	if mem.Learnings[0].ID != learning.ID {
		t.Fatalf("learning id mismatch")
	}

	if err := store.PromoteLearningToProject("proj-1", *learning); err != nil {
		t.Fatalf("PromoteLearningToProject: %v", err)
	}
	// Promoting the same learning twice must not duplicate it.
	if err := store.PromoteLearningToProject("proj-1", *learning); err != nil {
		t.Fatalf("PromoteLearningToProject (dup): %v", err)
	}

	md, err := store.ExportAsMarkdown("sess-1")
	if err != nil {
		t.Fatalf("ExportAsMarkdown: %v", err)
	}
	if md == "" {
		t.Fatal("expected non-empty markdown export")
	}
}
