package files

import (
	"context"
	"encoding/json"
	"testing"
)

func TestWriteReadListRoundTrip(t *testing.T) {
	workspace := t.TempDir()
	cfg := Config{Workspace: workspace}
	ctx := context.Background()

	writeArgs, _ := json.Marshal(map[string]any{"path": "notes/hello.txt", "content": "hello world"})
	if _, err := NewWriteTool(cfg).Execute(ctx, writeArgs); err != nil {
		t.Fatalf("write: %v", err)
	}

	readArgs, _ := json.Marshal(map[string]any{"path": "notes/hello.txt"})
	raw, err := NewReadTool(cfg).Execute(ctx, readArgs)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var read struct {
		Content   string `json:"content"`
		Truncated bool   `json:"truncated"`
	}
	if err := json.Unmarshal(raw, &read); err != nil {
		t.Fatalf("decode read result: %v", err)
	}
	if read.Content != "hello world" || read.Truncated {
		t.Fatalf("unexpected read result: %+v", read)
	}

	listArgs, _ := json.Marshal(map[string]any{"path": "notes"})
	raw, err = NewListTool(cfg).Execute(ctx, listArgs)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list struct {
		Entries []listEntry `json:"entries"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("decode list result: %v", err)
	}
	if len(list.Entries) != 1 || list.Entries[0].Name != "hello.txt" {
		t.Fatalf("unexpected entries: %+v", list.Entries)
	}
}

func TestRead_RespectsOffsetAndLimit(t *testing.T) {
	workspace := t.TempDir()
	cfg := Config{Workspace: workspace}
	ctx := context.Background()

	writeArgs, _ := json.Marshal(map[string]any{"path": "data.txt", "content": "0123456789"})
	if _, err := NewWriteTool(cfg).Execute(ctx, writeArgs); err != nil {
		t.Fatalf("write: %v", err)
	}

	readArgs, _ := json.Marshal(map[string]any{"path": "data.txt", "offset": 2, "max_bytes": 3})
	raw, err := NewReadTool(cfg).Execute(ctx, readArgs)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var read struct {
		Content   string `json:"content"`
		Truncated bool   `json:"truncated"`
	}
	if err := json.Unmarshal(raw, &read); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if read.Content != "234" || !read.Truncated {
		t.Fatalf("unexpected windowed read: %+v", read)
	}
}

func TestResolver_RejectsEscape(t *testing.T) {
	cfg := Config{Workspace: t.TempDir()}
	args, _ := json.Marshal(map[string]any{"path": "../outside.txt"})
	if _, err := NewReadTool(cfg).Execute(context.Background(), args); err == nil {
		t.Fatal("expected workspace-escape error")
	}
}
