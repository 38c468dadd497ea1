package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetch_ReturnsBodyAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong"))
	}))
	defer srv.Close()

	args, _ := json.Marshal(map[string]any{"url": srv.URL})
	raw, err := NewFetchTool(Config{}).Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	var result struct {
		Status      int    `json:"status"`
		Body        string `json:"body"`
		ContentType string `json:"content_type"`
		Truncated   bool   `json:"truncated"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Status != http.StatusOK || result.Body != "pong" || result.Truncated {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestFetch_TruncatesLargeBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	args, _ := json.Marshal(map[string]any{"url": srv.URL})
	raw, err := NewFetchTool(Config{MaxBodyBytes: 16}).Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	var result struct {
		Body      string `json:"body"`
		Truncated bool   `json:"truncated"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Body) != 16 || !result.Truncated {
		t.Fatalf("expected truncation at 16 bytes: %+v", result)
	}
}

func TestFetch_RejectsNonHTTPSchemes(t *testing.T) {
	args, _ := json.Marshal(map[string]any{"url": "file:///etc/passwd"})
	if _, err := NewFetchTool(Config{}).Execute(context.Background(), args); err == nil {
		t.Fatal("expected scheme rejection")
	}
}
