package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haasonsaas/nexus/internal/bus"
	"github.com/haasonsaas/nexus/internal/fleet"
	"github.com/haasonsaas/nexus/internal/memory"
	"github.com/haasonsaas/nexus/internal/sessiontree"
	"github.com/haasonsaas/nexus/internal/toolhost"
	"github.com/haasonsaas/nexus/internal/toolregistry"
	"github.com/haasonsaas/nexus/internal/toolsearch"
	"github.com/haasonsaas/nexus/pkg/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := memory.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	enablement, err := toolsearch.NewEnablement(t.TempDir())
	if err != nil {
		t.Fatalf("NewEnablement: %v", err)
	}

	host := toolhost.New(toolregistry.New(), toolsearch.New(), enablement, true, nil)
	fleetMgr := fleet.NewManager(func() ([]models.ServerConfig, error) { return nil, nil }, bus.New(), nil)
	orch := newTestOrchestrator(t)
	tree := sessiontree.NewManager(store)
	verifier := NewVerifier("test-secret", "")

	return New(host, fleetMgr, orch, tree, verifier, nil, nil)
}

func TestHandleHealthz_OKWithNoManagedServers(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.handleHealthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %v, want ok", body["status"])
	}
}

func TestAuthenticated_RejectsMissingBearer(t *testing.T) {
	s := newTestServer(t)
	handler := s.authenticated(func(w http.ResponseWriter, r *http.Request, caller models.CallerContext) {
		t.Fatalf("handler should not run without a valid token")
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/tools/list", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHandleToolsList_ReturnsMetaTools(t *testing.T) {
	s := newTestServer(t)
	token, err := s.verifier.Sign(models.CallerContext{Role: models.RoleDeveloper}, 0)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/tools/list", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.authenticated(s.handleToolsList).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var body struct {
		Tools []models.ToolDefinition `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Tools) != 2 {
		t.Fatalf("got %d tools, want the 2 fixed meta-tools with an empty registry", len(body.Tools))
	}
}
