package toolhost

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/nexus/internal/fleet"
	"github.com/haasonsaas/nexus/internal/toolregistry"
	"github.com/haasonsaas/nexus/internal/toolsearch"
	"github.com/haasonsaas/nexus/pkg/models"
)

type stubTool struct {
	def models.ToolDefinition
	fn  func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)
}

func (s stubTool) Definition() models.ToolDefinition { return s.def }
func (s stubTool) Execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	return s.fn(ctx, args)
}

func buildHost(t *testing.T, deferredTools ...string) (*Host, *toolsearch.Enablement) {
	t.Helper()
	registry := toolregistry.New()
	registry.Discover(context.Background(), []toolregistry.Tool{
		stubTool{
			def: models.ToolDefinition{Name: "read", Description: "Read a file", Domain: "fs", AllowedRoles: []models.Role{models.RoleDeveloper, models.RoleAdmin}},
			fn:  func(context.Context, json.RawMessage) (json.RawMessage, error) { return json.RawMessage(`"ok"`), nil },
		},
		stubTool{
			def: models.ToolDefinition{Name: "deploy", Description: "Deploy the service", Domain: "ops", AllowedRoles: []models.Role{models.RoleAdmin}},
			fn:  func(context.Context, json.RawMessage) (json.RawMessage, error) { return json.RawMessage(`"deployed"`), nil },
		},
	})

	index := toolsearch.New()
	for _, def := range registry.GetToolDefinitions() {
		deferred := false
		for _, d := range deferredTools {
			if d == def.Name {
				deferred = true
			}
		}
		index.Add(def, deferred)
	}

	en, err := toolsearch.NewEnablement(t.TempDir())
	if err != nil {
		t.Fatalf("NewEnablement: %v", err)
	}

	return New(registry, index, en, true, nil), en
}

func TestHost_ListTools_RoleFilterAndMeta(t *testing.T) {
	host, _ := buildHost(t)

	defs := host.ListTools(ListToolsRequest{
		SessionID: "s1",
		Caller:    models.CallerContext{Role: models.RoleDeveloper},
	})

	names := map[string]bool{}
	for _, d := range defs {
		names[d.Name] = true
	}
	if !names["read"] {
		t.Fatal("expected read to be visible to developer")
	}
	if names["deploy"] {
		t.Fatal("expected deploy to be hidden from developer")
	}
	if !names[metaToolSearch] || !names[metaToolExecute] {
		t.Fatal("expected meta-tools to always be present")
	}
}

func TestHost_LazyModeDefersUntilEnabled(t *testing.T) {
	host, _ := buildHost(t, "read")

	defs := host.ListTools(ListToolsRequest{SessionID: "s1", Caller: models.CallerContext{Role: models.RoleDeveloper}})
	for _, d := range defs {
		if d.Name == "read" {
			t.Fatal("expected deferred tool to be hidden before enablement")
		}
	}

	ctx := context.Background()
	_, err := host.CallTool(ctx, CallToolRequest{
		SessionID: "s1",
		Caller:    models.CallerContext{Role: models.RoleDeveloper},
		Tool:      "read",
		Arguments: json.RawMessage(`{}`),
	})
	if err == nil {
		t.Fatal("expected deferred-and-not-enabled tool call to fail")
	}

	result, err := host.CallTool(ctx, CallToolRequest{
		SessionID: "s1",
		Caller:    models.CallerContext{Role: models.RoleDeveloper},
		Tool:      metaToolExecute,
		Arguments: mustJSON(map[string]any{"tool": "read", "arguments": map[string]any{}}),
	})
	if err != nil {
		t.Fatalf("tool_execute: %v", err)
	}
	if string(result) != `"ok"` {
		t.Fatalf("unexpected result: %s", result)
	}
}

func TestHost_RoleForbidden(t *testing.T) {
	host, _ := buildHost(t)
	_, err := host.CallTool(context.Background(), CallToolRequest{
		SessionID: "s1",
		Caller:    models.CallerContext{Role: models.RoleDeveloper},
		Tool:      "deploy",
		Arguments: json.RawMessage(`{}`),
	})
	if err == nil {
		t.Fatal("expected forbidden error for developer calling admin-only tool")
	}
}

func mustJSON(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func TestHost_CallTool_ValidatesArgumentsAgainstSchema(t *testing.T) {
	registry := toolregistry.New()
	registry.Discover(context.Background(), []toolregistry.Tool{
		stubTool{
			def: models.ToolDefinition{
				Name:        "read",
				Description: "Read a file",
				Domain:      "fs",
				AllowedRoles: []models.Role{models.RoleDeveloper, models.RoleAdmin},
				InputSchema: map[string]any{
					"type":                 "object",
					"required":             []any{"path"},
					"additionalProperties": false,
					"properties": map[string]any{
						"path": map[string]any{"type": "string"},
					},
				},
			},
			fn: func(context.Context, json.RawMessage) (json.RawMessage, error) { return json.RawMessage(`"ok"`), nil },
		},
	})
	index := toolsearch.New()
	for _, def := range registry.GetToolDefinitions() {
		index.Add(def, false)
	}
	en, err := toolsearch.NewEnablement(t.TempDir())
	if err != nil {
		t.Fatalf("NewEnablement: %v", err)
	}
	host := New(registry, index, en, true, nil)

	if _, err := host.CallTool(context.Background(), CallToolRequest{
		SessionID: "s1",
		Caller:    models.CallerContext{Role: models.RoleDeveloper},
		Tool:      "read",
		Arguments: mustJSON(map[string]string{"path": "/tmp/x"}),
	}); err != nil {
		t.Fatalf("expected valid arguments to pass, got %v", err)
	}

	if _, err := host.CallTool(context.Background(), CallToolRequest{
		SessionID: "s1",
		Caller:    models.CallerContext{Role: models.RoleDeveloper},
		Tool:      "read",
		Arguments: mustJSON(map[string]string{"wrongField": "x"}),
	}); err == nil {
		t.Fatal("expected schema validation error for missing required field")
	}
}

type stubFleet struct {
	tools  []fleet.NamespacedTool
	called bool
	args   map[string]any
}

func (f *stubFleet) Tools() []fleet.NamespacedTool { return f.tools }
func (f *stubFleet) CallTool(ctx context.Context, server, tool string, args map[string]any) (*fleet.ToolCallResult, error) {
	f.called = true
	f.args = args
	return &fleet.ToolCallResult{Content: []json.RawMessage{json.RawMessage(`{"type":"text","text":"42"}`)}}, nil
}

func newStubFleet() *stubFleet {
	return &stubFleet{tools: []fleet.NamespacedTool{{
		ServerName:     "snow",
		NamespacedName: "snow_query_incidents",
		Descriptor: fleet.ToolDescriptor{
			Name:        "query_incidents",
			Description: "Query open incidents.",
		},
	}}}
}

func TestHost_FleetToolsGoThroughTheGate(t *testing.T) {
	host, _ := buildHost(t)
	f := newStubFleet()
	host.AttachFleet(f)
	ctx := context.Background()

	// Hidden from listings until enabled: fleet tools are deferred by
	// default in lazy mode.
	for _, d := range host.ListTools(ListToolsRequest{SessionID: "s1", Caller: models.CallerContext{Role: models.RoleDeveloper}}) {
		if d.Name == "snow_query_incidents" {
			t.Fatal("expected fleet tool to be hidden before enablement")
		}
	}

	// Direct call before enablement fails with the deferred instruction.
	if _, err := host.CallTool(ctx, CallToolRequest{
		SessionID: "s1",
		Caller:    models.CallerContext{Role: models.RoleDeveloper},
		Tool:      "snow_query_incidents",
		Arguments: json.RawMessage(`{"state":"open"}`),
	}); err == nil {
		t.Fatal("expected deferred fleet tool call to fail before enablement")
	}
	if f.called {
		t.Fatal("fleet must not be reached before the gate passes")
	}

	// tool_execute enables and dispatches through the same pipeline.
	result, err := host.CallTool(ctx, CallToolRequest{
		SessionID: "s1",
		Caller:    models.CallerContext{Role: models.RoleDeveloper},
		Tool:      metaToolExecute,
		Arguments: mustJSON(map[string]any{"tool": "snow_query_incidents", "arguments": map[string]any{"state": "open"}}),
	})
	if err != nil {
		t.Fatalf("tool_execute: %v", err)
	}
	if !f.called || f.args["state"] != "open" {
		t.Fatalf("fleet call not forwarded: called=%v args=%v", f.called, f.args)
	}
	var callResult fleet.ToolCallResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(callResult.Content) != 1 {
		t.Fatalf("unexpected result: %s", result)
	}

	// Enabled in one session, still listed and callable there...
	var listed bool
	for _, d := range host.ListTools(ListToolsRequest{SessionID: "s1", Caller: models.CallerContext{Role: models.RoleDeveloper}}) {
		if d.Name == "snow_query_incidents" {
			listed = true
		}
	}
	if !listed {
		t.Fatal("expected enabled fleet tool to be listed for its session")
	}

	// ...but a different session still gets the deferred instruction.
	if _, err := host.CallTool(ctx, CallToolRequest{
		SessionID: "other-session",
		Caller:    models.CallerContext{Role: models.RoleDeveloper},
		Tool:      "snow_query_incidents",
		Arguments: json.RawMessage(`{}`),
	}); err == nil {
		t.Fatal("expected deferred error in a session without enablement")
	}
}

func TestHost_FleetToolsNeverReachStakeholders(t *testing.T) {
	host, en := buildHost(t)
	host.AttachFleet(newStubFleet())
	ctx := context.Background()

	// Even with the tool enabled for the session, the conservative
	// write-level default keeps stakeholders out.
	if err := en.EnableTool("s1", "snow_query_incidents"); err != nil {
		t.Fatalf("EnableTool: %v", err)
	}
	_, err := host.CallTool(ctx, CallToolRequest{
		SessionID: "s1",
		Caller:    models.CallerContext{Role: models.RoleStakeholder},
		Tool:      "snow_query_incidents",
		Arguments: json.RawMessage(`{}`),
	})
	if err == nil {
		t.Fatal("expected stakeholder to be forbidden from a fleet tool")
	}

	for _, d := range host.ListTools(ListToolsRequest{SessionID: "s1", Caller: models.CallerContext{Role: models.RoleStakeholder}}) {
		if d.Name == "snow_query_incidents" {
			t.Fatal("fleet tool must not be listed for a stakeholder")
		}
	}
}
