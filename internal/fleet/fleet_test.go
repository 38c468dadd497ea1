package fleet

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// fakeTransport is a minimal in-memory Transport used to test Client/Manager
// logic without spawning a process or opening a socket.
type fakeTransport struct {
	connected   bool
	connectErr  error
	listResult  json.RawMessage
	callResults map[string]json.RawMessage
	events      chan *JSONRPCNotification
	requests    chan *JSONRPCRequest
}

func newFakeTransport(tools ...ToolDescriptor) *fakeTransport {
	data, _ := json.Marshal(struct {
		Tools []ToolDescriptor `json:"tools"`
	}{Tools: tools})
	return &fakeTransport{
		listResult:  data,
		callResults: make(map[string]json.RawMessage),
		events:      make(chan *JSONRPCNotification, 1),
		requests:    make(chan *JSONRPCRequest, 1),
	}
}

func (f *fakeTransport) Connect(context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}
func (f *fakeTransport) Close() error { f.connected = false; return nil }
func (f *fakeTransport) Call(_ context.Context, method string, _ any) (json.RawMessage, error) {
	if method == "tools/list" {
		return f.listResult, nil
	}
	if r, ok := f.callResults[method]; ok {
		return r, nil
	}
	return json.RawMessage(`{}`), nil
}
func (f *fakeTransport) Notify(context.Context, string, any) error { return nil }
func (f *fakeTransport) Events() <-chan *JSONRPCNotification       { return f.events }
func (f *fakeTransport) Requests() <-chan *JSONRPCRequest          { return f.requests }
func (f *fakeTransport) Respond(context.Context, any, any, *JSONRPCError) error { return nil }
func (f *fakeTransport) Connected() bool                           { return f.connected }

func TestClient_ConnectVerifiesTools(t *testing.T) {
	ft := newFakeTransport(ToolDescriptor{Name: "read"}, ToolDescriptor{Name: "write"})
	c := &Client{config: models.ServerConfig{Name: "files", TimeoutMs: 1000}, transport: ft, logger: slog.Default()}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	tools := c.Tools()
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	if !c.Connected() {
		t.Fatal("expected client to be connected")
	}
}

func TestSanitizeName(t *testing.T) {
	if got := sanitizeName("my-server!!"); got != "my_server" {
		t.Fatalf("unexpected sanitized name: %q", got)
	}
}

func TestManager_EnsureConnectedUnmanaged(t *testing.T) {
	m := NewManager(func() ([]models.ServerConfig, error) { return nil, nil }, nil, nil)
	if err := m.EnsureConnected(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unmanaged server")
	}
}

func TestManager_ToolsNamespacing(t *testing.T) {
	m := NewManager(func() ([]models.ServerConfig, error) { return nil, nil }, nil, nil)
	ft := newFakeTransport(ToolDescriptor{Name: "search"})
	client := &Client{config: models.ServerConfig{Name: "web-tools"}, transport: ft, logger: slog.Default()}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	m.mu.Lock()
	m.entries["web-tools"] = &managedEntry{client: client, config: client.config}
	m.mu.Unlock()

	tools := m.Tools()
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	if tools[0].NamespacedName != "web_tools_search" {
		t.Fatalf("unexpected namespaced name: %q", tools[0].NamespacedName)
	}
}

func TestReconnectPolicyFromRetryConfig(t *testing.T) {
	// Sanity: ensure the fields manager.go reads off models.RetryPolicy line
	// up with DefaultRetryPolicy so a zero-value ServerConfig.Retry still
	// produces sane reconnector behavior in production wiring.
	policy := models.DefaultRetryPolicy()
	if policy.MaxRetries <= 0 || policy.InitialDelay <= 0 {
		t.Fatalf("unexpected default retry policy: %+v", policy)
	}
	_ = time.Second
}
