package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/internal/bus"
	"github.com/haasonsaas/nexus/internal/retry"
	"github.com/haasonsaas/nexus/pkg/models"
)

// connectingWait bounds how long ensureConnected waits for an in-flight
// connection attempt before giving up.
const connectingWait = 2 * time.Second

// ConfigLoader re-reads the fleet's server configuration from disk,
// bypassing any in-memory cache; used by reload() and restart().
type ConfigLoader func() ([]models.ServerConfig, error)

type managedEntry struct {
	client      *Client
	reconnector *retry.Reconnector
	config      models.ServerConfig
}

// Manager is the tool-server fleet (C6): one managedEntry per configured
// server, booted in parallel with per-server failure isolation.
type Manager struct {
	logger *slog.Logger
	bus    *bus.Bus
	load   ConfigLoader

	mu      sync.RWMutex
	entries map[string]*managedEntry
}

// NewManager creates a fleet Manager. load is called on Start and on every
// reload()/restart() to fetch the current server list.
func NewManager(load ConfigLoader, eventBus *bus.Bus, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:  logger.With("component", "fleet"),
		bus:     eventBus,
		load:    load,
		entries: make(map[string]*managedEntry),
	}
}

// Start loads the server configuration and connects every enabled server in
// parallel; a single server's failure never blocks the others.
func (m *Manager) Start(ctx context.Context) error {
	servers, err := m.load()
	if err != nil {
		return fmt.Errorf("fleet: load config: %w", err)
	}

	var wg sync.WaitGroup
	for _, cfg := range servers {
		if !cfg.Enabled {
			continue
		}
		cfg := cfg
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.connectServer(ctx, cfg); err != nil {
				m.logger.Error("tool server failed to connect", "server", cfg.Name, "error", err)
			}
		}()
	}
	wg.Wait()
	return nil
}

func (m *Manager) connectServer(ctx context.Context, cfg models.ServerConfig) error {
	client := NewClient(cfg, m.logger)

	entry := &managedEntry{client: client, config: cfg}
	entry.reconnector = retry.NewReconnector(cfg.Name, retry.ReconnectHooks{
		Connect: client.Connect,
	}, retry.ReconnectPolicy{
		MaxReconnectAttempts: cfg.Retry.MaxRetries,
		InitialDelay:         cfg.Retry.InitialDelay,
		MaxDelay:             cfg.Retry.MaxDelay,
		BackoffFactor:        cfg.Retry.BackoffFactor,
		Jitter:               cfg.Retry.Jitter,
	}, m.busAdapter())

	m.mu.Lock()
	m.entries[cfg.Name] = entry
	m.mu.Unlock()

	return entry.reconnector.Start(ctx)
}

// busAdapter returns nil when no bus was configured, matching
// retry.EventPublisher's nil-is-ok contract.
func (m *Manager) busAdapter() retry.EventPublisher {
	if m.bus == nil {
		return nil
	}
	return busPublisher{m.bus}
}

type busPublisher struct{ b *bus.Bus }

func (p busPublisher) Publish(event string, payload any) { p.b.Publish(event, payload) }

// Stop disconnects every managed server.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, entry := range m.entries {
		entry.reconnector.Stop()
		if err := entry.client.Close(); err != nil {
			m.logger.Error("failed to close tool server", "server", name, "error", err)
		}
	}
	m.entries = make(map[string]*managedEntry)
}

// Reload re-reads server configuration from disk and starts any newly
// configured, enabled server that is not already managed. Existing servers
// are left untouched; use Restart to pick up changed settings for one.
func (m *Manager) Reload(ctx context.Context) error {
	servers, err := m.load()
	if err != nil {
		return fmt.Errorf("fleet: reload config: %w", err)
	}

	for _, cfg := range servers {
		if !cfg.Enabled {
			continue
		}
		m.mu.RLock()
		_, exists := m.entries[cfg.Name]
		m.mu.RUnlock()
		if exists {
			continue
		}
		cfg := cfg
		go func() {
			if err := m.connectServer(ctx, cfg); err != nil {
				m.logger.Error("newly configured tool server failed to connect", "server", cfg.Name, "error", err)
			}
		}()
	}
	return nil
}

// Restart tears an existing managed server down (best-effort) and
// recreates it with freshly loaded configuration.
func (m *Manager) Restart(ctx context.Context, name string) error {
	m.mu.Lock()
	if entry, ok := m.entries[name]; ok {
		entry.reconnector.Stop()
		_ = entry.client.Close()
		delete(m.entries, name)
	}
	m.mu.Unlock()

	servers, err := m.load()
	if err != nil {
		return fmt.Errorf("fleet: restart %q: load config: %w", name, err)
	}
	for _, cfg := range servers {
		if cfg.Name == name {
			return m.connectServer(ctx, cfg)
		}
	}
	return fmt.Errorf("fleet: restart %q: not found in config", name)
}

// EnsureConnected is called before every tool dispatch: a connected server
// proceeds immediately; a disconnected or failed one triggers a reconnect;
// a server mid-connect is given connectingWait to settle before being
// re-checked once.
func (m *Manager) EnsureConnected(ctx context.Context, name string) error {
	m.mu.RLock()
	entry, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("fleet: server %q not managed", name)
	}

	switch entry.reconnector.State() {
	case retry.StateConnected:
		return nil
	case retry.StateConnecting:
		select {
		case <-time.After(connectingWait):
		case <-ctx.Done():
			return ctx.Err()
		}
		if entry.reconnector.State() == retry.StateConnected {
			return nil
		}
		return fmt.Errorf("fleet: server %q still connecting after %v", name, connectingWait)
	default:
		return entry.reconnector.TriggerReconnect(ctx)
	}
}

// Status summarizes every managed server's reconnector state, for the
// control surface's /healthz endpoint.
func (m *Manager) Status() map[string]retry.ReconnectState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]retry.ReconnectState, len(m.entries))
	for name, entry := range m.entries {
		out[name] = entry.reconnector.State()
	}
	return out
}

// Client returns the managed client for name, if any.
func (m *Manager) Client(name string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[name]
	if !ok {
		return nil, false
	}
	return entry.client, true
}

// NamespacedTool is one tool offered by a connected server, with its
// namespaced dispatch name.
type NamespacedTool struct {
	ServerName    string
	NamespacedName string
	Descriptor    ToolDescriptor
}

// Tools aggregates the tool lists of every currently connected server,
// namespacing each as "<sanitizedServer>_<sanitizedTool>" so identically
// named tools from different servers never collide.
func (m *Manager) Tools() []NamespacedTool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []NamespacedTool
	for name, entry := range m.entries {
		if !entry.client.Connected() {
			continue
		}
		for _, tool := range entry.client.Tools() {
			out = append(out, NamespacedTool{
				ServerName:     name,
				NamespacedName: NamespacedName(name, tool.Name),
				Descriptor:     tool,
			})
		}
	}
	return out
}

// CallTool dispatches a namespaced tool call by first ensuring the owning
// server is connected.
func (m *Manager) CallTool(ctx context.Context, serverName, toolName string, arguments map[string]any) (*ToolCallResult, error) {
	if err := m.EnsureConnected(ctx, serverName); err != nil {
		return nil, err
	}
	client, ok := m.Client(serverName)
	if !ok {
		return nil, fmt.Errorf("fleet: server %q not managed", serverName)
	}
	return client.CallTool(ctx, toolName, arguments)
}

// NamespacedPrompt is one prompt template offered by a connected server,
// with its namespaced lookup name.
type NamespacedPrompt struct {
	ServerName     string
	NamespacedName string
	Descriptor     PromptDescriptor
}

// ListPrompts aggregates the prompt templates of every currently connected
// server, namespaced the same way Tools() namespaces tool names.
func (m *Manager) ListPrompts(ctx context.Context) ([]NamespacedPrompt, error) {
	m.mu.RLock()
	entries := make(map[string]*managedEntry, len(m.entries))
	for name, entry := range m.entries {
		entries[name] = entry
	}
	m.mu.RUnlock()

	var out []NamespacedPrompt
	for name, entry := range entries {
		if !entry.client.Connected() {
			continue
		}
		prompts, err := entry.client.ListPrompts(ctx)
		if err != nil {
			m.logger.Warn("list prompts failed", "server", name, "error", err)
			continue
		}
		for _, p := range prompts {
			out = append(out, NamespacedPrompt{
				ServerName:     name,
				NamespacedName: sanitizeName(name) + "_" + sanitizeName(p.Name),
				Descriptor:     p,
			})
		}
	}
	return out, nil
}

// GetPrompt dispatches a namespaced prompt fetch by first ensuring the
// owning server is connected.
func (m *Manager) GetPrompt(ctx context.Context, serverName, promptName string, arguments map[string]any) (json.RawMessage, error) {
	if err := m.EnsureConnected(ctx, serverName); err != nil {
		return nil, err
	}
	client, ok := m.Client(serverName)
	if !ok {
		return nil, fmt.Errorf("fleet: server %q not managed", serverName)
	}
	return client.GetPrompt(ctx, promptName, arguments)
}
