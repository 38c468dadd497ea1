package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	pingTimeout   = 5 * time.Second
	machineIDFile = "machine-id"
)

// LifecycleEvent is the payload of a fire-and-forget ping.
type LifecycleEvent struct {
	MachineID string    `json:"machine_id"`
	Event     string    `json:"event"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Pinger sends fire-and-forget lifecycle pings to a portal endpoint. It
// never blocks its caller and never propagates a send failure — the same
// "never block, never propagate" discipline the additive spec requires of
// every telemetry mirror.
type Pinger struct {
	endpoint  string
	machineID string
	disabled  bool
	client    *http.Client
}

// NewPinger resolves the opt-out and machine-identity state once at
// construction. Opt-out is honored via the standard DO_NOT_TRACK
// environment variable, a CI environment variable (set by virtually every
// CI provider), or explicit disable. If a machine id cannot be obtained,
// telemetry is disabled rather than sent anonymously-but-unidentified.
func NewPinger(endpoint, stateDir string, explicitlyDisabled bool) *Pinger {
	p := &Pinger{endpoint: endpoint, client: &http.Client{Timeout: pingTimeout}}

	if explicitlyDisabled || optedOut() {
		p.disabled = true
		return p
	}

	id, err := machineID(stateDir)
	if err != nil {
		p.disabled = true
		return p
	}
	p.machineID = id
	return p
}

func optedOut() bool {
	if v := os.Getenv("DO_NOT_TRACK"); v != "" && v != "0" {
		return true
	}
	if v := os.Getenv("CI"); v != "" && v != "0" && v != "false" {
		return true
	}
	return false
}

// machineID reads (or creates) a persisted UUID under stateDir, reusing the
// atomic write-then-rename idiom the session-memory store uses so a reader
// never observes a half-written id file.
func machineID(stateDir string) (string, error) {
	path := filepath.Join(stateDir, machineIDFile)
	if data, err := os.ReadFile(path); err == nil {
		return string(bytes.TrimSpace(data)), nil
	}

	id := uuid.NewString()
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return "", fmt.Errorf("telemetry: create state dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(id), 0o644); err != nil {
		return "", fmt.Errorf("telemetry: write machine id: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("telemetry: rename machine id into place: %w", err)
	}
	return id, nil
}

// Ping fires event in a new goroutine and returns immediately; any error
// (disabled, network failure, non-2xx status) is dropped, never returned
// and never logged at a level that could be mistaken for an operational
// failure.
func (p *Pinger) Ping(event, version string) {
	if p.disabled || p.endpoint == "" {
		return
	}

	payload := LifecycleEvent{
		MachineID: p.machineID,
		Event:     event,
		Version:   version,
		Timestamp: time.Now(),
	}

	go func() {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(data))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := p.client.Do(req)
		if err != nil {
			return
		}
		_ = resp.Body.Close()
	}()
}
