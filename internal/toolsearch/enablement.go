package toolsearch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

var unsafeSessionChar = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// sanitizeSessionID replaces every character outside [a-zA-Z0-9-_] with an
// underscore, so a session id can never escape the enabled-tools directory.
func sanitizeSessionID(sessionID string) string {
	return unsafeSessionChar.ReplaceAllString(sessionID, "_")
}

// ToolStatus is the caller-facing availability tier for a tool/session pair.
type ToolStatus string

const (
	StatusAvailable ToolStatus = "AVAILABLE"
	StatusEnabled   ToolStatus = "ENABLED"
	StatusDeferred  ToolStatus = "DEFERRED"
)

// Enablement persists, per session, which lazily-exposed tools have been
// enabled, plus a cross-process current-session broadcast file.
type Enablement struct {
	dir string

	mu    sync.Mutex
	cache map[string]map[string]struct{} // sessionID -> enabled tool set
}

// NewEnablement creates an Enablement rooted at dir (…/enabled-tools).
func NewEnablement(dir string) (*Enablement, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("toolsearch: create enabled-tools dir: %w", err)
	}
	return &Enablement{dir: dir, cache: make(map[string]map[string]struct{})}, nil
}

func (e *Enablement) path(sessionID string) string {
	return filepath.Join(e.dir, fmt.Sprintf("enabled-tools-%s.json", sanitizeSessionID(sessionID)))
}

func (e *Enablement) load(sessionID string) (map[string]struct{}, error) {
	if set, ok := e.cache[sessionID]; ok {
		return set, nil
	}
	set := make(map[string]struct{})

	data, err := os.ReadFile(e.path(sessionID))
	if os.IsNotExist(err) {
		e.cache[sessionID] = set
		return set, nil
	}
	if err != nil {
		return nil, fmt.Errorf("toolsearch: read enabled tools: %w", err)
	}
	var doc models.EnabledToolsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("toolsearch: parse enabled tools: %w", err)
	}
	for _, t := range doc.Tools {
		set[t] = struct{}{}
	}
	e.cache[sessionID] = set
	return set, nil
}

func (e *Enablement) persist(sessionID string, set map[string]struct{}) error {
	doc := models.EnabledToolsDoc{SessionID: sessionID, UpdatedAt: time.Now()}
	for t := range set {
		doc.Tools = append(doc.Tools, t)
	}
	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("toolsearch: marshal enabled tools: %w", err)
	}
	path := e.path(sessionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("toolsearch: write enabled tools: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("toolsearch: rename enabled tools: %w", err)
	}
	return nil
}

// EnableTool marks one or more tools enabled for sessionID.
func (e *Enablement) EnableTool(sessionID string, tools ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	set, err := e.load(sessionID)
	if err != nil {
		return err
	}
	for _, t := range tools {
		set[t] = struct{}{}
	}
	e.cache[sessionID] = set
	return e.persist(sessionID, set)
}

// GetEnabledTools returns the set of tool names enabled for sessionID.
func (e *Enablement) GetEnabledTools(sessionID string) (map[string]struct{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	set, err := e.load(sessionID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}
	return out, nil
}

// IsToolEnabled reports whether tool is enabled for sessionID.
func (e *Enablement) IsToolEnabled(sessionID, tool string) (bool, error) {
	set, err := e.GetEnabledTools(sessionID)
	if err != nil {
		return false, err
	}
	_, ok := set[tool]
	return ok, nil
}

// ClearSession removes sessionID's enabled-tools record entirely.
func (e *Enablement) ClearSession(sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cache, sessionID)
	err := os.Remove(e.path(sessionID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// CanExecuteTool reports whether sessionID may execute toolID given its
// deferred flag: non-deferred tools are always executable; deferred tools
// require explicit enablement (canExecuteTool = !deferred || enabled).
func (e *Enablement) CanExecuteTool(sessionID, toolID string, deferred bool) (bool, error) {
	if !deferred {
		return true, nil
	}
	enabled, err := e.IsToolEnabled(sessionID, toolID)
	if err != nil {
		return false, err
	}
	return enabled, nil
}

// ToolStatusFor classifies id for sessionID into AVAILABLE/ENABLED/DEFERRED.
func ToolStatusFor(deferred bool, enabled bool) ToolStatus {
	switch {
	case !deferred:
		return StatusAvailable
	case enabled:
		return StatusEnabled
	default:
		return StatusDeferred
	}
}

// CurrentSessionBroadcast writes the cross-process current-session.json
// document so independently running processes agree on the active session.
func CurrentSessionBroadcast(dir, sessionID string) error {
	doc := models.CurrentSessionDoc{SessionID: sessionID, UpdatedAt: time.Now()}
	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("toolsearch: marshal current session: %w", err)
	}
	path := filepath.Join(dir, "current-session.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("toolsearch: write current session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("toolsearch: rename current session: %w", err)
	}
	return nil
}

// ReadCurrentSession reads the broadcast current-session document, if any.
func ReadCurrentSession(dir string) (*models.CurrentSessionDoc, error) {
	data, err := os.ReadFile(filepath.Join(dir, "current-session.json"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("toolsearch: read current session: %w", err)
	}
	var doc models.CurrentSessionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("toolsearch: parse current session: %w", err)
	}
	return &doc, nil
}
