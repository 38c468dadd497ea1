package control

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/haasonsaas/nexus/internal/errs"
	"github.com/haasonsaas/nexus/internal/fleet"
	"github.com/haasonsaas/nexus/internal/toolhost"
	"github.com/haasonsaas/nexus/pkg/models"
)

// decodeBody parses the JSON request body into dst, failing with
// errs.Validation on malformed input. An absent or empty body leaves dst
// unchanged.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errs.Wrap(errs.Validation, err, "decode request body")
	}
	return nil
}

func (s *Server) handleToolsList(w http.ResponseWriter, r *http.Request, caller models.CallerContext) {
	var body struct {
		DomainFilter []string `json:"domain_filter,omitempty"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	// The host merges fleet-backed tools into the same domain/role/lazy
	// pipeline as registry-backed ones; there is no separate, ungated
	// remote listing.
	tools := s.host.ListTools(toolhost.ListToolsRequest{
		SessionID:    caller.SessionID,
		Caller:       caller,
		DomainFilter: body.DomainFilter,
	})

	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request, caller models.CallerContext) {
	var body struct {
		Tool      string          `json:"tool"`
		Server    string          `json:"server,omitempty"`
		Arguments json.RawMessage `json:"arguments,omitempty"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	// A server-qualified call is just the namespaced name; it still goes
	// through the host so fleet-backed tools hit the same permission,
	// enablement, and expiry gate as registry-backed ones.
	toolName := body.Tool
	if body.Server != "" {
		toolName = fleet.NamespacedName(body.Server, body.Tool)
	}

	result, err := s.host.CallTool(r.Context(), toolhost.CallToolRequest{
		SessionID: caller.SessionID,
		Caller:    caller,
		Tool:      toolName,
		Arguments: body.Arguments,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, json.RawMessage(result))
}

func (s *Server) handlePromptsList(w http.ResponseWriter, r *http.Request, _ models.CallerContext) {
	prompts, err := s.fleet.ListPrompts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts})
}

func (s *Server) handlePromptsGet(w http.ResponseWriter, r *http.Request, _ models.CallerContext) {
	var body struct {
		Server    string         `json:"server"`
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments,omitempty"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Server == "" || body.Name == "" {
		writeError(w, errs.New(errs.Validation, "server and name are required"))
		return
	}
	result, err := s.fleet.GetPrompt(r.Context(), body.Server, body.Name, body.Arguments)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleObjectivesSubmit(w http.ResponseWriter, r *http.Request, caller models.CallerContext) {
	var body struct {
		SessionID string `json:"session_id"`
		Objective string `json:"objective"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	sessionID := body.SessionID
	if sessionID == "" {
		sessionID = caller.SessionID
	}
	if sessionID == "" || body.Objective == "" {
		writeError(w, errs.New(errs.Validation, "session_id and objective are required"))
		return
	}

	if !s.tracker.Submit(sessionID, body.Objective) {
		writeError(w, errs.New(errs.Validation, "an objective is already running for this session"))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"session_id": sessionID, "state": "running"})
}

func (s *Server) handleObjectivesStatus(w http.ResponseWriter, r *http.Request, caller models.CallerContext) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = caller.SessionID
	}
	if sessionID == "" {
		writeError(w, errs.New(errs.Validation, "session_id is required"))
		return
	}
	status, ok := s.tracker.Status(sessionID)
	if !ok {
		writeError(w, errs.New(errs.NotFound, "no objective tracked for this session"))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleFleetRestart(w http.ResponseWriter, r *http.Request, caller models.CallerContext) {
	if caller.EffectiveRole() != models.RoleAdmin {
		writeError(w, errs.New(errs.Forbidden, "fleet restart requires the admin role"))
		return
	}
	var body struct {
		Server string `json:"server"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Server == "" {
		writeError(w, errs.New(errs.Validation, "server is required"))
		return
	}
	if err := s.fleet.Restart(r.Context(), body.Server); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"server": body.Server, "state": "restarted"})
}

func (s *Server) handleSessionsTree(w http.ResponseWriter, r *http.Request, caller models.CallerContext) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		writeError(w, errs.New(errs.Validation, "project_id is required"))
		return
	}
	nodes, err := s.tree.BuildTree(projectID, caller.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes})
}
