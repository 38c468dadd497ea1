// Package toolhost implements the unified tool host (C7): a single
// list-tools/call-tool surface that gates every registered tool behind
// role permissions and lazy per-session enablement, and exposes exactly
// two meta-tools (tool_search, tool_execute) so a caller with a small,
// fixed tool list can still dynamically reach the full registry.
package toolhost

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/errs"
	"github.com/haasonsaas/nexus/internal/fleet"
	"github.com/haasonsaas/nexus/internal/retry"
	"github.com/haasonsaas/nexus/internal/toolregistry"
	"github.com/haasonsaas/nexus/internal/toolsearch"
	"github.com/haasonsaas/nexus/pkg/models"
)

const (
	metaToolSearch  = "tool_search"
	metaToolExecute = "tool_execute"
)

// idempotentTools lists the read-only, idempotent operations the call-tool
// pipeline retries automatically; everything else runs at most once.
var idempotentTools = map[string]bool{
	"read":       true,
	"list":       true,
	"web_search": true,
	"web_fetch":  true,
}

// FleetDispatcher is the narrow fleet surface the host dispatches through;
// satisfied by *fleet.Manager. Fleet-backed tools go through the same
// permission, lazy-enablement, and expiry pipeline as registry-backed
// ones — nothing reaches a fleet server around the gate.
type FleetDispatcher interface {
	Tools() []fleet.NamespacedTool
	CallTool(ctx context.Context, serverName, toolName string, arguments map[string]any) (*fleet.ToolCallResult, error)
}

// Host is the C7 unified tool host.
type Host struct {
	registry   *toolregistry.Registry
	index      *toolsearch.Index
	enablement *toolsearch.Enablement
	fleet      FleetDispatcher
	logger     *slog.Logger
	lazyMode   bool
}

// New creates a Host. lazyMode defaults to true per the component spec;
// pass false only for deployments that explicitly disable lazy exposure.
func New(registry *toolregistry.Registry, index *toolsearch.Index, enablement *toolsearch.Enablement, lazyMode bool, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{registry: registry, index: index, enablement: enablement, lazyMode: lazyMode, logger: logger.With("component", "toolhost")}
}

// AttachFleet exposes a fleet's namespaced tools through this host's
// list/call pipeline. Call once during wiring, before serving requests.
func (h *Host) AttachFleet(f FleetDispatcher) {
	h.fleet = f
}

// fleetDefinition projects a namespaced fleet tool into the definition
// shape the gate operates on. Fleet servers advertise no role or
// permission metadata, so the conservative default applies: write-level,
// developer/admin only — a stakeholder can never reach one.
func fleetDefinition(nt fleet.NamespacedTool) models.ToolDefinition {
	var schema map[string]any
	if len(nt.Descriptor.InputSchema) > 0 {
		_ = json.Unmarshal(nt.Descriptor.InputSchema, &schema)
	}
	return models.ToolDefinition{
		Name:         nt.NamespacedName,
		Description:  nt.Descriptor.Description,
		InputSchema:  schema,
		Domain:       nt.ServerName,
		Permission:   models.PermissionWrite,
		AllowedRoles: []models.Role{models.RoleDeveloper, models.RoleAdmin},
	}
}

// fleetDefinitions snapshots the connected fleet's tools and makes sure
// each has an index entry, deferred by default, so lazy gating and
// tool_search cover fleet-backed tools the same as registry-backed ones.
func (h *Host) fleetDefinitions() []models.ToolDefinition {
	if h.fleet == nil {
		return nil
	}
	var defs []models.ToolDefinition
	for _, nt := range h.fleet.Tools() {
		def := fleetDefinition(nt)
		if _, found := h.index.IsDeferred(def.Name); !found {
			h.index.Add(def, true)
		}
		defs = append(defs, def)
	}
	return defs
}

// ListToolsRequest carries everything ListTools needs to resolve visibility.
type ListToolsRequest struct {
	SessionID    string
	Caller       models.CallerContext
	DomainFilter []string
}

// ListTools implements the five-step list-tools algorithm. Fleet-backed
// tools are merged into the same pipeline as registry-backed ones, so the
// domain, role, and lazy filters apply uniformly.
func (h *Host) ListTools(req ListToolsRequest) []models.ToolDefinition {
	role := req.Caller.EffectiveRole()

	defs := h.registry.GetToolDefinitions()
	defs = append(defs, h.fleetDefinitions()...)
	if len(req.DomainFilter) > 0 {
		allowed := make(map[string]struct{}, len(req.DomainFilter))
		for _, d := range req.DomainFilter {
			allowed[d] = struct{}{}
		}
		known := make(map[string]struct{})
		for _, d := range defs {
			known[d.Domain] = struct{}{}
		}
		for _, d := range req.DomainFilter {
			if _, ok := known[d]; !ok {
				h.logger.Warn("unknown domain in filter, ignoring", "domain", d)
			}
		}
		filtered := defs[:0:0]
		for _, d := range defs {
			if _, ok := allowed[d.Domain]; ok {
				filtered = append(filtered, d)
			}
		}
		defs = filtered
	}

	var visible []models.ToolDefinition
	for _, d := range defs {
		if !d.AllowsRole(role) {
			continue
		}
		// In lazy mode a tool absent from the index counts as deferred;
		// there is no permissive fallback.
		if h.lazyMode {
			deferred, found := h.index.IsDeferred(d.Name)
			if !found || deferred {
				enabled, _ := h.enablement.IsToolEnabled(req.SessionID, d.Name)
				if !enabled {
					continue
				}
			}
		}
		visible = append(visible, d)
	}

	visible = append(visible, metaToolDefinition(metaToolSearch), metaToolDefinition(metaToolExecute))
	return visible
}

func metaToolDefinition(name string) models.ToolDefinition {
	return models.ToolDefinition{
		Name:         name,
		Description:  "Meta-tool for dynamic tool discovery and dispatch.",
		Domain:       "meta",
		Permission:   models.PermissionRead,
		AllowedRoles: []models.Role{models.RoleStakeholder, models.RoleDeveloper, models.RoleAdmin},
		Idempotent:   true,
	}
}

// CallToolRequest carries a single tool invocation.
type CallToolRequest struct {
	SessionID string
	Caller    models.CallerContext
	Tool      string
	Arguments json.RawMessage
}

// CallTool implements the six-step call-tool algorithm, dispatching
// tool_search/tool_execute in-process before falling through to the
// registry-backed pipeline.
func (h *Host) CallTool(ctx context.Context, req CallToolRequest) (json.RawMessage, error) {
	h.logCall(req)

	switch req.Tool {
	case metaToolSearch:
		return h.handleToolSearch(req)
	case metaToolExecute:
		return h.handleToolExecute(ctx, req)
	}
	return h.dispatch(ctx, req)
}

func (h *Host) dispatch(ctx context.Context, req CallToolRequest) (json.RawMessage, error) {
	if tool, ok := h.registry.GetTool(req.Tool); ok {
		def := tool.Definition()
		if err := h.gate(req, def); err != nil {
			return nil, err
		}

		execute := func() (json.RawMessage, error) {
			return tool.Execute(ctx, req.Arguments)
		}

		if idempotentTools[req.Tool] || def.Idempotent {
			result, retryResult := retry.DoWithValue(ctx, retry.DefaultConfig(), execute)
			if retryResult.Err != nil {
				return nil, errs.Wrap(errs.Classify(retryResult.Err), retryResult.Err, fmt.Sprintf("execute %q", req.Tool))
			}
			return result, nil
		}

		result, err := execute()
		if err != nil {
			return nil, errs.Wrap(errs.Classify(err), err, fmt.Sprintf("execute %q", req.Tool))
		}
		return result, nil
	}

	if nt, ok := h.fleetTool(req.Tool); ok {
		return h.dispatchFleet(ctx, req, nt)
	}

	return nil, errs.New(errs.NotFound, fmt.Sprintf("tool %q is not registered", req.Tool))
}

// gate runs the shared deferred-enablement, expiry, role, and schema
// checks of the call-tool algorithm against def.
func (h *Host) gate(req CallToolRequest, def models.ToolDefinition) error {
	// In lazy mode a tool absent from the index counts as deferred; there
	// is no permissive fallback.
	if h.lazyMode {
		deferred, found := h.index.IsDeferred(req.Tool)
		if !found || deferred {
			enabled, err := h.enablement.IsToolEnabled(req.SessionID, req.Tool)
			if err != nil {
				return errs.Wrap(errs.Internal, err, "check tool enablement")
			}
			if !enabled {
				return errs.New(errs.Validation, fmt.Sprintf("tool %q is deferred; call tool_search first to enable it", req.Tool))
			}
		}
	}

	if req.Caller.ExpiresAt != nil && *req.Caller.ExpiresAt > 0 && *req.Caller.ExpiresAt < nowUnix() {
		return errs.New(errs.Unauthorized, "caller credentials have expired")
	}
	role := req.Caller.EffectiveRole()
	if !def.AllowsRole(role) {
		return errs.New(errs.Forbidden, fmt.Sprintf("role %q may not call tool %q", role, req.Tool))
	}

	if err := validateArguments(req.Tool, def.InputSchema, req.Arguments); err != nil {
		return errs.Wrap(errs.Validation, err, fmt.Sprintf("arguments for %q", req.Tool))
	}
	return nil
}

// fleetTool resolves a namespaced tool name against the connected fleet.
func (h *Host) fleetTool(name string) (fleet.NamespacedTool, bool) {
	if h.fleet == nil {
		return fleet.NamespacedTool{}, false
	}
	for _, nt := range h.fleet.Tools() {
		if nt.NamespacedName == name {
			return nt, true
		}
	}
	return fleet.NamespacedTool{}, false
}

// dispatchFleet runs a fleet-backed tool through the same gate as a
// registry-backed one, then forwards to the owning server. Fleet tools
// are never retried here; the fleet layer owns reconnection and a remote
// tool's idempotence is unknown.
func (h *Host) dispatchFleet(ctx context.Context, req CallToolRequest, nt fleet.NamespacedTool) (json.RawMessage, error) {
	def := fleetDefinition(nt)
	if _, found := h.index.IsDeferred(def.Name); !found {
		h.index.Add(def, true)
	}
	if err := h.gate(req, def); err != nil {
		return nil, err
	}

	var args map[string]any
	if len(req.Arguments) > 0 {
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			return nil, errs.Wrap(errs.Validation, err, fmt.Sprintf("arguments for %q", req.Tool))
		}
	}

	result, err := h.fleet.CallTool(ctx, nt.ServerName, nt.Descriptor.Name, args)
	if err != nil {
		return nil, errs.Wrap(errs.Classify(err), err, fmt.Sprintf("execute %q", req.Tool))
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, fmt.Sprintf("encode %q result", req.Tool))
	}
	return payload, nil
}

// ToolSearchResult pairs a search hit with its status for a session.
type ToolSearchResult struct {
	models.ToolIndexEntry
	Status toolsearch.ToolStatus `json:"status"`
}

func (h *Host) handleToolSearch(req CallToolRequest) (json.RawMessage, error) {
	var params struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if len(req.Arguments) > 0 {
		if err := json.Unmarshal(req.Arguments, &params); err != nil {
			return nil, errs.Wrap(errs.Validation, err, "parse tool_search arguments")
		}
	}
	if params.Limit <= 0 {
		params.Limit = 10
	}

	hits := h.index.Search(params.Query, params.Limit)
	results := make([]ToolSearchResult, 0, len(hits))
	for _, hit := range hits {
		enabled, _ := h.enablement.IsToolEnabled(req.SessionID, hit.ID)
		results = append(results, ToolSearchResult{
			ToolIndexEntry: hit.ToolIndexEntry,
			Status:         toolsearch.ToolStatusFor(hit.Deferred, enabled),
		})
	}
	// Auto-enable defaults to off (SPEC_FULL.md Open Question #1): the
	// caller must explicitly invoke tool_execute to enable a deferred tool.
	return json.Marshal(results)
}

func (h *Host) handleToolExecute(ctx context.Context, req CallToolRequest) (json.RawMessage, error) {
	var params struct {
		Tool      string          `json:"tool"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Arguments, &params); err != nil {
		return nil, errs.Wrap(errs.Validation, err, "parse tool_execute arguments")
	}

	if deferred, found := h.index.IsDeferred(params.Tool); !found || deferred {
		if err := h.enablement.EnableTool(req.SessionID, params.Tool); err != nil {
			return nil, errs.Wrap(errs.Internal, err, "enable tool")
		}
	}

	return h.dispatch(ctx, CallToolRequest{
		SessionID: req.SessionID,
		Caller:    req.Caller,
		Tool:      params.Tool,
		Arguments: params.Arguments,
	})
}

// logCall logs the tool name and up to five representative parameters,
// each truncated at 100 characters, never the full argument body.
func (h *Host) logCall(req CallToolRequest) {
	var params map[string]any
	_ = json.Unmarshal(req.Arguments, &params)

	fields := []any{"tool", req.Tool, "session", req.SessionID}
	count := 0
	for k, v := range params {
		if count >= 5 {
			fields = append(fields, "more_params", len(params)-5)
			break
		}
		fields = append(fields, k, summarizeParam(v))
		count++
	}
	h.logger.Info("tool call", fields...)
}

func summarizeParam(v any) string {
	switch val := v.(type) {
	case string:
		if len(val) > 100 {
			return val[:100] + "...(truncated)"
		}
		return val
	case []any:
		return fmt.Sprintf("[%d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{%d keys}", len(val))
	default:
		s := fmt.Sprintf("%v", val)
		if len(s) > 100 {
			s = s[:100] + "...(truncated)"
		}
		return s
	}
}

func nowUnix() int64 { return time.Now().Unix() }

// ResolveSessionID picks the session id per the list-tools algorithm's
// first step: headers, then JWT payload, then environment, then the
// current-session broadcast file, in that priority order.
func ResolveSessionID(header, jwtSub, env, currentSessionFile string) string {
	for _, candidate := range []string{header, jwtSub, env, currentSessionFile} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}
