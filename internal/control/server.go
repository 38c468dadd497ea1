package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/nexus/internal/errs"
	"github.com/haasonsaas/nexus/internal/fleet"
	"github.com/haasonsaas/nexus/internal/orchestrator"
	"github.com/haasonsaas/nexus/internal/sessiontree"
	"github.com/haasonsaas/nexus/internal/telemetry"
	"github.com/haasonsaas/nexus/internal/toolhost"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Server is the control surface (C14): a single net/http server gating the
// tool host, the fleet, the orchestrator, and the session tree behind a
// JWT bearer scheme.
type Server struct {
	host     *toolhost.Host
	fleet    *fleet.Manager
	tree     *sessiontree.Manager
	verifier *Verifier
	tracker  *objectiveTracker
	logger   *slog.Logger

	httpServer   *http.Server
	httpListener net.Listener
}

// New builds a Server. mirror, if non-nil, is wired as the orchestrator's
// DAG progress callback so task spans and task metrics are recorded for
// objectives submitted through this surface.
func New(host *toolhost.Host, fleetMgr *fleet.Manager, orch *orchestrator.Orchestrator, tree *sessiontree.Manager, verifier *Verifier, mirror *telemetry.Mirror, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	tracker := newObjectiveTracker(orch, progressCallback(mirror))

	return &Server{
		host:     host,
		fleet:    fleetMgr,
		tree:     tree,
		verifier: verifier,
		tracker:  tracker,
		logger:   logger.With("component", "control"),
	}
}

// Start binds and serves the HTTP gateway on addr; it returns once the
// listener is bound, serving in a background goroutine thereafter.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)

	mux.Handle("/v1/tools/list", s.authenticated(s.handleToolsList))
	mux.Handle("/v1/tools/call", s.authenticated(s.handleToolsCall))
	mux.Handle("/v1/prompts/list", s.authenticated(s.handlePromptsList))
	mux.Handle("/v1/prompts/get", s.authenticated(s.handlePromptsGet))
	mux.Handle("/v1/objectives/submit", s.authenticated(s.handleObjectivesSubmit))
	mux.Handle("/v1/objectives/status", s.authenticated(s.handleObjectivesStatus))
	mux.Handle("/v1/sessions/tree", s.authenticated(s.handleSessionsTree))
	mux.Handle("/v1/fleet/restart", s.authenticated(s.handleFleetRestart))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("control: listen %s: %w", addr, err)
	}
	s.httpServer = server
	s.httpListener = listener

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control server error", "error", err)
		}
	}()
	s.logger.Info("control surface listening", "addr", addr)
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) {
	if s.httpServer == nil {
		return
	}
	shutdownCtx := ctx
	var cancel context.CancelFunc
	if shutdownCtx == nil {
		shutdownCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("control server shutdown error", "error", err)
	}
	s.httpServer = nil
	s.httpListener = nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := s.fleet.Status()
	degraded := false
	for _, st := range status {
		if st != "connected" {
			degraded = true
			break
		}
	}
	code := http.StatusOK
	health := "ok"
	if degraded {
		code = http.StatusServiceUnavailable
		health = "degraded"
	}
	writeJSON(w, code, map[string]any{
		"status": health,
		"fleet":  status,
	})
}

// authenticated wraps h with bearer-token verification, passing the
// resolved CallerContext through to h.
func (s *Server) authenticated(h func(http.ResponseWriter, *http.Request, models.CallerContext)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := s.verifier.Verify(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, err)
			return
		}
		if sessionID := r.Header.Get("x-session-id"); sessionID != "" {
			caller.SessionID = sessionID
		}
		h(w, r, caller)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	kind := errs.Classify(err)
	status := http.StatusInternalServerError
	switch kind {
	case errs.Validation:
		status = http.StatusBadRequest
	case errs.NotFound:
		status = http.StatusNotFound
	case errs.Unauthorized:
		status = http.StatusUnauthorized
	case errs.Forbidden:
		status = http.StatusForbidden
	case errs.RateLimited:
		status = http.StatusTooManyRequests
	case errs.Timeout:
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, map[string]any{"error": err.Error(), "kind": kind})
}
