package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haasonsaas/nexus/internal/bus"
	"github.com/haasonsaas/nexus/internal/control"
	"github.com/haasonsaas/nexus/internal/fleet"
	"github.com/haasonsaas/nexus/internal/maintenance"
	"github.com/haasonsaas/nexus/internal/memory"
	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/internal/orchestrator"
	"github.com/haasonsaas/nexus/internal/providers"
	"github.com/haasonsaas/nexus/internal/sessiontree"
	"github.com/haasonsaas/nexus/internal/telemetry"
	"github.com/haasonsaas/nexus/internal/toolhost"
	"github.com/haasonsaas/nexus/internal/toolregistry"
	"github.com/haasonsaas/nexus/internal/tools"
	"github.com/haasonsaas/nexus/internal/toolsearch"
	"github.com/haasonsaas/nexus/pkg/models"
)

// runtime bundles every long-lived component nexusd serve boots, so Start
// and Stop can sequence them in one place.
type runtime struct {
	cfg     *models.Config
	eventBus *bus.Bus
	store   *memory.Store

	fleetMgr       *fleet.Manager
	orch           *orchestrator.Orchestrator
	tree           *sessiontree.Manager
	control        *control.Server
	maintenance    *maintenance.Runner
	shutdownTracer func(context.Context) error
}

func buildRuntime(cfg *models.Config, logger *slog.Logger) (*runtime, error) {
	store, err := memory.NewStore(cfg.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("nexusd: open session store: %w", err)
	}

	eventBus := bus.New()

	router, err := providers.NewRouter(cfg.Providers, cfg.AgentProviders, cfg.DefaultProvider)
	if err != nil {
		return nil, fmt.Errorf("nexusd: build provider router: %w", err)
	}

	fleetMgr := fleet.NewManager(func() ([]models.ServerConfig, error) {
		return cfg.ToolServers, nil
	}, eventBus, logger)

	registry := toolregistry.New()
	discovery := registry.Discover(context.Background(), tools.Candidates(cfg.Workspace))
	for _, discoveryErr := range discovery.Errors {
		logger.Warn("tool discovery", "error", discoveryErr)
	}
	logger.Info("tool discovery complete",
		"registered", discovery.ToolsRegistered,
		"failed", discovery.ToolsFailed,
		"domains", discovery.Domains,
		"duration", discovery.Duration)

	// Every discovered tool is indexed deferred: in lazy mode nothing is
	// exposed until tool_search enables it for a session.
	index := toolsearch.New()
	for _, def := range registry.GetToolDefinitions() {
		index.Add(def, true)
	}

	enablement, err := toolsearch.NewEnablement(cfg.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("nexusd: open enablement store: %w", err)
	}
	host := toolhost.New(registry, index, enablement, cfg.LazyTools, logger)
	host.AttachFleet(fleetMgr)

	orch := orchestrator.New(store, eventBus, router, cfg.BaseAgent, cfg.BaseModel)
	tree := sessiontree.NewManager(store)

	var mirror *telemetry.Mirror
	var shutdownTracer func(context.Context) error
	if !cfg.Telemetry.Disabled {
		tracer, shutdown := observability.NewTracer(observability.TraceConfig{
			ServiceName: "nexusd",
			Endpoint:    cfg.Telemetry.OTelEndpoint,
		})
		shutdownTracer = shutdown
		mirror = telemetry.NewMirror(telemetry.NewSpans(tracer), telemetry.NewMetrics())
		mirror.SubscribeOrchestrator(eventBus)
	}

	verifier := control.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
	controlSrv := control.New(host, fleetMgr, orch, tree, verifier, mirror, logger)

	maintRunner, err := maintenance.NewRunner(cfg.CronSchedule, func(ctx context.Context) error {
		return fleetMgr.Reload(ctx)
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("nexusd: build maintenance runner: %w", err)
	}

	return &runtime{
		cfg:            cfg,
		eventBus:       eventBus,
		store:          store,
		fleetMgr:       fleetMgr,
		orch:           orch,
		tree:           tree,
		control:        controlSrv,
		maintenance:    maintRunner,
		shutdownTracer: shutdownTracer,
	}, nil
}

// Start boots the fleet, the maintenance runner, then the control surface.
func (rt *runtime) Start(ctx context.Context) error {
	if err := rt.fleetMgr.Start(ctx); err != nil {
		return fmt.Errorf("nexusd: start fleet: %w", err)
	}
	rt.maintenance.Start(ctx)

	addr := fmt.Sprintf("%s:%d", rt.cfg.Server.Host, rt.cfg.Server.HTTPPort)
	if err := rt.control.Start(addr); err != nil {
		return fmt.Errorf("nexusd: start control surface: %w", err)
	}
	return nil
}

// Stop tears every component down in reverse order.
func (rt *runtime) Stop(ctx context.Context) {
	rt.control.Stop(ctx)
	rt.maintenance.Stop()
	rt.fleetMgr.Stop()
	if rt.shutdownTracer != nil {
		_ = rt.shutdownTracer(ctx)
	}
}
