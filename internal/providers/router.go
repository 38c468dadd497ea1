package providers

import (
	"context"
	"fmt"

	"github.com/haasonsaas/nexus/internal/errs"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Router is a Collaborator that picks a concrete provider bridge by the
// requesting agent's configured provider name, falling back to a default
// provider when the agent specifies none or an unknown one.
type Router struct {
	bridges  map[models.ProviderName]*Bridge
	agents   map[string]models.ProviderName
	fallback models.ProviderName
}

// NewRouter builds a Router from resolved provider configs. agentProviders
// maps an agent name to the provider it should use; agents absent from the
// map use fallback. Returns an error if a configured provider fails to
// construct (e.g. a missing API key) or if fallback names a provider not
// present in configs.
func NewRouter(configs []models.ProviderConfig, agentProviders map[string]models.ProviderName, fallback models.ProviderName) (*Router, error) {
	r := &Router{
		bridges:  make(map[models.ProviderName]*Bridge),
		agents:   agentProviders,
		fallback: fallback,
	}

	for _, cfg := range configs {
		provider, err := buildProvider(cfg)
		if err != nil {
			return nil, err
		}
		r.bridges[cfg.Name] = NewBridge(provider)
	}

	if _, ok := r.bridges[fallback]; !ok {
		return nil, errs.New(errs.Validation, fmt.Sprintf("providers: fallback provider %q has no configuration", fallback))
	}

	return r, nil
}

// buildProvider constructs the concrete LLMProvider for cfg.Name, erroring
// on an unknown provider name or missing required credentials. Six of the
// nine names are served by the one OpenAI-protocol implementation.
func buildProvider(cfg models.ProviderConfig) (LLMProvider, error) {
	switch cfg.Name {
	case models.ProviderAnthropic:
		return NewAnthropic(cfg)
	case models.ProviderOpenAI:
		return NewOpenAI(cfg)
	case models.ProviderBedrock:
		return NewBedrock(cfg)
	case models.ProviderGoogle:
		return NewGoogle(cfg)
	case models.ProviderAzureOpenAI:
		return NewAzureOpenAI(cfg)
	case models.ProviderOllama:
		return NewOllama(cfg), nil
	case models.ProviderOpenRouter:
		return NewOpenRouter(cfg)
	case models.ProviderCopilot:
		return NewCopilotProxy(cfg), nil
	case models.ProviderVenice:
		return NewVenice(cfg)
	default:
		return nil, errs.New(errs.Validation, fmt.Sprintf("providers: unknown provider %q", cfg.Name))
	}
}

// Complete resolves the bridge for req.Agent (falling back to the default
// provider) and delegates to it, satisfying dag.Collaborator.
func (r *Router) Complete(ctx context.Context, req models.CollaboratorRequest) (models.CollaboratorResponse, error) {
	name, ok := r.agents[req.Agent]
	if !ok {
		name = r.fallback
	}
	bridge, ok := r.bridges[name]
	if !ok {
		bridge = r.bridges[r.fallback]
	}
	return bridge.Complete(ctx, req)
}
