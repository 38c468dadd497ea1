// Package runtimeconfig implements C16: layered resolution of the
// orchestrator runtime's Config (compiled-in defaults, then a YAML file,
// then environment variables, then CLI flags — later layers win).
package runtimeconfig

import (
	"os"
	"strconv"
	"strings"

	"github.com/haasonsaas/nexus/internal/errs"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Overrides carries the CLI-flag layer, the last and highest-priority
// layer in the resolution order. A zero value of a field means "not set
// on the command line" and leaves the lower layers in place.
type Overrides struct {
	Host        string
	GRPCPort    int
	HTTPPort    int
	MetricsPort int
	StorageRoot string
}

// Load resolves a Config by applying, in order: compiled-in defaults, the
// YAML file at path (if non-empty), environment variables, then flags.
// It fails fast with a Validation error if the result is missing a field
// required to run (per SPEC_FULL.md §4.16).
func Load(path string, flags Overrides) (*models.Config, error) {
	cfg := defaults()

	if strings.TrimSpace(path) != "" {
		if err := applyYAMLFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	applyFlagOverrides(cfg, flags)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults returns the compiled-in baseline every other layer overrides.
func defaults() *models.Config {
	return &models.Config{
		StorageRoot: "./data",
		Workspace:   "./workspace",
		Server: models.ServerListenConfig{
			Host:        "0.0.0.0",
			GRPCPort:    7443,
			HTTPPort:    7080,
			MetricsPort: 7090,
		},
		LazyTools:    true,
		CronSchedule: "0 */6 * * *",
		BaseAgent:    "generic-agent",
		BaseModel:    "default-model",
	}
}

func applyEnvOverrides(cfg *models.Config) {
	if value := strings.TrimSpace(os.Getenv("NEXUSD_HOST")); value != "" {
		cfg.Server.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("NEXUSD_GRPC_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.GRPCPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("NEXUSD_HTTP_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.HTTPPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("NEXUSD_METRICS_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.MetricsPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("NEXUSD_STORAGE_ROOT")); value != "" {
		cfg.StorageRoot = value
	}
	if value := strings.TrimSpace(os.Getenv("NEXUSD_JWT_SECRET")); value != "" {
		cfg.JWT.Secret = value
	}
	if value := strings.TrimSpace(os.Getenv("NEXUSD_JWT_ISSUER")); value != "" {
		cfg.JWT.Issuer = value
	}
	if value := strings.TrimSpace(os.Getenv("NEXUSD_DEFAULT_PROVIDER")); value != "" {
		cfg.DefaultProvider = models.ProviderName(value)
	}
	if value := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); value != "" {
		setProviderAPIKey(cfg, models.ProviderAnthropic, value)
	}
	if value := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); value != "" {
		setProviderAPIKey(cfg, models.ProviderOpenAI, value)
	}
	if value := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); value != "" {
		setProviderAPIKey(cfg, models.ProviderGoogle, value)
	}
	if value := strings.TrimSpace(os.Getenv("DO_NOT_TRACK")); value != "" && value != "0" {
		cfg.Telemetry.Disabled = true
	}
	if value := strings.TrimSpace(os.Getenv("NEXUSD_OTEL_ENDPOINT")); value != "" {
		cfg.Telemetry.OTelEndpoint = value
	}
}

// setProviderAPIKey fills in the API key for an already-declared provider
// entry, or appends a bare entry for it if the YAML file didn't mention it
// — credentials are expected to arrive via environment, not committed YAML.
func setProviderAPIKey(cfg *models.Config, name models.ProviderName, key string) {
	for i := range cfg.Providers {
		if cfg.Providers[i].Name == name {
			cfg.Providers[i].APIKey = key
			return
		}
	}
	cfg.Providers = append(cfg.Providers, models.ProviderConfig{Name: name, APIKey: key})
}

func applyFlagOverrides(cfg *models.Config, flags Overrides) {
	if flags.Host != "" {
		cfg.Server.Host = flags.Host
	}
	if flags.GRPCPort != 0 {
		cfg.Server.GRPCPort = flags.GRPCPort
	}
	if flags.HTTPPort != 0 {
		cfg.Server.HTTPPort = flags.HTTPPort
	}
	if flags.MetricsPort != 0 {
		cfg.Server.MetricsPort = flags.MetricsPort
	}
	if flags.StorageRoot != "" {
		cfg.StorageRoot = flags.StorageRoot
	}
}

func validate(cfg *models.Config) error {
	var issues []string
	if strings.TrimSpace(cfg.StorageRoot) == "" {
		issues = append(issues, "storage_root is required")
	}
	if len(cfg.Providers) == 0 {
		issues = append(issues, "at least one provider must be configured")
	}
	if cfg.DefaultProvider == "" && len(cfg.Providers) > 0 {
		cfg.DefaultProvider = cfg.Providers[0].Name
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		issues = append(issues, "jwt.secret is required")
	}
	if len(issues) > 0 {
		return errs.New(errs.Validation, "config: "+strings.Join(issues, "; "))
	}
	return nil
}
