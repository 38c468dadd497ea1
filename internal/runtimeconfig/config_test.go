package runtimeconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/nexus/pkg/models"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nexusd.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsApplyWhenFileOmitsFields(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: test-secret
providers:
  - name: anthropic
    default_model: claude-sonnet
`)

	cfg, err := Load(path, Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.GRPCPort != 7443 {
		t.Fatalf("grpc port = %d, want default 7443", cfg.Server.GRPCPort)
	}
	if cfg.StorageRoot != "./data" {
		t.Fatalf("storage root = %q, want default", cfg.StorageRoot)
	}
	if cfg.DefaultProvider != models.ProviderAnthropic {
		t.Fatalf("default provider = %q, want anthropic (sole configured provider)", cfg.DefaultProvider)
	}
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: test-secret
providers:
  - name: anthropic
    default_model: claude-sonnet
not_a_real_field: true
`)

	if _, err := Load(path, Overrides{}); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoad_FailsFastWithoutProvider(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: test-secret
`)

	if _, err := Load(path, Overrides{}); err == nil {
		t.Fatalf("expected validation error when no provider is configured")
	}
}

func TestLoad_FailsFastWithoutJWTSecret(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: anthropic
    default_model: claude-sonnet
`)

	if _, err := Load(path, Overrides{}); err == nil {
		t.Fatalf("expected validation error when jwt secret is missing")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: test-secret
providers:
  - name: anthropic
    default_model: claude-sonnet
server:
  grpc_port: 9000
`)

	t.Setenv("NEXUSD_GRPC_PORT", "9100")
	cfg, err := Load(path, Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.GRPCPort != 9100 {
		t.Fatalf("grpc port = %d, want env override 9100", cfg.Server.GRPCPort)
	}
}

func TestLoad_FlagsOverrideEverything(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: test-secret
providers:
  - name: anthropic
    default_model: claude-sonnet
server:
  grpc_port: 9000
`)

	t.Setenv("NEXUSD_GRPC_PORT", "9100")
	cfg, err := Load(path, Overrides{GRPCPort: 9200})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.GRPCPort != 9200 {
		t.Fatalf("grpc port = %d, want flag override 9200", cfg.Server.GRPCPort)
	}
}

func TestLoad_EnvInjectsProviderAPIKey(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: test-secret
providers:
  - name: anthropic
    default_model: claude-sonnet
`)

	t.Setenv("ANTHROPIC_API_KEY", "sk-test-key")
	cfg, err := Load(path, Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers[0].APIKey != "sk-test-key" {
		t.Fatalf("anthropic api key = %q, want sk-test-key", cfg.Providers[0].APIKey)
	}
}
