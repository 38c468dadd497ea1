package models

// ServerListenConfig is where the control surface (C14) binds its gRPC,
// HTTP, and Prometheus listeners.
type ServerListenConfig struct {
	Host        string `json:"host" yaml:"host"`
	GRPCPort    int    `json:"grpc_port" yaml:"grpc_port"`
	HTTPPort    int    `json:"http_port" yaml:"http_port"`
	MetricsPort int    `json:"metrics_port" yaml:"metrics_port"`
}

// JWTConfig configures verification (never issuance) of bearer tokens
// presented to the control surface.
type JWTConfig struct {
	Secret string `json:"secret" yaml:"secret"`
	Issuer string `json:"issuer,omitempty" yaml:"issuer"`
}

// TelemetryConfig configures the fire-and-forget lifecycle pings and OTel
// exporter the telemetry mirror (C11) drives.
type TelemetryConfig struct {
	Disabled       bool   `json:"disabled" yaml:"disabled"`
	PortalEndpoint string `json:"portal_endpoint,omitempty" yaml:"portal_endpoint"`
	OTelEndpoint   string `json:"otel_endpoint,omitempty" yaml:"otel_endpoint"`
}

// Config is the fully resolved, layered configuration produced by the
// config loader (C16): built-in defaults overridden by a YAML file,
// overridden by environment variables, overridden by CLI flags.
type Config struct {
	StorageRoot string `json:"storage_root" yaml:"storage_root"`
	// Workspace is the directory the filesystem tools operate in.
	Workspace string `json:"workspace" yaml:"workspace"`

	Server ServerListenConfig `json:"server" yaml:"server"`
	JWT    JWTConfig          `json:"jwt" yaml:"jwt"`

	Providers       []ProviderConfig        `json:"providers" yaml:"providers"`
	AgentProviders  map[string]ProviderName `json:"agent_providers,omitempty" yaml:"agent_providers"`
	DefaultProvider ProviderName            `json:"default_provider" yaml:"default_provider"`
	BaseAgent       string                  `json:"base_agent" yaml:"base_agent"`
	BaseModel       string                  `json:"base_model" yaml:"base_model"`

	ToolServers []ServerConfig `json:"tool_servers" yaml:"tool_servers"`
	LazyTools   bool           `json:"lazy_tools" yaml:"lazy_tools"`
	DomainFilter []string      `json:"domain_filter,omitempty" yaml:"domain_filter"`

	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	CronSchedule string `json:"cron_schedule" yaml:"cron_schedule"`
}
