package models

import "time"

// TransportKind distinguishes the two tool-server transports.
type TransportKind string

const (
	TransportLocal  TransportKind = "local"
	TransportRemote TransportKind = "remote"
)

// RetryPolicy configures the retry/reconnection behavior for a managed
// tool-server client (C1, consumed by C6).
type RetryPolicy struct {
	MaxRetries          int           `json:"max_retries" yaml:"max_retries"`
	InitialDelay        time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay            time.Duration `json:"max_delay" yaml:"max_delay"`
	BackoffFactor       float64       `json:"backoff_factor" yaml:"backoff_factor"`
	Jitter              bool          `json:"jitter" yaml:"jitter"`
	AutoReconnect       bool          `json:"auto_reconnect" yaml:"auto_reconnect"`
	HealthCheckInterval time.Duration `json:"health_check_interval,omitempty" yaml:"health_check_interval"`
}

// DefaultRetryPolicy returns sensible defaults matching the spec's default
// backoff shape.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
		AutoReconnect: true,
	}
}

// ServerConfig is a tagged variant describing how to reach a tool server:
// Local spawns a child process; Remote speaks HTTP/SSE to a URL.
type ServerConfig struct {
	Name      string        `json:"name" yaml:"name"`
	Transport TransportKind `json:"transport" yaml:"transport"`
	Enabled   bool          `json:"enabled" yaml:"enabled"`

	// Local fields
	Command     string            `json:"command,omitempty" yaml:"command"`
	Args        []string          `json:"args,omitempty" yaml:"args"`
	Environment map[string]string `json:"environment,omitempty" yaml:"environment"`

	// Remote fields
	URL     string            `json:"url,omitempty" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers"`

	TimeoutMs int         `json:"timeout_ms" yaml:"timeout_ms"`
	Retry     RetryPolicy `json:"retry" yaml:"retry"`
}

// Timeout returns the configured request timeout, defaulting to 5s.
func (c ServerConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ConnectionStatus is the lifecycle state of a managed tool-server client.
type ConnectionStatus string

const (
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusFailed       ConnectionStatus = "failed"
)

// ConnectionState tracks the current lifecycle state of a managed client plus
// enough history to diagnose reconnection behavior.
type ConnectionState struct {
	Status         ConnectionStatus `json:"status"`
	Attempts       int              `json:"attempts"`
	LastError      string           `json:"last_error,omitempty"`
	ConnectedAt    *time.Time       `json:"connected_at,omitempty"`
	DisconnectedAt *time.Time       `json:"disconnected_at,omitempty"`
}
