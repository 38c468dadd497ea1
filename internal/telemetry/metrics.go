package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors named in the runtime's additive
// data model. Registered once via NewMetrics and read by the control
// surface's /metrics handler (C14).
type Metrics struct {
	TasksTotal              *prometheus.CounterVec
	ToolCallsTotal          *prometheus.CounterVec
	ToolCallDuration        *prometheus.HistogramVec
	ReconnectsTotal         *prometheus.CounterVec
	PlanParallelizationGain prometheus.Gauge
}

// NewMetrics constructs and registers every collector against Prometheus's
// default registry, the same promauto convenience the corpus's
// observability package uses.
func NewMetrics() *Metrics {
	return &Metrics{
		TasksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasks_total",
				Help: "Total number of scheduler tasks by outcome status",
			},
			[]string{"status"},
		),
		ToolCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_calls_total",
				Help: "Total number of tool calls by tool name and outcome status",
			},
			[]string{"tool", "status"},
		),
		ToolCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_call_duration_seconds",
				Help:    "Duration of tool calls in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
		ReconnectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconnects_total",
				Help: "Total number of fleet server reconnection attempts by server and outcome",
			},
			[]string{"server", "outcome"},
		),
		PlanParallelizationGain: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "plan_parallelization_gain",
				Help: "Parallelization gain of the most recently completed plan",
			},
		),
	}
}
