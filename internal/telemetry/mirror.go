package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/nexus/internal/bus"
	"github.com/haasonsaas/nexus/internal/dag"
	"github.com/haasonsaas/nexus/internal/orchestrator"
)

// Mirror fans Bus (C2) events and DAG progress callbacks out to OTel spans
// and Prometheus metrics, never blocking or failing the operation it
// observes — the same discipline Pinger applies to lifecycle pings.
type Mirror struct {
	spans   *Spans
	metrics *Metrics

	mu     taskSpans
	planMu planSpans
}

// taskSpans/planSpans track in-flight spans by id so a *_complete/*_failed
// event can find and end the span its *_start counterpart opened. dag.Execute
// fires onProgress from one goroutine per task, with a level's tasks running
// in parallel, so each map is guarded by its own mutex.
type taskSpans struct {
	lock sync.Mutex
	open map[string]trace.Span
}

type planSpans struct {
	lock sync.Mutex
	open map[string]trace.Span
}

// NewMirror builds a Mirror over already-constructed Spans and Metrics.
func NewMirror(spans *Spans, metrics *Metrics) *Mirror {
	return &Mirror{
		spans:   spans,
		metrics: metrics,
		mu:      taskSpans{open: make(map[string]trace.Span)},
		planMu:  planSpans{open: make(map[string]trace.Span)},
	}
}

// OnDAGProgress is passed as dag.OnProgress: it starts/ends the task.execute
// span for each task and increments tasks_total by outcome.
func (m *Mirror) OnDAGProgress(event dag.ProgressEvent) {
	m.mu.lock.Lock()
	defer m.mu.lock.Unlock()
	switch event.Type {
	case dag.TaskStart:
		_, span := m.spans.TaskExecute(context.Background(), event.TaskID)
		m.mu.open[event.TaskID] = span
	case dag.TaskComplete:
		m.endTask(event.TaskID, "completed", nil)
	case dag.TaskFailed:
		var err error
		if event.Result != nil && event.Result.Error != "" {
			err = errString(event.Result.Error)
		}
		m.endTask(event.TaskID, "failed", err)
	case dag.TaskSkipped:
		m.metrics.TasksTotal.WithLabelValues("skipped").Inc()
	}
}

func (m *Mirror) endTask(taskID, status string, err error) {
	if span, ok := m.mu.open[taskID]; ok {
		m.spans.End(span, err)
		delete(m.mu.open, taskID)
	}
	m.metrics.TasksTotal.WithLabelValues(status).Inc()
}

type errString string

func (e errString) Error() string { return string(e) }

// SubscribeOrchestrator mirrors C10's objective lifecycle events: a
// plan.execute span spanning objective.started..objective.complete/failed,
// and the plan_parallelization_gain gauge set from the final result.
func (m *Mirror) SubscribeOrchestrator(b *bus.Bus) {
	b.Subscribe(orchestrator.EventObjectiveStarted, func(_ string, payload any) {
		ev, ok := payload.(orchestrator.ObjectiveEvent)
		if !ok || ev.PlanID == "" {
			return
		}
		_, span := m.spans.PlanExecute(context.Background(), ev.PlanID)
		m.planMu.lock.Lock()
		m.planMu.open[ev.PlanID] = span
		m.planMu.lock.Unlock()
	})

	finish := func(_ string, payload any) {
		ev, ok := payload.(orchestrator.ObjectiveEvent)
		if !ok {
			return
		}
		var err error
		if ev.Result != nil && !ev.Result.Success {
			err = errString("plan execution failed")
		}
		m.planMu.lock.Lock()
		if span, ok := m.planMu.open[ev.PlanID]; ok {
			m.spans.End(span, err)
			delete(m.planMu.open, ev.PlanID)
		}
		m.planMu.lock.Unlock()
		if ev.Result != nil {
			m.metrics.PlanParallelizationGain.Set(ev.Result.ParallelizationGain)
		}
	}
	b.Subscribe(orchestrator.EventObjectiveComplete, finish)
	b.Subscribe(orchestrator.EventObjectiveFailed, finish)
}

// RecordToolCall mirrors a single tool-host dispatch (C7); call sites are
// under the Unified tool host, outside this package's own scope, so this is
// a plain exported recorder rather than a Bus subscription.
func (m *Mirror) RecordToolCall(ctx context.Context, tool, status string, durationSeconds float64) {
	m.metrics.ToolCallsTotal.WithLabelValues(tool, status).Inc()
	m.metrics.ToolCallDuration.WithLabelValues(tool).Observe(durationSeconds)
}

// RecordReconnect mirrors a fleet (C6) reconnection attempt via the
// retry/reconnection primitive's (C1) lifecycle events.
func (m *Mirror) RecordReconnect(server, outcome string) {
	m.metrics.ReconnectsTotal.WithLabelValues(server, outcome).Inc()
}
