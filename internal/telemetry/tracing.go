package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/nexus/internal/observability"
)

// Spans names every span this runtime emits, matching the fixed set in the
// additive data model: plan.execute, task.execute, tool.call,
// fleet.connect, fleet.reconnect — each carrying its id as an attribute, as
// observability.Tracer.SetAttributes already supports.
type Spans struct {
	tracer *observability.Tracer
}

// NewSpans wraps an already-constructed observability.Tracer; telemetry
// does not own tracer lifecycle (shutdown is the caller's responsibility,
// same as observability.NewTracer's own contract).
func NewSpans(tracer *observability.Tracer) *Spans {
	return &Spans{tracer: tracer}
}

func (s *Spans) start(ctx context.Context, name, idKey, id string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name)
	s.tracer.SetAttributes(span, idKey, id)
	return ctx, span
}

// PlanExecute starts the plan.execute span for planID.
func (s *Spans) PlanExecute(ctx context.Context, planID string) (context.Context, trace.Span) {
	return s.start(ctx, "plan.execute", "plan_id", planID)
}

// TaskExecute starts the task.execute span for taskID.
func (s *Spans) TaskExecute(ctx context.Context, taskID string) (context.Context, trace.Span) {
	return s.start(ctx, "task.execute", "task_id", taskID)
}

// ToolCall starts the tool.call span for toolName.
func (s *Spans) ToolCall(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return s.start(ctx, "tool.call", "tool", toolName)
}

// FleetConnect starts the fleet.connect span for server.
func (s *Spans) FleetConnect(ctx context.Context, server string) (context.Context, trace.Span) {
	return s.start(ctx, "fleet.connect", "server", server)
}

// FleetReconnect starts the fleet.reconnect span for server.
func (s *Spans) FleetReconnect(ctx context.Context, server string) (context.Context, trace.Span) {
	return s.start(ctx, "fleet.reconnect", "server", server)
}

// End ends span, recording err on it first when non-nil — the same
// record-then-end pairing observability.Tracer's own doc comments show.
func (s *Spans) End(span trace.Span, err error) {
	if err != nil {
		s.tracer.RecordError(span, err)
	}
	span.End()
}
