package automaton

import (
	"context"
	"log/slog"

	"github.com/skyrelay/vortex/internal/appliance"
)

// BandwidthCallback is invoked once per successful ReadStats execution.
type BandwidthCallback func(appliance.StatSample)

// DeleteCallback is invoked exactly once, when the automaton reaches Exit.
type DeleteCallback func()

// AuditSink records one row per Transition call. It is best-effort: a
// failing sink is logged and otherwise ignored, since audit trail
// delivery must never block or fail the pump (SPEC_FULL.md §4).
type AuditSink interface {
	RecordTransition(ctx context.Context, routerID, tenantID, fromState string, action string, toState string, applianceState string)
}

// Span is the minimal tracing handle a state's Execute call annotates.
// Automaton never depends on a concrete tracing library directly; see
// internal/observability for the OpenTelemetry-backed implementation.
type Span interface {
	End()
	RecordError(error)
}

// Tracer starts a span for one Execute call. A nil Tracer is valid and
// produces no tracing.
type Tracer interface {
	Start(ctx context.Context, spanName string) (context.Context, Span)
}

type noopSpan struct{}

func (noopSpan) End()              {}
func (noopSpan) RecordError(error) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

// params is the parameter bundle every state vertex borrows. It is owned
// by the Automaton; states hold only a reference, never a copy — vertex
// identity carries the meaning, not per-vertex data (SPEC_FULL.md §9).
type params struct {
	log                  *slog.Logger
	queue                *queue
	appliance            appliance.Appliance
	bandwidthCallback    BandwidthCallback
	rebootErrorThreshold int
	tracer               Tracer
}
