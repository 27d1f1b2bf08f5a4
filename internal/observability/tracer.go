package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skyrelay/vortex/internal/automaton"
)

// StartSpan creates a new span with the given name and attributes
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartServerSpan creates a new server span (for incoming requests)
func StartServerSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// SpanFromContext returns the current span from context
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// SetSpanError marks the span as errored
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Common attribute keys for vortexd spans.
var (
	AttrRouterID   = attribute.Key("vortex.router.id")
	AttrTenantID   = attribute.Key("vortex.tenant.id")
	AttrState      = attribute.Key("vortex.automaton.state")
	AttrAction     = attribute.Key("vortex.automaton.action")
	AttrDurationMs = attribute.Key("vortex.duration_ms")
)

// automatonSpan adapts an OpenTelemetry trace.Span to automaton.Span.
type automatonSpan struct {
	span trace.Span
}

func (s automatonSpan) End() { s.span.End() }

func (s automatonSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// AutomatonTracer adapts the global OpenTelemetry tracer to
// automaton.Tracer, so internal/automaton never imports otel directly.
type AutomatonTracer struct{}

// Start implements automaton.Tracer.
func (AutomatonTracer) Start(ctx context.Context, spanName string) (context.Context, automaton.Span) {
	ctx, span := Tracer().Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindInternal))
	return ctx, automatonSpan{span: span}
}
