package observability

import (
	"context"
	"errors"
	"testing"
)

func TestAutomatonTracerStartReturnsUsableSpan(t *testing.T) {
	var tracer AutomatonTracer

	ctx, span := tracer.Start(context.Background(), "CalcAction")
	if ctx == nil {
		t.Fatal("Start returned nil context")
	}

	span.RecordError(errors.New("boot failed"))
	span.End()
}

func TestExtractTraceContextDisabled(t *testing.T) {
	globalProvider = &Provider{enabled: false}

	tc := ExtractTraceContext(context.Background())
	if tc.TraceParent != "" || tc.TraceState != "" {
		t.Fatalf("expected empty TraceContext when tracing disabled, got %+v", tc)
	}
}

func TestInjectTraceContextNoop(t *testing.T) {
	ctx := context.Background()
	got := InjectTraceContext(ctx, TraceContext{})
	if got != ctx {
		t.Fatal("InjectTraceContext with an empty TraceContext should return ctx unchanged")
	}
}
