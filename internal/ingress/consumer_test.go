package ingress

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/skyrelay/vortex/internal/event"
)

type fakeEnqueuer struct {
	mu    sync.Mutex
	calls []event.Tag
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, routerID, tenantID string, tag event.Tag) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tag)
	return true
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestHandleDropsMalformedEnvelope verifies a non-JSON payload is
// logged and dropped rather than ever reaching the pool.
func TestHandleDropsMalformedEnvelope(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := &Consumer{pool: enq, log: discardLogger(), cfg: Config{}.withDefaults()}

	c.handle(context.Background(), "not json")

	if len(enq.calls) != 0 {
		t.Fatalf("expected no Enqueue calls for malformed envelope, got %d", len(enq.calls))
	}
}

// TestHandleDropsInvalidCRUD verifies an envelope with an unrecognized
// crud tag or missing router_id is dropped.
func TestHandleDropsInvalidCRUD(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := &Consumer{pool: enq, log: discardLogger(), cfg: Config{}.withDefaults()}

	c.handle(context.Background(), `{"router_id":"r1","crud":"BOGUS"}`)
	c.handle(context.Background(), `{"crud":"CREATE"}`)

	if len(enq.calls) != 0 {
		t.Fatalf("expected no Enqueue calls, got %d", len(enq.calls))
	}
}

// TestHandleRoutesValidEnvelope verifies a well-formed envelope reaches
// the pool with its decoded tag.
func TestHandleRoutesValidEnvelope(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := &Consumer{pool: enq, log: discardLogger(), cfg: Config{}.withDefaults()}

	c.handle(context.Background(), `{"router_id":"r1","tenant_id":"t1","crud":"CREATE","enqueued_at":1}`)

	if len(enq.calls) != 1 || enq.calls[0] != event.CREATE {
		t.Fatalf("calls = %v, want [CREATE]", enq.calls)
	}
}
