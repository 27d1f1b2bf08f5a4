package metrics

import (
	"context"
	"testing"
)

func newTestMetrics() *Metrics {
	m := &Metrics{}
	m.tsChan = make(chan timeSeriesEvent, 8)
	m.initTimeSeries()
	go m.processTimeSeriesLoop()
	return m
}

func TestRecordTransitionCountsBootAttempt(t *testing.T) {
	m := newTestMetrics()
	m.RecordTransition(context.Background(), "r1", "t1", "CreateVM", "CREATE", "CheckBoot", "BOOTING")

	if got := m.TotalTransitions.Load(); got != 1 {
		t.Fatalf("TotalTransitions = %d, want 1", got)
	}
	if got := m.BootAttempts.Load(); got != 1 {
		t.Fatalf("BootAttempts = %d, want 1", got)
	}
	if got := m.BootLoopsHit.Load(); got != 0 {
		t.Fatalf("BootLoopsHit = %d, want 0", got)
	}
}

func TestRecordTransitionCountsBootLoop(t *testing.T) {
	m := newTestMetrics()
	m.RecordTransition(context.Background(), "r1", "t1", "CreateVM", "CREATE", "CalcAction", "ERROR")

	if got := m.BootLoopsHit.Load(); got != 1 {
		t.Fatalf("BootLoopsHit = %d, want 1", got)
	}
	if got := m.BootAttempts.Load(); got != 0 {
		t.Fatalf("BootAttempts = %d, want 0 (the errored attempt is not a fresh boot)", got)
	}
}

func TestRecordTransitionCountsDelete(t *testing.T) {
	m := newTestMetrics()
	m.RecordTransition(context.Background(), "r1", "t1", "StopVM", "DELETE", "Exit", "DOWN")

	if got := m.DeletesFired.Load(); got != 1 {
		t.Fatalf("DeletesFired = %d, want 1", got)
	}
}

func TestRecordTransitionPerRouter(t *testing.T) {
	m := newTestMetrics()
	m.RecordTransition(context.Background(), "r1", "t1", "Alive", "POLL", "CalcAction", "UP")
	m.RecordTransition(context.Background(), "r2", "t1", "Alive", "POLL", "CalcAction", "UP")
	m.RecordTransition(context.Background(), "r1", "t1", "Alive", "POLL", "CalcAction", "UP")

	rm := m.getRouterMetrics("r1")
	if got := rm.Transitions.Load(); got != 2 {
		t.Fatalf("r1 Transitions = %d, want 2", got)
	}
	rm2 := m.getRouterMetrics("r2")
	if got := rm2.Transitions.Load(); got != 1 {
		t.Fatalf("r2 Transitions = %d, want 1", got)
	}
}

func TestRecordIngress(t *testing.T) {
	m := newTestMetrics()
	m.RecordIngress(true)
	m.RecordIngress(false)
	m.RecordIngress(true)

	if got := m.MessagesAccepted.Load(); got != 2 {
		t.Fatalf("MessagesAccepted = %d, want 2", got)
	}
	if got := m.MessagesRejected.Load(); got != 1 {
		t.Fatalf("MessagesRejected = %d, want 1", got)
	}
}

func TestSnapshotReflectsCounters(t *testing.T) {
	m := newTestMetrics()
	m.RecordTransition(context.Background(), "r1", "t1", "RebuildVM", "REBUILD", "CalcAction", "DOWN")
	m.RecordTransition(context.Background(), "r1", "t1", "ReadStats", "POLL", "CalcAction", "UP")

	snap := m.Snapshot()
	if snap.TotalTransitions != 2 {
		t.Fatalf("TotalTransitions = %d, want 2", snap.TotalTransitions)
	}
	if snap.RebuildsFired != 1 {
		t.Fatalf("RebuildsFired = %d, want 1", snap.RebuildsFired)
	}
	if snap.StatSamples != 1 {
		t.Fatalf("StatSamples = %d, want 1", snap.StatSamples)
	}
}
