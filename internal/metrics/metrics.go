// Package metrics collects and exposes vortexd's automaton-pump metrics.
//
// # Design rationale
//
// Two metric stores coexist in this package:
//
//  1. The in-process Metrics struct (global counters + a time series),
//     readable through Snapshot without any external dependency. No HTTP
//     handler in this module serves it.
//  2. A Prometheus registry (prometheus.go) for scraping by external
//     monitoring systems (Grafana, Alertmanager, etc.).
//
// Keeping both lets a single-box deployment run without a Prometheus
// sidecar while still supporting the scrape-based stacks Config.Observability
// wires up.
//
// # Concurrency — hot path
//
// RecordTransition is called from Automaton.Update after every
// Execute/Transition pair and must be cheap. It uses atomic increments for
// global counters and dispatches a lightweight event onto a buffered
// channel (tsChan) for the time-series worker to process asynchronously,
// so the pump never blocks on a metrics write lock.
//
// # Invariants
//
//   - The time-series ring buffer holds at most timeSeriesBucketCount
//     buckets (24 * 60 = 1440 for the last 24 hours at 1-minute granularity).
//   - tsChan capacity is 8192 events; events dropped when full are counted
//     in tsDroppedEvents for observability.
package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	timeSeriesBucketDuration = time.Minute
	timeSeriesBucketCount    = 24 * 60
)

// TimeSeriesBucket stores transition counts for a single time bucket.
type TimeSeriesBucket struct {
	Timestamp   time.Time
	Transitions int64
}

// Metrics collects and exposes vortexd runtime metrics.
type Metrics struct {
	// Pump metrics
	TotalTransitions atomic.Int64
	DeletesFired     atomic.Int64

	// Appliance metrics
	BootAttempts  atomic.Int64
	BootLoopsHit  atomic.Int64
	RebuildsFired atomic.Int64
	StatSamples   atomic.Int64

	// Ingress metrics
	MessagesAccepted atomic.Int64
	MessagesRejected atomic.Int64

	// Per-router metrics
	routerMetrics sync.Map // routerID -> *RouterMetrics

	// Time-series data (minute buckets for the last 24 hours)
	timeSeriesMu    sync.RWMutex
	timeSeries      []*TimeSeriesBucket
	tsChan          chan timeSeriesEvent
	tsDroppedEvents atomic.Int64

	startTime time.Time
}

// timeSeriesEvent is sent over a channel to avoid write-lock contention on
// the pump's hot path.
type timeSeriesEvent struct{}

// RouterMetrics tracks pump activity for a single router.
type RouterMetrics struct {
	Transitions  atomic.Int64
	BootAttempts atomic.Int64
}

// Global returns the global metrics instance.
var global = &Metrics{startTime: time.Now()}

func init() {
	global.tsChan = make(chan timeSeriesEvent, 8192)
	global.initTimeSeries()
	go global.processTimeSeriesLoop()
}

// initTimeSeries initializes minute-level buckets for the last 24 hours.
func (m *Metrics) initTimeSeries() {
	m.timeSeriesMu.Lock()
	defer m.timeSeriesMu.Unlock()

	now := time.Now().Truncate(timeSeriesBucketDuration)
	m.timeSeries = make([]*TimeSeriesBucket, timeSeriesBucketCount)
	for i := 0; i < timeSeriesBucketCount; i++ {
		m.timeSeries[i] = &TimeSeriesBucket{
			Timestamp: now.Add(time.Duration(i-(timeSeriesBucketCount-1)) * timeSeriesBucketDuration),
		}
	}
}

// Global returns the global metrics instance.
func Global() *Metrics {
	return global
}

// StartTime returns the time the metrics system was initialized.
func StartTime() time.Time {
	return global.startTime
}

func (m *Metrics) getRouterMetrics(routerID string) *RouterMetrics {
	v, _ := m.routerMetrics.LoadOrStore(routerID, &RouterMetrics{})
	return v.(*RouterMetrics)
}

// RecordTransition observes one automaton Execute/Transition pair. Its
// signature matches automaton.AuditSink exactly so *Metrics can be handed
// to worker.New directly, or fanned out to alongside an auditlog.Store via
// a small multiSink (see cmd/vortexd) — ctx is accepted for that interface
// fit but unused, since every counter here is in-process.
//
// Finer-grained counters (boot attempts, boot loops, rebuilds, stat
// samples, deletes) are derived from fromState/toState rather than
// threaded through as separate parameters, the same way auditlog.Store
// reconstructs nothing beyond what the transition log already carries.
func (m *Metrics) RecordTransition(_ context.Context, routerID, _tenantID, fromState, _action, toState, applianceState string) {
	m.TotalTransitions.Add(1)

	rm := m.getRouterMetrics(routerID)
	rm.Transitions.Add(1)

	switch fromState {
	case "CreateVM":
		if applianceState == "ERROR" {
			m.RecordBootLoop()
		} else {
			m.BootAttempts.Add(1)
			rm.BootAttempts.Add(1)
			RecordPrometheusBootAttempt()
		}
	case "ReadStats":
		m.StatSamples.Add(1)
		RecordPrometheusStatSample()
	case "RebuildVM":
		m.RebuildsFired.Add(1)
		RecordPrometheusRebuild()
	}
	if toState == "Exit" {
		m.DeletesFired.Add(1)
		RecordPrometheusDelete()
	}

	m.recordTimeSeries()
	RecordPrometheusTransition()
}

// RecordBootLoop records CreateVM tripping the reboot-error latch.
func (m *Metrics) RecordBootLoop() {
	m.BootLoopsHit.Add(1)
	RecordPrometheusBootLoop()
}

// RecordIngress records a SendMessage outcome.
func (m *Metrics) RecordIngress(accepted bool) {
	if accepted {
		m.MessagesAccepted.Add(1)
	} else {
		m.MessagesRejected.Add(1)
	}
	RecordPrometheusIngress(accepted)
}

// recordTimeSeries enqueues a time-series event for async processing,
// avoiding a write lock on the pump's hot path.
func (m *Metrics) recordTimeSeries() {
	select {
	case m.tsChan <- timeSeriesEvent{}:
	default:
		m.tsDroppedEvents.Add(1)
	}
}

// processTimeSeriesLoop drains tsChan and applies events under a write lock.
func (m *Metrics) processTimeSeriesLoop() {
	for range m.tsChan {
		m.applyTimeSeriesEvent()
	}
}

// applyTimeSeriesEvent updates the time-series buckets. Must be called
// from a single goroutine (processTimeSeriesLoop).
func (m *Metrics) applyTimeSeriesEvent() {
	m.timeSeriesMu.Lock()
	defer m.timeSeriesMu.Unlock()

	now := time.Now().Truncate(timeSeriesBucketDuration)

	if len(m.timeSeries) > 0 {
		lastBucket := m.timeSeries[len(m.timeSeries)-1]
		bucketsDiff := int(now.Sub(lastBucket.Timestamp) / timeSeriesBucketDuration)

		if bucketsDiff > 0 {
			if bucketsDiff >= timeSeriesBucketCount {
				m.timeSeries = make([]*TimeSeriesBucket, timeSeriesBucketCount)
				for i := 0; i < timeSeriesBucketCount; i++ {
					m.timeSeries[i] = &TimeSeriesBucket{
						Timestamp: now.Add(time.Duration(i-(timeSeriesBucketCount-1)) * timeSeriesBucketDuration),
					}
				}
			} else {
				m.timeSeries = m.timeSeries[bucketsDiff:]
				for i := 0; i < bucketsDiff; i++ {
					m.timeSeries = append(m.timeSeries, &TimeSeriesBucket{
						Timestamp: lastBucket.Timestamp.Add(time.Duration(i+1) * timeSeriesBucketDuration),
					})
				}
			}
		}
	}

	if len(m.timeSeries) > 0 {
		bucket := m.timeSeries[len(m.timeSeries)-1]
		bucket.Transitions++
	}
}

// Snapshot is the JSON-serializable shape returned by Metrics.Snapshot.
type Snapshot struct {
	UptimeSeconds     float64 `json:"uptime_seconds"`
	TotalTransitions  int64   `json:"total_transitions"`
	DeletesFired      int64   `json:"deletes_fired"`
	BootAttempts      int64   `json:"boot_attempts"`
	BootLoopsHit      int64   `json:"boot_loops_hit"`
	RebuildsFired     int64   `json:"rebuilds_fired"`
	StatSamples       int64   `json:"stat_samples"`
	MessagesAccepted  int64   `json:"messages_accepted"`
	MessagesRejected  int64   `json:"messages_rejected"`
	TimeSeriesDropped int64   `json:"time_series_dropped"`
}

// Snapshot returns a point-in-time copy of the global counters.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		UptimeSeconds:     time.Since(m.startTime).Seconds(),
		TotalTransitions:  m.TotalTransitions.Load(),
		DeletesFired:      m.DeletesFired.Load(),
		BootAttempts:      m.BootAttempts.Load(),
		BootLoopsHit:      m.BootLoopsHit.Load(),
		RebuildsFired:     m.RebuildsFired.Load(),
		StatSamples:       m.StatSamples.Load(),
		MessagesAccepted:  m.MessagesAccepted.Load(),
		MessagesRejected:  m.MessagesRejected.Load(),
		TimeSeriesDropped: m.tsDroppedEvents.Load(),
	}
}
