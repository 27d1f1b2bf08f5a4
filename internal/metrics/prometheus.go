package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for vortexd's automaton
// pump.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Counters
	transitionsTotal  prometheus.Counter
	deletesTotal      prometheus.Counter
	bootAttemptsTotal prometheus.Counter
	bootLoopsTotal    prometheus.Counter
	rebuildsTotal     prometheus.Counter
	statSamplesTotal  prometheus.Counter
	ingressTotal      *prometheus.CounterVec

	// Gauges
	uptime        prometheus.GaugeFunc
	routersActive prometheus.Gauge
	queueDepth    *prometheus.GaugeVec

	// Circuit breaker (one breaker per router's Appliance manager)
	circuitBreakerState      *prometheus.GaugeVec
	circuitBreakerTripsTotal *prometheus.CounterVec

	// Bandwidth, fed by the automaton's BandwidthCallback on every
	// successful ReadStats execution. Gauges, not counters: StatSample
	// carries the guest agent's last-read cumulative byte totals, not a
	// delta since the previous sample.
	rxBytes *prometheus.GaugeVec
	txBytes *prometheus.GaugeVec
}

var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}
	_ = buckets // reserved for a future per-cycle duration histogram

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		transitionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total automaton Execute/Transition pairs observed",
			},
		),

		deletesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deletes_total",
				Help:      "Total automatons that reached Exit and fired their delete callback",
			},
		),

		bootAttemptsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "boot_attempts_total",
				Help:      "Total CreateVM boot attempts issued",
			},
		),

		bootLoopsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "boot_loops_total",
				Help:      "Total times a router tripped the reboot-error-threshold latch",
			},
		),

		rebuildsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rebuilds_total",
				Help:      "Total explicit REBUILD events processed by RebuildVM",
			},
		),

		statSamplesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stat_samples_total",
				Help:      "Total successful ReadStats executions",
			},
		),

		ingressTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingress_total",
				Help:      "Total SendMessage calls, by outcome",
			},
			[]string{"outcome"}, // accepted, rejected
		),

		routersActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "routers_active",
				Help:      "Number of routers with a live (non-deleted) automaton",
			},
		),

		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Current automaton queue depth by router",
			},
			[]string{"router_id"},
		),

		circuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Current circuit breaker state by router (0=closed, 1=open, 2=half_open)",
			},
			[]string{"router_id"},
		),

		circuitBreakerTripsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_trips_total",
				Help:      "Total circuit breaker state transitions by router",
			},
			[]string{"router_id", "to_state"},
		),

		rxBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rx_bytes",
				Help:      "Last-sampled cumulative bytes received, by router",
			},
			[]string{"router_id"},
		),

		txBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tx_bytes",
				Help:      "Last-sampled cumulative bytes transmitted, by router",
			},
			[]string{"router_id"},
		),
	}

	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since vortexd started",
		},
		func() float64 {
			return time.Since(StartTime()).Seconds()
		},
	)

	registry.MustRegister(
		pm.transitionsTotal,
		pm.deletesTotal,
		pm.bootAttemptsTotal,
		pm.bootLoopsTotal,
		pm.rebuildsTotal,
		pm.statSamplesTotal,
		pm.ingressTotal,
		pm.uptime,
		pm.routersActive,
		pm.queueDepth,
		pm.circuitBreakerState,
		pm.circuitBreakerTripsTotal,
		pm.rxBytes,
		pm.txBytes,
	)

	promMetrics = pm
}

// RecordPrometheusTransition records one Execute/Transition pair.
func RecordPrometheusTransition() {
	if promMetrics == nil {
		return
	}
	promMetrics.transitionsTotal.Inc()
}

// RecordPrometheusDelete records a terminal Exit transition.
func RecordPrometheusDelete() {
	if promMetrics == nil {
		return
	}
	promMetrics.deletesTotal.Inc()
}

// RecordPrometheusBootAttempt records one CreateVM boot attempt.
func RecordPrometheusBootAttempt() {
	if promMetrics == nil {
		return
	}
	promMetrics.bootAttemptsTotal.Inc()
}

// RecordPrometheusBootLoop records a reboot-error-threshold trip.
func RecordPrometheusBootLoop() {
	if promMetrics == nil {
		return
	}
	promMetrics.bootLoopsTotal.Inc()
}

// RecordPrometheusRebuild records a REBUILD event reaching RebuildVM.
func RecordPrometheusRebuild() {
	if promMetrics == nil {
		return
	}
	promMetrics.rebuildsTotal.Inc()
}

// RecordPrometheusStatSample records a successful ReadStats execution.
func RecordPrometheusStatSample() {
	if promMetrics == nil {
		return
	}
	promMetrics.statSamplesTotal.Inc()
}

// RecordPrometheusIngress records a SendMessage outcome.
func RecordPrometheusIngress(accepted bool) {
	if promMetrics == nil {
		return
	}
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	promMetrics.ingressTotal.WithLabelValues(outcome).Inc()
}

// RecordPrometheusBandwidth mirrors one ReadStats sample's cumulative
// byte totals for a router.
func RecordPrometheusBandwidth(routerID string, rxBytes, txBytes int64) {
	if promMetrics == nil {
		return
	}
	promMetrics.rxBytes.WithLabelValues(routerID).Set(float64(rxBytes))
	promMetrics.txBytes.WithLabelValues(routerID).Set(float64(txBytes))
}

// SetRoutersActive sets the count of live automatons.
func SetRoutersActive(count int) {
	if promMetrics == nil {
		return
	}
	promMetrics.routersActive.Set(float64(count))
}

// SetQueueDepth sets the queue-depth gauge for one router.
func SetQueueDepth(routerID string, depth int) {
	if promMetrics == nil {
		return
	}
	promMetrics.queueDepth.WithLabelValues(routerID).Set(float64(depth))
}

// SetCircuitBreakerState sets the circuit breaker state gauge for one
// router's Appliance manager. state: 0=closed, 1=open, 2=half_open.
func SetCircuitBreakerState(routerID string, state int) {
	if promMetrics == nil {
		return
	}
	promMetrics.circuitBreakerState.WithLabelValues(routerID).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker state transition for
// one router.
func RecordCircuitBreakerTrip(routerID, toState string) {
	if promMetrics == nil {
		return
	}
	promMetrics.circuitBreakerTripsTotal.WithLabelValues(routerID, toState).Inc()
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics
// scraping.
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom
// collectors).
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
