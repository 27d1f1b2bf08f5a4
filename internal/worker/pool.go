// Package worker multiplexes many per-router automatons onto a bounded
// set of goroutines, waking a pumping goroutine whenever SendMessage
// accepts a new event instead of polling every automaton on a timer.
package worker

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/skyrelay/vortex/internal/appliance"
	"github.com/skyrelay/vortex/internal/automaton"
	"github.com/skyrelay/vortex/internal/event"
	"github.com/skyrelay/vortex/internal/queue"
)

// ApplianceFactory builds the Appliance a newly-registered router should
// be driven through. It is called when Enqueue sees a router_id with no
// registered automaton; if two such calls for the same router race, each
// may build an Appliance and only the first one registered is kept.
type ApplianceFactory func(routerID, tenantID string) (appliance.Appliance, error)

// Config bounds the pool's resource usage and supplies every automaton
// the pool creates with its lifecycle-guard thresholds.
type Config struct {
	// Workers is the number of pump goroutines. Defaults to GOMAXPROCS.
	Workers int
	// QueueWarningThreshold is threaded into every automaton created by
	// the pool.
	QueueWarningThreshold int
	// RebootErrorThreshold is threaded into every automaton created by
	// the pool.
	RebootErrorThreshold int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.QueueWarningThreshold <= 0 {
		c.QueueWarningThreshold = 50
	}
	if c.RebootErrorThreshold <= 0 {
		c.RebootErrorThreshold = 5
	}
	return c
}

// Pool owns the registry of live router automatons and the pump
// goroutines that drive them. Enqueue is safe to call from any
// goroutine; Start/Stop manage the pump goroutines' lifecycle.
type Pool struct {
	cfg      Config
	log      *slog.Logger
	notifier queue.Notifier
	tracer   automaton.Tracer
	audit    automaton.AuditSink
	bwCB     automaton.BandwidthCallback
	build    ApplianceFactory

	mu        sync.Mutex
	automatons map[string]*automaton.Automaton

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Pool. A nil notifier is replaced by
// queue.NewNoopNotifier(). The pool has no polling loop: pump goroutines
// run only when the notifier wakes them, so with a NoopNotifier enqueued
// events are accepted but never pumped.
func New(
	cfg Config,
	log *slog.Logger,
	notifier queue.Notifier,
	tracer automaton.Tracer,
	audit automaton.AuditSink,
	bandwidthCallback automaton.BandwidthCallback,
	build ApplianceFactory,
) *Pool {
	if log == nil {
		log = slog.Default()
	}
	if notifier == nil {
		notifier = queue.NewNoopNotifier()
	}
	return &Pool{
		cfg:        cfg.withDefaults(),
		log:        log,
		notifier:   notifier,
		tracer:     tracer,
		audit:      audit,
		bwCB:       bandwidthCallback,
		build:      build,
		automatons: make(map[string]*automaton.Automaton),
		stopCh:     make(chan struct{}),
	}
}

// Start launches the pool's pump goroutines.
func (p *Pool) Start(ctx context.Context) {
	p.log.Info("starting worker pool", "workers", p.cfg.Workers)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.pump(ctx, i)
	}
}

// Stop signals every pump goroutine to exit and waits for them to drain.
func (p *Pool) Stop() {
	p.log.Info("stopping worker pool")
	close(p.stopCh)
	p.wg.Wait()
	p.log.Info("worker pool stopped")
}

// Enqueue routes one CRUD event to the automaton for routerID, lazily
// creating it (and its backing Appliance, via build) on first sight.
// Returns false if the automaton rejected the message (deleted, or a
// POLL against an errored appliance) or if appliance construction
// failed.
func (p *Pool) Enqueue(ctx context.Context, routerID, tenantID string, tag event.Tag) bool {
	a, err := p.getOrCreate(routerID, tenantID)
	if err != nil {
		p.log.Error("create appliance failed", "router_id", routerID, "error", err)
		return false
	}

	accepted := a.SendMessage(event.Message{CRUD: tag})
	if accepted {
		if err := p.notifier.Notify(ctx, queue.QueueRouter); err != nil {
			p.log.Warn("notify failed", "error", err)
		}
	}
	return accepted
}

func (p *Pool) getOrCreate(routerID, tenantID string) (*automaton.Automaton, error) {
	p.mu.Lock()
	if a, ok := p.automatons[routerID]; ok {
		p.mu.Unlock()
		return a, nil
	}
	p.mu.Unlock()

	appl, err := p.build(routerID, tenantID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.automatons[routerID]; ok {
		// Lost a race with another caller; discard the appliance we just
		// built in favor of the one already registered.
		return a, nil
	}

	a := automaton.New(
		routerID, tenantID,
		appl,
		func() { p.forget(routerID) },
		p.bwCB,
		p.log,
		p.cfg.QueueWarningThreshold,
		p.cfg.RebootErrorThreshold,
		p.tracer,
		p.audit,
	)
	p.automatons[routerID] = a
	return a, nil
}

// forget removes a deleted automaton from the registry. It is the
// automaton's delete_callback, invoked at most once per router.
func (p *Pool) forget(routerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.automatons, routerID)
	p.log.Debug("forgot deleted automaton", "router_id", routerID)
}

// pump is one of the pool's fixed-size set of worker goroutines. It
// blocks on the notifier's wakeup channel, then sweeps the registry
// draining every automaton that reports pending work. Each automaton's
// own yield contract (Update returns at CalcAction/Exit) keeps one noisy
// router from starving the others sharing this goroutine.
func (p *Pool) pump(ctx context.Context, id int) {
	defer p.wg.Done()

	wake := p.notifier.Subscribe(ctx, queue.QueueRouter)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case _, ok := <-wake:
			if !ok {
				return
			}
			p.drain(ctx, id)
		}
	}
}

// drain sweeps the registry once, pumping every automaton with pending
// work. A snapshot of the registry is taken under the lock and then
// walked without it, since Update may run for a while per automaton.
func (p *Pool) drain(ctx context.Context, workerID int) {
	p.mu.Lock()
	snapshot := make([]*automaton.Automaton, 0, len(p.automatons))
	for _, a := range p.automatons {
		snapshot = append(snapshot, a)
	}
	p.mu.Unlock()

	for _, a := range snapshot {
		for a.HasMoreWork() {
			p.log.Debug("pumping", "worker", workerID, "router_id", a.RouterID)
			a.Update(ctx)
		}
	}
}

// Count returns the number of automatons currently registered.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.automatons)
}
