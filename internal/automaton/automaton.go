package automaton

import (
	"context"
	"log/slog"
	"sync"

	"github.com/skyrelay/vortex/internal/appliance"
	"github.com/skyrelay/vortex/internal/event"
)

// Automaton drives one router's Appliance through its lifecycle by
// repeatedly running Execute/Transition pairs against a queue of incoming
// CRUD-shaped events. A single Automaton is never run concurrently by more
// than one goroutine at a time — internal/worker serializes Update calls
// per router — but SendMessage and HasMoreWork may be called from any
// goroutine while a pump is in flight.
type Automaton struct {
	RouterID string
	TenantID string

	log                   *slog.Logger
	queue                 *queue
	params                *params
	appliance             appliance.Appliance
	tracer                Tracer
	audit                 AuditSink
	queueWarningThreshold int

	mu             sync.Mutex
	state          State
	action         event.Tag
	deleted        bool
	deleteCallback DeleteCallback
}

// New constructs an Automaton in its starting position: action POLL, vertex
// CalcAction, matching the state a freshly-created router begins in before
// any event has arrived.
func New(
	routerID, tenantID string,
	appl appliance.Appliance,
	deleteCallback DeleteCallback,
	bandwidthCallback BandwidthCallback,
	log *slog.Logger,
	queueWarningThreshold, rebootErrorThreshold int,
	tracer Tracer,
	audit AuditSink,
) *Automaton {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("router_id", routerID, "tenant_id", tenantID)
	if tracer == nil {
		tracer = noopTracer{}
	}

	q := newQueue()
	p := &params{
		log:                  log,
		queue:                q,
		appliance:            appl,
		bandwidthCallback:    bandwidthCallback,
		rebootErrorThreshold: rebootErrorThreshold,
		tracer:               tracer,
	}

	a := &Automaton{
		RouterID:              routerID,
		TenantID:              tenantID,
		log:                   log,
		queue:                 q,
		params:                p,
		appliance:             appl,
		tracer:                tracer,
		audit:                 audit,
		queueWarningThreshold: queueWarningThreshold,
		state:                 newCalcAction(p),
		action:                event.POLL,
		deleteCallback:        deleteCallback,
	}
	return a
}

// doDelete fires the delete callback exactly once and marks the automaton
// deleted so no further SendMessage calls are accepted.
func (a *Automaton) doDelete() {
	if a.deleteCallback != nil {
		a.log.Debug("calling delete callback")
		a.deleteCallback()
		a.deleteCallback = nil
	}
	a.deleted = true
}

// Update runs the pump until it yields: control returns to the caller the
// moment Transition lands on CalcAction (a full action has been resolved
// and nothing more can be decided without a new event or another pump
// invocation) or on Exit (the router is gone). An Execute error is logged
// and otherwise has no effect on the automaton: the action in flight is
// left exactly as it was before the failed call, exactly as transition
// would have seen it had Execute returned the same value it was given.
func (a *Automaton) Update(ctx context.Context) {
	for {
		a.mu.Lock()
		if a.queue.empty() {
			a.mu.Unlock()
			return
		}
		a.mu.Unlock()

		for {
			a.mu.Lock()
			if a.deleted {
				a.log.Debug("skipping update because the router is being deleted")
				a.mu.Unlock()
				return
			}
			state := a.state
			action := a.action
			a.mu.Unlock()

			spanCtx, span := a.tracer.Start(ctx, state.Name())
			a.log.Debug("execute", "state", state.Name(), "action", action, "appliance_state", a.appliance.State())
			newAction, err := state.Execute(spanCtx, action)
			if err != nil {
				a.log.Error("execute failed", "state", state.Name(), "action", action, "error", err)
				span.RecordError(err)
			} else {
				action = newAction
			}
			span.End()
			a.log.Debug("execute done", "state", state.Name(), "action", action, "appliance_state", a.appliance.State())

			nextState := state.Transition(ctx, action)
			a.log.Debug("transition", "from", state.Name(), "action", action, "to", nextState.Name(), "appliance_state", a.appliance.State())

			if a.audit != nil {
				a.audit.RecordTransition(ctx, a.RouterID, a.TenantID, state.Name(), string(action), nextState.Name(), string(a.appliance.State()))
			}

			a.mu.Lock()
			a.state = nextState
			a.action = action
			a.mu.Unlock()

			if _, ok := nextState.(*calcAction); ok {
				return
			}
			if _, ok := nextState.(*exitState); ok {
				a.mu.Lock()
				a.doDelete()
				a.mu.Unlock()
				return
			}
		}
	}
}

// SendMessage enqueues an incoming CRUD event. It refuses messages once
// the router has been deleted, and refuses a POLL while the appliance is
// latched in Error — polling an errored appliance only generates more
// noise, not progress.
func (a *Automaton) SendMessage(msg event.Message) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.deleted {
		a.log.Debug("deleted automaton, ignoring incoming message", "crud", msg.CRUD)
		return false
	}

	if msg.CRUD == event.POLL && a.appliance.State() == appliance.Error {
		a.log.Info("appliance state is error, ignoring poll message", "crud", msg.CRUD)
		return false
	}

	a.queue.push(msg.CRUD)
	queueLen := a.queue.len()
	if queueLen > a.queueWarningThreshold {
		a.log.Warn("incoming message brings queue length over threshold", "queue_len", queueLen)
	} else {
		a.log.Debug("incoming message brings queue length", "queue_len", queueLen)
	}
	return true
}

// HasMoreWork reports whether the automaton has pending events to process
// and has not yet reached its deleted terminal state.
func (a *Automaton) HasMoreWork() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.deleted && !a.queue.empty()
}

// Deleted reports whether this automaton has reached Exit.
func (a *Automaton) Deleted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deleted
}

// ServiceShutdown is an advisory hook invoked when the owning process is
// stopping. The automaton holds no resources that need releasing here; a
// managed Appliance implementation is expected to close its own handles
// separately.
func (a *Automaton) ServiceShutdown() {}
