// Package automaton implements the per-router lifecycle automaton: the
// state machine that consumes an ordered stream of CRUD-shaped events
// and drives a managed appliance through boot, configure, poll,
// stats-read, rebuild, and teardown phases.
//
// # State vertices
//
// Each phase is a stateless vertex implementing State. "Stateless" means
// with respect to the automaton: a vertex carries no per-instance data of
// its own, only a borrowed *params bundle (log sink, queue, appliance
// handle, reboot threshold, tracer) shared by every vertex of a given
// automaton. Vertex identity — which concrete type current_state holds —
// is what carries meaning; there is no separate "memory" to keep in sync
// with it.
//
// # Fairness
//
// A pump invocation (Automaton.Update) yields control back to its caller
// every time Transition lands on CalcAction or Exit. This is the sole
// fairness contract with the worker pool that multiplexes many
// automatons on a bounded number of goroutines (internal/worker): a
// router with a long backlog of events cannot monopolize a pump
// goroutine indefinitely.
package automaton

import (
	"context"

	"github.com/skyrelay/vortex/internal/event"
)

// State is a polymorphic unit exposing the two operations every phase of
// the lifecycle implements. Execute performs the phase's side effect
// (usually one Appliance call) and returns the action the following
// Transition should route on. Transition inspects the appliance's
// lifecycle state and the action to decide the next vertex.
type State interface {
	// Execute performs this state's side effect and returns the action
	// to hand to Transition. An error means the underlying appliance
	// operation failed transiently (SPEC_FULL.md §7, category 1): the
	// pump logs it and runs Transition with the action unchanged from
	// before this call, exactly as if Execute had returned it verbatim.
	Execute(ctx context.Context, action event.Tag) (event.Tag, error)
	// Transition returns the next state vertex.
	Transition(ctx context.Context, action event.Tag) State
	// Name identifies the vertex for logging and tests.
	Name() string
}

// base is embedded by every concrete vertex to share the parameter
// bundle without sharing behavior — there is deliberately no inherited
// Execute/Transition here, only accessors, so each vertex must say what
// it does.
type base struct {
	p *params
}
