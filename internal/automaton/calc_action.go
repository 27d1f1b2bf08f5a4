package automaton

import (
	"context"

	"github.com/skyrelay/vortex/internal/appliance"
	"github.com/skyrelay/vortex/internal/event"
)

// calcAction is the coalescing vertex. It folds the pending queue into a
// single next action, evaluated against the queue head on each iteration
// per SPEC_FULL.md §4.1. Every iteration either pops an item or breaks,
// so the loop terminates within len(queue)+1 steps.
type calcAction struct{ base }

func newCalcAction(p *params) *calcAction { return &calcAction{base{p}} }

func (s *calcAction) Name() string { return "CalcAction" }

func (s *calcAction) Execute(_ context.Context, action event.Tag) (event.Tag, error) {
	q := s.p.queue

	if q.contains(event.DELETE) {
		s.p.log.Debug("shortcutting to delete")
		return event.DELETE, nil
	}

	for {
		head, ok := q.peekFront()
		if !ok {
			return action, nil
		}

		switch {
		case action == event.UPDATE && head == event.CREATE:
			s.p.log.Debug("upgrading from update to create")
			action, _ = q.popFront()
			continue

		case action == event.UPDATE && head == event.REBUILD:
			s.p.log.Debug("upgrading from update to rebuild")
			action, _ = q.popFront()
			continue

		case action == event.CREATE && head == event.UPDATE:
			s.p.log.Debug("merging create and update")
			q.popFront()
			continue

		case action != event.Empty && head == event.POLL:
			s.p.log.Debug("discarding poll event following action", "action", action)
			q.popFront()
			continue

		case action != event.Empty && action != event.POLL && action != head:
			s.p.log.Debug("done collapsing events")
			return action, nil

		default:
			action, _ = q.popFront()
		}
	}
}

func (s *calcAction) Transition(_ context.Context, action event.Tag) State {
	switch {
	case s.p.appliance.State() == appliance.Gone:
		return newStopVM(s.p)
	case action == event.DELETE:
		return newStopVM(s.p)
	case action == event.REBUILD:
		return newRebuildVM(s.p)
	case s.p.appliance.State() == appliance.Booting:
		return newCheckBoot(s.p)
	case s.p.appliance.State() == appliance.Down:
		return newCreateVM(s.p)
	default:
		return newAlive(s.p)
	}
}
