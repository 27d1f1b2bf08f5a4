package automaton

import (
	"context"

	"github.com/skyrelay/vortex/internal/appliance"
	"github.com/skyrelay/vortex/internal/event"
)

// rebuildVM clears a latched error (if any) and forces a fresh Stop/Create
// cycle, bypassing the reboot-error-threshold latch that CreateVM would
// otherwise re-trip on the very next attempt.
type rebuildVM struct{ base }

func newRebuildVM(p *params) *rebuildVM { return &rebuildVM{base{p}} }

func (s *rebuildVM) Name() string { return "RebuildVM" }

func (s *rebuildVM) Execute(ctx context.Context, action event.Tag) (event.Tag, error) {
	if s.p.appliance.State() == appliance.Error {
		if err := s.p.appliance.ClearError(ctx); err != nil {
			return action, err
		}
	}
	if err := s.p.appliance.Stop(ctx); err != nil {
		return action, err
	}
	if s.p.appliance.State() == appliance.Gone {
		return event.DELETE, nil
	}
	return event.CREATE, nil
}

func (s *rebuildVM) Transition(_ context.Context, _ event.Tag) State {
	st := s.p.appliance.State()
	switch {
	case st != appliance.Down && st != appliance.Gone:
		return newRebuildVM(s.p)
	case st == appliance.Gone:
		return newExit(s.p)
	default:
		return newCreateVM(s.p)
	}
}
