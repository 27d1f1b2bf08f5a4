package automaton

import (
	"context"

	"github.com/skyrelay/vortex/internal/appliance"
	"github.com/skyrelay/vortex/internal/event"
)

// stopVM tears the appliance down. It and rebuildVM (whose own Stop call
// can find the appliance Gone) are the only vertices that transition to
// Exit; every other vertex reaches Exit by way of one of them.
type stopVM struct{ base }

func newStopVM(p *params) *stopVM { return &stopVM{base{p}} }

func (s *stopVM) Name() string { return "StopVM" }

func (s *stopVM) Execute(ctx context.Context, action event.Tag) (event.Tag, error) {
	if err := s.p.appliance.Stop(ctx); err != nil {
		return action, err
	}
	if s.p.appliance.State() == appliance.Gone {
		return event.DELETE, nil
	}
	return action, nil
}

func (s *stopVM) Transition(_ context.Context, action event.Tag) State {
	st := s.p.appliance.State()
	switch {
	case st != appliance.Down && st != appliance.Gone:
		return newStopVM(s.p)
	case st == appliance.Gone:
		return newExit(s.p)
	case action == event.DELETE:
		return newExit(s.p)
	default:
		return newCreateVM(s.p)
	}
}
