package automaton

import (
	"context"

	"github.com/skyrelay/vortex/internal/appliance"
	"github.com/skyrelay/vortex/internal/event"
)

// checkBoot waits for post-boot reachability. It pushes the current
// action back onto the front of the queue so the next pump iteration
// re-processes it: CalcAction will see this action ahead of anything
// that arrived in the meantime, so a pending CREATE is not starved by a
// later READ.
type checkBoot struct{ base }

func newCheckBoot(p *params) *checkBoot { return &checkBoot{base{p}} }

func (s *checkBoot) Name() string { return "CheckBoot" }

func (s *checkBoot) Execute(ctx context.Context, action event.Tag) (event.Tag, error) {
	if err := s.p.appliance.CheckBoot(ctx); err != nil {
		return action, err
	}
	if s.p.appliance.State() != appliance.Gone {
		s.p.queue.pushFront(action)
	}
	return action, nil
}

func (s *checkBoot) Transition(_ context.Context, _ event.Tag) State {
	switch s.p.appliance.State() {
	case appliance.Gone:
		return newStopVM(s.p)
	case appliance.Up:
		return newConfigureVM(s.p)
	default:
		return newCalcAction(s.p)
	}
}
