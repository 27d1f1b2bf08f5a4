package automaton

import (
	"context"

	"github.com/skyrelay/vortex/internal/appliance"
	"github.com/skyrelay/vortex/internal/event"
)

// alive probes appliance health by refreshing its lifecycle state from
// the hypervisor.
type alive struct{ base }

func newAlive(p *params) *alive { return &alive{base{p}} }

func (s *alive) Name() string { return "Alive" }

func (s *alive) Execute(ctx context.Context, action event.Tag) (event.Tag, error) {
	if err := s.p.appliance.UpdateState(ctx); err != nil {
		return action, err
	}
	return action, nil
}

func (s *alive) Transition(_ context.Context, action event.Tag) State {
	st := s.p.appliance.State()
	switch {
	case st == appliance.Gone:
		return newStopVM(s.p)
	case st == appliance.Down:
		return newCreateVM(s.p)
	case action == event.POLL && st == appliance.Configured:
		return newCalcAction(s.p)
	case action == event.READ && st == appliance.Configured:
		return newReadStats(s.p)
	default:
		return newConfigureVM(s.p)
	}
}
