package automaton

import (
	"context"

	"github.com/skyrelay/vortex/internal/appliance"
	"github.com/skyrelay/vortex/internal/event"
)

// configureVM applies configuration to a reachable appliance.
type configureVM struct{ base }

func newConfigureVM(p *params) *configureVM { return &configureVM{base{p}} }

func (s *configureVM) Name() string { return "ConfigureVM" }

func (s *configureVM) Execute(ctx context.Context, action event.Tag) (event.Tag, error) {
	if err := s.p.appliance.Configure(ctx); err != nil {
		return action, err
	}
	if s.p.appliance.State() == appliance.Configured {
		if action == event.READ {
			return event.READ, nil
		}
		return event.POLL, nil
	}
	return action, nil
}

func (s *configureVM) Transition(_ context.Context, action event.Tag) State {
	switch s.p.appliance.State() {
	case appliance.Restart, appliance.Down, appliance.Gone:
		return newStopVM(s.p)
	case appliance.Up:
		return newPushUpdate(s.p)
	default:
		// state == Configured
		if action == event.READ {
			return newReadStats(s.p)
		}
		return newCalcAction(s.p)
	}
}
