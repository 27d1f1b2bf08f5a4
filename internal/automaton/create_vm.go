package automaton

import (
	"context"

	"github.com/skyrelay/vortex/internal/appliance"
	"github.com/skyrelay/vortex/internal/event"
)

// createVM issues a boot attempt, guarding against boot loops: once the
// appliance's consecutive attempt count reaches rebootErrorThreshold, no
// further boots are tried until an explicit REBUILD clears the latch
// (see rebuildVM).
type createVM struct{ base }

func newCreateVM(p *params) *createVM { return &createVM{base{p}} }

func (s *createVM) Name() string { return "CreateVM" }

func (s *createVM) Execute(ctx context.Context, action event.Tag) (event.Tag, error) {
	if s.p.appliance.Attempts() >= s.p.rebootErrorThreshold {
		s.p.log.Info("dropping out of boot loop", "attempts", s.p.appliance.Attempts())
		if err := s.p.appliance.SetError(ctx); err != nil {
			return action, err
		}
		return action, nil
	}

	if err := s.p.appliance.Boot(ctx); err != nil {
		return action, err
	}
	s.p.log.Debug("create_vm attempt", "attempts", s.p.appliance.Attempts())
	return action, nil
}

func (s *createVM) Transition(_ context.Context, _ event.Tag) State {
	switch s.p.appliance.State() {
	case appliance.Gone:
		return newStopVM(s.p)
	case appliance.Error:
		return newCalcAction(s.p)
	default:
		return newCheckBoot(s.p)
	}
}
