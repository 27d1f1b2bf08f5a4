package automaton

import (
	"context"

	"github.com/skyrelay/vortex/internal/event"
)

// readStats samples bandwidth and reports it via the bandwidth callback.
type readStats struct{ base }

func newReadStats(p *params) *readStats { return &readStats{base{p}} }

func (s *readStats) Name() string { return "ReadStats" }

func (s *readStats) Execute(ctx context.Context, action event.Tag) (event.Tag, error) {
	sample, err := s.p.appliance.ReadStats(ctx)
	if err != nil {
		return action, err
	}
	if s.p.bandwidthCallback != nil {
		s.p.bandwidthCallback(sample)
	}
	return event.POLL, nil
}

func (s *readStats) Transition(_ context.Context, _ event.Tag) State {
	return newCalcAction(s.p)
}
