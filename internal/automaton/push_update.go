package automaton

import (
	"context"

	"github.com/skyrelay/vortex/internal/event"
)

// pushUpdate re-arms the queue with an UPDATE after ConfigureVM observes
// the appliance regress to Up (configuration failed to stick), to
// guarantee another configure pass.
type pushUpdate struct{ base }

func newPushUpdate(p *params) *pushUpdate { return &pushUpdate{base{p}} }

func (s *pushUpdate) Name() string { return "PushUpdate" }

func (s *pushUpdate) Execute(_ context.Context, action event.Tag) (event.Tag, error) {
	s.p.queue.pushFront(event.UPDATE)
	return action, nil
}

func (s *pushUpdate) Transition(_ context.Context, _ event.Tag) State {
	return newCalcAction(s.p)
}
