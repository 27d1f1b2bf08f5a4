package automaton

import (
	"context"

	"github.com/skyrelay/vortex/internal/event"
)

// exitState is the terminal vertex. Reaching it ends the pump: Automaton.Update
// recognizes *exitState by type, fires the delete callback exactly once, and
// returns without invoking Execute/Transition on it.
type exitState struct{ base }

func newExit(p *params) *exitState { return &exitState{base{p}} }

func (s *exitState) Name() string { return "Exit" }

func (s *exitState) Execute(_ context.Context, action event.Tag) (event.Tag, error) {
	return action, nil
}

func (s *exitState) Transition(_ context.Context, _ event.Tag) State {
	return s
}
