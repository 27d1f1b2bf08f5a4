package automaton

import (
	"context"
	"sync"

	"github.com/skyrelay/vortex/internal/appliance"
)

// fakeAppliance is a hand-rolled, fully synchronous stand-in for a
// hypervisor-backed Appliance. Each lifecycle call is scriptable via a
// function field; tests set only the fields relevant to the scenario
// under test and leave the rest at their zero-value (successful no-op)
// behavior.
type fakeAppliance struct {
	mu       sync.Mutex
	state    appliance.State
	attempts int

	bootErr        error
	checkBootErr   error
	configureErr   error
	updateStateErr error
	readStatsErr   error
	stopErr        error
	setErrorErr    error
	clearErrorErr  error

	onBoot      func(*fakeAppliance)
	onCheckBoot func(*fakeAppliance)
	onConfigure func(*fakeAppliance)
	onStop      func(*fakeAppliance)

	statSample appliance.StatSample
}

func newFakeAppliance() *fakeAppliance {
	return &fakeAppliance{state: appliance.Down}
}

func (f *fakeAppliance) Boot(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.bootErr != nil {
		return f.bootErr
	}
	if f.onBoot != nil {
		f.onBoot(f)
		return nil
	}
	f.state = appliance.Booting
	return nil
}

func (f *fakeAppliance) CheckBoot(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkBootErr != nil {
		return f.checkBootErr
	}
	if f.onCheckBoot != nil {
		f.onCheckBoot(f)
		return nil
	}
	if f.state == appliance.Booting {
		f.state = appliance.Up
	}
	return nil
}

func (f *fakeAppliance) Configure(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.configureErr != nil {
		return f.configureErr
	}
	if f.onConfigure != nil {
		f.onConfigure(f)
		return nil
	}
	f.state = appliance.Configured
	f.attempts = 0
	return nil
}

func (f *fakeAppliance) UpdateState(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updateStateErr
}

func (f *fakeAppliance) ReadStats(context.Context) (appliance.StatSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readStatsErr != nil {
		return appliance.StatSample{}, f.readStatsErr
	}
	return f.statSample, nil
}

func (f *fakeAppliance) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	if f.onStop != nil {
		f.onStop(f)
		return nil
	}
	if f.state != appliance.Gone {
		f.state = appliance.Down
	}
	return nil
}

func (f *fakeAppliance) SetError(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErrorErr != nil {
		return f.setErrorErr
	}
	f.state = appliance.Error
	return nil
}

func (f *fakeAppliance) ClearError(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErrorErr != nil {
		return f.clearErrorErr
	}
	f.attempts = 0
	f.state = appliance.Down
	return nil
}

func (f *fakeAppliance) State() appliance.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeAppliance) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *fakeAppliance) setState(s appliance.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}
