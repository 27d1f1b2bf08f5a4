// Package driver enforces the enabled_drivers allowlist against a static
// registry of known appliance drivers, mirroring the original
// akanda.rug.drivers module: a fixed AVAILABLE_DRIVERS table gated by a
// configured subset.
package driver

import (
	"errors"
	"fmt"
)

// ErrUnknownDriver is returned by Get for any name not present in the
// static registry, and by Registry construction for any configured name
// not present in it either.
var ErrUnknownDriver = errors.New("unknown driver")

// Driver names an appliance implementation strategy. Today the registry
// holds exactly one: "router", backed by internal/applianceimpl.
type Driver string

// Router is the only driver shipped today, matching the original's
// single built-in driver.
const Router Driver = "router"

// available is the static table of everything this binary knows how to
// construct an Appliance for. Unlike enabledDrivers (configured per
// deployment), this set is fixed at compile time.
var available = map[string]Driver{
	string(Router): Router,
}

// Registry resolves a deployment's configured enabled_drivers list
// against the static available set.
type Registry struct {
	enabled []string
}

// NewRegistry validates cfg against the static available set and
// returns a Registry, or an error naming the first unrecognized driver.
func NewRegistry(enabledDrivers []string) (*Registry, error) {
	if len(enabledDrivers) == 0 {
		enabledDrivers = []string{string(Router)}
	}
	for _, name := range enabledDrivers {
		if _, ok := available[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
		}
	}
	return &Registry{enabled: enabledDrivers}, nil
}

// Get returns the Driver for name if it is both known and enabled.
func (r *Registry) Get(name string) (Driver, error) {
	d, ok := available[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	for _, e := range r.enabled {
		if e == name {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not enabled", ErrUnknownDriver, name)
}

// Enabled returns the resolved list of enabled driver names.
func (r *Registry) Enabled() []string {
	out := make([]string, len(r.enabled))
	copy(out, r.enabled)
	return out
}
