// Package appliance defines the capability interface the lifecycle
// automaton invokes on its managed virtual appliance, and the lifecycle
// state vocabulary the appliance manager owns and the automaton only
// observes.
//
// Nothing in this package talks to a hypervisor. Concrete implementations
// live in internal/applianceimpl; tests use a hand-rolled fake that
// satisfies Appliance directly.
package appliance

import "context"

// State is a lifecycle tag owned by the appliance manager. The automaton
// reads it after every Appliance call but never writes it directly.
type State string

const (
	// Down means the appliance is not running.
	Down State = "DOWN"
	// Booting means boot has been issued but the appliance is not yet
	// reachable.
	Booting State = "BOOTING"
	// Up means the appliance is reachable but unconfigured.
	Up State = "UP"
	// Configured means the appliance is reachable and configured.
	Configured State = "CONFIGURED"
	// Restart means the appliance must be stopped and re-created.
	Restart State = "RESTART"
	// Error means the boot-loop guard has tripped; holds until cleared.
	Error State = "ERROR"
	// Gone means the backing resource no longer exists upstream.
	Gone State = "GONE"
)

// StatSample is an opaque bandwidth measurement returned by ReadStats and
// handed to the automaton's bandwidth callback unchanged.
type StatSample struct {
	RouterID    string
	RxBytes     int64
	TxBytes     int64
	SampledAtNS int64
}

// Appliance is the set of operations the automaton invokes on its managed
// virtual appliance, plus the two fields it reads back. Implementations
// must be safe for use by exactly one automaton at a time; the automaton
// never calls two of these concurrently for the same appliance.
type Appliance interface {
	// Boot begins provisioning. Increments Attempts. Moves State toward
	// Booting, or leaves it Down on failure.
	Boot(ctx context.Context) error
	// CheckBoot observes reachability. May move State from Booting to Up
	// or Gone.
	CheckBoot(ctx context.Context) error
	// Configure applies configuration. On success moves State from Up to
	// Configured; may regress to Up or Restart on failure.
	Configure(ctx context.Context) error
	// UpdateState refreshes State from the upstream hypervisor without
	// otherwise changing appliance behavior.
	UpdateState(ctx context.Context) error
	// ReadStats returns an opaque bandwidth sample.
	ReadStats(ctx context.Context) (StatSample, error)
	// Stop tears the appliance down. Moves State to Down or Gone.
	Stop(ctx context.Context) error
	// SetError latches the Error state, halting further boot attempts.
	SetError(ctx context.Context) error
	// ClearError releases the Error latch.
	ClearError(ctx context.Context) error

	// State returns the current lifecycle tag.
	State() State
	// Attempts returns the number of consecutive boot attempts since the
	// last successful Configure or ClearError.
	Attempts() int
}
