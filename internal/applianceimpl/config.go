package applianceimpl

import (
	"time"

	"github.com/skyrelay/vortex/internal/circuitbreaker"
)

// Config bounds one router's Firecracker microVM process and the control
// channel used to drive it. It is supplied once per router by whatever
// constructs the worker pool's ApplianceFactory.
type Config struct {
	// FirecrackerBin is the path to the firecracker binary.
	FirecrackerBin string
	// KernelPath is the guest kernel image booted by every router VM.
	KernelPath string
	// RootfsPath is the read-only root filesystem image shared by every
	// router VM (the guest control agent lives inside it).
	RootfsPath string
	// SocketDir holds the per-VM Firecracker API socket.
	SocketDir string
	// VsockPort is the guest-side port the control agent listens on.
	VsockPort uint32
	// BootTimeout bounds how long CheckBoot waits for the control
	// channel to answer before leaving the appliance in Booting.
	BootTimeout time.Duration
	// StopGraceful bounds how long Stop waits for the process to exit
	// after SIGTERM before escalating to SIGKILL. The vsock-issued
	// shutdown request sent before SIGTERM is not waited on.
	StopGraceful time.Duration

	// Breaker guards the Boot, CheckBoot, Configure and ReadStats calls
	// (process launch, vsock round trips) against cascading failure when
	// the host is unhealthy. Stop's vsock shutdown message bypasses it.
	// A zero-value Config (ErrorPct/WindowDuration/OpenDuration all 0)
	// disables the breaker — every call is always allowed.
	Breaker circuitbreaker.Config
}

func (c Config) withDefaults() Config {
	if c.VsockPort == 0 {
		c.VsockPort = 9610
	}
	if c.BootTimeout <= 0 {
		c.BootTimeout = 5 * time.Second
	}
	if c.StopGraceful <= 0 {
		c.StopGraceful = 2 * time.Second
	}
	return c
}
