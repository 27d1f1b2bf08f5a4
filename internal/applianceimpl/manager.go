// Package applianceimpl provides a Firecracker-backed implementation of
// appliance.Appliance: one Manager per router owns a microVM process, a
// vsock control channel to the in-guest agent, and a circuit breaker
// guarding its Boot, CheckBoot, Configure and ReadStats calls (Stop's
// shutdown message bypasses it).
package applianceimpl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/mdlayher/vsock"

	"github.com/skyrelay/vortex/internal/appliance"
	"github.com/skyrelay/vortex/internal/circuitbreaker"
	"github.com/skyrelay/vortex/internal/observability"
)

// Manager implements appliance.Appliance for one router's microVM.
// Exactly one automaton drives a given Manager, so its exported methods
// are never called concurrently with each other — only State/Attempts
// may race with a concurrent Execute call, hence the mutex guarding them.
type Manager struct {
	routerID string
	tenantID string
	cfg      Config
	log      *slog.Logger
	breaker  *circuitbreaker.Breaker

	mu         sync.Mutex
	state      appliance.State
	attempts   int
	cmd        *exec.Cmd
	socketPath string
	cid        uint32
}

// New constructs a Manager for one router. The VM is not launched until
// Boot is called.
func New(routerID, tenantID string, cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Manager{
		routerID: routerID,
		tenantID: tenantID,
		cfg:      cfg,
		log:      log.With("router_id", routerID),
		breaker:  circuitbreaker.New(cfg.Breaker),
		state:    appliance.Down,
	}
}

func (m *Manager) allow() bool {
	if m.breaker == nil {
		return true
	}
	return m.breaker.Allow()
}

func (m *Manager) recordResult(err error) {
	if m.breaker == nil {
		return
	}
	if err != nil {
		m.breaker.RecordFailure()
	} else {
		m.breaker.RecordSuccess()
	}
}

// Boot launches the Firecracker process. It increments Attempts
// regardless of outcome, matching the original's boot-loop accounting.
func (m *Manager) Boot(ctx context.Context) error {
	m.mu.Lock()
	m.attempts++
	if !m.allow() {
		m.mu.Unlock()
		return errors.New("circuit breaker open: refusing boot attempt")
	}
	m.mu.Unlock()

	cmd, socketPath, err := launchProcess(m.cfg, m.routerID)
	m.recordResult(err)
	if err != nil {
		m.log.Warn("boot failed", "error", err)
		return err
	}

	cid := allocateCID()
	m.mu.Lock()
	m.cmd = cmd
	m.socketPath = socketPath
	m.cid = cid
	m.state = appliance.Booting
	m.mu.Unlock()

	go m.monitor(cmd)

	m.log.Info("vm process launched", "cid", cid, "attempts", m.Attempts())
	return nil
}

// monitor waits for the VM process to exit and, if that happens while
// the Manager still considers itself live, marks the appliance Gone so
// the automaton notices on its next Execute call.
func (m *Manager) monitor(cmd *exec.Cmd) {
	err := cmd.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd != cmd {
		return // superseded by a later Boot
	}
	if m.state == appliance.Down {
		return // we tore it down ourselves
	}
	m.log.Error("vm process exited unexpectedly", "error", err)
	m.state = appliance.Gone
}

// CheckBoot dials the vsock control channel. Up on success, stays
// Booting on a dial timeout, Gone if the process has already exited.
func (m *Manager) CheckBoot(ctx context.Context) error {
	m.mu.Lock()
	cmd, cid := m.cmd, m.cid
	m.mu.Unlock()

	if !processAlive(cmd) {
		m.mu.Lock()
		m.state = appliance.Gone
		m.mu.Unlock()
		return nil
	}

	if !m.allow() {
		return errors.New("circuit breaker open: refusing check_boot attempt")
	}

	conn, err := m.dial(cid, m.cfg.BootTimeout)
	m.recordResult(err)
	if err != nil {
		return nil // still booting; not an Execute error, just not reachable yet
	}
	defer conn.Close()

	m.mu.Lock()
	m.state = appliance.Up
	m.mu.Unlock()
	return nil
}

// Configure sends the router's configuration over the control channel.
func (m *Manager) Configure(ctx context.Context) error {
	m.mu.Lock()
	cid := m.cid
	m.mu.Unlock()

	if !m.allow() {
		return errors.New("circuit breaker open: refusing configure attempt")
	}

	conn, err := m.dial(cid, m.cfg.BootTimeout)
	if err != nil {
		m.recordResult(err)
		return err
	}
	defer conn.Close()

	payload, _ := marshalPayload(configurePayload{
		RouterID: m.routerID,
		TenantID: m.tenantID,
		Trace:    observability.ExtractTraceContext(ctx),
	})
	_, err = roundTrip(conn, m.cfg.BootTimeout, &controlMessage{Type: msgTypeConfigure, Payload: payload})
	m.recordResult(err)
	if err != nil {
		m.log.Warn("configure failed", "error", err)
		return err
	}

	m.mu.Lock()
	m.state = appliance.Configured
	m.attempts = 0
	m.mu.Unlock()
	return nil
}

// UpdateState re-derives lifecycle state from process liveness alone,
// without otherwise touching the appliance.
func (m *Manager) UpdateState(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == appliance.Error || m.state == appliance.Down {
		return nil
	}
	if !processAlive(m.cmd) {
		m.state = appliance.Gone
	}
	return nil
}

// ReadStats requests a bandwidth sample from the guest agent.
func (m *Manager) ReadStats(ctx context.Context) (appliance.StatSample, error) {
	m.mu.Lock()
	cid := m.cid
	m.mu.Unlock()

	if !m.allow() {
		return appliance.StatSample{}, errors.New("circuit breaker open: refusing read_stats attempt")
	}

	conn, err := m.dial(cid, m.cfg.BootTimeout)
	if err != nil {
		m.recordResult(err)
		return appliance.StatSample{}, err
	}
	defer conn.Close()

	resp, err := roundTrip(conn, m.cfg.BootTimeout, &controlMessage{Type: msgTypeStats})
	m.recordResult(err)
	if err != nil {
		return appliance.StatSample{}, err
	}

	var stats statsPayload
	if err := unmarshalPayload(resp.Payload, &stats); err != nil {
		return appliance.StatSample{}, err
	}

	return appliance.StatSample{
		RouterID:    m.routerID,
		RxBytes:     stats.RxBytes,
		TxBytes:     stats.TxBytes,
		SampledAtNS: time.Now().UnixNano(),
	}, nil
}

// Stop tears the VM down: a graceful vsock-issued shutdown request
// followed by SIGTERM, escalating to SIGKILL if the process outlives
// StopGraceful. An appliance that was already Gone stays Gone; any other
// appliance ends Down.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	cmd, cid, socketPath := m.cmd, m.cid, m.socketPath
	final := appliance.Down
	if m.state == appliance.Gone {
		final = appliance.Gone
	}
	m.mu.Unlock()

	if cmd == nil {
		m.mu.Lock()
		m.state = final
		m.mu.Unlock()
		return nil
	}

	if conn, err := m.dial(cid, 500*time.Millisecond); err == nil {
		_ = sendControlMessage(conn, &controlMessage{Type: msgTypeStop})
		conn.Close()
	}

	stopProcess(cmd, m.cfg.StopGraceful)
	if socketPath != "" {
		os.Remove(socketPath)
	}

	m.mu.Lock()
	m.cmd = nil
	m.state = final
	m.mu.Unlock()
	return nil
}

// SetError latches the Error state, halting further boot attempts until
// ClearError runs.
func (m *Manager) SetError(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = appliance.Error
	return nil
}

// ClearError releases the Error latch and resets the attempt counter so
// CreateVM gets a fresh budget of boot attempts.
func (m *Manager) ClearError(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = appliance.Down
	m.attempts = 0
	return nil
}

func (m *Manager) State() appliance.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func (m *Manager) dial(cid uint32, timeout time.Duration) (net.Conn, error) {
	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := vsock.Dial(cid, m.cfg.VsockPort, nil)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case r := <-resultCh:
		return r.conn, r.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("vsock dial timeout after %s", timeout)
	}
}
