// Package dns points the tunnel interface's resolver at the configured servers.
package dns

import (
	"errors"
	"net/netip"
	"os/exec"
	"sync"
)

// ErrNotConfigured is returned by Reset when nothing was configured.
var ErrNotConfigured = errors.New("dns: no interface configured")

// Runner executes an external command and returns its combined output.
type Runner func(name string, args ...string) ([]byte, error)

func execRunner(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

// Manager manages resolver configuration for one tunnel interface.
type Manager struct {
	mu            sync.Mutex
	run           Runner
	interfaceName string
	servers       []netip.Addr
}

// Config represents DNS configuration.
type Config struct {
	InterfaceName string
	Servers       []netip.Addr
	// RouteAll sends every lookup through the interface instead of only its
	// own search domains.
	RouteAll bool
}

// NewManager creates a new DNS manager that shells out to the system tools.
func NewManager() *Manager {
	return &Manager{run: execRunner}
}

// NewManagerWithRunner creates a DNS manager that executes commands via run.
func NewManagerWithRunner(run Runner) *Manager {
	return &Manager{run: run}
}

// Servers returns the servers applied by the last Configure.
func (m *Manager) Servers() []netip.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]netip.Addr(nil), m.servers...)
}
