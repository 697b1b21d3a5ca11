//go:build linux

package tun

import (
	"fmt"
	"net/netip"
	"os/exec"

	"golang.org/x/sys/unix"
)

// assignIP assigns an IP address to the adapter (Linux). No routes are
// installed beyond the connected /30.
func (a *Adapter) assignIP(prefix netip.Prefix) error {
	cmd := exec.Command("ip", "addr", "replace", prefix.String(), "dev", a.name)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to set IP address: %w: %s", err, string(out))
	}
	return nil
}

// setAlias labels the link (Linux).
func (a *Adapter) setAlias(alias string) error {
	cmd := exec.Command("ip", "link", "set", "dev", a.name, "alias", alias)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to set interface alias: %w: %s", err, string(out))
	}
	return nil
}

// SetNonblocking puts the device descriptor in non-blocking mode.
func (a *Adapter) SetNonblocking() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.device == nil {
		return fmt.Errorf("adapter not created")
	}
	// Fd() would flip the descriptor back to blocking, so go through the
	// raw conn instead.
	raw, err := a.device.File().SyscallConn()
	if err != nil {
		return fmt.Errorf("failed to access TUN descriptor: %w", err)
	}
	var opErr error
	if err := raw.Control(func(fd uintptr) {
		opErr = unix.SetNonblock(int(fd), true)
	}); err != nil {
		return err
	}
	if opErr != nil {
		return fmt.Errorf("failed to set non-blocking mode: %w", opErr)
	}
	return nil
}

// Up brings the adapter up (Linux).
func (a *Adapter) Up() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.device == nil {
		return fmt.Errorf("adapter not created")
	}

	cmd := exec.Command("ip", "link", "set", "dev", a.name, "up")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to bring interface up: %w: %s", err, string(out))
	}

	a.isUp = true
	return nil
}

// Down brings the adapter down (Linux).
func (a *Adapter) Down() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.device == nil {
		return nil
	}

	cmd := exec.Command("ip", "link", "set", "dev", a.name, "down")
	cmd.CombinedOutput()

	a.isUp = false
	return nil
}
