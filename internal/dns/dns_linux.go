//go:build linux

package dns

import (
	"fmt"
	"strings"

	"github.com/user/dnstun/internal/logger"
)

const resolvectl = "resolvectl"

// Configure sets the link's DNS servers through systemd-resolved.
func (m *Manager) Configure(cfg *Config) error {
	if cfg.InterfaceName == "" {
		return fmt.Errorf("dns: interface name is required")
	}
	if len(cfg.Servers) == 0 {
		return fmt.Errorf("dns: at least one server is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, args := range configureArgs(cfg) {
		if out, err := m.run(resolvectl, args...); err != nil {
			return fmt.Errorf("resolvectl %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
		}
	}

	m.interfaceName = cfg.InterfaceName
	m.servers = append(m.servers[:0], cfg.Servers...)
	logger.Info("DNS for %s set to %v", cfg.InterfaceName, cfg.Servers)
	return nil
}

// Reset reverts the link to its default resolver settings.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.interfaceName == "" {
		return ErrNotConfigured
	}
	name := m.interfaceName
	m.interfaceName = ""
	m.servers = nil

	// The link may already be gone, in which case resolved forgot it too.
	if out, err := m.run(resolvectl, "revert", name); err != nil {
		logger.Debug("resolvectl revert %s: %v: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// FlushDNSCache flushes the resolver cache.
func (m *Manager) FlushDNSCache() error {
	if out, err := m.run(resolvectl, "flush-caches"); err != nil {
		return fmt.Errorf("resolvectl flush-caches: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func configureArgs(cfg *Config) [][]string {
	dnsArgs := []string{"dns", cfg.InterfaceName}
	for _, s := range cfg.Servers {
		dnsArgs = append(dnsArgs, s.String())
	}
	cmds := [][]string{dnsArgs}
	if cfg.RouteAll {
		cmds = append(cmds,
			[]string{"domain", cfg.InterfaceName, "~."},
			[]string{"default-route", cfg.InterfaceName, "yes"},
		)
	}
	return cmds
}
