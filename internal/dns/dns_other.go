//go:build !linux

package dns

import "errors"

var errUnsupported = errors.New("dns: resolver configuration is only supported on Linux")

// Configure is not supported on this platform.
func (m *Manager) Configure(cfg *Config) error {
	return errUnsupported
}

// Reset is not supported on this platform.
func (m *Manager) Reset() error {
	return errUnsupported
}

// FlushDNSCache is not supported on this platform.
func (m *Manager) FlushDNSCache() error {
	return errUnsupported
}
