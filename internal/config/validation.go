package config

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Version < 1 {
		return fmt.Errorf("invalid config version")
	}

	if err := c.DNS.Validate(); err != nil {
		return fmt.Errorf("dns config: %w", err)
	}

	if err := c.Interface.Validate(); err != nil {
		return fmt.Errorf("interface config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "off", "disabled", "none":
	default:
		return fmt.Errorf("log config: unknown level %q", c.Log.Level)
	}

	return nil
}

// Validate validates the resolver pair. Empty entries are allowed and fall
// back to the defaults when a session starts.
func (d *DNS) Validate() error {
	if d.Primary != "" {
		if _, err := netip.ParseAddr(d.Primary); err != nil {
			return fmt.Errorf("invalid primary address %q", d.Primary)
		}
	}
	if d.Secondary != "" {
		if _, err := netip.ParseAddr(d.Secondary); err != nil {
			return fmt.Errorf("invalid secondary address %q", d.Secondary)
		}
	}
	return nil
}

// Validate validates interface configuration.
func (i *Interface) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(i.Name) > 15 {
		return fmt.Errorf("name %q exceeds 15 characters", i.Name)
	}
	if i.MTU < 576 || i.MTU > 65535 {
		return fmt.Errorf("mtu must be between 576 and 65535")
	}
	return nil
}

// Validate validates the metrics listen address.
func (m *Metrics) Validate() error {
	if m.Listen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", m.Listen, err)
	}
	return nil
}

// PrimaryOrDefault returns the primary resolver or its default.
func (d DNS) PrimaryOrDefault() string {
	if d.Primary == "" {
		return DefaultPrimaryDNS
	}
	return d.Primary
}

// SecondaryOrDefault returns the secondary resolver or its default.
func (d DNS) SecondaryOrDefault() string {
	if d.Secondary == "" {
		return DefaultSecondaryDNS
	}
	return d.Secondary
}
