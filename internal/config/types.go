// Package config handles DNS tunnel configuration loading, saving, and validation.
package config

import "github.com/user/dnstun/internal/tunnel"

// Resolver defaults are the tunnel's own.
const (
	DefaultPrimaryDNS   = tunnel.DefaultPrimaryDNS
	DefaultSecondaryDNS = tunnel.DefaultSecondaryDNS
)

// Config represents the main configuration structure.
type Config struct {
	Version   int       `yaml:"version"`
	Autostart bool      `yaml:"autostart"`
	DNS       DNS       `yaml:"dns"`
	Interface Interface `yaml:"interface"`
	Consent   Consent   `yaml:"consent"`
	Metrics   Metrics   `yaml:"metrics"`
	Log       Log       `yaml:"log"`
}

// DNS holds the resolver pair advertised through the tunnel.
type DNS struct {
	Primary   string `yaml:"primary"`
	Secondary string `yaml:"secondary"`
}

// Interface configuration for the tunnel adapter.
type Interface struct {
	Name    string `yaml:"name"`
	MTU     int    `yaml:"mtu"`
	Session string `yaml:"session,omitempty"`
}

// Consent records whether the user allowed the tunnel to be created.
type Consent struct {
	Granted bool `yaml:"granted"`
}

// Metrics configuration. An empty Listen disables the endpoint.
type Metrics struct {
	Listen string `yaml:"listen,omitempty"`
}

// Log configuration.
type Log struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version:   1,
		Autostart: true,
		DNS: DNS{
			Primary:   DefaultPrimaryDNS,
			Secondary: DefaultSecondaryDNS,
		},
		Interface: Interface{
			Name:    "dnstun0",
			MTU:     tunnel.DefaultMTU,
			Session: tunnel.DefaultSessionName,
		},
		Log: Log{Level: "info"},
	}
}
