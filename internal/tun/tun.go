// Package tun creates and configures the tunnel's TUN adapter.
package tun

import (
	"fmt"
	"net/netip"
	"sync"

	"golang.zx2c4.com/wireguard/tun"
)

// maxNameLen is IFNAMSIZ minus the terminating NUL.
const maxNameLen = 15

// Adapter represents a TUN adapter.
type Adapter struct {
	mu     sync.Mutex
	name   string
	alias  string
	device tun.Device
	prefix netip.Prefix
	mtu    int
	isUp   bool
}

// Config represents TUN adapter configuration.
type Config struct {
	Name string
	// Alias is a human-readable label attached to the link, if the platform
	// supports one.
	Alias string
	MTU   int
}

// New creates a new TUN adapter. The device is not created until Create.
func New(cfg *Config) (*Adapter, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("interface name is required")
	}
	if cfg.MTU == 0 {
		cfg.MTU = 1500
	}

	return &Adapter{
		name:  normalizeInterfaceName(cfg.Name),
		alias: cfg.Alias,
		mtu:   cfg.MTU,
	}, nil
}

// Create creates the TUN device.
func (a *Adapter) Create() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.device != nil {
		return fmt.Errorf("adapter already created")
	}

	device, err := tun.CreateTUN(a.name, a.mtu)
	if err != nil {
		return fmt.Errorf("failed to create TUN device: %w", err)
	}
	a.device = device

	if realName, err := device.Name(); err == nil {
		a.name = realName
	}
	if mtu, err := device.MTU(); err == nil {
		a.mtu = mtu
	}

	return nil
}

// Configure assigns prefix to the adapter and applies its alias.
func (a *Adapter) Configure(prefix netip.Prefix) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.device == nil {
		return fmt.Errorf("adapter not created")
	}
	if !prefix.IsValid() {
		return fmt.Errorf("invalid address %v", prefix)
	}

	if err := a.assignIP(prefix); err != nil {
		return err
	}
	a.prefix = prefix

	if a.alias != "" {
		if err := a.setAlias(a.alias); err != nil {
			return err
		}
	}
	return nil
}

// Close closes and destroys the adapter.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	if a.device != nil {
		err = a.device.Close()
		a.device = nil
	}

	a.isUp = false
	return err
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name
}

// Prefix returns the assigned address.
func (a *Adapter) Prefix() netip.Prefix {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prefix
}

// MTU returns the MTU.
func (a *Adapter) MTU() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mtu
}

// IsUp returns whether the adapter is up.
func (a *Adapter) IsUp() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isUp
}

func normalizeInterfaceName(name string) string {
	if len(name) > maxNameLen {
		return name[:maxNameLen]
	}
	return name
}
