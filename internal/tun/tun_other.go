//go:build !linux

package tun

import (
	"errors"
	"net/netip"
)

var errUnsupported = errors.New("tun: interface configuration is only supported on Linux")

func (a *Adapter) assignIP(prefix netip.Prefix) error { return errUnsupported }

func (a *Adapter) setAlias(alias string) error { return errUnsupported }

// SetNonblocking is not supported on this platform.
func (a *Adapter) SetNonblocking() error { return errUnsupported }

// Up is not supported on this platform.
func (a *Adapter) Up() error { return errUnsupported }

// Down is a no-op on this platform.
func (a *Adapter) Down() error { return nil }
