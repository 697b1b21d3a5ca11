//go:build !linux

// Package elevate checks for and acquires root privileges.
package elevate

import "errors"

// IsAdmin always reports false on unsupported platforms.
func IsAdmin() bool {
	return false
}

// RunAsAdmin is not supported on this platform.
func RunAsAdmin() error {
	return errors.New("elevation is only supported on Linux")
}
