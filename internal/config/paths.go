package config

import (
	"os"
	"path/filepath"
)

// GetConfigPath returns $XDG_CONFIG_HOME/dnstun/config.yaml when the variable
// is set, otherwise config.yaml next to the executable.
func GetConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "dnstun", "config.yaml")
	}
	exe, err := os.Executable()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(filepath.Dir(exe), "config.yaml")
}
