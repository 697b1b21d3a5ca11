//go:build linux

// Package elevate checks for and acquires root privileges.
package elevate

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// sessionEnv is kept across sudo so the elevated process can still reach
// the user's session bus and display.
var sessionEnv = []string{"DBUS_SESSION_BUS_ADDRESS", "XDG_RUNTIME_DIR", "DISPLAY", "WAYLAND_DISPLAY", "XDG_CONFIG_HOME", "XDG_STATE_HOME"}

// IsAdmin returns true if the current process is running as root.
func IsAdmin() bool {
	return os.Geteuid() == 0
}

// RunAsAdmin re-launches the current executable with root privileges.
// Tries pkexec, then sudo.
func RunAsAdmin() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	args := append([]string{exe}, os.Args[1:]...)

	// pkexec drops the environment, so pass the session through env(1)
	if path, err := exec.LookPath("pkexec"); err == nil {
		cmd := &exec.Cmd{
			Path:   path,
			Args:   pkexecArgs(os.LookupEnv, args),
			Stdin:  os.Stdin,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
		}
		if err := cmd.Start(); err == nil {
			os.Exit(0)
		}
	}

	sudoPath, err := exec.LookPath("sudo")
	if err != nil {
		return fmt.Errorf("neither pkexec nor sudo found; please run as root")
	}
	return syscall.Exec(sudoPath, sudoArgs(args), os.Environ())
}

func pkexecArgs(lookup func(string) (string, bool), args []string) []string {
	out := []string{"pkexec", "env"}
	for _, k := range sessionEnv {
		if v, ok := lookup(k); ok {
			out = append(out, k+"="+v)
		}
	}
	return append(out, args...)
}

func sudoArgs(args []string) []string {
	preserve := "--preserve-env="
	for i, k := range sessionEnv {
		if i > 0 {
			preserve += ","
		}
		preserve += k
	}
	return append([]string{"sudo", preserve}, args...)
}
