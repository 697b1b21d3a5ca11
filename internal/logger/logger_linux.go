//go:build linux

package logger

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// getLogDir returns $XDG_STATE_HOME/dnstun, falling back to the directory of
// the executable.
func getLogDir() string {
	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		return filepath.Join(state, "dnstun")
	}
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// redirectStderr redirects stderr to the log file so panics are captured. It
// returns a handle on the previous stderr, or nil if it could not be kept.
func redirectStderr(f *os.File) *os.File {
	var prev *os.File
	if fd, err := unix.Dup(int(os.Stderr.Fd())); err == nil {
		unix.CloseOnExec(fd)
		prev = os.NewFile(uintptr(fd), "stderr")
	}
	if err := unix.Dup3(int(f.Fd()), int(os.Stderr.Fd()), 0); err != nil {
		if prev != nil {
			prev.Close()
		}
		return nil
	}
	return prev
}

// restoreStderr points stderr back at prev and closes it.
func restoreStderr(prev *os.File) {
	unix.Dup3(int(prev.Fd()), int(os.Stderr.Fd()), 0)
	prev.Close()
}
