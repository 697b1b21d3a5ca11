package ui

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureLogFileCreatesMissingLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "dnstun", "dnstun.log")
	if err := ensureLogFile(path); err != nil {
		t.Fatalf("ensureLogFile: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() != 0 {
		t.Fatalf("expected empty log at %s: %v", path, err)
	}

	if err := os.WriteFile(path, []byte("kept\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ensureLogFile(path); err != nil {
		t.Fatalf("ensureLogFile on existing log: %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "kept\n" {
		t.Fatalf("existing log was rewritten: %q", data)
	}
}

func TestEnsureLogFileReportsUnwritableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ensureLogFile(filepath.Join(blocker, "dnstun", "dnstun.log")); err == nil {
		t.Fatalf("expected an error when the log directory cannot be created")
	}
}
