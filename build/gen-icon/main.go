//go:build ignore

// gen-icon writes the tray icon as a PNG for the desktop entries.
// Usage: go run build/gen-icon/main.go [output.png]
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/user/dnstun/internal/ui"
)

func main() {
	output := "build/linux/dnstun.png"
	if len(os.Args) > 1 {
		output = os.Args[1]
	}

	data := ui.GetIcon("active")
	if data == nil {
		fmt.Fprintln(os.Stderr, "icon encode failed")
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", output, err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s (%d bytes)\n", output, len(data))
}
