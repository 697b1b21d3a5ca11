package ui

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/user/dnstun/internal/config"
	"github.com/user/dnstun/internal/logger"
)

// openConfig opens the config file in the user's editor.
func openConfig() {
	defer logger.Recover("openConfig")
	configPath := config.GetConfigPath()
	if service != nil {
		configPath = service.ConfigPath()
	}

	// Try editors in order: $EDITOR, xdg-open
	if editor := os.Getenv("EDITOR"); editor != "" {
		if err := exec.Command(editor, configPath).Start(); err == nil {
			return
		}
	}
	if err := exec.Command("xdg-open", configPath).Start(); err == nil {
		return
	}

	logger.Error("No editor found to open config: %s", configPath)
	fmt.Printf("Edit config manually: %s\n", configPath)
}

func openLogFile() {
	defer logger.Recover("openLogFile")
	logPath := logger.GetLogPath()
	if logPath == "" {
		logger.Warning("Logging to file is not initialized")
		return
	}
	if err := ensureLogFile(logPath); err != nil {
		logger.Error("Failed to create log file: %v", err)
		return
	}
	if err := exec.Command("xdg-open", logPath).Start(); err != nil {
		logger.Error("Failed to open log: %v", err)
	}
}

// ensureLogFile creates an empty log at path if there is none yet.
func ensureLogFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, nil, 0644)
}

func clearLogFile() {
	defer logger.Recover("clearLogFile")
	if err := logger.ClearLogs(); err != nil {
		logger.Error("Failed to clear log: %v", err)
		return
	}
	logger.Info("Log cleared from the tray")
}

// toggleAutostart flips whether boot and login triggers offer to start the
// tunnel.
func toggleAutostart() {
	defer logger.Recover("toggleAutostart")
	cfg := service.GetConfig()
	cfg.Autostart = !cfg.Autostart
	if err := service.UpdateConfig(cfg); err != nil {
		logger.Error("Failed to save autostart setting: %v", err)
		return
	}
	if cfg.Autostart {
		logger.Info("Autostart enabled")
	} else {
		logger.Info("Autostart disabled")
	}
	setAutostartCheck(cfg.Autostart)
}
