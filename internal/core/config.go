package core

import (
	"github.com/user/dnstun/internal/config"
	"github.com/user/dnstun/internal/logger"
)

// GetConfig returns the current configuration.
func (s *Service) GetConfig() config.Config {
	return s.configManager.Get()
}

// UpdateConfig validates and persists cfg. Resolver changes apply on the
// next start.
func (s *Service) UpdateConfig(cfg config.Config) error {
	return s.configManager.Update(cfg)
}

// ReloadConfig re-reads the configuration file from disk. On error the
// previous configuration stays in effect.
func (s *Service) ReloadConfig() error {
	if err := s.configManager.Load(); err != nil {
		return err
	}
	logger.SetLevel(s.configManager.Get().Log.Level)
	return nil
}

// startConfig returns the configuration a new start should use, picking up
// edits made to the file since it was last read.
func (s *Service) startConfig() config.Config {
	if err := s.ReloadConfig(); err != nil {
		logger.Warning("Keeping previous configuration: %v", err)
	}
	return s.configManager.Get()
}

// ConfigPath returns the path of the configuration file.
func (s *Service) ConfigPath() string {
	return s.configManager.Path()
}
