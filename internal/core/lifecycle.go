package core

import (
	"github.com/user/dnstun/internal/boot"
	"github.com/user/dnstun/internal/logger"
	"github.com/user/dnstun/internal/metrics"
	"github.com/user/dnstun/internal/tunnel"
)

// HandleTrigger reacts to a boot-class trigger. It starts an escalation so
// the user can resume the tunnel; it never starts the tunnel by itself.
func (s *Service) HandleTrigger(sig boot.Signal) bool {
	if s.tunnel.State() == tunnel.StateActive {
		logger.Info("Trigger %s ignored: tunnel already active", sig)
		return false
	}
	_, ok := s.coordinator.Handle(sig)
	return ok
}

// HandlePowerEvent handles system power events. Waking up after the tunnel
// was lost across suspend is treated like a power-on trigger.
func (s *Service) HandlePowerEvent(suspend bool) {
	if suspend {
		s.mu.Lock()
		s.resumeOnWake = s.tunnel.State() == tunnel.StateActive
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	wasActive := s.resumeOnWake
	s.resumeOnWake = false
	s.mu.Unlock()

	if wasActive && s.tunnel.State() != tunnel.StateActive {
		logger.Info("Tunnel lost across suspend, prompting to restart")
		s.HandleTrigger(boot.SignalQuickBootPowerOn)
	}
}

// resume runs when the user chose Start on an escalation alert. It is called
// with the escalator lock held, so the start happens on its own goroutine.
func (s *Service) resume(attempt uint64) {
	metrics.EscalationResumes.Inc()
	logger.SafeGo("escalation-resume", func() {
		logger.Info("Escalation %d resumed, starting tunnel", attempt)
		cfg := s.startConfig()
		if err := s.StartTunnel(s.ctx, cfg.DNS.PrimaryOrDefault(), cfg.DNS.SecondaryOrDefault()); err != nil {
			logger.Error("Resumed start failed: %v", err)
		}
	})
}
