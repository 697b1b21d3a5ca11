// Package boot reacts to boot-class trigger signals by starting a visibility
// escalation. It never starts the tunnel itself.
package boot

import (
	"strings"

	"github.com/user/dnstun/internal/logger"
)

// Signal classifies a trigger. It carries no other payload.
type Signal string

const (
	SignalBootCompleted    Signal = "boot-completed"
	SignalPackageReplaced  Signal = "package-replaced"
	SignalQuickBootPowerOn Signal = "quickboot-poweron"
)

// ParseSignal normalizes a trigger name. Unknown names are returned as-is
// and rejected later by Recognized.
func ParseSignal(raw string) Signal {
	return Signal(strings.ToLower(strings.TrimSpace(raw)))
}

// Recognized reports whether s is a boot-class signal.
func (s Signal) Recognized() bool {
	switch s {
	case SignalBootCompleted, SignalPackageReplaced, SignalQuickBootPowerOn:
		return true
	}
	return false
}

// Escalator is the part of escalation.Escalator the coordinator drives.
// Trigger performs the single foreground-launch attempt as its first stage.
type Escalator interface {
	Trigger() uint64
}

// Coordinator turns boot signals into escalation attempts.
type Coordinator struct {
	escalator Escalator
	enabled   func() bool
	onTrigger func(Signal, uint64)
}

// NewCoordinator creates a coordinator. enabled is consulted on every signal;
// nil means always enabled.
func NewCoordinator(escalator Escalator, enabled func() bool) *Coordinator {
	return &Coordinator{escalator: escalator, enabled: enabled}
}

// OnTrigger registers an observer for accepted signals.
func (c *Coordinator) OnTrigger(fn func(Signal, uint64)) {
	c.onTrigger = fn
}

// Handle reacts to sig. It returns the escalation attempt id and true when
// the signal started an attempt.
func (c *Coordinator) Handle(sig Signal) (uint64, bool) {
	if !sig.Recognized() {
		logger.Warning("Ignoring unrecognized trigger %q", sig)
		return 0, false
	}
	if c.enabled != nil && !c.enabled() {
		logger.Info("Trigger %s received but auto-start is disabled", sig)
		return 0, false
	}

	// Whether the direct launch reaches the foreground cannot be observed,
	// so the escalation always runs alongside it.
	id := c.escalator.Trigger()
	logger.Info("Trigger %s started escalation %d", sig, id)
	if c.onTrigger != nil {
		c.onTrigger(sig, id)
	}
	return id, true
}
