// Package core wires the tunnel, consent and escalation components behind a
// single command queue.
package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/user/dnstun/internal/boot"
	"github.com/user/dnstun/internal/clock"
	"github.com/user/dnstun/internal/config"
	"github.com/user/dnstun/internal/elevate"
	"github.com/user/dnstun/internal/escalation"
	"github.com/user/dnstun/internal/logger"
	"github.com/user/dnstun/internal/metrics"
	"github.com/user/dnstun/internal/permission"
	"github.com/user/dnstun/internal/tunnel"
)

// ErrServiceStopped is returned for commands submitted after Stop.
var ErrServiceStopped = errors.New("service stopped")

// StatusPayload represents the tunnel status for UI updates.
type StatusPayload struct {
	State        string
	Interface    string
	PrimaryDNS   string
	SecondaryDNS string
	ActiveSince  time.Time
	Error        string
}

// StatusListener is a callback invoked when the tunnel status changes.
type StatusListener func(status *StatusPayload)

// Options supply the platform collaborators.
type Options struct {
	Establisher tunnel.Establisher
	Surface     escalation.Surface
	Prompter    Prompter
	Clock       clock.Clock
	// IsAdmin defaults to elevate.IsAdmin.
	IsAdmin func() bool
}

// Service is the DNS tunnel service.
type Service struct {
	mu             sync.RWMutex
	configManager  *config.Manager
	gate           *permission.Gate
	tunnel         *tunnel.Manager
	escalator      *escalation.Escalator
	coordinator    *boot.Coordinator
	commands       chan func()
	ctx            context.Context
	cancel         context.CancelFunc
	startOnce      sync.Once
	activeSince    time.Time
	lastError      error
	resumeOnWake   bool
	statusListener StatusListener
}

// NewService creates a service over an already loaded configuration.
func NewService(configManager *config.Manager, opts Options) *Service {
	if opts.IsAdmin == nil {
		opts.IsAdmin = elevate.IsAdmin
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		configManager: configManager,
		commands:      make(chan func(), 16),
		ctx:           ctx,
		cancel:        cancel,
	}

	s.gate = permission.NewGate(&consentPlatform{
		configManager: configManager,
		isAdmin:       opts.IsAdmin,
		prompter:      opts.Prompter,
		answer:        s.HandlePermissionResult,
	})

	cfg := configManager.Get()
	s.tunnel = tunnel.NewManager(s.gate, opts.Establisher, tunnel.Options{
		SessionName:  cfg.Interface.Session,
		MTU:          cfg.Interface.MTU,
		OnTransition: s.onTransition,
	})

	s.escalator = escalation.New(opts.Surface, escalation.Options{
		Clock: opts.Clock,
		Hooks: escalation.Hooks{
			OnStage: func(_ uint64, stage escalation.Stage) {
				metrics.EscalationStageTotal.WithLabelValues(stage.String()).Inc()
			},
			OnResume: s.resume,
			OnDispatchError: func(_ uint64, stage escalation.Stage, _ error) {
				metrics.DispatchErrorsTotal.WithLabelValues(stage.String()).Inc()
			},
		},
	})

	s.coordinator = boot.NewCoordinator(s.escalator, func() bool {
		return s.configManager.Get().Autostart
	})
	s.coordinator.OnTrigger(func(sig boot.Signal, _ uint64) {
		metrics.TriggersTotal.WithLabelValues(string(sig)).Inc()
	})

	metrics.SetTunnelState(string(tunnel.StateIdle))
	logger.Info("DNS tunnel service initialized")
	return s
}

// SetStatusListener sets a callback that will be called on every status change.
func (s *Service) SetStatusListener(listener StatusListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusListener = listener
}

// Start starts the command goroutine.
func (s *Service) Start() error {
	s.startOnce.Do(func() {
		logger.SafeGo("command-queue", s.run)
		logger.Info("DNS tunnel service started")
	})
	return nil
}

// Stop tears the tunnel down, expires any escalation and stops the command
// goroutine.
func (s *Service) Stop() error {
	logger.Info("Stopping DNS tunnel service...")
	s.escalator.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.StopTunnel(ctx); err != nil {
		logger.Warning("Tunnel stop during shutdown: %v", err)
	}

	s.cancel()
	logger.Info("DNS tunnel service stopped")
	return nil
}

// Escalation returns the escalator so the UI can route user actions to it.
func (s *Service) Escalation() *escalation.Escalator {
	return s.escalator
}

func (s *Service) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.commands:
			fn()
		}
	}
}

// submit queues fn for the command goroutine.
func (s *Service) submit(ctx context.Context, fn func()) error {
	select {
	case s.commands <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrServiceStopped
	}
}

// exec runs fn on the command goroutine and waits for it to return.
func (s *Service) exec(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := s.submit(ctx, func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrServiceStopped
	}
}
