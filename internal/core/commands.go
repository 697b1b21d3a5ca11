package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/dnstun/internal/config"
	"github.com/user/dnstun/internal/logger"
	"github.com/user/dnstun/internal/metrics"
	"github.com/user/dnstun/internal/permission"
	"github.com/user/dnstun/internal/tunnel"
)

// Error codes reported on the command channel.
const (
	CodePermissionDenied   = "VPN_PERMISSION_DENIED"
	CodePermissionRequired = "VPN_PERMISSION_REQUIRED"
	CodeStartFailed        = "START_VPN_ERROR"
	CodeStopFailed         = "STOP_VPN_ERROR"
)

// CommandError is the error outcome of StartTunnel or StopTunnel.
type CommandError struct {
	Code    string
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// StartTunnel starts (or reconfigures) the tunnel with the given resolvers
// and waits for the outcome. When consent has to be requested the call
// returns once the user answered or ctx is done.
func (s *Service) StartTunnel(ctx context.Context, primaryDNS, secondaryDNS string) error {
	cfg := tunnel.Config{PrimaryDNS: primaryDNS, SecondaryDNS: secondaryDNS}
	result := make(chan error, 1)

	if err := s.submit(ctx, func() {
		s.tunnel.Start(cfg, func(err error) { result <- err })
	}); err != nil {
		return &CommandError{Code: CodeStartFailed, Message: err.Error(), Err: err}
	}

	select {
	case err := <-result:
		return s.startOutcome(err)
	case <-ctx.Done():
		return &CommandError{Code: CodeStartFailed, Message: ctx.Err().Error(), Err: ctx.Err()}
	case <-s.ctx.Done():
		return &CommandError{Code: CodeStartFailed, Message: ErrServiceStopped.Error(), Err: ErrServiceStopped}
	}
}

// StopTunnel stops the tunnel. Stopping an idle tunnel succeeds.
func (s *Service) StopTunnel(ctx context.Context) error {
	if err := s.exec(ctx, s.tunnel.Stop); err != nil {
		return &CommandError{Code: CodeStopFailed, Message: err.Error(), Err: err}
	}
	return nil
}

// HandlePermissionResult routes a consent answer to the tunnel manager. A
// grant is persisted so later starts skip the prompt.
func (s *Service) HandlePermissionResult(token permission.Token, granted bool) {
	outcome := "denied"
	if granted {
		outcome = "granted"
		if err := s.configManager.Modify(func(c *config.Config) { c.Consent.Granted = true }); err != nil {
			logger.Warning("Failed to persist consent: %v", err)
		}
	}
	metrics.PermissionTotal.WithLabelValues(outcome).Inc()

	if err := s.submit(s.ctx, func() {
		s.tunnel.HandlePermissionResult(token, granted)
	}); err != nil {
		logger.Warning("Dropping permission result %d: %v", token, err)
	}
}

func (s *Service) startOutcome(err error) error {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()

	if err == nil {
		return nil
	}
	kind := tunnel.KindOf(err)
	metrics.TunnelFailuresTotal.WithLabelValues(kindLabel(kind)).Inc()
	s.broadcastStatus()
	return commandError(err)
}

// commandError maps a start failure to its channel code.
func commandError(err error) *CommandError {
	code := CodeStartFailed
	switch tunnel.KindOf(err) {
	case tunnel.KindPermissionDenied:
		code = CodePermissionDenied
	case tunnel.KindPermissionRequired:
		code = CodePermissionRequired
	}
	return &CommandError{Code: code, Message: err.Error(), Err: err}
}

func kindLabel(k tunnel.ErrorKind) string {
	switch k {
	case tunnel.KindPermissionDenied:
		return "permission_denied"
	case tunnel.KindPermissionRequired:
		return "permission_required"
	case tunnel.KindEstablishFailed:
		return "establish_failed"
	case tunnel.KindAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// IsCode reports whether err is a CommandError with code.
func IsCode(err error, code string) bool {
	var ce *CommandError
	return errors.As(err, &ce) && ce.Code == code
}
