package core

import (
	"time"

	"github.com/user/dnstun/internal/metrics"
	"github.com/user/dnstun/internal/tunnel"
)

// GetState returns the current tunnel state.
func (s *Service) GetState() tunnel.State {
	return s.tunnel.State()
}

// GetStatusPayload returns the current status.
func (s *Service) GetStatusPayload() *StatusPayload {
	session := s.tunnel.Session()

	s.mu.RLock()
	defer s.mu.RUnlock()

	status := &StatusPayload{
		State:        string(session.State),
		Interface:    session.Interface,
		PrimaryDNS:   session.Config.PrimaryDNS,
		SecondaryDNS: session.Config.SecondaryDNS,
		ActiveSince:  s.activeSince,
	}
	if s.lastError != nil {
		status.Error = s.lastError.Error()
	}
	return status
}

// onTransition runs on the command goroutine for every tunnel state change.
func (s *Service) onTransition(from, to tunnel.State) {
	metrics.SetTunnelState(string(to))

	s.mu.Lock()
	switch {
	case to == tunnel.StateActive:
		metrics.TunnelEstablishTotal.Inc()
		s.activeSince = time.Now()
	case from == tunnel.StateStopping && to == tunnel.StateIdle:
		metrics.TunnelTeardownTotal.Inc()
		s.activeSince = time.Time{}
	}
	s.mu.Unlock()

	s.broadcastStatus()
}

// broadcastStatus sends status update to listener.
func (s *Service) broadcastStatus() {
	s.mu.RLock()
	listener := s.statusListener
	s.mu.RUnlock()
	if listener != nil {
		listener(s.GetStatusPayload())
	}
}
