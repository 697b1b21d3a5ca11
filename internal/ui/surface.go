package ui

import (
	"errors"
	"sync"

	"github.com/user/dnstun/internal/escalation"
	"github.com/user/dnstun/internal/logger"
	"github.com/user/dnstun/internal/notify"
)

const (
	appName  = "dnstun"
	appIcon  = "network-vpn"
	keyStart = "start"
	keyClose = "dismiss"
)

var errNoNotifier = errors.New("notification service unavailable")

// Notifier posts and withdraws desktop notifications.
type Notifier interface {
	Send(n notify.Notification, onAction notify.ActionHandler) (uint32, error)
	CloseNotification(id uint32) error
}

// Overlay is the full-screen-capable prompt. onAction is called from the UI
// goroutine when the user picks one of the prompt's affordances.
type Overlay interface {
	ShowOverlay(a escalation.Alert, onAction func(escalation.Action)) error
	DismissOverlay()
	// Attention raises the tray for attempt; ClearAttention lowers it.
	Attention(attempt uint64) error
	ClearAttention()
}

// Actor receives the user's answer to an escalation alert.
type Actor interface {
	Act(attempt uint64, action escalation.Action) bool
}

// Surface implements escalation.Surface on top of desktop notifications and
// the tray overlay.
type Surface struct {
	notifier Notifier
	overlay  Overlay

	mu    sync.Mutex
	actor Actor
	ids   map[escalation.AlertID]uint32
}

// NewSurface creates a surface. notifier may be nil when no notification
// daemon is reachable; every notification dispatch then fails.
func NewSurface(notifier Notifier, overlay Overlay) *Surface {
	return &Surface{
		notifier: notifier,
		overlay:  overlay,
		ids:      make(map[escalation.AlertID]uint32),
	}
}

// Bind routes user actions to actor.
func (s *Surface) Bind(actor Actor) {
	s.mu.Lock()
	s.actor = actor
	s.mu.Unlock()
}

func (s *Surface) HoldForeground(a escalation.Alert) error {
	return s.Post(escalation.AlertForeground, a)
}

func (s *Surface) ReleaseForeground() {
	s.Cancel(escalation.AlertForeground)
	s.overlay.ClearAttention()
}

// Launch brings the tray forward. Whether the user sees it is unknown.
func (s *Surface) Launch(attempt uint64) error {
	return s.overlay.Attention(attempt)
}

func (s *Surface) Post(id escalation.AlertID, a escalation.Alert) error {
	if s.notifier == nil {
		return errNoNotifier
	}
	s.mu.Lock()
	replaces := s.ids[id]
	s.mu.Unlock()

	n := toNotification(a)
	n.ReplacesID = replaces
	nid, err := s.notifier.Send(n, s.handler(a))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ids[id] = nid
	s.mu.Unlock()
	return nil
}

func (s *Surface) Cancel(id escalation.AlertID) {
	s.mu.Lock()
	nid, ok := s.ids[id]
	delete(s.ids, id)
	s.mu.Unlock()
	if !ok || s.notifier == nil {
		return
	}
	if err := s.notifier.CloseNotification(nid); err != nil {
		logger.Debug("Closing %s notification: %v", id, err)
	}
}

func (s *Surface) ShowOverlay(a escalation.Alert) error {
	return s.overlay.ShowOverlay(a, func(action escalation.Action) {
		s.act(a, action)
	})
}

func (s *Surface) DismissOverlay() {
	s.overlay.DismissOverlay()
}

func (s *Surface) Toast(msg string) error {
	if s.notifier == nil {
		return errNoNotifier
	}
	_, err := s.notifier.Send(notify.Notification{
		AppName:   appName,
		Icon:      appIcon,
		Summary:   msg,
		Urgency:   notify.UrgencyLow,
		Transient: true,
		Timeout:   toastTimeout,
	}, nil)
	return err
}

// handler maps notification action keys back to escalation actions.
func (s *Surface) handler(a escalation.Alert) notify.ActionHandler {
	if a.Primary == nil && a.Dismiss == nil {
		return nil
	}
	return func(key string) {
		switch key {
		case keyStart, notify.DefaultActionKey:
			s.act(a, escalation.ActionStart)
		case keyClose:
			s.act(a, escalation.ActionDismiss)
		}
	}
}

func (s *Surface) act(a escalation.Alert, action escalation.Action) {
	ref := a.Primary
	if action == escalation.ActionDismiss {
		ref = a.Dismiss
	}
	if ref == nil {
		return
	}

	s.mu.Lock()
	actor := s.actor
	s.mu.Unlock()
	if actor == nil {
		logger.Warning("No escalation bound, dropping %s", action)
		return
	}
	actor.Act(ref.Attempt, ref.Action)
}
