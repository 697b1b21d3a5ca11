package escalation

import (
	"sync"
	"time"

	"github.com/user/dnstun/internal/clock"
	"github.com/user/dnstun/internal/logger"
)

// Hooks observe an escalator. They run with the escalator lock held and must
// not call back into it.
type Hooks struct {
	OnStage         func(attempt uint64, stage Stage)
	OnResume        func(attempt uint64)
	OnDispatchError func(attempt uint64, stage Stage, err error)
}

// Options configure an Escalator. Zero values select production defaults.
type Options struct {
	Clock   clock.Clock
	Timings *Timings
	Hooks   Hooks
}

// timerSet is every timer owned by one attempt. Once canceled it refuses new
// timers, and callbacks re-check canceled under the escalator lock, so no
// callback can act after cancelAll returns.
type timerSet struct {
	handles  []clock.Timer
	canceled bool
}

func (s *timerSet) add(t clock.Timer) {
	s.handles = append(s.handles, t)
}

func (s *timerSet) cancelAll() {
	s.canceled = true
	for _, h := range s.handles {
		h.Stop()
	}
	s.handles = nil
}

// attempt is one in-flight escalation.
type attempt struct {
	id        uint64
	stage     Stage
	deadlines map[Stage]time.Time
	timers    timerSet
	posted    map[AlertID]bool
	overlay   bool
	holding   bool
}

// Escalator runs at most one attempt at a time. A new Trigger supersedes the
// live attempt.
type Escalator struct {
	surface Surface
	clock   clock.Clock
	timings Timings
	hooks   Hooks

	mu      sync.Mutex
	seq     uint64
	current *attempt
}

// New creates an escalator dispatching to surface.
func New(surface Surface, opts Options) *Escalator {
	e := &Escalator{
		surface: surface,
		clock:   opts.Clock,
		timings: DefaultTimings(),
		hooks:   opts.Hooks,
	}
	if e.clock == nil {
		e.clock = clock.Real()
	}
	if opts.Timings != nil {
		e.timings = *opts.Timings
	}
	return e
}

// Trigger starts a fresh attempt and returns its id. A live attempt is
// canceled first.
func (e *Escalator) Trigger() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prev := e.current; prev != nil && prev.stage != StageExpired {
		logger.Info("Escalation %d superseded by a new trigger", prev.id)
		e.expireLocked(prev, "superseded")
	}

	e.seq++
	t := e.timings
	now := e.clock.Now()
	a := &attempt{
		id:     e.seq,
		posted: make(map[AlertID]bool),
		deadlines: map[Stage]time.Time{
			StageDirectLaunch:     now,
			StagePersistentNotice: now.Add(t.Settle),
			StageDelayedReminder:  now.Add(t.Settle + t.ReminderDelay),
			StageOverlayPrompt:    now.Add(t.OverlayDelay),
			StageExpired:          now.Add(t.Expiry),
		},
	}
	e.current = a

	e.after(a, t.Settle, func() { e.enterLocked(a, StagePersistentNotice) })
	e.after(a, t.Settle+t.ReminderDelay, func() { e.enterLocked(a, StageDelayedReminder) })
	e.after(a, t.OverlayDelay, func() { e.enterLocked(a, StageOverlayPrompt) })
	e.after(a, t.Expiry, func() { e.expireLocked(a, "timeout") })

	logger.Info("Escalation %d started", a.id)
	e.enterLocked(a, StageDirectLaunch)
	return a.id
}

// Act records a user action on any alert of attempt id. It returns false when
// the attempt is unknown, superseded or already expired.
func (e *Escalator) Act(id uint64, action Action) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.current
	if a == nil || a.id != id || a.stage == StageExpired {
		logger.Debug("Ignoring %s for stale escalation %d", action, id)
		return false
	}

	logger.Info("Escalation %d: user chose %s", id, action)
	e.expireLocked(a, action.String())
	if action == ActionStart && e.hooks.OnResume != nil {
		e.hooks.OnResume(id)
	}
	return true
}

// Current returns the live or most recent attempt.
func (e *Escalator) Current() (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.current
	if a == nil {
		return Snapshot{}, false
	}
	deadlines := make(map[Stage]time.Time, len(a.deadlines))
	for s, d := range a.deadlines {
		deadlines[s] = d
	}
	return Snapshot{ID: a.id, Stage: a.stage, Overlay: a.overlay, Deadlines: deadlines}, true
}

// Close expires the live attempt, if any.
func (e *Escalator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if a := e.current; a != nil && a.stage != StageExpired {
		e.expireLocked(a, "closed")
	}
}

// after schedules fn on a's timer set. fn runs with the lock held and only
// while a is still the live attempt.
func (e *Escalator) after(a *attempt, d time.Duration, fn func()) {
	if a.timers.canceled {
		return
	}
	a.timers.add(e.clock.AfterFunc(d, func() {
		defer logger.Recover("escalation-timer")
		e.mu.Lock()
		defer e.mu.Unlock()
		if a.timers.canceled || e.current != a {
			return
		}
		fn()
	}))
}

// enterLocked moves a forward to stage s. Entering a stage that was already
// passed is a no-op, which lets a dispatch failure skip ahead without the
// original timer re-entering the stage later.
func (e *Escalator) enterLocked(a *attempt, s Stage) {
	if s <= a.stage || a.stage == StageExpired {
		return
	}
	a.stage = s
	logger.Info("Escalation %d entered %s", a.id, s)
	if e.hooks.OnStage != nil {
		e.hooks.OnStage(a.id, s)
	}

	switch s {
	case StageDirectLaunch:
		e.directLaunch(a)
	case StagePersistentNotice:
		if err := e.persistentNotice(a); err != nil {
			e.dispatchFailed(a, s, err)
			e.enterLocked(a, StageDelayedReminder)
		}
	case StageDelayedReminder:
		if err := e.post(a, AlertReminder, reminderAlert(a.id, e.timings)); err != nil {
			e.dispatchFailed(a, s, err)
			e.enterLocked(a, StageOverlayPrompt)
		}
	case StageOverlayPrompt:
		if err := e.surface.ShowOverlay(overlayPrompt(a.id, e.timings)); err != nil {
			e.dispatchFailed(a, s, err)
			e.enterLocked(a, StageFallbackToastSeries)
			return
		}
		a.overlay = true
		e.after(a, e.timings.OverlayDismiss, func() {
			if a.overlay {
				logger.Info("Escalation %d: overlay dismissed after inactivity", a.id)
				e.surface.DismissOverlay()
				a.overlay = false
			}
		})
	case StageFallbackToastSeries:
		e.toastSeries(a)
	}
}

func (e *Escalator) directLaunch(a *attempt) {
	if err := e.surface.HoldForeground(foregroundAlert()); err != nil {
		logger.Warning("Escalation %d: foreground hold failed: %v", a.id, err)
	} else {
		a.holding = true
	}

	// The platform may block the launch without telling us, so the result
	// never short-circuits the escalation.
	if err := e.surface.Launch(a.id); err != nil {
		logger.Warning("Escalation %d: direct launch failed: %v", a.id, err)
	} else {
		logger.Info("Escalation %d: direct launch attempted, assuming it may be blocked", a.id)
	}
}

func (e *Escalator) persistentNotice(a *attempt) error {
	if err := e.post(a, AlertPersistent, persistentAlert(a.id)); err != nil {
		return err
	}
	if err := e.post(a, AlertCompact, compactAlert(a.id, e.timings)); err != nil {
		e.dispatchFailed(a, StagePersistentNotice, err)
	}
	return nil
}

// post dispatches an alert and, when it carries a timeout, schedules its
// cancellation on the attempt's timer set.
func (e *Escalator) post(a *attempt, id AlertID, alert Alert) error {
	if err := e.surface.Post(id, alert); err != nil {
		return err
	}
	a.posted[id] = true
	if alert.Timeout > 0 {
		e.after(a, alert.Timeout, func() {
			if a.posted[id] {
				e.surface.Cancel(id)
				delete(a.posted, id)
			}
		})
	}
	return nil
}

func (e *Escalator) toastSeries(a *attempt) {
	t := e.timings
	a.deadlines[StageFallbackToastSeries] = e.clock.Now().Add(t.ToastSummary)
	for i, msg := range guidanceToasts {
		i, msg := i, msg
		e.after(a, t.ToastOffset+time.Duration(i)*t.ToastStagger, func() {
			if err := e.surface.Toast(msg); err != nil {
				e.dispatchFailed(a, StageFallbackToastSeries, err)
				return
			}
			logger.Debug("Escalation %d: guidance toast %d shown", a.id, i)
		})
	}
	e.after(a, t.ToastSummary, func() {
		if err := e.surface.Toast(summaryToast); err != nil {
			e.dispatchFailed(a, StageFallbackToastSeries, err)
		}
	})
}

func (e *Escalator) dispatchFailed(a *attempt, s Stage, err error) {
	logger.Warning("Escalation %d: dispatch failed in %s: %v", a.id, s, err)
	if e.hooks.OnDispatchError != nil {
		e.hooks.OnDispatchError(a.id, s, err)
	}
}

// expireLocked cancels every timer and alert of a and moves it to Expired.
func (e *Escalator) expireLocked(a *attempt, reason string) {
	if a.stage == StageExpired {
		return
	}
	a.timers.cancelAll()

	for _, id := range []AlertID{AlertPersistent, AlertCompact, AlertReminder} {
		if a.posted[id] {
			e.surface.Cancel(id)
			delete(a.posted, id)
		}
	}
	if a.overlay {
		e.surface.DismissOverlay()
		a.overlay = false
	}
	if a.holding {
		e.surface.ReleaseForeground()
		a.holding = false
	}

	a.stage = StageExpired
	logger.Info("Escalation %d expired (%s)", a.id, reason)
	if e.hooks.OnStage != nil {
		e.hooks.OnStage(a.id, StageExpired)
	}
}
