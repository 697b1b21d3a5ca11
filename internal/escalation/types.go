// Package escalation implements the auto-start visibility escalator: after a
// background trigger it tries successively more intrusive ways to get the
// user's attention until the user acts or the attempt expires.
package escalation

import "time"

// Stage is one step of an escalation attempt. Stages only move forward.
type Stage int

const (
	StageDirectLaunch Stage = iota + 1
	StagePersistentNotice
	StageDelayedReminder
	StageOverlayPrompt
	StageFallbackToastSeries
	StageExpired
)

func (s Stage) String() string {
	switch s {
	case StageDirectLaunch:
		return "direct_launch"
	case StagePersistentNotice:
		return "persistent_notice"
	case StageDelayedReminder:
		return "delayed_reminder"
	case StageOverlayPrompt:
		return "overlay_prompt"
	case StageFallbackToastSeries:
		return "fallback_toast_series"
	case StageExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Action is a user response to any surfaced alert.
type Action int

const (
	ActionStart Action = iota + 1
	ActionDismiss
)

func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionDismiss:
		return "dismiss"
	default:
		return "unknown"
	}
}

// Priority of an alert request.
type Priority int

const (
	PriorityDefault Priority = iota
	PriorityHigh
	PriorityMax
)

// SoundProfile selects how loud an alert is.
type SoundProfile int

const (
	SoundSilent SoundProfile = iota
	SoundAll                 // sound, vibration and lights
	SoundChime               // sound and vibration only
)

// AlertID names the notification slots an attempt may occupy.
type AlertID int

const (
	AlertForeground AlertID = iota + 1
	AlertPersistent
	AlertCompact
	AlertReminder
)

func (id AlertID) String() string {
	switch id {
	case AlertForeground:
		return "foreground"
	case AlertPersistent:
		return "persistent"
	case AlertCompact:
		return "compact"
	case AlertReminder:
		return "reminder"
	default:
		return "unknown"
	}
}

// ActionRef is an affordance attached to an alert. Attempt lets the surface
// route the user's answer back through Escalator.Act.
type ActionRef struct {
	Label   string
	Action  Action
	Attempt uint64
}

// Alert is a request to the notification/overlay collaborator. The escalator
// issues these; it never renders them.
type Alert struct {
	Priority   Priority
	Title      string
	Body       string
	Primary    *ActionRef
	Dismiss    *ActionRef
	Ongoing    bool
	Timeout    time.Duration // zero means no auto-expiry
	FullScreen bool
	Sound      SoundProfile
}

// Surface is the host's notification and overlay subsystem.
//
// Implementations must not call back into the Escalator synchronously; user
// actions are delivered later through Escalator.Act.
type Surface interface {
	// HoldForeground keeps the process visible while an attempt runs.
	HoldForeground(a Alert) error
	// ReleaseForeground drops what HoldForeground acquired.
	ReleaseForeground()
	// Launch tries to bring the host to the foreground. The platform may
	// block it silently, so the result is advisory only.
	Launch(attempt uint64) error
	Post(id AlertID, a Alert) error
	Cancel(id AlertID)
	ShowOverlay(a Alert) error
	DismissOverlay()
	Toast(msg string) error
}

// Timings are the offsets that drive an attempt.
type Timings struct {
	Settle         time.Duration // trigger -> PersistentNotice
	ReminderDelay  time.Duration // PersistentNotice -> DelayedReminder
	OverlayDelay   time.Duration // trigger -> OverlayPrompt
	OverlayDismiss time.Duration
	ToastOffset    time.Duration
	ToastStagger   time.Duration
	ToastSummary   time.Duration
	Expiry         time.Duration // trigger -> Expired
	CompactExpiry  time.Duration
	ReminderExpiry time.Duration
}

// DefaultTimings returns the production timings.
func DefaultTimings() Timings {
	return Timings{
		Settle:         1000 * time.Millisecond,
		ReminderDelay:  2000 * time.Millisecond,
		OverlayDelay:   5000 * time.Millisecond,
		OverlayDismiss: 30000 * time.Millisecond,
		ToastOffset:    1000 * time.Millisecond,
		ToastStagger:   4000 * time.Millisecond,
		ToastSummary:   18000 * time.Millisecond,
		Expiry:         120000 * time.Millisecond,
		CompactExpiry:  30000 * time.Millisecond,
		ReminderExpiry: 15000 * time.Millisecond,
	}
}

// Snapshot describes the current attempt.
type Snapshot struct {
	ID        uint64
	Stage     Stage
	Overlay   bool
	Deadlines map[Stage]time.Time
}
