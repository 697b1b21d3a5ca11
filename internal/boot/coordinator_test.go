package boot

import (
	"testing"
	"time"

	"github.com/user/dnstun/internal/clock"
	"github.com/user/dnstun/internal/escalation"
)

type countingEscalator struct {
	calls int
}

func (c *countingEscalator) Trigger() uint64 {
	c.calls++
	return uint64(c.calls)
}

func TestHandleRecognizedSignals(t *testing.T) {
	for _, raw := range []string{"boot-completed", " Package-Replaced ", "quickboot-poweron"} {
		esc := &countingEscalator{}
		c := NewCoordinator(esc, nil)
		var seen Signal
		c.OnTrigger(func(s Signal, _ uint64) { seen = s })

		id, ok := c.Handle(ParseSignal(raw))
		if !ok || id != 1 || esc.calls != 1 {
			t.Fatalf("Handle(%q) = %d, %v; calls %d", raw, id, ok, esc.calls)
		}
		if seen != ParseSignal(raw) {
			t.Fatalf("observer saw %q", seen)
		}
	}
}

func TestHandleIgnoresUnknownSignal(t *testing.T) {
	esc := &countingEscalator{}
	c := NewCoordinator(esc, nil)
	if _, ok := c.Handle(ParseSignal("user-present")); ok {
		t.Fatalf("unknown signal accepted")
	}
	if esc.calls != 0 {
		t.Fatalf("escalator triggered for unknown signal")
	}
}

func TestHandleRespectsDisabledAutostart(t *testing.T) {
	esc := &countingEscalator{}
	c := NewCoordinator(esc, func() bool { return false })
	if _, ok := c.Handle(SignalBootCompleted); ok {
		t.Fatalf("signal accepted while auto-start disabled")
	}
	if esc.calls != 0 {
		t.Fatalf("escalator triggered while disabled")
	}
}

type launchCounter struct {
	launches int
	posts    int
}

func (l *launchCounter) HoldForeground(escalation.Alert) error { return nil }
func (l *launchCounter) ReleaseForeground()                    {}
func (l *launchCounter) Launch(uint64) error                   { l.launches++; return nil }
func (l *launchCounter) Post(escalation.AlertID, escalation.Alert) error {
	l.posts++
	return nil
}
func (l *launchCounter) Cancel(escalation.AlertID)          {}
func (l *launchCounter) ShowOverlay(escalation.Alert) error { return nil }
func (l *launchCounter) DismissOverlay()                    {}
func (l *launchCounter) Toast(string) error                 { return nil }

func TestBootPerformsSingleLaunchAndEscalates(t *testing.T) {
	c := clock.NewFake()
	surface := &launchCounter{}
	esc := escalation.New(surface, escalation.Options{Clock: c})
	coord := NewCoordinator(esc, nil)

	if _, ok := coord.Handle(SignalBootCompleted); !ok {
		t.Fatalf("boot signal rejected")
	}
	if surface.launches != 1 {
		t.Fatalf("launches = %d, want 1", surface.launches)
	}
	c.Advance(time.Second)
	if surface.posts == 0 {
		t.Fatalf("escalation did not proceed after the launch attempt")
	}
	c.Advance(2 * time.Minute)
	snap, _ := esc.Current()
	if snap.Stage != escalation.StageExpired {
		t.Fatalf("stage = %s, want expired", snap.Stage)
	}
	if surface.launches != 1 {
		t.Fatalf("launches = %d after expiry, want 1", surface.launches)
	}
}
