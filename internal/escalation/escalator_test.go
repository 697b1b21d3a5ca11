package escalation

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/user/dnstun/internal/clock"
)

type event struct {
	At   time.Duration
	What string
}

type fakeSurface struct {
	clock       *clock.Fake
	start       time.Time
	events      []event
	attempts    []uint64
	failPost    map[AlertID]error
	failOverlay error
	failLaunch  error
	failToast   error
}

func newFakeSurface(c *clock.Fake) *fakeSurface {
	return &fakeSurface{clock: c, start: c.Now(), failPost: map[AlertID]error{}}
}

func (f *fakeSurface) record(format string, args ...any) {
	f.events = append(f.events, event{At: f.clock.Now().Sub(f.start), What: fmt.Sprintf(format, args...)})
}

func (f *fakeSurface) HoldForeground(a Alert) error {
	f.record("hold")
	return nil
}

func (f *fakeSurface) ReleaseForeground() { f.record("release") }

func (f *fakeSurface) Launch(attempt uint64) error {
	f.record("launch %d", attempt)
	return f.failLaunch
}

func (f *fakeSurface) Post(id AlertID, a Alert) error {
	if err := f.failPost[id]; err != nil {
		f.record("post %s failed", id)
		return err
	}
	if a.Primary != nil {
		f.attempts = append(f.attempts, a.Primary.Attempt)
	}
	f.record("post %s", id)
	return nil
}

func (f *fakeSurface) Cancel(id AlertID) { f.record("cancel %s", id) }

func (f *fakeSurface) ShowOverlay(a Alert) error {
	if f.failOverlay != nil {
		f.record("overlay failed")
		return f.failOverlay
	}
	f.record("overlay")
	return nil
}

func (f *fakeSurface) DismissOverlay() { f.record("dismiss overlay") }

func (f *fakeSurface) Toast(msg string) error {
	f.record("toast %s", msg)
	return f.failToast
}

type stageLog struct {
	stages  []string
	resumed []uint64
	failed  []string
}

func newTestEscalator(t *testing.T) (*Escalator, *clock.Fake, *fakeSurface, *stageLog) {
	t.Helper()
	c := clock.NewFake()
	s := newFakeSurface(c)
	log := &stageLog{}
	e := New(s, Options{
		Clock: c,
		Hooks: Hooks{
			OnStage: func(id uint64, st Stage) {
				log.stages = append(log.stages, fmt.Sprintf("%d:%s", id, st))
			},
			OnResume: func(id uint64) { log.resumed = append(log.resumed, id) },
			OnDispatchError: func(id uint64, st Stage, err error) {
				log.failed = append(log.failed, fmt.Sprintf("%d:%s", id, st))
			},
		},
	})
	return e, c, s, log
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestFullTimelineWithoutUserAction(t *testing.T) {
	e, c, s, log := newTestEscalator(t)
	id := e.Trigger()
	c.Advance(130 * time.Second)

	want := []event{
		{0, "hold"},
		{0, fmt.Sprintf("launch %d", id)},
		{ms(1000), "post persistent"},
		{ms(1000), "post compact"},
		{ms(3000), "post reminder"},
		{ms(5000), "overlay"},
		{ms(18000), "cancel reminder"},
		{ms(31000), "cancel compact"},
		{ms(35000), "dismiss overlay"},
		{ms(120000), "cancel persistent"},
		{ms(120000), "release"},
	}
	if diff := cmp.Diff(want, s.events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}

	wantStages := []string{
		"1:direct_launch", "1:persistent_notice", "1:delayed_reminder", "1:overlay_prompt", "1:expired",
	}
	if diff := cmp.Diff(wantStages, log.stages); diff != "" {
		t.Fatalf("stages mismatch (-want +got):\n%s", diff)
	}
	snap, ok := e.Current()
	if !ok || snap.Stage != StageExpired {
		t.Fatalf("expected expired snapshot, got %+v", snap)
	}
	if c.Pending() != 0 {
		t.Fatalf("expected no live timers, got %d", c.Pending())
	}
	if len(log.resumed) != 0 {
		t.Fatalf("no resume without user action")
	}
}

func TestExpiresExactlyAtDeadline(t *testing.T) {
	e, c, _, _ := newTestEscalator(t)
	e.Trigger()

	c.Advance(119999 * time.Millisecond)
	if snap, _ := e.Current(); snap.Stage == StageExpired {
		t.Fatalf("expired too early")
	}
	c.Advance(time.Millisecond)
	if snap, _ := e.Current(); snap.Stage != StageExpired {
		t.Fatalf("stage = %s at 120000ms, want expired", snap.Stage)
	}
}

func TestDirectLaunchFailureStillEscalates(t *testing.T) {
	e, c, s, _ := newTestEscalator(t)
	s.failLaunch = errors.New("background activity start blocked")
	e.Trigger()
	c.Advance(time.Second)

	if snap, _ := e.Current(); snap.Stage != StagePersistentNotice {
		t.Fatalf("stage = %s, want persistent_notice", snap.Stage)
	}
}

func TestUserActionCancelsEverything(t *testing.T) {
	e, c, s, log := newTestEscalator(t)
	id := e.Trigger()
	c.Advance(ms(4000))

	if !e.Act(id, ActionStart) {
		t.Fatalf("act should succeed on a live attempt")
	}
	before := len(s.events)
	wantTail := []event{
		{ms(4000), "cancel persistent"},
		{ms(4000), "cancel compact"},
		{ms(4000), "cancel reminder"},
		{ms(4000), "release"},
	}
	if diff := cmp.Diff(wantTail, s.events[before-4:]); diff != "" {
		t.Fatalf("cancel events mismatch (-want +got):\n%s", diff)
	}

	c.Advance(10 * time.Minute)
	if len(s.events) != before {
		t.Fatalf("side effects after cancellation: %v", s.events[before:])
	}
	if c.Pending() != 0 {
		t.Fatalf("timers still scheduled: %d", c.Pending())
	}
	if diff := cmp.Diff([]uint64{id}, log.resumed); diff != "" {
		t.Fatalf("resume mismatch (-want +got):\n%s", diff)
	}
	if e.Act(id, ActionStart) {
		t.Fatalf("second action on an expired attempt must be ignored")
	}
}

func TestDismissDuringOverlay(t *testing.T) {
	e, c, s, log := newTestEscalator(t)
	id := e.Trigger()
	c.Advance(ms(6000))

	if snap, _ := e.Current(); !snap.Overlay {
		t.Fatalf("expected overlay shown")
	}
	e.Act(id, ActionDismiss)
	last := s.events[len(s.events)-2:]
	want := []event{{ms(6000), "dismiss overlay"}, {ms(6000), "release"}}
	if diff := cmp.Diff(want, last); diff != "" {
		t.Fatalf("tail mismatch (-want +got):\n%s", diff)
	}
	if len(log.resumed) != 0 {
		t.Fatalf("dismiss must not resume the start flow")
	}
	n := len(s.events)
	c.Advance(time.Hour)
	if len(s.events) != n {
		t.Fatalf("side effects after dismiss: %v", s.events[n:])
	}
}

func TestActionWithUnknownIDIsIgnored(t *testing.T) {
	e, _, _, _ := newTestEscalator(t)
	if e.Act(1, ActionStart) {
		t.Fatalf("no attempt exists yet")
	}
	id := e.Trigger()
	if e.Act(id+1, ActionDismiss) {
		t.Fatalf("unknown attempt id accepted")
	}
	if snap, _ := e.Current(); snap.Stage != StageDirectLaunch {
		t.Fatalf("stage = %s, want direct_launch", snap.Stage)
	}
}

func TestOverlayFailureFallsBackToToasts(t *testing.T) {
	e, c, s, log := newTestEscalator(t)
	s.failOverlay = errors.New("window manager refused")
	e.Trigger()
	c.Advance(30 * time.Second)

	var toasts []event
	for _, ev := range s.events {
		if len(ev.What) > 6 && ev.What[:6] == "toast " {
			toasts = append(toasts, ev)
		}
	}
	want := []event{
		{ms(6000), "toast " + guidanceToasts[0]},
		{ms(10000), "toast " + guidanceToasts[1]},
		{ms(14000), "toast " + guidanceToasts[2]},
		{ms(18000), "toast " + guidanceToasts[3]},
		{ms(23000), "toast " + summaryToast},
	}
	if diff := cmp.Diff(want, toasts); diff != "" {
		t.Fatalf("toasts mismatch (-want +got):\n%s", diff)
	}
	wantStages := []string{
		"1:direct_launch", "1:persistent_notice", "1:delayed_reminder",
		"1:overlay_prompt", "1:fallback_toast_series",
	}
	if diff := cmp.Diff(wantStages, log.stages); diff != "" {
		t.Fatalf("stages mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1:overlay_prompt"}, log.failed); diff != "" {
		t.Fatalf("dispatch failures mismatch (-want +got):\n%s", diff)
	}

	c.Advance(100 * time.Second)
	if snap, _ := e.Current(); snap.Stage != StageExpired {
		t.Fatalf("stage = %s, want expired", snap.Stage)
	}
}

func TestPersistentFailureAdvancesEarly(t *testing.T) {
	e, c, s, log := newTestEscalator(t)
	s.failPost[AlertPersistent] = errors.New("notification daemon gone")
	e.Trigger()
	c.Advance(ms(1000))

	if snap, _ := e.Current(); snap.Stage != StageDelayedReminder {
		t.Fatalf("stage = %s, want delayed_reminder", snap.Stage)
	}

	c.Advance(ms(4000))
	reminders := 0
	for _, ev := range s.events {
		if ev.What == "post reminder" {
			reminders++
			if ev.At != ms(1000) {
				t.Fatalf("reminder posted at %s, want 1s", ev.At)
			}
		}
	}
	if reminders != 1 {
		t.Fatalf("reminder posted %d times", reminders)
	}
	if snap, _ := e.Current(); snap.Stage != StageOverlayPrompt {
		t.Fatalf("stage = %s, want overlay_prompt", snap.Stage)
	}
	if diff := cmp.Diff([]string{"1:persistent_notice"}, log.failed); diff != "" {
		t.Fatalf("dispatch failures mismatch (-want +got):\n%s", diff)
	}
}

func TestAllNotificationsFailingReachesToasts(t *testing.T) {
	e, c, s, _ := newTestEscalator(t)
	boom := errors.New("no notification service")
	s.failPost[AlertPersistent] = boom
	s.failPost[AlertReminder] = boom
	s.failOverlay = boom
	e.Trigger()
	c.Advance(ms(1000))

	if snap, _ := e.Current(); snap.Stage != StageFallbackToastSeries {
		t.Fatalf("stage = %s, want fallback_toast_series", snap.Stage)
	}
	c.Advance(ms(1000))
	if last := s.events[len(s.events)-1]; last.What != "toast "+guidanceToasts[0] {
		t.Fatalf("first toast missing, last event %+v", last)
	}
}

func TestNewTriggerSupersedesLiveAttempt(t *testing.T) {
	e, c, s, log := newTestEscalator(t)
	first := e.Trigger()
	c.Advance(ms(3500))
	mark := len(s.events)

	second := e.Trigger()
	if second == first {
		t.Fatalf("attempt ids must increase")
	}
	got := s.events[mark:]
	want := []event{
		{ms(3500), "cancel persistent"},
		{ms(3500), "cancel compact"},
		{ms(3500), "cancel reminder"},
		{ms(3500), "release"},
		{ms(3500), "hold"},
		{ms(3500), fmt.Sprintf("launch %d", second)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("supersede events mismatch (-want +got):\n%s", diff)
	}

	s.attempts = nil
	c.Advance(200 * time.Second)
	for _, id := range s.attempts {
		if id != second {
			t.Fatalf("alert dispatched for superseded attempt %d", id)
		}
	}
	if e.Act(first, ActionStart) {
		t.Fatalf("superseded attempt accepted an action")
	}
	expired := 0
	for _, st := range log.stages {
		if st == fmt.Sprintf("%d:expired", first) || st == fmt.Sprintf("%d:expired", second) {
			expired++
		}
	}
	if expired != 2 {
		t.Fatalf("expected both attempts expired once, stages %v", log.stages)
	}
}

func TestCloseExpiresLiveAttempt(t *testing.T) {
	e, c, s, _ := newTestEscalator(t)
	e.Trigger()
	c.Advance(ms(1500))
	e.Close()

	if snap, _ := e.Current(); snap.Stage != StageExpired {
		t.Fatalf("stage = %s, want expired", snap.Stage)
	}
	n := len(s.events)
	c.Advance(time.Hour)
	if len(s.events) != n {
		t.Fatalf("side effects after close: %v", s.events[n:])
	}
	e.Close()
}

func TestSnapshotDeadlines(t *testing.T) {
	e, c, _, _ := newTestEscalator(t)
	start := c.Now()
	e.Trigger()
	snap, _ := e.Current()

	want := map[Stage]time.Duration{
		StageDirectLaunch:     0,
		StagePersistentNotice: ms(1000),
		StageDelayedReminder:  ms(3000),
		StageOverlayPrompt:    ms(5000),
		StageExpired:          ms(120000),
	}
	for st, d := range want {
		if got := snap.Deadlines[st].Sub(start); got != d {
			t.Errorf("deadline %s = %s, want %s", st, got, d)
		}
	}
}
