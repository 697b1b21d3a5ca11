package notify

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/go-cmp/cmp"
)

func TestActionList(t *testing.T) {
	got := actionList([]Action{{Key: DefaultActionKey, Label: "Start"}, {Key: "dismiss", Label: "Dismiss"}})
	want := []string{"default", "Start", "dismiss", "Dismiss"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("actions mismatch (-want +got):\n%s", diff)
	}
	if got := actionList(nil); len(got) != 0 {
		t.Fatalf("nil actions = %v", got)
	}
}

func TestBuildHints(t *testing.T) {
	h := buildHints(Notification{
		AppName:       "dnstun",
		Urgency:       UrgencyCritical,
		Category:      "network",
		Resident:      true,
		SuppressSound: true,
	})
	if v := h["urgency"].Value(); v != byte(2) {
		t.Fatalf("urgency = %v", v)
	}
	if v := h["resident"].Value(); v != true {
		t.Fatalf("resident = %v", v)
	}
	if _, ok := h["transient"]; ok {
		t.Fatalf("transient set unexpectedly")
	}
	if v := h["category"].Value(); v != "network" {
		t.Fatalf("category = %v", v)
	}
	if v := h["desktop-entry"].Value(); v != "dnstun" {
		t.Fatalf("desktop-entry = %v", v)
	}
}

func TestExpireTimeout(t *testing.T) {
	cases := map[time.Duration]int32{
		0:                0,
		-time.Second:     0,
		15 * time.Second: 15000,
	}
	for in, want := range cases {
		if got := expireTimeout(in); got != want {
			t.Fatalf("expireTimeout(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestDispatchRoutesActions(t *testing.T) {
	c := &Client{handlers: make(map[uint32]ActionHandler)}
	var got string
	c.handlers[7] = func(key string) { got = key }

	c.dispatch(&dbus.Signal{Name: signalActionInvoked, Body: []interface{}{uint32(8), "start"}})
	if got != "" {
		t.Fatalf("handler for another id fired")
	}
	c.dispatch(&dbus.Signal{Name: signalActionInvoked, Body: []interface{}{uint32(7), "start"}})
	if got != "start" {
		t.Fatalf("got %q, want start", got)
	}

	got = "unset"
	c.dispatch(&dbus.Signal{Name: signalClosed, Body: []interface{}{uint32(7), uint32(2)}})
	if got != ClosedKey {
		t.Fatalf("close delivered %q, want ClosedKey", got)
	}
	if _, ok := c.handlers[7]; ok {
		t.Fatalf("handler kept after close")
	}
}

func TestDispatchIgnoresMalformedSignal(t *testing.T) {
	c := &Client{handlers: map[uint32]ActionHandler{1: func(string) { t.Fatalf("handler fired") }}}
	c.dispatch(&dbus.Signal{Name: signalActionInvoked, Body: []interface{}{"1", "start"}})
	c.dispatch(&dbus.Signal{Name: signalActionInvoked, Body: []interface{}{uint32(1)}})
}
