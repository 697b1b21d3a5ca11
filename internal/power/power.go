// Package power reports system suspend and resume from systemd-logind.
package power

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/user/dnstun/internal/logger"
)

const (
	loginInterface  = "org.freedesktop.login1.Manager"
	loginPath       = dbus.ObjectPath("/org/freedesktop/login1")
	prepareForSleep = loginInterface + ".PrepareForSleep"
)

// Handler receives true before suspend and false after resume.
type Handler func(suspend bool)

// Watch subscribes to logind's PrepareForSleep signal on the system bus and
// calls fn for each one until ctx is done.
func Watch(ctx context.Context, fn Handler) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("connect system bus: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(loginPath),
		dbus.WithMatchInterface(loginInterface),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe to PrepareForSleep: %w", err)
	}

	signals := make(chan *dbus.Signal, 4)
	conn.Signal(signals)

	logger.SafeGo("power-watch", func() {
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				conn.RemoveSignal(signals)
				return
			case sig := <-signals:
				if suspend, ok := parse(sig); ok {
					logger.Info("System power event: suspend=%v", suspend)
					fn(suspend)
				}
			}
		}
	})
	return nil
}

func parse(sig *dbus.Signal) (bool, bool) {
	if sig == nil || sig.Name != prepareForSleep || len(sig.Body) == 0 {
		return false, false
	}
	suspend, ok := sig.Body[0].(bool)
	return suspend, ok
}
