// Package notify talks to the freedesktop notification daemon over the
// session bus.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/user/dnstun/internal/logger"
)

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = dbus.ObjectPath("/org/freedesktop/Notifications")

	signalActionInvoked = busName + ".ActionInvoked"
	signalClosed        = busName + ".NotificationClosed"
)

// Urgency levels defined by the notification spec.
type Urgency byte

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// DefaultActionKey is invoked when the notification body itself is clicked.
const DefaultActionKey = "default"

// Action is a button on a notification.
type Action struct {
	Key   string
	Label string
}

// Notification describes one desktop notification.
type Notification struct {
	AppName  string
	Icon     string
	Summary  string
	Body     string
	Actions  []Action
	Urgency  Urgency
	Category string
	// Resident keeps the notification after an action is invoked.
	Resident bool
	// Transient bypasses the server's persistence.
	Transient     bool
	SuppressSound bool
	// Timeout of zero means the notification never expires.
	Timeout    time.Duration
	ReplacesID uint32
}

// ClosedKey is passed to an ActionHandler when the notification went away
// without an action, either expired or dismissed by the user. Notifications
// withdrawn through CloseNotification never reach their handler.
const ClosedKey = ""

// ActionHandler receives the key of the action the user invoked.
type ActionHandler func(key string)

// Client sends notifications and routes action signals back to handlers.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject

	mu       sync.Mutex
	handlers map[uint32]ActionHandler
	signals  chan *dbus.Signal
}

// Dial connects to the session bus and subscribes to notification signals.
func Dial() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(objectPath),
		dbus.WithMatchInterface(busName),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe to notification signals: %w", err)
	}

	c := &Client{
		conn:     conn,
		obj:      conn.Object(busName, objectPath),
		handlers: make(map[uint32]ActionHandler),
		signals:  make(chan *dbus.Signal, 16),
	}
	conn.Signal(c.signals)
	logger.SafeGo("notify-signals", c.listen)
	return c, nil
}

// Send shows n. onAction, if non-nil, is called from the signal goroutine
// when the user picks one of n's actions.
func (c *Client) Send(n Notification, onAction ActionHandler) (uint32, error) {
	var id uint32
	call := c.obj.Call(busName+".Notify", 0,
		n.AppName,
		n.ReplacesID,
		n.Icon,
		n.Summary,
		n.Body,
		actionList(n.Actions),
		buildHints(n),
		expireTimeout(n.Timeout),
	)
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}

	c.mu.Lock()
	if onAction != nil {
		c.handlers[id] = onAction
	} else {
		delete(c.handlers, id)
	}
	c.mu.Unlock()
	return id, nil
}

// CloseNotification withdraws a notification.
func (c *Client) CloseNotification(id uint32) error {
	c.mu.Lock()
	delete(c.handlers, id)
	c.mu.Unlock()

	if err := c.obj.Call(busName+".CloseNotification", 0, id).Err; err != nil {
		return fmt.Errorf("close notification %d: %w", id, err)
	}
	return nil
}

// Close disconnects from the bus.
func (c *Client) Close() error {
	c.conn.RemoveSignal(c.signals)
	err := c.conn.Close()
	close(c.signals)
	return err
}

func (c *Client) listen() {
	for sig := range c.signals {
		c.dispatch(sig)
	}
}

func (c *Client) dispatch(sig *dbus.Signal) {
	switch sig.Name {
	case signalActionInvoked:
		id, key, ok := actionInvoked(sig.Body)
		if !ok {
			return
		}
		c.mu.Lock()
		h := c.handlers[id]
		c.mu.Unlock()
		if h != nil {
			logger.Debug("Notification %d: action %q", id, key)
			h(key)
		}
	case signalClosed:
		if len(sig.Body) == 0 {
			return
		}
		id, ok := sig.Body[0].(uint32)
		if !ok {
			return
		}
		c.mu.Lock()
		h := c.handlers[id]
		delete(c.handlers, id)
		c.mu.Unlock()
		if h != nil {
			h(ClosedKey)
		}
	}
}

func actionInvoked(body []interface{}) (uint32, string, bool) {
	if len(body) < 2 {
		return 0, "", false
	}
	id, ok := body[0].(uint32)
	if !ok {
		return 0, "", false
	}
	key, ok := body[1].(string)
	return id, key, ok
}

// actionList flattens actions into the key/label pairs Notify expects.
func actionList(actions []Action) []string {
	out := make([]string, 0, 2*len(actions))
	for _, a := range actions {
		out = append(out, a.Key, a.Label)
	}
	return out
}

func buildHints(n Notification) map[string]dbus.Variant {
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(n.Urgency)),
	}
	if n.Category != "" {
		hints["category"] = dbus.MakeVariant(n.Category)
	}
	if n.Resident {
		hints["resident"] = dbus.MakeVariant(true)
	}
	if n.Transient {
		hints["transient"] = dbus.MakeVariant(true)
	}
	if n.SuppressSound {
		hints["suppress-sound"] = dbus.MakeVariant(true)
	}
	if n.AppName != "" {
		hints["desktop-entry"] = dbus.MakeVariant(n.AppName)
	}
	return hints
}

func expireTimeout(d time.Duration) int32 {
	if d <= 0 {
		return 0
	}
	return int32(d / time.Millisecond)
}
