// Package tunnel manages the lifecycle of the single DNS-only tunnel session.
package tunnel

import (
	"errors"
	"fmt"
	"net/netip"
)

// State represents the tunnel session lifecycle state.
type State string

const (
	StateIdle              State = "idle"
	StatePermissionPending State = "permission_pending"
	StateEstablishing      State = "establishing"
	StateActive            State = "active"
	StateStopping          State = "stopping"
)

// transitions lists the allowed moves. Anything else is rejected.
var transitions = map[State][]State{
	StateIdle:              {StatePermissionPending},
	StatePermissionPending: {StateEstablishing, StateIdle},
	StateEstablishing:      {StateActive, StateIdle},
	StateActive:            {StateStopping},
	StateStopping:          {StateIdle},
}

// CanTransition reports whether from -> to is part of the lifecycle.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

const (
	DefaultPrimaryDNS   = "8.8.8.8"
	DefaultSecondaryDNS = "8.8.4.4"
	DefaultSessionName  = "DNS Tunnel"
	DefaultMTU          = 1500
)

// InterfaceAddress is the point-to-point allocation given to every tunnel.
var InterfaceAddress = netip.MustParsePrefix("10.0.0.2/30")

// Config is the resolver pair for one session. It is passed by value and
// never mutated after Start.
type Config struct {
	PrimaryDNS   string
	SecondaryDNS string
}

// WithDefaults fills empty addresses with the default resolvers.
func (c Config) WithDefaults() Config {
	if c.PrimaryDNS == "" {
		c.PrimaryDNS = DefaultPrimaryDNS
	}
	if c.SecondaryDNS == "" {
		c.SecondaryDNS = DefaultSecondaryDNS
	}
	return c
}

// Spec is what the platform builder needs to create the interface.
type Spec struct {
	Address     netip.Prefix
	DNS         [2]netip.Addr
	Session     string
	MTU         int
	NonBlocking bool
}

// Handle is the established interface. It is an exclusive OS resource.
type Handle interface {
	Name() string
	Close() error
}

// Establisher creates the platform interface described by a Spec.
type Establisher interface {
	Establish(spec Spec) (Handle, error)
}

// Session is a snapshot of the tunnel session.
type Session struct {
	State     State
	Config    Config
	Interface string
}

// ErrStartAborted is reported to a start that was waiting for consent when
// Stop was called.
var ErrStartAborted = errors.New("start aborted by stop")

// ErrorKind classifies start failures.
type ErrorKind int

const (
	// KindPermissionDenied: the user refused consent.
	KindPermissionDenied ErrorKind = iota + 1
	// KindPermissionRequired: consent is missing and could not be requested,
	// or a request is already outstanding.
	KindPermissionRequired
	// KindEstablishFailed: the interface could not be created.
	KindEstablishFailed
	// KindAborted: the start was abandoned by Stop.
	KindAborted
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission denied"
	case KindPermissionRequired:
		return "permission required"
	case KindEstablishFailed:
		return "establish failed"
	case KindAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// StartError is the error delivered to a Start completion.
type StartError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *StartError) Error() string {
	msg := e.Kind.String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a start error, or 0 for anything else.
func KindOf(err error) ErrorKind {
	var se *StartError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
