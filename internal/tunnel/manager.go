package tunnel

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/user/dnstun/internal/logger"
	"github.com/user/dnstun/internal/permission"
)

// TransitionHook observes every state change.
type TransitionHook func(from, to State)

// Options tune a Manager.
type Options struct {
	SessionName  string
	MTU          int
	OnTransition TransitionHook
}

// pendingRequest correlates an outstanding consent request with the start
// waiting on it.
type pendingRequest struct {
	token  permission.Token
	config Config
	done   func(error)
}

// Manager owns at most one tunnel session.
//
// Start, Stop and HandlePermissionResult must be called from a single
// ordering point; State and Session are safe from any goroutine.
type Manager struct {
	gate        *permission.Gate
	establisher Establisher
	opts        Options

	mu      sync.RWMutex
	session Session

	handle  Handle
	pending *pendingRequest
}

// NewManager creates an idle manager.
func NewManager(gate *permission.Gate, establisher Establisher, opts Options) *Manager {
	if opts.SessionName == "" {
		opts.SessionName = DefaultSessionName
	}
	if opts.MTU == 0 {
		opts.MTU = DefaultMTU
	}
	return &Manager{
		gate:        gate,
		establisher: establisher,
		opts:        opts,
		session:     Session{State: StateIdle},
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.State
}

// Session returns a snapshot of the current session.
func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Start brings the tunnel up with cfg. done is called exactly once, with nil
// once the session is Active or with a *StartError. When consent has to be
// requested, done is called after HandlePermissionResult.
func (m *Manager) Start(cfg Config, done func(error)) {
	if done == nil {
		done = func(error) {}
	}
	cfg = cfg.WithDefaults()

	switch m.State() {
	case StatePermissionPending:
		logger.Warning("Start ignored: waiting for permission result")
		done(&StartError{Kind: KindPermissionRequired, Err: permission.ErrRequestAlreadyPending})
		return
	case StateActive:
		logger.Connection("Reconfiguring DNS tunnel: %s, %s", cfg.PrimaryDNS, cfg.SecondaryDNS)
		m.teardown()
	}

	m.transition(StatePermissionPending)
	out, err := m.gate.CheckOrRequest("tunnel.start")
	if err != nil {
		logger.Error("Permission check failed: %v", err)
		m.transition(StateIdle)
		done(&StartError{Kind: KindPermissionRequired, Err: err})
		return
	}
	if out.Granted {
		m.establish(cfg, done)
		return
	}

	logger.Info("Permission requested (token %d), deferring tunnel establishment", out.Token)
	m.pending = &pendingRequest{token: out.Token, config: cfg, done: done}
}

// HandlePermissionResult resolves an outstanding consent request.
func (m *Manager) HandlePermissionResult(token permission.Token, granted bool) {
	if err := m.gate.Resolve(token, granted); err != nil {
		logger.Warning("Ignoring permission result: %v", err)
		return
	}

	p := m.pending
	if p == nil || p.token != token {
		logger.Info("Permission result for abandoned request %d ignored", token)
		return
	}
	m.pending = nil

	if !granted {
		logger.Warning("Tunnel permission denied by user")
		m.transition(StateIdle)
		p.done(&StartError{Kind: KindPermissionDenied, Err: permission.ErrDenied})
		return
	}

	logger.Info("Tunnel permission granted")
	m.establish(p.config, p.done)
}

// Stop tears the tunnel down. It is idempotent and never fails: release
// errors are logged and the session still returns to Idle.
func (m *Manager) Stop() {
	switch m.State() {
	case StateIdle:
		return
	case StatePermissionPending:
		p := m.pending
		m.pending = nil
		if p != nil {
			if err := m.gate.Cancel(p.token); err != nil {
				logger.Debug("Cancel permission request %d: %v", p.token, err)
			}
		}
		m.transition(StateIdle)
		if p != nil {
			p.done(&StartError{Kind: KindAborted, Err: ErrStartAborted})
		}
	case StateActive:
		m.teardown()
	}
}

func (m *Manager) establish(cfg Config, done func(error)) {
	m.transition(StateEstablishing)

	spec, err := m.spec(cfg)
	if err != nil {
		m.fail(done, "invalid resolver address", err)
		return
	}

	logger.Info("Establishing DNS tunnel %s with resolvers %s, %s", spec.Address, spec.DNS[0], spec.DNS[1])
	handle, err := m.establisher.Establish(spec)
	if err != nil {
		m.fail(done, "platform rejected interface", err)
		return
	}
	if handle == nil {
		m.fail(done, "platform returned no interface", nil)
		return
	}

	m.handle = handle
	m.mu.Lock()
	m.session.Config = cfg
	m.session.Interface = handle.Name()
	m.mu.Unlock()
	m.transition(StateActive)

	logger.Connection("DNS tunnel active on %s, queries use %s and %s", handle.Name(), cfg.PrimaryDNS, cfg.SecondaryDNS)
	done(nil)
}

func (m *Manager) fail(done func(error), reason string, err error) {
	logger.Error("Tunnel establishment failed: %s: %v", reason, err)
	m.transition(StateIdle)
	done(&StartError{Kind: KindEstablishFailed, Reason: reason, Err: err})
}

func (m *Manager) spec(cfg Config) (Spec, error) {
	primary, err := netip.ParseAddr(cfg.PrimaryDNS)
	if err != nil {
		return Spec{}, fmt.Errorf("primary dns %q: %w", cfg.PrimaryDNS, err)
	}
	secondary, err := netip.ParseAddr(cfg.SecondaryDNS)
	if err != nil {
		return Spec{}, fmt.Errorf("secondary dns %q: %w", cfg.SecondaryDNS, err)
	}
	return Spec{
		Address:     InterfaceAddress,
		DNS:         [2]netip.Addr{primary, secondary},
		Session:     m.opts.SessionName,
		MTU:         m.opts.MTU,
		NonBlocking: true,
	}, nil
}

// teardown releases the handle of an Active session.
func (m *Manager) teardown() {
	m.transition(StateStopping)

	if m.handle != nil {
		name := m.handle.Name()
		if err := m.handle.Close(); err != nil {
			logger.Warning("Releasing tunnel interface %s failed: %v", name, err)
		}
		m.handle = nil
	}

	m.mu.Lock()
	m.session.Config = Config{}
	m.session.Interface = ""
	m.mu.Unlock()
	m.transition(StateIdle)
	logger.Connection("DNS tunnel stopped")
}

func (m *Manager) transition(to State) {
	m.mu.Lock()
	from := m.session.State
	if !CanTransition(from, to) {
		m.mu.Unlock()
		logger.Error("Rejected tunnel transition %s -> %s", from, to)
		return
	}
	m.session.State = to
	m.mu.Unlock()

	logger.Debug("Tunnel state %s -> %s", from, to)
	if m.opts.OnTransition != nil {
		m.opts.OnTransition(from, to)
	}
}
