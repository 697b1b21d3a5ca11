// Package permission wraps the one-time consent check required before a
// tunnel may be created.
package permission

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrRequestAlreadyPending is returned when a consent request is issued
	// while another one is still outstanding.
	ErrRequestAlreadyPending = errors.New("permission request already pending")

	// ErrDenied reports that the user refused consent.
	ErrDenied = errors.New("permission denied")

	// ErrUnknownToken is returned by Resolve for a token that is not the
	// outstanding request.
	ErrUnknownToken = errors.New("unknown permission request token")

	// ErrRequestFailed wraps a platform failure to issue the consent request.
	ErrRequestFailed = errors.New("permission request could not be issued")
)

// Token correlates a consent request with its asynchronous result.
type Token uint64

// Platform is the OS-mediated consent mechanism.
type Platform interface {
	// Granted reports whether consent was given previously.
	Granted() bool

	// Request asks the user for consent. The answer is delivered later
	// through Gate.Resolve with the same token.
	Request(token Token) error
}

// Withdrawer is implemented by platforms that can take back an unanswered
// request, for example by closing the prompt.
type Withdrawer interface {
	Withdraw(token Token)
}

// Outcome is the result of CheckOrRequest.
type Outcome struct {
	Granted bool  // consent already present, proceed synchronously
	Token   Token // set when a request was issued
}

// Gate tracks at most one outstanding consent request.
type Gate struct {
	mu       sync.Mutex
	platform Platform
	next     Token
	pending  Token
	caller   string
}

// NewGate creates a gate over platform.
func NewGate(platform Platform) *Gate {
	return &Gate{platform: platform}
}

// CheckOrRequest returns Outcome{Granted: true} when consent exists, otherwise
// issues a platform request and returns its token.
func (g *Gate) CheckOrRequest(caller string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.platform.Granted() {
		return Outcome{Granted: true}, nil
	}
	if g.pending != 0 {
		return Outcome{}, fmt.Errorf("%w (token %d for %s)", ErrRequestAlreadyPending, g.pending, g.caller)
	}

	g.next++
	token := g.next
	if err := g.platform.Request(token); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	g.pending = token
	g.caller = caller
	return Outcome{Token: token}, nil
}

// Resolve clears the outstanding request identified by token. The caller
// decides what a denial means; the gate never retries.
func (g *Gate) Resolve(token Token, granted bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if token == 0 || token != g.pending {
		return fmt.Errorf("%w: %d", ErrUnknownToken, token)
	}
	g.pending = 0
	g.caller = ""
	return nil
}

// Cancel forgets the outstanding request identified by token so the next
// CheckOrRequest issues a fresh one. A late answer for a canceled token gets
// ErrUnknownToken from Resolve.
func (g *Gate) Cancel(token Token) error {
	g.mu.Lock()
	if token == 0 || token != g.pending {
		g.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownToken, token)
	}
	g.pending = 0
	g.caller = ""
	g.mu.Unlock()

	if w, ok := g.platform.(Withdrawer); ok {
		w.Withdraw(token)
	}
	return nil
}

// Pending returns the outstanding token, if any.
func (g *Gate) Pending() (Token, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending, g.pending != 0
}
