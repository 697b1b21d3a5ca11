package core

import (
	"errors"
	"sync"

	"github.com/user/dnstun/internal/config"
	"github.com/user/dnstun/internal/logger"
	"github.com/user/dnstun/internal/notify"
	"github.com/user/dnstun/internal/permission"
)

var (
	errNotPrivileged = errors.New("creating the tunnel interface requires root")
	errNoPrompter    = errors.New("no consent prompt available")
)

// Prompter asks the user whether the tunnel may be created. answer is
// called at most once, and never after Withdraw for the same token.
type Prompter interface {
	Ask(token permission.Token, answer func(granted bool)) error
	Withdraw(token permission.Token)
}

// consentPlatform grants when the process is privileged and the user agreed
// once before.
type consentPlatform struct {
	configManager *config.Manager
	isAdmin       func() bool
	prompter      Prompter
	answer        func(token permission.Token, granted bool)
}

func (c *consentPlatform) Granted() bool {
	return c.isAdmin() && c.configManager.Get().Consent.Granted
}

func (c *consentPlatform) Request(token permission.Token) error {
	if !c.isAdmin() {
		return errNotPrivileged
	}
	if c.prompter == nil {
		return errNoPrompter
	}
	logger.Info("Asking for tunnel consent (request %d)", token)
	return c.prompter.Ask(token, func(granted bool) {
		c.answer(token, granted)
	})
}

func (c *consentPlatform) Withdraw(token permission.Token) {
	if c.prompter == nil {
		return
	}
	logger.Info("Withdrawing consent request %d", token)
	c.prompter.Withdraw(token)
}

// Sender posts desktop notifications.
type Sender interface {
	Send(n notify.Notification, onAction notify.ActionHandler) (uint32, error)
	CloseNotification(id uint32) error
}

// Consent notification action keys.
const (
	actionAllow = "allow"
	actionDeny  = "deny"
)

// NotifyPrompter asks for consent with an Allow/Deny desktop notification.
// Anything but Allow, including the notification closing, is a denial.
type NotifyPrompter struct {
	Sender Sender

	mu      sync.Mutex
	prompts map[permission.Token]*prompt
}

type prompt struct {
	id       uint32
	answered bool
}

// NewNotifyPrompter creates a prompter posting through sender.
func NewNotifyPrompter(sender Sender) *NotifyPrompter {
	return &NotifyPrompter{Sender: sender}
}

// Ask posts the consent notification.
func (p *NotifyPrompter) Ask(token permission.Token, answer func(granted bool)) error {
	pr := &prompt{}
	p.mu.Lock()
	if p.prompts == nil {
		p.prompts = make(map[permission.Token]*prompt)
	}
	p.prompts[token] = pr
	p.mu.Unlock()

	id, err := p.Sender.Send(notify.Notification{
		AppName: "dnstun",
		Icon:    "network-vpn",
		Summary: "Allow DNS tunnel?",
		Body: "dnstun wants to create a network interface that sends DNS " +
			"lookups to your configured resolvers. Other traffic is not affected.",
		Actions: []notify.Action{
			{Key: actionAllow, Label: "Allow"},
			{Key: actionDeny, Label: "Deny"},
		},
		Urgency:  notify.UrgencyCritical,
		Category: "network",
	}, func(key string) {
		if key == notify.DefaultActionKey {
			return
		}
		if p.settle(token, pr) {
			answer(key == actionAllow)
		}
	})
	if err != nil {
		p.settle(token, pr)
		return err
	}
	p.mu.Lock()
	pr.id = id
	p.mu.Unlock()
	return nil
}

// Withdraw closes the notification for token. Its answer is dropped.
func (p *NotifyPrompter) Withdraw(token permission.Token) {
	p.mu.Lock()
	pr, ok := p.prompts[token]
	p.mu.Unlock()
	if !ok || !p.settle(token, pr) {
		return
	}

	p.mu.Lock()
	id := pr.id
	p.mu.Unlock()
	if id == 0 {
		return
	}
	if err := p.Sender.CloseNotification(id); err != nil {
		logger.Debug("Close consent notification %d: %v", id, err)
	}
}

// settle marks pr answered and reports whether this call did it.
func (p *NotifyPrompter) settle(token permission.Token, pr *prompt) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pr.answered {
		return false
	}
	pr.answered = true
	if p.prompts[token] == pr {
		delete(p.prompts, token)
	}
	return true
}
