// Package ui provides the system tray UI for the DNS tunnel.
package ui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fyne.io/systray"

	"github.com/user/dnstun/internal/core"
	"github.com/user/dnstun/internal/escalation"
	"github.com/user/dnstun/internal/logger"
)

// startTimeout bounds a tray-initiated start, including the consent prompt.
const startTimeout = 2 * time.Minute

var errTrayNotReady = errors.New("tray not ready")

var (
	service      *core.Service
	currentState = "idle"
	onStarted    func()

	// Systray menu items
	mStatus        *systray.MenuItem
	mStart         *systray.MenuItem
	mStop          *systray.MenuItem
	mPromptStart   *systray.MenuItem
	mPromptDismiss *systray.MenuItem
	mAutostart     *systray.MenuItem
	mConfig        *systray.MenuItem
	mLogs          *systray.MenuItem
	mClearLogs     *systray.MenuItem
	mQuit          *systray.MenuItem

	tray = &trayOverlay{}
)

// TrayOverlay returns the overlay rendered in the tray menu.
func TrayOverlay() Overlay {
	return tray
}

// Run shows the tray and blocks until Quit. ready, if non-nil, runs once the
// tray can display prompts.
func Run(svc *core.Service, ready func()) {
	service = svc
	onStarted = ready

	service.SetStatusListener(func(status *core.StatusPayload) {
		updateUI(status)
	})

	systray.Run(onReady, onExit)
}

// onReady is called when systray is ready
func onReady() {
	systray.SetIcon(GetIcon("idle"))
	systray.SetTitle("dnstun")
	systray.SetTooltip("DNS tunnel: stopped")

	mStatus = systray.AddMenuItem("Status: stopped", "")
	mStatus.Disable()

	systray.AddSeparator()

	mPromptStart = systray.AddMenuItem("Start DNS tunnel now", "")
	mPromptDismiss = systray.AddMenuItem("Dismiss", "")
	mPromptStart.Hide()
	mPromptDismiss.Hide()

	mStart = systray.AddMenuItem("Start DNS tunnel", "")
	mStop = systray.AddMenuItem("Stop DNS tunnel", "")
	mStop.Disable()

	systray.AddSeparator()

	mAutostart = systray.AddMenuItemCheckbox("Offer to start on login", "", service.GetConfig().Autostart)
	mConfig = systray.AddMenuItem("Edit configuration", "")
	mLogs = systray.AddMenuItem("Open log", "")
	mClearLogs = systray.AddMenuItem("Clear log", "")

	systray.AddSeparator()

	mQuit = systray.AddMenuItem("Quit", "")

	updateUI(service.GetStatusPayload())
	tray.setReady()

	go func() {
		defer logger.Recover("systray-menu-loop")
		for {
			select {
			case <-mStart.ClickedCh:
				go doStart()
			case <-mStop.ClickedCh:
				go doStop()
			case <-mPromptStart.ClickedCh:
				tray.choose(escalation.ActionStart)
			case <-mPromptDismiss.ClickedCh:
				tray.choose(escalation.ActionDismiss)
			case <-mAutostart.ClickedCh:
				go toggleAutostart()
			case <-mConfig.ClickedCh:
				go openConfig()
			case <-mLogs.ClickedCh:
				go openLogFile()
			case <-mClearLogs.ClickedCh:
				go clearLogFile()
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()

	if onStarted != nil {
		logger.SafeGo("tray-ready", onStarted)
	}
}

// onExit is called when systray exits
func onExit() {
	logger.Info("dnstun shutting down")
	if service != nil {
		service.Stop()
	}
	logger.Close()
}

func doStart() {
	defer logger.Recover("doStart")
	logger.Connection("User started the DNS tunnel")

	mStart.Disable()
	if err := service.ReloadConfig(); err != nil {
		logger.Warning("Keeping previous configuration: %v", err)
	}
	cfg := service.GetConfig()

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := service.StartTunnel(ctx, cfg.DNS.PrimaryOrDefault(), cfg.DNS.SecondaryOrDefault()); err != nil {
		logger.Error("Failed to start: %v", err)
		updateUI(service.GetStatusPayload())
	}
}

func setAutostartCheck(on bool) {
	if mAutostart == nil {
		return
	}
	if on {
		mAutostart.Check()
	} else {
		mAutostart.Uncheck()
	}
}

func doStop() {
	defer logger.Recover("doStop")
	logger.Connection("User stopped the DNS tunnel")

	mStop.Disable()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := service.StopTunnel(ctx); err != nil {
		logger.Error("Failed to stop: %v", err)
	}
}

func updateUI(status *core.StatusPayload) {
	defer logger.Recover("updateUI")

	if status == nil || mStatus == nil {
		return
	}
	currentState = status.State

	switch status.State {
	case "active":
		mStatus.SetTitle(fmt.Sprintf("Status: active on %s", status.Interface))
		systray.SetTooltip(fmt.Sprintf("DNS tunnel: active\nResolvers: %s, %s",
			status.PrimaryDNS, status.SecondaryDNS))
		mStart.Enable()
		mStop.Enable()

	case "permission_pending":
		mStatus.SetTitle("Status: waiting for permission")
		systray.SetTooltip("DNS tunnel: waiting for permission")
		mStart.Disable()
		mStop.Enable()

	case "establishing", "stopping":
		mStatus.SetTitle(fmt.Sprintf("Status: %s...", status.State))
		systray.SetTooltip("DNS tunnel: " + status.State)
		mStart.Disable()
		mStop.Disable()

	default:
		title, tip := "Status: stopped", "DNS tunnel: stopped"
		if status.Error != "" {
			title = "Status: " + status.Error
			tip = "DNS tunnel: " + status.Error
		}
		mStatus.SetTitle(title)
		systray.SetTooltip(tip)
		mStart.Enable()
		mStop.Disable()
	}

	if !tray.visible() {
		systray.SetIcon(stateIcon(status))
	}
}

func stateIcon(status *core.StatusPayload) []byte {
	if status.State == "idle" && status.Error != "" {
		return GetIcon("error")
	}
	return GetIcon(status.State)
}

// trayOverlay renders the overlay prompt as extra tray menu entries.
type trayOverlay struct {
	mu       sync.Mutex
	ready    bool
	shown    bool
	onAction func(escalation.Action)
}

func (o *trayOverlay) setReady() {
	o.mu.Lock()
	o.ready = true
	o.mu.Unlock()
}

func (o *trayOverlay) visible() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.shown
}

func (o *trayOverlay) ShowOverlay(a escalation.Alert, onAction func(escalation.Action)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.ready {
		return errTrayNotReady
	}

	if a.Primary != nil {
		mPromptStart.SetTitle(a.Primary.Label + " now")
	}
	if a.Dismiss != nil {
		mPromptDismiss.SetTitle(a.Dismiss.Label)
	}
	mPromptStart.Show()
	mPromptDismiss.Show()
	systray.SetIcon(GetIcon("attention"))
	systray.SetTooltip(a.Title + "\n" + a.Body)

	o.shown = true
	o.onAction = onAction
	return nil
}

func (o *trayOverlay) DismissOverlay() {
	o.mu.Lock()
	wasShown := o.shown
	o.hideLocked()
	o.mu.Unlock()

	if wasShown {
		o.ClearAttention()
	}
}

func (o *trayOverlay) Attention(attempt uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.ready {
		return errTrayNotReady
	}
	systray.SetIcon(GetIcon("attention"))
	systray.SetTooltip("DNS tunnel ready to start")
	logger.Debug("Tray raised for escalation %d", attempt)
	return nil
}

// choose handles a click on one of the prompt entries.
func (o *trayOverlay) choose(action escalation.Action) {
	o.mu.Lock()
	fn := o.onAction
	o.hideLocked()
	o.mu.Unlock()

	if fn != nil {
		logger.SafeGo("overlay-action", func() { fn(action) })
	}
	o.ClearAttention()
}

// ClearAttention restores the icon for the current tunnel state.
func (o *trayOverlay) ClearAttention() {
	if o.visible() || service == nil {
		return
	}
	updateUI(service.GetStatusPayload())
}

func (o *trayOverlay) hideLocked() {
	o.shown = false
	o.onAction = nil
	if o.ready {
		mPromptStart.Hide()
		mPromptDismiss.Hide()
	}
}

// Quit closes the tray, which stops the service.
func Quit() {
	systray.Quit()
}
