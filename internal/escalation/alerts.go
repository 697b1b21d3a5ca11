package escalation

func startAction(attempt uint64) *ActionRef {
	return &ActionRef{Label: "Start DNS tunnel", Action: ActionStart, Attempt: attempt}
}

func dismissAction(attempt uint64) *ActionRef {
	return &ActionRef{Label: "Dismiss", Action: ActionDismiss, Attempt: attempt}
}

func foregroundAlert() Alert {
	return Alert{
		Priority: PriorityMax,
		Title:    "DNS tunnel starting",
		Body:     "Preparing auto-start...",
		Ongoing:  true,
	}
}

func persistentAlert(attempt uint64) Alert {
	return Alert{
		Priority: PriorityMax,
		Title:    "DNS tunnel ready to start",
		Body: "Your DNS tunnel is ready. Choose Start to route DNS lookups " +
			"through your saved resolvers.",
		Primary:    startAction(attempt),
		Dismiss:    dismissAction(attempt),
		Ongoing:    true,
		FullScreen: true,
		Sound:      SoundAll,
	}
}

func compactAlert(attempt uint64, t Timings) Alert {
	return Alert{
		Priority: PriorityMax,
		Title:    "DNS tunnel ready, tap to start",
		Body:     "Auto-start available",
		Primary:  startAction(attempt),
		Timeout:  t.CompactExpiry,
		Sound:    SoundAll,
	}
}

func reminderAlert(attempt uint64, t Timings) Alert {
	return Alert{
		Priority: PriorityHigh,
		Title:    "DNS tunnel auto-start",
		Body:     "Ready to connect, start it from here",
		Primary:  startAction(attempt),
		Timeout:  t.ReminderExpiry,
		Sound:    SoundChime,
	}
}

func overlayPrompt(attempt uint64, t Timings) Alert {
	return Alert{
		Priority: PriorityMax,
		Title:    "DNS tunnel auto-start ready",
		Body: "Your DNS tunnel is ready to start automatically.\n" +
			"Choose Start to activate it now.",
		Primary:    startAction(attempt),
		Dismiss:    dismissAction(attempt),
		Timeout:    t.OverlayDismiss,
		FullScreen: true,
	}
}

var guidanceToasts = []string{
	"DNS tunnel auto-start ready",
	"Open the dnstun tray menu and choose Start DNS tunnel",
	"The tunnel uses your saved resolvers once started",
	"Check the notification area or open dnstun",
}

const summaryToast = "dnstun is ready to start, open it when convenient"
