package ui

import (
	"time"

	"github.com/user/dnstun/internal/escalation"
	"github.com/user/dnstun/internal/notify"
)

const toastTimeout = 4 * time.Second

func toNotification(a escalation.Alert) notify.Notification {
	n := notify.Notification{
		AppName:       appName,
		Icon:          appIcon,
		Summary:       a.Title,
		Body:          a.Body,
		Urgency:       urgency(a.Priority),
		Resident:      a.Ongoing,
		SuppressSound: a.Sound == escalation.SoundSilent,
		Timeout:       a.Timeout,
	}
	if a.FullScreen {
		n.Category = "network"
	}
	if a.Primary != nil {
		n.Actions = append(n.Actions,
			notify.Action{Key: notify.DefaultActionKey, Label: a.Primary.Label},
			notify.Action{Key: keyStart, Label: a.Primary.Label},
		)
	}
	if a.Dismiss != nil {
		n.Actions = append(n.Actions, notify.Action{Key: keyClose, Label: a.Dismiss.Label})
	}
	return n
}

func urgency(p escalation.Priority) notify.Urgency {
	switch p {
	case escalation.PriorityMax:
		return notify.UrgencyCritical
	case escalation.PriorityHigh:
		return notify.UrgencyNormal
	default:
		return notify.UrgencyLow
	}
}
