package notify

import (
	"context"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
)

// OSIcon is attached to every OS-level notification.
const OSIcon = "/assets/logo-header.png"

const defaultTitle = "Уведомление"

// Toaster shows a transient in-app message to a user.
type Toaster interface {
	Toast(ctx context.Context, userID string, t domain.Toast) error
}

// SoundPlayer asks the user's UI to play a sound.
type SoundPlayer interface {
	Play(ctx context.Context, userID string, s domain.Sound) error
}

// OSNotifier dispatches OS-level notifications.
type OSNotifier interface {
	// Permitted reports whether the user granted OS notifications.
	Permitted(ctx context.Context, userID string) bool
	Notify(ctx context.Context, userID string, n domain.OSNotification) error
}

// Presence reports whether the user's UI is currently out of sight.
type Presence interface {
	Hidden(userID string) bool
}

// Effects bundles the delivery ports. Nil ports are skipped.
type Effects struct {
	Toaster  Toaster
	Sound    SoundPlayer
	OS       OSNotifier
	Presence Presence
}

func toastFor(n domain.Notification) domain.Toast {
	title := n.Title
	if title == "" {
		title = defaultTitle
	}
	return domain.Toast{Text: title + ": " + n.Message}
}

func osNotificationFor(n domain.Notification) domain.OSNotification {
	title := n.Title
	if title == "" {
		title = defaultTitle
	}
	tag := "notif-" + n.ID
	if domain.IsCallbackTitle(n.Title) {
		tag = domain.CallbackTag
	}
	return domain.OSNotification{Title: title, Body: n.Message, Icon: OSIcon, Tag: tag}
}
