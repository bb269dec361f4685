package domain

import (
	"strings"
	"time"
)

// MaxNotifications caps the per-user collection; older records are dropped on insert.
const MaxNotifications = 200

// Notification is a single in-app notification record.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
}

// State is what observers of a store see after every mutation.
type State struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}

// Sound is the audio cue chosen for a notification.
type Sound struct {
	Src    string  `json:"src"`
	Volume float64 `json:"volume"`
}

// Toast is the transient in-app message shown when a notification arrives.
type Toast struct {
	Text string `json:"text"`
}

// OSNotification is the OS-level notification dispatched while the UI is hidden.
type OSNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	Tag   string `json:"tag"`
}

// CallbackTag is shared by all callback-class OS notifications so a newer one
// replaces an unacknowledged older one.
const CallbackTag = "callback-notification"

// IsCallbackTitle reports whether a title belongs to the callback class.
func IsCallbackTitle(title string) bool {
	t := strings.ToLower(title)
	return strings.Contains(t, "перезвон") || strings.Contains(t, "callback")
}

// Event is a detected fact that should reach one user at most once.
// Producers: pollers and the Kafka consumer.
type Event struct {
	UserID  string
	Key     string // idempotency key; empty means "always deliver"
	Title   string
	Message string
}
