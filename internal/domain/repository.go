package domain

import (
	"context"
)

// KV is the durable key-value port backing stores and ledgers.
// Get reports absence with ok=false and a nil error.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Keys lists every key that starts with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// ClientSource lists CRM clients by call status.
// Implementations live in infrastructure/postgres and infrastructure/crmapi.
type ClientSource interface {
	ClientsByStatus(ctx context.Context, status string) ([]Client, error)
}

// AnnouncementSource lists announcements currently visible to a user.
type AnnouncementSource interface {
	ActiveAnnouncements(ctx context.Context, userID, role string) ([]Announcement, error)
}
