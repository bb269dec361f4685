package domain

import "time"

// CRM call statuses watched by the pollers.
const (
	StatusCallback = "перезвон"
	StatusTransfer = "передать"
)

// Client is the slice of a CRM client row the pollers need.
type Client struct {
	ID            int64      `json:"id"`
	CEOName       string     `json:"ceo_name"`
	CompanyName   string     `json:"company_name"`
	CallStatus    string     `json:"call_status"`
	AssignedTo    *int64     `json:"assigned_to"`
	TransferredTo *int64     `json:"transferred_to"`
	CallbackAt    *time.Time `json:"callback_datetime"`
}

// DisplayName returns the CEO name, falling back to the company name.
func (c Client) DisplayName() string {
	if c.CEOName != "" {
		return c.CEOName
	}
	if c.CompanyName != "" {
		return c.CompanyName
	}
	return "Клиент"
}

// AnnouncementType selects how an announcement is rendered.
type AnnouncementType string

const (
	AnnouncementMarquee AnnouncementType = "marquee"
	AnnouncementPopup   AnnouncementType = "popup"
)

// DefaultPopupDuration applies when an announcement has no display duration.
const DefaultPopupDuration = 8000

// Announcement is an admin-authored broadcast shown as a marquee or popup.
type Announcement struct {
	ID                int64            `json:"id"`
	Title             string           `json:"title"`
	Message           string           `json:"message"`
	Type              AnnouncementType `json:"type"`
	TargetType        string           `json:"target_type"`
	TargetRole        *string          `json:"target_role,omitempty"`
	TargetUserID      *int64           `json:"target_user_id,omitempty"`
	RepeatCount       int              `json:"repeat_count"`
	DisplayDurationMS int              `json:"display_duration_ms"`
	StartAt           *time.Time       `json:"start_at,omitempty"`
	EndAt             *time.Time       `json:"end_at,omitempty"`
	IsActive          bool             `json:"is_active"`
}

// PushSubscription is a registered OS push target for a user.
type PushSubscription struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}
