package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
)

// CRM reads clients and announcements straight from the CRM database.
// It implements domain.ClientSource and domain.AnnouncementSource.
type CRM struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewCRM creates a CRM reader over pool. loc is the zone the CRM writes TIMESTAMP
// columns in; nil means UTC.
func NewCRM(pool *pgxpool.Pool, loc *time.Location) *CRM {
	if loc == nil {
		loc = time.UTC
	}
	return &CRM{pool: pool, loc: loc}
}

// wallTimeIn reinterprets a zone-less TIMESTAMP, which pgx scans as UTC, as wall time in loc.
func wallTimeIn(t *time.Time, loc *time.Location) *time.Time {
	if t == nil {
		return nil
	}
	w := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
	return &w
}

// ClientsByStatus returns every client with the given call status.
func (r *CRM) ClientsByStatus(ctx context.Context, status string) ([]domain.Client, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(ceo_name, ''), COALESCE(company_name, ''), call_status,
		       assigned_to, transferred_to, callback_datetime
		FROM clients
		WHERE call_status = $1
		ORDER BY updated_at DESC
	`, status)
	if err != nil {
		return nil, fmt.Errorf("clients by status %q: %w", status, err)
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.CEOName, &c.CompanyName, &c.CallStatus,
			&c.AssignedTo, &c.TransferredTo, &c.CallbackAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		c.CallbackAt = wallTimeIn(c.CallbackAt, r.loc)
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// ActiveAnnouncements returns active announcements within their window that target
// everyone, the user's role or the user directly.
func (r *CRM) ActiveAnnouncements(ctx context.Context, userID, role string) ([]domain.Announcement, error) {
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, title, message, type, target_type, target_role, target_user_id,
		       COALESCE(repeat_count, 1), COALESCE(display_duration_ms, 8000),
		       start_at, end_at, is_active
		FROM announcements
		WHERE is_active = true
		  AND (start_at IS NULL OR start_at <= $3)
		  AND (end_at IS NULL OR end_at >= $3)
		  AND (
		       target_type = 'all'
		    OR (target_type = 'role' AND target_role = $1)
		    OR (target_type = 'user' AND target_user_id = $2)
		  )
		ORDER BY created_at DESC
	`, role, uid, time.Now())
	if err != nil {
		return nil, fmt.Errorf("active announcements: %w", err)
	}
	defer rows.Close()

	var items []domain.Announcement
	for rows.Next() {
		var a domain.Announcement
		var typ string
		if err := rows.Scan(&a.ID, &a.Title, &a.Message, &typ, &a.TargetType, &a.TargetRole,
			&a.TargetUserID, &a.RepeatCount, &a.DisplayDurationMS, &a.StartAt, &a.EndAt, &a.IsActive); err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		a.Type = domain.AnnouncementType(typ)
		items = append(items, a)
	}
	return items, rows.Err()
}
