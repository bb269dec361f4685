// Package announce computes what each user sees of the admin announcements:
// the running marquee line and at most one popup at a time.
package announce

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
)

const marqueeSeparator = " • "

// View is the announcement state rendered by the UI.
type View struct {
	Marquee string               `json:"marquee"`
	Popup   *domain.Announcement `json:"popup"`
}

type cached struct {
	role      string
	items     []domain.Announcement
	fetchedAt time.Time
}

// Board caches active announcements per user and counts popup dismissals.
// Dismiss counts are kept in memory for the life of the process.
type Board struct {
	source domain.AnnouncementSource
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	cache     map[string]cached
	dismissed map[string]map[int64]int
}

// NewBoard creates a Board that refetches a user's announcements after ttl.
func NewBoard(source domain.AnnouncementSource, ttl time.Duration) *Board {
	return &Board{
		source:    source,
		ttl:       ttl,
		now:       time.Now,
		cache:     make(map[string]cached),
		dismissed: make(map[string]map[int64]int),
	}
}

// View returns the marquee line and the popup the user should see now.
// On a fetch error the last cached list is used when there is one.
func (b *Board) View(ctx context.Context, userID, role string) (View, error) {
	items, err := b.items(ctx, userID, role)
	if err != nil {
		return View{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return View{
		Marquee: Marquee(items),
		Popup:   nextPopup(items, b.dismissed[userID]),
	}, nil
}

// Dismiss records that the user closed (or timed out) popup id.
func (b *Board) Dismiss(userID string, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	counts := b.dismissed[userID]
	if counts == nil {
		counts = make(map[int64]int)
		b.dismissed[userID] = counts
	}
	counts[id]++
}

func (b *Board) items(ctx context.Context, userID, role string) ([]domain.Announcement, error) {
	b.mu.Lock()
	c, ok := b.cache[userID]
	b.mu.Unlock()
	// Targeting depends on the role, so a role change invalidates the entry.
	ok = ok && c.role == role
	if ok && b.now().Sub(c.fetchedAt) < b.ttl {
		return c.items, nil
	}

	items, err := b.source.ActiveAnnouncements(ctx, userID, role)
	if err != nil {
		if ok {
			return c.items, nil
		}
		return nil, err
	}

	b.mu.Lock()
	b.cache[userID] = cached{role: role, items: items, fetchedAt: b.now()}
	b.mu.Unlock()
	return items, nil
}

// Marquee joins active marquee announcements as "title: message".
func Marquee(items []domain.Announcement) string {
	var parts []string
	for _, a := range items {
		if a.Type == domain.AnnouncementMarquee && a.IsActive {
			parts = append(parts, a.Title+": "+a.Message)
		}
	}
	return strings.Join(parts, marqueeSeparator)
}

func nextPopup(items []domain.Announcement, dismissed map[int64]int) *domain.Announcement {
	for _, a := range items {
		if a.Type != domain.AnnouncementPopup || !a.IsActive {
			continue
		}
		repeat := a.RepeatCount
		if repeat <= 0 {
			repeat = 1
		}
		if dismissed[a.ID] >= repeat {
			continue
		}
		popup := a
		if popup.DisplayDurationMS <= 0 {
			popup.DisplayDurationMS = domain.DefaultPopupDuration
		}
		return &popup
	}
	return nil
}
