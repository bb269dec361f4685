package announce

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
)

type fakeSource struct {
	items []domain.Announcement
	err   error
	calls int
}

func (f *fakeSource) ActiveAnnouncements(context.Context, string, string) ([]domain.Announcement, error) {
	f.calls++
	return f.items, f.err
}

func TestMarquee_JoinsActiveMarquees(t *testing.T) {
	items := []domain.Announcement{
		{ID: 1, Title: "План", Message: "100 звонков", Type: domain.AnnouncementMarquee, IsActive: true},
		{ID: 2, Title: "Скрыто", Message: "x", Type: domain.AnnouncementMarquee, IsActive: false},
		{ID: 3, Title: "Попап", Message: "y", Type: domain.AnnouncementPopup, IsActive: true},
		{ID: 4, Title: "Собрание", Message: "в 18:00", Type: domain.AnnouncementMarquee, IsActive: true},
	}
	if got, want := Marquee(items), "План: 100 звонков • Собрание: в 18:00"; got != want {
		t.Fatalf("Marquee = %q, want %q", got, want)
	}
}

func TestBoard_PopupRespectsRepeatCount(t *testing.T) {
	src := &fakeSource{items: []domain.Announcement{
		{ID: 7, Title: "Важно", Type: domain.AnnouncementPopup, IsActive: true, RepeatCount: 2},
		{ID: 8, Title: "Потом", Type: domain.AnnouncementPopup, IsActive: true},
	}}
	b := NewBoard(src, time.Minute)
	ctx := context.Background()

	for i, wantID := range []int64{7, 7, 8} {
		v, err := b.View(ctx, "1", "manager")
		if err != nil {
			t.Fatal(err)
		}
		if v.Popup == nil || v.Popup.ID != wantID {
			t.Fatalf("step %d: popup = %+v, want id %d", i, v.Popup, wantID)
		}
		if v.Popup.DisplayDurationMS != domain.DefaultPopupDuration {
			t.Fatalf("duration = %d", v.Popup.DisplayDurationMS)
		}
		b.Dismiss("1", wantID)
	}

	v, _ := b.View(ctx, "1", "manager")
	if v.Popup != nil {
		t.Fatalf("expected no popup after all dismissed, got %+v", v.Popup)
	}

	// Another user still sees the first popup.
	v, _ = b.View(ctx, "2", "manager")
	if v.Popup == nil || v.Popup.ID != 7 {
		t.Fatalf("other user popup = %+v", v.Popup)
	}
}

func TestBoard_CachesWithinTTL(t *testing.T) {
	src := &fakeSource{}
	b := NewBoard(src, time.Minute)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	_, _ = b.View(context.Background(), "1", "manager")
	_, _ = b.View(context.Background(), "1", "manager")
	if src.calls != 1 {
		t.Fatalf("calls = %d, want 1", src.calls)
	}

	now = now.Add(2 * time.Minute)
	_, _ = b.View(context.Background(), "1", "manager")
	if src.calls != 2 {
		t.Fatalf("calls after ttl = %d, want 2", src.calls)
	}
}

func TestBoard_FallsBackToCacheOnError(t *testing.T) {
	src := &fakeSource{items: []domain.Announcement{
		{ID: 1, Title: "A", Message: "B", Type: domain.AnnouncementMarquee, IsActive: true},
	}}
	b := NewBoard(src, 0)

	if _, err := b.View(context.Background(), "1", "manager"); err != nil {
		t.Fatal(err)
	}
	src.err = errors.New("db down")
	v, err := b.View(context.Background(), "1", "manager")
	if err != nil {
		t.Fatalf("expected cached fallback, got %v", err)
	}
	if v.Marquee != "A: B" {
		t.Fatalf("marquee = %q", v.Marquee)
	}

	if _, err := b.View(context.Background(), "2", "manager"); err == nil {
		t.Fatal("expected error for user without cache")
	}
}

func TestBoard_RoleChangeBypassesCache(t *testing.T) {
	src := &fakeSource{}
	b := NewBoard(src, time.Hour)

	_, _ = b.View(context.Background(), "1", "manager")
	_, _ = b.View(context.Background(), "1", "admin")
	if src.calls != 2 {
		t.Fatalf("calls = %d, want 2", src.calls)
	}
	_, _ = b.View(context.Background(), "1", "admin")
	if src.calls != 2 {
		t.Fatalf("calls = %d, want cached", src.calls)
	}
}
