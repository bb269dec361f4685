package application

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
	"github.com/arhteh596/granovskicrm-sub002/internal/infrastructure/kv"
	"github.com/arhteh596/granovskicrm-sub002/internal/notify"
)

func newTestService(base domain.KV, now *time.Time) *Service {
	return NewService(base, notify.Effects{}, Options{
		Clock:          notify.ClockFunc(func() time.Time { return *now }),
		InlineDelivery: true,
	})
}

func TestDeliver_KeyedEventsOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc := newTestService(kv.NewMemory(), &now)

	ev := domain.Event{UserID: "7", Key: "notif_transfer_1", Title: "Переданный клиент", Message: "Петров"}
	if !svc.Deliver(ctx, ev) {
		t.Fatal("first delivery skipped")
	}
	if svc.Deliver(ctx, ev) {
		t.Fatal("duplicate delivered")
	}
	if !svc.Deliver(ctx, domain.Event{UserID: "7", Title: "Без ключа"}) ||
		!svc.Deliver(ctx, domain.Event{UserID: "7", Title: "Без ключа"}) {
		t.Fatal("unkeyed events must always be delivered")
	}
	if svc.Deliver(ctx, domain.Event{Title: "Никому"}) {
		t.Fatal("event without user delivered")
	}
	if got := svc.CountUnread(ctx, "7"); got != 3 {
		t.Fatalf("unread = %d, want 3", got)
	}
}

func TestStores_AreIsolatedAndDurable(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	base := kv.NewMemory()
	svc := newTestService(base, &now)

	svc.Deliver(ctx, domain.Event{UserID: "1", Key: "notif_transfer_5", Title: "a"})
	svc.Deliver(ctx, domain.Event{UserID: "2", Key: "notif_transfer_5", Title: "a"})
	svc.MarkAllRead(ctx, "1")

	if svc.CountUnread(ctx, "1") != 0 || svc.CountUnread(ctx, "2") != 1 {
		t.Fatal("stores are not isolated")
	}

	users, err := svc.Users(ctx)
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(users)
	if !slices.Equal(users, []string{"1", "2"}) {
		t.Fatalf("users = %v", users)
	}

	// A restarted service sees the same collections and ledger.
	restarted := newTestService(base, &now)
	if got := restarted.List(ctx, "2"); len(got.Notifications) != 1 || got.UnreadCount != 1 {
		t.Fatalf("reloaded state = %+v", got)
	}
	if restarted.Deliver(ctx, domain.Event{UserID: "2", Key: "notif_transfer_5", Title: "a"}) {
		t.Fatal("ledger lost across restart")
	}
}

func TestPruneLedgers(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc := newTestService(kv.NewMemory(), &now)

	svc.Deliver(ctx, domain.Event{UserID: "1", Key: "notif_callback_0_1_2026-03-02T09:00:00.000Z", Title: "Время перезвона"})
	now = now.Add(31 * 24 * time.Hour)
	svc.PruneLedgers(ctx)

	if !svc.Deliver(ctx, domain.Event{UserID: "1", Key: "notif_callback_0_1_2026-03-02T09:00:00.000Z", Title: "Время перезвона"}) {
		t.Fatal("expired key still blocks delivery")
	}
}

func TestDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc := newTestService(kv.NewMemory(), &now)

	svc.Deliver(ctx, domain.Event{UserID: "1", Title: "a"})
	svc.Deliver(ctx, domain.Event{UserID: "1", Title: "b"})
	st := svc.List(ctx, "1")
	svc.MarkRead(ctx, "1", st.Notifications[0].ID)
	svc.Delete(ctx, "1", st.Notifications[1].ID)

	if got := svc.List(ctx, "1"); len(got.Notifications) != 1 || got.UnreadCount != 0 {
		t.Fatalf("after delete = %+v", got)
	}
	svc.Clear(ctx, "1")
	if got := svc.List(ctx, "1"); len(got.Notifications) != 0 {
		t.Fatalf("after clear = %+v", got)
	}
}

// blockingKV stalls reads under one user's namespace until released.
type blockingKV struct {
	domain.KV
	prefix  string
	entered chan struct{}
	release chan struct{}
}

func (b *blockingKV) Get(ctx context.Context, key string) (string, bool, error) {
	if strings.HasPrefix(key, b.prefix) {
		select {
		case b.entered <- struct{}{}:
		default:
		}
		<-b.release
	}
	return b.KV.Get(ctx, key)
}

func TestStore_SlowLoadDoesNotBlockOtherUsers(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	base := &blockingKV{
		KV:      kv.NewMemory(),
		prefix:  kv.UserNamespace("slow"),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	svc := newTestService(base, &now)

	slowDone := make(chan *notify.Store)
	go func() { slowDone <- svc.Store(ctx, "slow") }()
	<-base.entered

	fast := make(chan struct{})
	go func() {
		svc.Deliver(ctx, domain.Event{UserID: "fast", Title: "t"})
		close(fast)
	}()
	select {
	case <-fast:
	case <-time.After(2 * time.Second):
		t.Fatal("another user's first load blocked this one")
	}

	close(base.release)
	first := <-slowDone
	if svc.Store(ctx, "slow") != first {
		t.Fatal("store not cached after load")
	}
}

func TestStore_ConcurrentFirstUseSharesOneStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc := newTestService(kv.NewMemory(), &now)

	var wg sync.WaitGroup
	got := make([]*notify.Store, 8)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = svc.Store(ctx, "1")
		}()
	}
	wg.Wait()
	for _, st := range got[1:] {
		if st != got[0] {
			t.Fatal("concurrent first use produced distinct stores")
		}
	}
}
