package notify

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
	"github.com/arhteh596/granovskicrm-sub002/internal/infrastructure/kv"
)

func TestCallbackKey(t *testing.T) {
	at := time.Date(2026, 3, 2, 14, 30, 0, 0, time.FixedZone("MSK", 3*3600))
	if got, want := CallbackKey(5, 17, at), "notif_callback_5_17_2026-03-02T11:30:00.000Z"; got != want {
		t.Fatalf("CallbackKey = %q, want %q", got, want)
	}
	if got := TransferKey(17); got != "notif_transfer_17" {
		t.Fatalf("TransferKey = %q", got)
	}
}

func TestLedger_CheckAndMark(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	l := NewLedger(mem, &fakeClock{now: epoch}, 0)

	if !l.CheckAndMark(ctx, "notif_transfer_1") {
		t.Fatal("first mark reported seen")
	}
	if l.CheckAndMark(ctx, "notif_transfer_1") {
		t.Fatal("second mark reported unseen")
	}
	if l.CheckAndMark(ctx, "transfer_1") {
		t.Fatal("unprefixed key not normalized")
	}
	if _, ok, _ := mem.Get(ctx, "notif_transfer_1"); !ok {
		t.Fatal("key not persisted")
	}
}

func TestLedger_Prune(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	clock := &fakeClock{now: epoch}
	l := NewLedger(mem, clock, 30*24*time.Hour)

	l.CheckAndMark(ctx, "notif_old")
	l.CheckAndMark(ctx, "notif_refreshed")
	_ = mem.Set(ctx, "notif_legacy", "1")
	_ = mem.Set(ctx, "crm_notifications_v1", "[]")

	clock.Advance(20 * 24 * time.Hour)
	l.CheckAndMark(ctx, "notif_refreshed")
	clock.Advance(15 * 24 * time.Hour)

	has := func(key string) bool {
		_, ok, _ := mem.Get(ctx, key)
		return ok
	}

	removed, err := l.Prune(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if has("notif_old") {
		t.Error("expired key survived")
	}
	if !has("notif_refreshed") {
		t.Error("refreshed key pruned")
	}
	if !has("notif_legacy") {
		t.Error("legacy marker pruned")
	}
	raw, _, _ := mem.Get(ctx, "notif_legacy")
	if stamp, err := strconv.ParseInt(raw, 10, 64); err != nil || stamp < 1e12 {
		t.Errorf("legacy marker not re-stamped: %q", raw)
	}
	if _, ok, _ := mem.Get(ctx, "crm_notifications_v1"); !ok {
		t.Error("prune touched a non-ledger key")
	}
}

type countingKV struct {
	domain.KV
	sets int
}

func (c *countingKV) Set(ctx context.Context, key, value string) error {
	c.sets++
	return c.KV.Set(ctx, key, value)
}

func TestLedger_RefreshIsThrottled(t *testing.T) {
	ctx := context.Background()
	store := &countingKV{KV: kv.NewMemory()}
	clock := &fakeClock{now: epoch}
	l := NewLedger(store, clock, 0)

	l.CheckAndMark(ctx, "notif_transfer_3")
	for range 10 {
		clock.Advance(time.Minute)
		l.CheckAndMark(ctx, "notif_transfer_3")
	}
	if store.sets != 1 {
		t.Fatalf("writes within a day = %d, want 1", store.sets)
	}

	clock.Advance(25 * time.Hour)
	if l.CheckAndMark(ctx, "notif_transfer_3") {
		t.Fatal("stale key reported unseen")
	}
	if store.sets != 2 {
		t.Fatalf("writes after a day = %d, want 2", store.sets)
	}

	_ = store.KV.Set(ctx, "notif_legacy", "1")
	l.CheckAndMark(ctx, "notif_legacy")
	raw, _, _ := store.Get(ctx, "notif_legacy")
	if raw == "1" {
		t.Fatal("legacy marker not re-stamped on observation")
	}
}
