package postgres

import (
	"testing"
	"time"
)

func TestWallTimeIn(t *testing.T) {
	msk, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	scanned := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

	got := wallTimeIn(&scanned, msk)
	want := time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("wallTimeIn = %v, want %v", got.UTC(), want)
	}
	if got.Hour() != 14 || got.Location() != msk {
		t.Fatalf("wall clock changed: %v", got)
	}

	if same := wallTimeIn(&scanned, time.UTC); !same.Equal(scanned) {
		t.Fatalf("UTC reinterpretation moved the instant: %v", same)
	}
	if wallTimeIn(nil, msk) != nil {
		t.Fatal("nil input must stay nil")
	}
}
