package http

import (
	"context"
	"strings"
	"testing"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
)

func TestHub_HiddenTracksAllTabs(t *testing.T) {
	h := NewHub()
	if !h.Hidden("1") {
		t.Fatal("user without tabs should count as hidden")
	}

	a := h.Register("1", "manager", make(chan []byte, 1))
	b := h.Register("1", "manager", make(chan []byte, 1))
	if h.Hidden("1") {
		t.Fatal("visible tabs reported hidden")
	}

	h.SetHidden("1", a.ID(), true)
	if h.Hidden("1") {
		t.Fatal("one visible tab left, still hidden")
	}
	h.SetHidden("1", b.ID(), true)
	if !h.Hidden("1") {
		t.Fatal("all tabs hidden, reported visible")
	}
	if h.SetHidden("1", "unknown", false) {
		t.Fatal("unknown client matched")
	}

	h.Unregister(a)
	h.Unregister(b)
	if h.ConnectedCount() != 0 {
		t.Fatalf("connected = %d", h.ConnectedCount())
	}
}

func TestHub_DeliveryEvents(t *testing.T) {
	h := NewHub()
	ch := make(chan []byte, 2)
	h.Register("5", "manager", ch)
	other := make(chan []byte, 1)
	h.Register("6", "manager", other)

	_ = h.Toast(context.Background(), "5", domain.Toast{Text: "Новый клиент: Петров"})
	_ = h.Play(context.Background(), "5", domain.Sound{Src: "/assets/sounds/notify.mp3", Volume: 0.6})

	toast := string(<-ch)
	if !strings.HasPrefix(toast, "event: toast\n") || !strings.Contains(toast, "Новый клиент: Петров") {
		t.Fatalf("toast frame = %q", toast)
	}
	if sound := string(<-ch); !strings.HasPrefix(sound, "event: sound\n") {
		t.Fatalf("sound frame = %q", sound)
	}
	if len(other) != 0 {
		t.Fatal("event leaked to another user")
	}
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	h := NewHub()
	h.Register("5", "manager", make(chan []byte))
	h.Broadcast("5", "toast", domain.Toast{Text: "x"})
}

func TestHub_Principals(t *testing.T) {
	h := NewHub()
	h.Register("12", "admin", make(chan []byte, 1))
	h.Register("not-a-number", "manager", make(chan []byte, 1))

	p := h.Principals()
	if len(p) != 1 || p[0].ID != 12 || p[0].Role != "admin" {
		t.Fatalf("principals = %+v", p)
	}
}

func TestBuildSSEMessage(t *testing.T) {
	got := string(buildSSEMessage("state", map[string]int{"unreadCount": 2}))
	if got != "event: state\ndata: {\"unreadCount\":2}\n\n" {
		t.Fatalf("frame = %q", got)
	}
}
