package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
)

type sseFrame struct {
	event string
	data  string
}

func readFrame(t *testing.T, r *bufio.Reader) sseFrame {
	t.Helper()
	var f sseFrame
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if f.event != "" {
				return f
			}
		case strings.HasPrefix(line, "event: "):
			f.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			f.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStream_FramesAndDisconnect(t *testing.T) {
	en := newEnv(t)
	srv := httptest.NewServer(en.e)
	defer srv.Close()

	en.svc.Deliver(context.Background(), domain.Event{UserID: "7", Title: "Старое", Message: "до подключения"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+"/notifications/stream?token="+signToken(t, 7, "manager"), nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	r := bufio.NewReader(resp.Body)

	connected := readFrame(t, r)
	if connected.event != "connected" || !strings.Contains(connected.data, `"client_id"`) {
		t.Fatalf("first frame = %+v", connected)
	}
	var initial domain.State
	first := readFrame(t, r)
	if first.event != "state" {
		t.Fatalf("second frame = %+v", first)
	}
	if err := json.Unmarshal([]byte(first.data), &initial); err != nil {
		t.Fatal(err)
	}
	if len(initial.Notifications) != 1 || initial.UnreadCount != 1 {
		t.Fatalf("initial state = %+v", initial)
	}
	if en.hub.ConnectedCount() != 1 {
		t.Fatalf("connected = %d, want 1", en.hub.ConnectedCount())
	}

	en.svc.Deliver(context.Background(), domain.Event{UserID: "7", Title: "Переданный клиент", Message: "Петров"})

	// The state frame and the hub frames travel on different channels, so their order varies.
	got := map[string]string{}
	for len(got) < 3 {
		f := readFrame(t, r)
		got[f.event] = f.data
	}
	var after domain.State
	if err := json.Unmarshal([]byte(got["state"]), &after); err != nil {
		t.Fatal(err)
	}
	if len(after.Notifications) != 2 || after.UnreadCount != 2 || after.Notifications[0].Title != "Переданный клиент" {
		t.Fatalf("state after add = %+v", after)
	}
	if !strings.Contains(got["toast"], "Переданный клиент: Петров") {
		t.Fatalf("toast = %s", got["toast"])
	}
	if !strings.Contains(got["sound"], "transfer.mp3") {
		t.Fatalf("sound = %s", got["sound"])
	}

	cancel()
	waitFor(t, "hub unregister", func() bool { return en.hub.ConnectedCount() == 0 })

	// With the stream gone the user counts as hidden again.
	if !en.hub.Hidden("7") {
		t.Fatal("user still visible after disconnect")
	}
}
