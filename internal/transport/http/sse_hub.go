package http

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
	"github.com/arhteh596/granovskicrm-sub002/internal/infrastructure/crmapi"
)

// Client represents a connected SSE client (one browser tab).
type Client struct {
	id     string
	userID string
	role   string
	send   chan []byte
	hidden bool
}

// ID returns the identifier announced to the tab in its "connected" event.
func (c *Client) ID() string { return c.id }

// Hub manages all active SSE client connections.
// It is the in-app delivery channel (toast, sound) and the source of presence.
type Hub struct {
	mu      sync.RWMutex
	clients map[string][]*Client // userID -> clients
}

// NewHub creates a new SSE Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string][]*Client)}
}

// Register adds a new SSE client.
func (h *Hub) Register(userID, role string, send chan []byte) *Client {
	c := &Client{id: uuid.NewString(), userID: userID, role: role, send: send}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[userID] = append(h.clients[userID], c)

	log.Debug().Str("user", userID).Str("client", c.id).Msg("SSE client connected")
	return c
}

// Unregister removes an SSE client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[c.userID]
	updated := make([]*Client, 0, len(clients))
	for _, existing := range clients {
		if existing != c {
			updated = append(updated, existing)
		}
	}
	if len(updated) == 0 {
		delete(h.clients, c.userID)
	} else {
		h.clients[c.userID] = updated
	}

	log.Debug().Str("user", c.userID).Str("client", c.id).Msg("SSE client disconnected")
}

// SetHidden records tab visibility. An empty clientID applies to all of the user's tabs.
// It reports whether any tab matched.
func (h *Hub) SetHidden(userID, clientID string, hidden bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	matched := false
	for _, c := range h.clients[userID] {
		if clientID == "" || c.id == clientID {
			c.hidden = hidden
			matched = true
		}
	}
	return matched
}

// Hidden reports whether none of the user's tabs is visible. It satisfies notify.Presence.
func (h *Hub) Hidden(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients[userID] {
		if !c.hidden {
			return false
		}
	}
	return true
}

// Toast satisfies notify.Toaster.
func (h *Hub) Toast(_ context.Context, userID string, t domain.Toast) error {
	h.Broadcast(userID, "toast", t)
	return nil
}

// Play satisfies notify.SoundPlayer.
func (h *Hub) Play(_ context.Context, userID string, s domain.Sound) error {
	h.Broadcast(userID, "sound", s)
	return nil
}

// Broadcast sends an event to all connected SSE clients of a user.
func (h *Hub) Broadcast(userID, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.clients[userID]
	if len(clients) == 0 {
		return
	}

	msg := buildSSEMessage(event, payload)
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// Client is slow/disconnected, skip
			log.Warn().Str("user", userID).Str("event", event).Msg("SSE client send buffer full, skipping")
		}
	}
}

// Principals lists the users with at least one open stream, for the CRM API client.
func (h *Hub) Principals() []crmapi.Principal {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]crmapi.Principal, 0, len(h.clients))
	for userID, clients := range h.clients {
		id, err := strconv.ParseInt(userID, 10, 64)
		if err != nil || len(clients) == 0 {
			continue
		}
		out = append(out, crmapi.Principal{ID: id, Role: clients[0].role})
	}
	return out
}

// ConnectedCount returns the total number of connected SSE clients.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}
