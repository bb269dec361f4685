package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/arhteh596/granovskicrm-sub002/internal/announce"
	"github.com/arhteh596/granovskicrm-sub002/internal/application"
	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
	"github.com/arhteh596/granovskicrm-sub002/internal/messages"
	"github.com/arhteh596/granovskicrm-sub002/internal/notify"
	"github.com/arhteh596/granovskicrm-sub002/internal/push"
	"github.com/arhteh596/granovskicrm-sub002/internal/transport/mw"
)

// Handler holds all HTTP handler methods.
type Handler struct {
	svc   *application.Service
	hub   *Hub
	board *announce.Board
	subs  *push.Subscriptions
	os    notify.OSNotifier
}

// NewHandler creates a new Handler. board may be nil when announcements are disabled,
// os may be nil when push is disabled.
func NewHandler(svc *application.Service, hub *Hub, board *announce.Board, subs *push.Subscriptions, os notify.OSNotifier) *Handler {
	return &Handler{svc: svc, hub: hub, board: board, subs: subs, os: os}
}

// --- Notifications ---

// ListNotifications GET /notifications
func (h *Handler) ListNotifications(c echo.Context) error {
	userID, _ := mustClaims(c)
	state := h.svc.List(c.Request().Context(), userID)
	return c.JSON(http.StatusOK, map[string]any{
		"data":         state.Notifications,
		"unread_count": state.UnreadCount,
	})
}

// GetUnreadCount GET /notifications/unread-count
func (h *Handler) GetUnreadCount(c echo.Context) error {
	userID, _ := mustClaims(c)
	return c.JSON(http.StatusOK, map[string]int{"count": h.svc.CountUnread(c.Request().Context(), userID)})
}

// MarkRead PATCH /notifications/:id/read
func (h *Handler) MarkRead(c echo.Context) error {
	userID, _ := mustClaims(c)
	h.svc.MarkRead(c.Request().Context(), userID, c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead POST /notifications/read-all
func (h *Handler) MarkAllRead(c echo.Context) error {
	userID, _ := mustClaims(c)
	h.svc.MarkAllRead(c.Request().Context(), userID)
	return c.NoContent(http.StatusNoContent)
}

// Delete DELETE /notifications/:id
func (h *Handler) Delete(c echo.Context) error {
	userID, _ := mustClaims(c)
	h.svc.Delete(c.Request().Context(), userID, c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// Clear DELETE /notifications
func (h *Handler) Clear(c echo.Context) error {
	userID, _ := mustClaims(c)
	h.svc.Clear(c.Request().Context(), userID)
	return c.NoContent(http.StatusNoContent)
}

// --- SSE Handler ---

// Stream GET /notifications/stream (SSE).
// Emits "state" on every store mutation plus "toast" and "sound" delivery events.
func (h *Handler) Stream(c echo.Context) error {
	userID, role := mustClaims(c)
	ctx := c.Request().Context()

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable Nginx buffering

	store := h.svc.Store(ctx, userID)
	states, unsubscribe := store.Subscribe()
	defer unsubscribe()

	sendCh := make(chan []byte, 32)
	client := h.hub.Register(userID, role, sendCh)
	defer h.hub.Unregister(client)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"ok\",\"client_id\":%q}\n\n", client.ID())
	w.Write(buildSSEMessage("state", store.Snapshot()))
	w.Flush()

	log.Info().Str("user", userID).Str("client", client.ID()).Msg("SSE stream opened")

	for {
		select {
		case state := <-states:
			if _, err := w.Write(buildSSEMessage("state", state)); err != nil {
				return nil
			}
			w.Flush()

		case msg, ok := <-sendCh:
			if !ok {
				return nil
			}
			if _, err := w.Write(msg); err != nil {
				return nil
			}
			w.Flush()

		case <-ctx.Done():
			log.Info().Str("user", userID).Msg("SSE stream closed by client")
			return nil
		}
	}
}

type visibilityRequest struct {
	ClientID string `json:"client_id"`
	Hidden   bool   `json:"hidden"`
}

// SetVisibility POST /visibility
func (h *Handler) SetVisibility(c echo.Context) error {
	userID, _ := mustClaims(c)
	var req visibilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if !h.hub.SetHidden(userID, req.ClientID, req.Hidden) {
		return echo.NewHTTPError(http.StatusNotFound, "no open stream")
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Announcements ---

// GetAnnouncements GET /announcements
func (h *Handler) GetAnnouncements(c echo.Context) error {
	if h.board == nil {
		return c.JSON(http.StatusOK, announce.View{})
	}
	userID, role := mustClaims(c)
	view, err := h.board.View(c.Request().Context(), userID, role)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("load announcements failed")
		return echo.ErrBadGateway
	}
	return c.JSON(http.StatusOK, view)
}

// DismissAnnouncement POST /announcements/:id/dismiss
func (h *Handler) DismissAnnouncement(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid announcement id")
	}
	if h.board != nil {
		userID, _ := mustClaims(c)
		h.board.Dismiss(userID, id)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Push ---

type subscriptionRequest struct {
	Token string `json:"token"`
}

// Subscribe POST /push/subscribe
func (h *Handler) Subscribe(c echo.Context) error {
	userID, _ := mustClaims(c)
	var req subscriptionRequest
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid subscription")
	}
	if err := h.subs.Add(c.Request().Context(), userID, req.Token); err != nil {
		log.Error().Err(err).Str("user", userID).Msg("save push subscription failed")
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// Unsubscribe POST /push/unsubscribe
func (h *Handler) Unsubscribe(c echo.Context) error {
	userID, _ := mustClaims(c)
	var req subscriptionRequest
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid subscription")
	}
	if err := h.subs.Remove(c.Request().Context(), userID, req.Token); err != nil {
		log.Error().Err(err).Str("user", userID).Msg("remove push subscription failed")
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// TestPushTag groups test pushes so a newer one replaces an older one.
const TestPushTag = "notif-test"

// TestPush POST /push/test
// Sends straight to every subscription of the user, regardless of tab visibility.
func (h *Handler) TestPush(c echo.Context) error {
	if h.os == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "push notifications are disabled")
	}
	userID, _ := mustClaims(c)
	ctx := c.Request().Context()
	if !h.os.Permitted(ctx, userID) {
		return c.JSON(http.StatusOK, map[string]any{"success": false, "error": "no push subscriptions"})
	}

	title, body := messages.TestPush()
	n := domain.OSNotification{Title: title, Body: body, Icon: notify.OSIcon, Tag: TestPushTag}
	if err := h.os.Notify(ctx, userID, n); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("test push failed")
		return c.JSON(http.StatusOK, map[string]any{"success": false, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// --- Admin ---

// ListUsers GET /admin/users
func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.svc.Users(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("list users failed")
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]any{"users": users})
}

// --- Healthcheck ---

// Health GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"sse_clients": h.hub.ConnectedCount(),
	})
}

// --- Helpers ---

func mustClaims(c echo.Context) (userID, role string) {
	userID, _ = c.Get(mw.KeyUserID).(string)
	role, _ = c.Get(mw.KeyRole).(string)
	return
}

// buildSSEMessage formats a payload as an SSE frame.
func buildSSEMessage(event string, payload any) []byte {
	b, _ := json.Marshal(payload)
	return []byte("event: " + event + "\ndata: " + string(b) + "\n\n")
}
