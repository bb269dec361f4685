package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/arhteh596/granovskicrm-sub002/internal/transport/mw"
)

// NewRouter sets up all Echo routes and middleware.
func NewRouter(h *Handler, jwtSecret string, allowOrigins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins,
		AllowHeaders: []string{"Authorization", "Content-Type"},
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
	}))

	// Health (no auth required)
	e.GET("/health", h.Health)

	// API, requires authentication
	v1 := e.Group("")
	v1.Use(mw.JWTAuth(jwtSecret))

	v1.GET("/notifications", h.ListNotifications)
	v1.DELETE("/notifications", h.Clear)
	v1.GET("/notifications/unread-count", h.GetUnreadCount)
	v1.PATCH("/notifications/:id/read", h.MarkRead)
	v1.POST("/notifications/read-all", h.MarkAllRead)
	v1.DELETE("/notifications/:id", h.Delete)
	v1.GET("/notifications/stream", h.Stream)

	v1.POST("/visibility", h.SetVisibility)

	v1.GET("/announcements", h.GetAnnouncements)
	v1.POST("/announcements/:id/dismiss", h.DismissAnnouncement)

	v1.POST("/push/subscribe", h.Subscribe)
	v1.POST("/push/unsubscribe", h.Unsubscribe)
	v1.POST("/push/test", h.TestPush)

	admin := v1.Group("/admin", mw.RequireRole("admin"))
	admin.GET("/users", h.ListUsers)

	return e
}
