package mw

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Context keys set by JWTAuth.
const (
	KeyUserID   = "userID"
	KeyUsername = "username"
	KeyRole     = "role"
)

// JWTAuth validates the CRM's HS256 bearer token and stores id, username and role in the context.
// EventSource cannot send headers, so the token is also accepted from the "token" query parameter.
func JWTAuth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := bearerToken(c)
			if tokenStr == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims := jwt.MapClaims{}
			if _, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
				return key, nil
			}); err != nil {
				log.Warn().Err(err).Msg("JWT verification failed")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			userID, err := claimID(claims["id"])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid claims")
			}
			username, _ := claims["username"].(string)
			role, _ := claims["role"].(string)

			c.Set(KeyUserID, userID)
			c.Set(KeyUsername, username)
			c.Set(KeyRole, role)
			return next(c)
		}
	}
}

// RequireRole rejects users whose role is not listed.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(KeyRole).(string)
			if !slices.Contains(roles, role) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.QueryParam("token")
}

// claimID accepts numeric or string user ids; JSON numbers decode as float64.
func claimID(v any) (string, error) {
	switch id := v.(type) {
	case float64:
		return strconv.FormatInt(int64(id), 10), nil
	case string:
		if id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("unsupported id claim %v", v)
}
