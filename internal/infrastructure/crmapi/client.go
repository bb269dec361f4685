// Package crmapi reads clients and announcements through the CRM backend's REST API,
// acting on behalf of each online user with a short-lived token signed with the shared secret.
package crmapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
)

// Principal is a CRM user the client can impersonate.
type Principal struct {
	ID   int64
	Role string
}

// Principals returns the users whose view of the CRM should be polled.
type Principals func() []Principal

// Client implements domain.ClientSource and domain.AnnouncementSource over HTTP.
type Client struct {
	baseURL    string // e.g. "http://crm-backend:5000"
	secret     []byte
	principals Principals
	httpClient *http.Client

	// Short cache so the callback and transfer pollers don't double the request load.
	mu        sync.RWMutex
	cacheTTL  time.Duration
	cacheData map[string]cacheEntry // key: "<status>:<userID>" | "ann:<userID>:<role>"
}

type cacheEntry struct {
	data      any
	expiresAt time.Time
}

// New creates a Client with a 10-second cache TTL.
func New(baseURL, jwtSecret string, principals Principals) *Client {
	return &Client{
		baseURL:    baseURL,
		secret:     []byte(jwtSecret),
		principals: principals,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cacheTTL:   10 * time.Second,
		cacheData:  make(map[string]cacheEntry),
	}
}

type clientsResponse struct {
	Success bool            `json:"success"`
	Data    []domain.Client `json:"data"`
}

// ClientsByStatus merges the status lists visible to every principal.
// Rows without an owner are attributed to the principal that saw them.
func (c *Client) ClientsByStatus(ctx context.Context, status string) ([]domain.Client, error) {
	var out []domain.Client
	var firstErr error
	for _, p := range c.principals() {
		rows, err := c.clientsFor(ctx, p, status)
		if err != nil {
			log.Warn().Err(err).Int64("user", p.ID).Str("status", status).Msg("crm api: clients by status failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, row := range rows {
			uid := p.ID
			switch status {
			case domain.StatusTransfer:
				if row.TransferredTo == nil {
					row.TransferredTo = &uid
				}
			default:
				if row.AssignedTo == nil {
					row.AssignedTo = &uid
				}
			}
			out = append(out, row)
		}
	}
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (c *Client) clientsFor(ctx context.Context, p Principal, status string) ([]domain.Client, error) {
	cacheKey := status + ":" + strconv.FormatInt(p.ID, 10)
	if cached, ok := c.fromCache(cacheKey); ok {
		return cached.([]domain.Client), nil
	}

	var resp clientsResponse
	endpoint := c.baseURL + "/api/clients/status/" + url.PathEscape(status)
	if err := c.get(ctx, p, endpoint, &resp); err != nil {
		return nil, err
	}
	c.toCache(cacheKey, resp.Data)
	return resp.Data, nil
}

// ActiveAnnouncements fetches the announcements the CRM shows to userID.
func (c *Client) ActiveAnnouncements(ctx context.Context, userID, role string) ([]domain.Announcement, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	cacheKey := "ann:" + userID + ":" + role
	if cached, ok := c.fromCache(cacheKey); ok {
		return cached.([]domain.Announcement), nil
	}

	var resp struct {
		Items []domain.Announcement `json:"items"`
	}
	if err := c.get(ctx, Principal{ID: id, Role: role}, c.baseURL+"/api/ui/announcements/active", &resp); err != nil {
		return nil, err
	}
	c.toCache(cacheKey, resp.Items)
	return resp.Items, nil
}

// --- internal helpers ---

func (c *Client) get(ctx context.Context, p Principal, endpoint string, out any) error {
	token, err := c.token(p)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crm api %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("crm api %s: status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("crm api %s: decode: %w", endpoint, err)
	}
	return nil
}

// token signs a one-minute token with the claims the CRM backend expects.
func (c *Client) token(p Principal) (string, error) {
	claims := jwt.MapClaims{
		"id":       p.ID,
		"username": "crm-notify",
		"role":     p.Role,
		"exp":      time.Now().Add(time.Minute).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign crm token: %w", err)
	}
	return signed, nil
}

// fromCache retrieves a cached value if not expired.
func (c *Client) fromCache(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cacheData[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

// toCache stores a value with the configured TTL.
func (c *Client) toCache(key string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheData[key] = cacheEntry{data: data, expiresAt: time.Now().Add(c.cacheTTL)}
}
