// Package push manages users' OS push subscriptions and gates OS notification dispatch.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
)

// SubscriptionsKey holds a user's subscriptions inside the user's namespace.
const SubscriptionsKey = "push_subscriptions_v1"

// ErrTokenGone is returned by a Sender when the push service no longer knows the token.
var ErrTokenGone = errors.New("push token no longer registered")

// KVFor returns the namespaced KV of a user.
type KVFor func(userID string) domain.KV

// Subscriptions is the per-user list of push tokens.
type Subscriptions struct {
	kvFor KVFor
	now   func() time.Time

	mu sync.Mutex
}

// NewSubscriptions creates a registry that stores tokens in each user's namespace.
func NewSubscriptions(kvFor KVFor) *Subscriptions {
	return &Subscriptions{kvFor: kvFor, now: time.Now}
}

// List returns the user's subscriptions.
func (s *Subscriptions) List(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, userID)
}

// Add registers token for the user; re-adding an existing token is a no-op.
func (s *Subscriptions) Add(ctx context.Context, userID, token string) error {
	if token == "" {
		return errors.New("empty push token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if sub.Token == token {
			return nil
		}
	}
	subs = append(subs, domain.PushSubscription{Token: token, CreatedAt: s.now().UTC()})
	return s.save(ctx, userID, subs)
}

// Remove drops token from the user's subscriptions.
func (s *Subscriptions) Remove(ctx context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	kept := subs[:0]
	for _, sub := range subs {
		if sub.Token != token {
			kept = append(kept, sub)
		}
	}
	return s.save(ctx, userID, kept)
}

func (s *Subscriptions) load(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	raw, ok, err := s.kvFor(userID).Get(ctx, SubscriptionsKey)
	if err != nil {
		return nil, fmt.Errorf("load push subscriptions: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var subs []domain.PushSubscription
	if err := json.Unmarshal([]byte(raw), &subs); err != nil {
		// A corrupt list is treated as no subscriptions.
		return nil, nil
	}
	return subs, nil
}

func (s *Subscriptions) save(ctx context.Context, userID string, subs []domain.PushSubscription) error {
	raw, err := json.Marshal(subs)
	if err != nil {
		return fmt.Errorf("encode push subscriptions: %w", err)
	}
	if err := s.kvFor(userID).Set(ctx, SubscriptionsKey, string(raw)); err != nil {
		return fmt.Errorf("save push subscriptions: %w", err)
	}
	return nil
}
