package application

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
	"github.com/arhteh596/granovskicrm-sub002/internal/infrastructure/kv"
	"github.com/arhteh596/granovskicrm-sub002/internal/notify"
)

// Options tunes the Service.
type Options struct {
	Clock           notify.Clock
	LedgerRetention time.Duration
	// InlineDelivery runs delivery effects on the caller's goroutine (tests).
	InlineDelivery bool
}

// Service holds one notification store per CRM user and all notification use-cases.
type Service struct {
	base    domain.KV
	effects notify.Effects
	opts    Options

	mu     sync.Mutex
	stores map[string]*notify.Store
}

// NewService creates a Service whose stores live in per-user namespaces of base.
func NewService(base domain.KV, effects notify.Effects, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = notify.SystemClock
	}
	return &Service{
		base:    base,
		effects: effects,
		opts:    opts,
		stores:  make(map[string]*notify.Store),
	}
}

// KV returns the user's namespaced view of the durable storage.
func (s *Service) KV(userID string) domain.KV {
	return kv.Namespace(s.base, kv.UserNamespace(userID))
}

// Store returns the user's store, loading it from storage on first use.
// Loading happens outside the service lock so a slow backend only delays that user.
func (s *Service) Store(ctx context.Context, userID string) *notify.Store {
	s.mu.Lock()
	st, ok := s.stores[userID]
	s.mu.Unlock()
	if ok {
		return st
	}

	userKV := s.KV(userID)
	opts := []notify.Option{
		notify.WithClock(s.opts.Clock),
		notify.WithEffects(s.effects),
		notify.WithLedger(notify.NewLedger(userKV, s.opts.Clock, s.opts.LedgerRetention)),
	}
	if s.opts.InlineDelivery {
		opts = append(opts, notify.WithInlineDelivery())
	}
	loaded := notify.Open(ctx, userID, userKV, opts...)

	s.mu.Lock()
	defer s.mu.Unlock()
	// A concurrent first request may have won the race; keep its store.
	if st, ok := s.stores[userID]; ok {
		return st
	}
	s.stores[userID] = loaded
	return loaded
}

// Deliver routes a detected fact to its user. Events with a key are delivered at most once.
// It reports whether a notification was added.
func (s *Service) Deliver(ctx context.Context, ev domain.Event) bool {
	if ev.UserID == "" {
		log.Warn().Str("key", ev.Key).Msg("event without user, skipping")
		return false
	}
	st := s.Store(ctx, ev.UserID)
	in := notify.AddInput{Title: ev.Title, Message: ev.Message}

	if ev.Key == "" {
		n := st.AddNotification(ctx, in)
		log.Info().Str("user", ev.UserID).Str("id", n.ID).Str("title", n.Title).Msg("notification added")
		return true
	}

	n, added := st.AddOnce(ctx, ev.Key, in)
	if !added {
		log.Debug().Str("user", ev.UserID).Str("key", ev.Key).Msg("already notified, skipping")
		return false
	}
	log.Info().Str("user", ev.UserID).Str("key", ev.Key).Str("id", n.ID).Str("title", n.Title).
		Msg("notification added")
	return true
}

// List returns the user's notifications and unread count.
func (s *Service) List(ctx context.Context, userID string) domain.State {
	return s.Store(ctx, userID).Snapshot()
}

// CountUnread returns the unread badge count for a user.
func (s *Service) CountUnread(ctx context.Context, userID string) int {
	return s.Store(ctx, userID).Snapshot().UnreadCount
}

// MarkRead marks a single notification as read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) {
	s.Store(ctx, userID).MarkAsRead(ctx, id)
}

// MarkAllRead marks all notifications of a user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) {
	s.Store(ctx, userID).MarkAllAsRead(ctx)
}

// Delete removes a notification.
func (s *Service) Delete(ctx context.Context, userID, id string) {
	s.Store(ctx, userID).RemoveNotification(ctx, id)
}

// Clear removes all notifications of a user.
func (s *Service) Clear(ctx context.Context, userID string) {
	s.Store(ctx, userID).Clear(ctx)
}

// Users lists every user with persisted notifications.
func (s *Service) Users(ctx context.Context) ([]string, error) {
	keys, err := s.base.Keys(ctx, "user:")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var users []string
	for _, k := range keys {
		rest := strings.TrimPrefix(k, "user:")
		uid, _, ok := strings.Cut(rest, ":")
		if !ok || seen[uid] {
			continue
		}
		seen[uid] = true
		users = append(users, uid)
	}
	return users, nil
}

// PruneLedgers drops idempotency keys not observed within the retention window. Called by a background job.
func (s *Service) PruneLedgers(ctx context.Context) {
	users, err := s.Users(ctx)
	if err != nil {
		log.Error().Err(err).Msg("ledger prune: listing users failed")
		return
	}

	total := 0
	for _, uid := range users {
		n, err := s.Store(ctx, uid).Ledger().Prune(ctx)
		if err != nil {
			log.Error().Err(err).Str("user", uid).Msg("ledger prune failed")
		}
		total += n
	}
	log.Info().Int("deleted", total).Int("users", len(users)).Msg("ledger prune completed")
}
