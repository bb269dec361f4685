// Package notify implements the per-user notification store: the ordered,
// capped collection of records, its durable persistence, the idempotency
// ledger and the fan-out to delivery channels.
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
)

// StorageKey holds the JSON-encoded collection inside a user's namespace.
const StorageKey = "crm_notifications_v1"

// AddInput is the caller's side of a new notification. ID is optional.
type AddInput struct {
	ID      string
	Title   string
	Message string
}

// Store is the single source of truth for one user's notifications.
// All mutations are serialized; observers see the new state before the mutating call returns.
type Store struct {
	userID  string
	kv      domain.KV
	clock   Clock
	ledger  *Ledger
	effects Effects
	inline  bool

	mu     sync.Mutex
	items  []domain.Notification
	unread int
	subs   map[int]chan domain.State
	nextID int
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(s *Store) { s.clock = c } }

// WithEffects sets the delivery ports.
func WithEffects(e Effects) Option { return func(s *Store) { s.effects = e } }

// WithLedger shares an existing ledger instead of one built over the store's KV.
func WithLedger(l *Ledger) Option { return func(s *Store) { s.ledger = l } }

// WithInlineDelivery runs delivery effects on the calling goroutine.
func WithInlineDelivery() Option { return func(s *Store) { s.inline = true } }

// Open loads the user's collection from kv. Unreadable or corrupt data yields an empty store.
func Open(ctx context.Context, userID string, kv domain.KV, opts ...Option) *Store {
	s := &Store{
		userID: userID,
		kv:     kv,
		clock:  SystemClock,
		subs:   make(map[int]chan domain.State),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ledger == nil {
		s.ledger = NewLedger(kv, s.clock, DefaultRetention)
	}
	s.items = s.load(ctx)
	s.unread = countUnread(s.items)
	return s
}

// UserID returns the owner of the store.
func (s *Store) UserID() string { return s.userID }

// Ledger returns the store's idempotency ledger.
func (s *Store) Ledger() *Ledger { return s.ledger }

// AddNotification records a new notification and fires delivery effects.
// It never deduplicates by idempotency key; see AddOnce.
func (s *Store) AddNotification(ctx context.Context, in AddInput) domain.Notification {
	s.mu.Lock()
	n := s.insertLocked(ctx, in)
	s.mu.Unlock()

	s.deliver(ctx, n)
	return n
}

// AddOnce checks and marks key in the ledger and, only when the key was unseen,
// adds the notification. Both steps happen under the store lock.
func (s *Store) AddOnce(ctx context.Context, key string, in AddInput) (domain.Notification, bool) {
	s.mu.Lock()
	if !s.ledger.CheckAndMark(ctx, key) {
		s.mu.Unlock()
		return domain.Notification{}, false
	}
	n := s.insertLocked(ctx, in)
	s.mu.Unlock()

	s.deliver(ctx, n)
	return n, true
}

func (s *Store) insertLocked(ctx context.Context, in AddInput) domain.Notification {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	n := domain.Notification{
		ID:        id,
		Title:     in.Title,
		Message:   in.Message,
		CreatedAt: s.clock.Now().UTC(),
	}

	list := make([]domain.Notification, 0, min(len(s.items)+1, domain.MaxNotifications))
	list = append(list, n)
	for _, existing := range s.items {
		if len(list) == domain.MaxNotifications {
			break
		}
		// A caller-supplied id replaces the previous record with that id.
		if existing.ID == id {
			continue
		}
		list = append(list, existing)
	}
	s.commitLocked(ctx, list)
	return n
}

// MarkAsRead flags the record as read. Unknown ids are ignored.
func (s *Store) MarkAsRead(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]domain.Notification, len(s.items))
	copy(list, s.items)
	for i := range list {
		if list[i].ID == id {
			list[i].Read = true
		}
	}
	s.commitLocked(ctx, list)
}

// MarkAllAsRead flags every record as read.
func (s *Store) MarkAllAsRead(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]domain.Notification, len(s.items))
	copy(list, s.items)
	for i := range list {
		list[i].Read = true
	}
	s.commitLocked(ctx, list)
}

// RemoveNotification deletes the record with id. Unknown ids are ignored.
func (s *Store) RemoveNotification(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]domain.Notification, 0, len(s.items))
	for _, n := range s.items {
		if n.ID != id {
			list = append(list, n)
		}
	}
	s.commitLocked(ctx, list)
}

// Clear empties the collection.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commitLocked(ctx, []domain.Notification{})
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Subscribe returns a channel that always holds the latest state after a mutation,
// and a function that ends the subscription.
func (s *Store) Subscribe() (<-chan domain.State, func()) {
	ch := make(chan domain.State, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) commitLocked(ctx context.Context, list []domain.Notification) {
	s.items = list
	s.unread = countUnread(list)
	s.persistLocked(ctx)
	s.publishLocked()
}

func (s *Store) stateLocked() domain.State {
	items := make([]domain.Notification, len(s.items))
	copy(items, s.items)
	return domain.State{Notifications: items, UnreadCount: s.unread}
}

func (s *Store) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	state := s.stateLocked()
	for _, ch := range s.subs {
		// Replace any state the subscriber has not consumed yet.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- state:
		default:
		}
	}
}

func (s *Store) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(s.items)
	if err != nil {
		log.Warn().Err(err).Str("user", s.userID).Msg("encode notifications failed")
		return
	}
	if err := s.kv.Set(ctx, StorageKey, string(raw)); err != nil {
		log.Warn().Err(err).Str("user", s.userID).Msg("persist notifications failed")
	}
}

func (s *Store) load(ctx context.Context) []domain.Notification {
	raw, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		log.Warn().Err(err).Str("user", s.userID).Msg("load notifications failed")
		return []domain.Notification{}
	}
	if !ok || raw == "" {
		return []domain.Notification{}
	}

	var stored []*domain.Notification
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		log.Warn().Err(err).Str("user", s.userID).Msg("stored notifications are corrupt, starting empty")
		return []domain.Notification{}
	}

	list := make([]domain.Notification, 0, len(stored))
	seen := make(map[string]bool, len(stored))
	for _, n := range stored {
		if n == nil || n.ID == "" || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		list = append(list, *n)
		if len(list) == domain.MaxNotifications {
			break
		}
	}
	return list
}

func countUnread(list []domain.Notification) int {
	count := 0
	for _, n := range list {
		if !n.Read {
			count++
		}
	}
	return count
}

// deliver fans the notification out to every configured channel.
// Channels are independent: a failure or panic in one never reaches the others or the caller.
func (s *Store) deliver(ctx context.Context, n domain.Notification) {
	ctx = context.WithoutCancel(ctx)
	e := s.effects

	if e.Toaster != nil {
		s.run("toast", n.ID, func() error {
			return e.Toaster.Toast(ctx, s.userID, toastFor(n))
		})
	}
	if e.Sound != nil {
		s.run("sound", n.ID, func() error {
			return e.Sound.Play(ctx, s.userID, SelectSound(n.Title))
		})
	}
	if e.OS != nil && e.Presence != nil {
		s.run("os", n.ID, func() error {
			if !e.Presence.Hidden(s.userID) || !e.OS.Permitted(ctx, s.userID) {
				return nil
			}
			return e.OS.Notify(ctx, s.userID, osNotificationFor(n))
		})
	}
}

func (s *Store) run(channel, id string, fn func() error) {
	call := func() {
		defer func() {
			if r := recover(); r != nil {
				log.Warn().Str("user", s.userID).Str("channel", channel).Str("id", id).
					Interface("panic", r).Msg("delivery channel panicked")
			}
		}()
		if err := fn(); err != nil {
			log.Warn().Err(err).Str("user", s.userID).Str("channel", channel).Str("id", id).
				Msg("delivery channel failed")
		}
	}
	if s.inline {
		call()
		return
	}
	go call()
}
