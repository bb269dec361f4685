package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
)

// Sender delivers one OS notification to one push token.
type Sender interface {
	Send(ctx context.Context, token string, n domain.OSNotification) error
}

// ErrRateLimited is returned when a user's OS notification budget is exhausted.
var ErrRateLimited = errors.New("os notification rate limit exceeded")

// Dispatcher implements notify.OSNotifier on top of the subscription registry and a Sender.
type Dispatcher struct {
	subs   *Subscriptions
	sender Sender
	every  time.Duration
	burst  int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDispatcher allows burst notifications per user, refilled one per every.
func NewDispatcher(subs *Subscriptions, sender Sender, every time.Duration, burst int) *Dispatcher {
	if burst <= 0 {
		burst = 5
	}
	if every <= 0 {
		every = 2 * time.Second
	}
	return &Dispatcher{
		subs:     subs,
		sender:   sender,
		every:    every,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (d *Dispatcher) limiter(userID string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Every(d.every), d.burst)
		d.limiters[userID] = l
	}
	return l
}

// Permitted reports whether the user has at least one push subscription.
func (d *Dispatcher) Permitted(ctx context.Context, userID string) bool {
	subs, err := d.subs.List(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("push permission lookup failed")
		return false
	}
	return len(subs) > 0
}

// Notify sends n to every token of the user; tokens reported gone are removed.
func (d *Dispatcher) Notify(ctx context.Context, userID string, n domain.OSNotification) error {
	if !d.limiter(userID).Allow() {
		return ErrRateLimited
	}

	subs, err := d.subs.List(ctx, userID)
	if err != nil {
		return err
	}

	var errs []error
	for _, sub := range subs {
		err := d.sender.Send(ctx, sub.Token, n)
		switch {
		case err == nil:
		case errors.Is(err, ErrTokenGone):
			if rmErr := d.subs.Remove(ctx, userID, sub.Token); rmErr != nil {
				errs = append(errs, rmErr)
			}
			log.Info().Str("user", userID).Msg("removed unregistered push token")
		default:
			errs = append(errs, fmt.Errorf("send push: %w", err))
		}
	}
	return errors.Join(errs...)
}
