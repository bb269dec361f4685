// Package poller runs the periodic CRM checks that turn client state into notification events.
package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
)

// Sink receives detected events. application.Service implements it.
type Sink interface {
	Deliver(ctx context.Context, ev domain.Event) bool
}

// Checker is a single polling pass.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Run checks once immediately, then every interval until ctx is cancelled.
func Run(ctx context.Context, c Checker, interval time.Duration) error {
	log.Info().Str("poller", c.Name()).Dur("interval", interval).Msg("poller started")

	check := func() {
		if err := c.Check(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("poller", c.Name()).Msg("poll failed")
		}
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			check()
		case <-ctx.Done():
			log.Info().Str("poller", c.Name()).Msg("poller stopped")
			return nil
		}
	}
}
