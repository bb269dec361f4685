package poller

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
	"github.com/arhteh596/granovskicrm-sub002/internal/messages"
	"github.com/arhteh596/granovskicrm-sub002/internal/notify"
)

// Minutes before a scheduled callback at which the manager is reminded.
const (
	CallbackSoonMinutes = 5
	CallbackNowMinutes  = 0
)

// Callback reminds managers of their scheduled callbacks.
type Callback struct {
	source domain.ClientSource
	sink   Sink
	clock  notify.Clock
}

// NewCallback creates the callback-due checker.
func NewCallback(source domain.ClientSource, sink Sink, clock notify.Clock) *Callback {
	if clock == nil {
		clock = notify.SystemClock
	}
	return &Callback{source: source, sink: sink, clock: clock}
}

func (p *Callback) Name() string { return "callback" }

// Check emits a reminder when a callback is exactly 5 or 0 whole minutes away.
func (p *Callback) Check(ctx context.Context) error {
	clients, err := p.source.ClientsByStatus(ctx, domain.StatusCallback)
	if err != nil {
		return fmt.Errorf("load callback clients: %w", err)
	}

	now := p.clock.Now()
	for _, c := range clients {
		if c.CallbackAt == nil || c.AssignedTo == nil {
			continue
		}
		at := *c.CallbackAt
		user := strconv.FormatInt(*c.AssignedTo, 10)

		var title, message string
		switch minutesUntil(now, at) {
		case CallbackSoonMinutes:
			title, message = messages.CallbackSoon(c.DisplayName())
		case CallbackNowMinutes:
			title, message = messages.CallbackNow(c.DisplayName())
		default:
			continue
		}
		p.sink.Deliver(ctx, domain.Event{
			UserID:  user,
			Key:     notify.CallbackKey(minutesUntil(now, at), c.ID, at),
			Title:   title,
			Message: message,
		})
	}
	return nil
}

// minutesUntil floors the remaining time to whole minutes; overdue callbacks are negative.
func minutesUntil(now, at time.Time) int {
	return int(math.Floor(float64(at.Sub(now)) / float64(time.Minute)))
}
