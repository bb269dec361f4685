package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
)

// KeyPrefix starts every idempotency key kept in the ledger.
const KeyPrefix = "notif_"

// DefaultRetention is how long a key survives without being observed again.
const DefaultRetention = 30 * 24 * time.Hour

// maxRefreshAge bounds how stale a stamp may get before an observation rewrites it.
const maxRefreshAge = 24 * time.Hour

// TransferKey identifies the one-time "client was transferred" fact.
func TransferKey(clientID int64) string {
	return fmt.Sprintf("%stransfer_%d", KeyPrefix, clientID)
}

// CallbackKey identifies a callback threshold for one scheduled instant.
// Rescheduling the callback yields a fresh key.
func CallbackKey(minutesBefore int, clientID int64, at time.Time) string {
	return fmt.Sprintf("%scallback_%d_%d_%s", KeyPrefix, minutesBefore, clientID,
		at.UTC().Format("2006-01-02T15:04:05.000Z"))
}

// CommandKey identifies an externally issued notification command.
func CommandKey(commandID string) string {
	return KeyPrefix + "cmd_" + commandID
}

// Ledger is the durable set of idempotency keys already notified.
// Each entry holds the unix-millisecond instant it was last observed.
type Ledger struct {
	kv           domain.KV
	clock        Clock
	retention    time.Duration
	refreshAfter time.Duration

	mu sync.Mutex
}

// NewLedger creates a Ledger over kv. A non-positive retention uses DefaultRetention.
func NewLedger(kv domain.KV, clock Clock, retention time.Duration) *Ledger {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Ledger{
		kv:           kv,
		clock:        clock,
		retention:    retention,
		refreshAfter: min(maxRefreshAge, retention/2),
	}
}

func normalizeKey(key string) string {
	if strings.HasPrefix(key, KeyPrefix) {
		return key
	}
	return KeyPrefix + key
}

// CheckAndMark marks key as seen and reports whether this call was the first.
// A key that was already present gets its timestamp refreshed once it is older than refreshAfter.
func (l *Ledger) CheckAndMark(ctx context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key = normalizeKey(key)
	value, seen, err := l.kv.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("ledger read failed")
		seen = false
	}
	if !seen || l.stale(value) {
		l.touch(ctx, key)
	}
	return !seen
}

func (l *Ledger) stale(value string) bool {
	stamp, err := strconv.ParseInt(value, 10, 64)
	if err != nil || stamp < 1e12 {
		return true
	}
	return l.clock.Now().UnixMilli()-stamp >= l.refreshAfter.Milliseconds()
}

func (l *Ledger) touch(ctx context.Context, key string) {
	stamp := strconv.FormatInt(l.clock.Now().UnixMilli(), 10)
	if err := l.kv.Set(ctx, key, stamp); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("ledger write failed")
	}
}

// Prune removes keys not observed within the retention window and returns how many were removed.
// Entries with an unparsable stamp are re-stamped with the current time.
func (l *Ledger) Prune(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys, err := l.kv.Keys(ctx, KeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("list ledger keys: %w", err)
	}

	cutoff := l.clock.Now().Add(-l.retention).UnixMilli()
	removed := 0
	for _, key := range keys {
		value, ok, err := l.kv.Get(ctx, key)
		if err != nil {
			return removed, fmt.Errorf("read ledger key %s: %w", key, err)
		}
		if !ok {
			continue
		}
		stamp, err := strconv.ParseInt(value, 10, 64)
		if err != nil || stamp < 1e12 {
			// Legacy "1" markers predate timestamps.
			l.touch(ctx, key)
			continue
		}
		if stamp >= cutoff {
			continue
		}
		if err := l.kv.Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("delete ledger key %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
}
