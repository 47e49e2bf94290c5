package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Bummbumdut/telegram-fishcast-bot/internal/fishcast"
)

// QuotaFetchError wraps a failed usage-stats refresh. It is always handled
// silently: log it and keep the previous snapshot.
type QuotaFetchError struct {
	Err error
}

func (e *QuotaFetchError) Error() string {
	return fmt.Sprintf("usage stats refresh: %v", e.Err)
}

func (e *QuotaFetchError) Unwrap() error {
	return e.Err
}

// UsageTracker holds the latest snapshot from /usage-stats. One tracker is
// shared by all sessions and the background watcher.
type UsageTracker struct {
	client *fishcast.Client

	mu        sync.RWMutex
	latest    *fishcast.UsageStats
	fetchedAt time.Time
}

func NewUsageTracker(client *fishcast.Client) *UsageTracker {
	return &UsageTracker{client: client}
}

// Refresh fetches current stats. On success the snapshot is replaced and
// returned; on failure the previous snapshot stays and a QuotaFetchError is
// returned for logging.
func (t *UsageTracker) Refresh(ctx context.Context) (fishcast.UsageStats, error) {
	stats, err := t.client.UsageStats(ctx)
	if err != nil {
		return fishcast.UsageStats{}, &QuotaFetchError{Err: err}
	}

	t.mu.Lock()
	t.latest = stats
	t.fetchedAt = time.Now()
	t.mu.Unlock()

	log.Debug().
		Int("dailyUsed", stats.Daily.Used).
		Int("dailyLimit", stats.Daily.Limit).
		Msg("usage snapshot refreshed")

	return *stats, nil
}

// Snapshot returns the last successful stats and whether one exists.
func (t *UsageTracker) Snapshot() (fishcast.UsageStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.latest == nil {
		return fishcast.UsageStats{}, false
	}
	return *t.latest, true
}

// FetchedAt returns when the snapshot was last replaced, zero if never.
func (t *UsageTracker) FetchedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fetchedAt
}
