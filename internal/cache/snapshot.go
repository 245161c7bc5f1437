// Package cache holds the full price-change record set in memory and
// refreshes it lazily from the store once per UTC day.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackmoore7/coles-web-app/internal/errx"
	"github.com/jackmoore7/coles-web-app/internal/logging"
	"github.com/jackmoore7/coles-web-app/internal/store"
)

const refreshTimeout = 10 * time.Second

// Snapshot is a point-in-time copy of every record. It is never mutated
// after construction; refreshes swap in a whole new Snapshot.
type Snapshot struct {
	Records   []store.PriceChange
	FetchedAt time.Time
}

// Cache serves snapshots to concurrent readers. Reads are lock-free; the
// mutex only serialises refreshes.
type Cache struct {
	store      store.Reader
	cutoffHour int
	now        func() time.Time

	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// New builds a cold cache anchored at the given daily UTC cutoff hour.
func New(st store.Reader, cutoffHour int) *Cache {
	return &Cache{store: st, cutoffHour: cutoffHour, now: time.Now}
}

// Get returns the current snapshot, refreshing it first if it is stale.
// A refresh failure keeps the previous snapshot authoritative; only a cold
// start with no snapshot at all surfaces an error.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	if snap := c.snap.Load(); snap != nil && !c.stale(snap) {
		return snap, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check under the lock; another request may have refreshed while
	// we were waiting.
	snap := c.snap.Load()
	if snap != nil && !c.stale(snap) {
		return snap, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	records, err := c.store.FindAll(fetchCtx)
	if err != nil {
		if snap != nil {
			logging.Warn().Err(err).Time("fetched_at", snap.FetchedAt).
				Msg("snapshot refresh failed, serving previous snapshot")
			return snap, nil
		}
		return nil, errx.Upstream(err)
	}

	fresh := &Snapshot{Records: records, FetchedAt: c.now().UTC()}
	c.snap.Store(fresh)
	logging.Info().Int("records", len(records)).Msg("snapshot refreshed")
	return fresh, nil
}

// stale reports whether the snapshot predates the most recent daily cutoff.
// That single comparison covers both "now has crossed today's cutoff and the
// snapshot hasn't" and "now is before today's cutoff but the snapshot is
// older than yesterday's".
func (c *Cache) stale(s *Snapshot) bool {
	return s.FetchedAt.Before(c.lastCutoff(c.now()))
}

// lastCutoff returns the most recent instant at the cutoff hour, UTC, that
// is not after now.
func (c *Cache) lastCutoff(now time.Time) time.Time {
	now = now.UTC()
	cut := time.Date(now.Year(), now.Month(), now.Day(), c.cutoffHour, 0, 0, 0, time.UTC)
	if now.Before(cut) {
		cut = cut.AddDate(0, 0, -1)
	}
	return cut
}
