package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/invisible-tech/network-event-observer/internal/store"
)

// StatsSource produces dashboard snapshots.
type StatsSource interface {
	Stats(ctx context.Context, recentLimit int) (*store.Stats, error)
}

// snapshotCache holds the last snapshot until it is invalidated or expires.
type snapshotCache struct {
	src         StatsSource
	ttl         time.Duration
	recentLimit int
	now         func() time.Time

	mu        sync.Mutex
	stats     *store.Stats
	fetchedAt time.Time
	dirty     bool
}

func newSnapshotCache(src StatsSource, ttl time.Duration, recentLimit int) *snapshotCache {
	return &snapshotCache{src: src, ttl: ttl, recentLimit: recentLimit, now: time.Now}
}

// Invalidate forces the next Get to query the source.
func (c *snapshotCache) Invalidate() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// Get returns the cached snapshot, refreshing it when stale. A zero ttl
// disables expiry; only Invalidate refreshes then.
func (c *snapshotCache) Get(ctx context.Context) (*store.Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fresh := c.stats != nil && !c.dirty && (c.ttl <= 0 || c.now().Sub(c.fetchedAt) < c.ttl)
	if fresh {
		snapshotRequests.WithLabelValues("hit").Inc()
		return c.stats, nil
	}

	stats, err := c.src.Stats(ctx, c.recentLimit)
	if err != nil {
		return nil, err
	}
	snapshotRequests.WithLabelValues("refresh").Inc()
	c.stats = stats
	c.fetchedAt = c.now()
	c.dirty = false
	return stats, nil
}
