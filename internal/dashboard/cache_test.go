package dashboard

import (
	"context"
	"testing"
	"time"
)

func TestSnapshotCache_Expiry(t *testing.T) {
	src := &fakeSource{stats: sampleStats(1)}
	c := newSnapshotCache(src, 5*time.Second, 10)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := c.Get(ctx); err != nil {
		t.Fatalf("Get: %v", err)
	}
	now = now.Add(4 * time.Second)
	c.Get(ctx)
	if src.calls != 1 {
		t.Errorf("calls = %d, snapshot should still be fresh", src.calls)
	}
	now = now.Add(2 * time.Second)
	c.Get(ctx)
	if src.calls != 2 {
		t.Errorf("calls = %d, snapshot should have expired", src.calls)
	}
}

func TestSnapshotCache_NoExpiry(t *testing.T) {
	src := &fakeSource{stats: sampleStats(1)}
	c := newSnapshotCache(src, 0, 10)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Get(ctx)
	now = now.Add(time.Hour)
	c.Get(ctx)
	if src.calls != 1 {
		t.Errorf("calls = %d, zero ttl should never expire", src.calls)
	}
	c.Invalidate()
	c.Get(ctx)
	if src.calls != 2 {
		t.Errorf("calls = %d after Invalidate", src.calls)
	}
}
