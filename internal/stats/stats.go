package stats

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Counter is the slice of the catalog store the cache re-derives its
// counters from.
type Counter interface {
	CountCatalog(ctx context.Context) (total, generated int64, err error)
}

// Snapshot is a point-in-time copy of the cached counters.
type Snapshot struct {
	Total       int64     `json:"total"`
	Generated   int64     `json:"generated"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

// Cache holds the live record and generated thumbnail counts so that hot
// read paths never query the store.
type Cache struct {
	store       Counter
	total       atomic.Int64
	generated   atomic.Int64
	refreshedAt atomic.Int64
}

// New creates an empty cache backed by store. Call ForceRefresh once before
// serving reads.
func New(store Counter) *Cache {
	return &Cache{store: store}
}

// ForceRefresh re-derives both counters from the store. On error the cached
// values are left unchanged.
func (c *Cache) ForceRefresh(ctx context.Context) error {
	total, generated, err := c.store.CountCatalog(ctx)
	if err != nil {
		return fmt.Errorf("refresh stats: %w", err)
	}
	c.total.Store(total)
	c.generated.Store(generated)
	c.refreshedAt.Store(time.Now().UnixNano())
	logging.Debug("Stats refreshed: total=%d generated=%d", total, generated)
	return nil
}

// Get returns the cached counters.
func (c *Cache) Get() Snapshot {
	s := Snapshot{
		Total:     c.total.Load(),
		Generated: c.generated.Load(),
	}
	if ns := c.refreshedAt.Load(); ns != 0 {
		s.RefreshedAt = time.Unix(0, ns)
	}
	return s
}

// AddRecords adjusts the live record count by n (which may be negative).
func (c *Cache) AddRecords(n int64) {
	clampedAdd(&c.total, n)
}

// SubRecords decrements the live record count by n.
func (c *Cache) SubRecords(n int64) {
	clampedAdd(&c.total, -n)
}

// AddGenerated adjusts the generated thumbnail count by n.
func (c *Cache) AddGenerated(n int64) {
	clampedAdd(&c.generated, n)
}

// SubGenerated decrements the generated thumbnail count by n.
func (c *Cache) SubGenerated(n int64) {
	clampedAdd(&c.generated, -n)
}

// GetStats implements metrics.StatsProvider.
func (c *Cache) GetStats() metrics.Stats {
	s := c.Get()
	return metrics.Stats{
		TotalRecords:        s.Total,
		GeneratedThumbnails: s.Generated,
	}
}

// clampedAdd adds delta to v without letting it go below zero. Incremental
// updates can race a ForceRefresh; the next refresh corrects any drift.
func clampedAdd(v *atomic.Int64, delta int64) {
	for {
		old := v.Load()
		next := old + delta
		if next < 0 {
			next = 0
		}
		if v.CompareAndSwap(old, next) {
			return
		}
	}
}
