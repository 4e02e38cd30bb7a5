// Package stats keeps the catalog's headline counters in memory.
//
// The [Cache] mirrors two numbers: the count of live (non-trashed) records and
// the count of live records whose thumbnail is Generated. It is created once
// at service start, hydrated with [Cache.ForceRefresh], and then passed to the
// synchronizer, the thumbnail worker and the trash manager, which keep it
// current with the Add and Sub methods:
//
//	cache := stats.New(db)
//	if err := cache.ForceRefresh(ctx); err != nil {
//		return err
//	}
//	snapshot := cache.Get() // never touches the store
//
// The cache also implements [metrics.StatsProvider] so the metrics collector
// can export it as gauges.
package stats
