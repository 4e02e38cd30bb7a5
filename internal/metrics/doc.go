// Package metrics provides Prometheus instrumentation for media-catalog.
//
// All metrics are registered with the default registry through promauto and
// prefixed with "media_catalog_". Expose them by mounting promhttp.Handler()
// on the metrics server.
//
// # Metric Categories
//
//   - HTTP: request counts, latency and in-flight requests, labelled by
//     route template rather than raw path
//   - Database: query counts and latency, transaction latency, writer lock
//     wait, open connections and file sizes
//   - Sync: pass counts by trigger and outcome, last run time and duration,
//     per-outcome record counts, watcher events and errors
//   - Metadata: extraction outcomes by file type, ffprobe latency
//   - Thumbnails: generation outcomes and latency, on-demand request
//     outcomes, state transitions, busy workers, cache cleanup actions
//   - Trash: operations by kind and per-item status
//   - Catalog: live record and generated thumbnail gauges, fed by [Collector]
//   - Filesystem: retry attempts, successes, failures and stale handles by
//     operation and volume, recorded through [NewFilesystemObserver]
//   - Memory: usage ratio and pause state of the memory monitor
//
// # Collector
//
// [Collector] periodically copies counters from a [StatsProvider] into the
// catalog gauges and samples the database file sizes:
//
//	collector := metrics.NewCollector(cache, dbPath, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// Call [InitializeMetrics] once at startup so every label combination is
// exported from the first scrape.
package metrics
