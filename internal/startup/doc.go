// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from the environment by [LoadConfig]. Before reading,
// the file named by ENV_FILE (default .env) is loaded with godotenv; values
// already present in the environment win. Supported variables:
//
//   - MEDIA_DIR: media root (default: /media)
//   - CACHE_DIR: thumbnail cache root (default: /cache)
//   - DATABASE_DIR: catalog database directory (default: /database)
//   - PORT / METRICS_PORT: HTTP and Prometheus ports (default: 8080 / 9090)
//   - METRICS_ENABLED: serve /metrics (default: true)
//   - SYNC_INTERVAL: periodic synchronization interval, 0 disables (default: 30m)
//   - SYNC_BATCH_SIZE: upserts per transaction (default: 50)
//   - WATCH_ENABLED: fsnotify change hints (default: true)
//   - TRASH_DIR_NAME / EDITS_DIR_NAME: reserved directory names (default: trash / _edits)
//   - THUMBNAIL_SIZE / THUMBNAIL_QUALITY: longest edge and JPEG quality (default: 256 / 85)
//   - THUMBNAIL_WORKERS: worker count, 0 sizes from GOMAXPROCS
//   - THUMBNAIL_IDLE_INTERVAL: worker poll interval when the queue is empty (default: 5s)
//   - VIPS_ENABLED: decode images with libvips (default: true)
//   - PROBE_TIMEOUT / GENERATE_TIMEOUT: ffprobe and thumbnail deadlines
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_HEALTH_CHECKS: include /healthz and /readyz in the access log
//   - MEMORY_LIMIT / MEMORY_RATIO / GOMEMLIMIT: see package memory
//
// Malformed values are logged and replaced by their default.
//
// # Directory Setup
//
// The media root must exist. The database directory and the thumbnail
// directory (CACHE_DIR/thumbnails) are created if needed and must be writable.
//
// # Lifecycle Logging
//
// The Log* functions print the sectioned startup and shutdown output used by
// both binaries.
package startup
