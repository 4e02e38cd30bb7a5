// Package main is the media-catalog server.
//
// media-catalog keeps a SQLite catalog of a media tree in step with the
// filesystem, generates thumbnails in the background and on demand, and
// manages a reversible trash. It serves a JSON API and, separately,
// Prometheus metrics.
//
// # Lifecycle
//
//  1. GOMEMLIMIT is configured from MEMORY_LIMIT (see package memory)
//  2. Configuration is loaded from the environment and an optional .env file
//  3. The catalog database is opened and the stats cache hydrated
//  4. The synchronizer runs an initial pass in the background, then its
//     periodic loop and filesystem watcher
//  5. Thumbnail workers start draining the queue
//  6. The API server and the metrics server start listening
//
// SIGINT or SIGTERM stops the HTTP server first, then the synchronizer and
// the thumbnail workers, each finishing its current item.
package main
