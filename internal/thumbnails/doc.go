/*
Package thumbnails drives the thumbnail lifecycle of cataloged media.

Every live record carries a thumbnail status: Pending, Prioritized,
Generated or FailedPermanent. A small pool of background workers claims
the most urgent row (Prioritized before Pending, lower score first, newer
mtime first), renders it through media.Generator and records the outcome
with a guarded transition, so a row whose source changed during
generation stays queued.

Transient failures demote the row to Pending with the backoff score and
slow the worker exponentially. Missing, corrupt or unsupported sources
become FailedPermanent and are only retried by a forced request.

GetThumbnail serves the cached JPEG when it is fresh and regenerates it
inline otherwise. Staleness is detected lazily: a Generated row is stale
when its source mtime or edit sidecar is newer than the generation stamp,
or when the cache file has disappeared.

CleanThumbnails reconciles the cache directory with the catalog,
removing orphaned and abandoned temp files and re-queueing rows whose
cache file is missing or undecodable.
*/
package thumbnails
