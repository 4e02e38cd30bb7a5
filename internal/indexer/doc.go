// Package indexer keeps the catalog store in step with the media tree.
//
// A synchronization pass loads the live baseline (path, mtime, size, thumb
// hash) from the store, walks the media root depth-first and treats any file
// that is new or whose mtime, size or thumb hash differ as dirty. Dirty files
// go through the metadata extractor in parallel and are upserted in batches,
// each batch its own transaction with a short pause in between so readers
// are never starved. Every upsert resets the record's thumbnail to Pending.
//
// The walk prunes:
//   - the trash directory at the media root
//   - every edit-sidecar directory (_edits by default)
//   - hidden files and directories (prefixed with '.')
//
// Baseline records the walk did not see are removed in a final transaction,
// which also rebuilds the folder aggregates. Records trashed while the pass
// was running are never touched, and files below directories that could not
// be read are not treated as gone.
//
// Passes run:
//   - once at startup
//   - periodically (SYNC_INTERVAL)
//   - after bursts of fsnotify events settle, when watching is enabled
//   - on demand via [Indexer.Synchronize] or [Indexer.TriggerSync]
//
// Only one pass runs at a time; a concurrent request gets [ErrSyncInProgress].
package indexer
