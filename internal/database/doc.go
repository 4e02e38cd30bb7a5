// Package database is the SQLite catalog store for the media catalog.
//
// It holds:
//   - media_records: one row per cataloged file, including thumbnail state
//     (status + priority score) and trash state
//   - tags / media_tags: lower-cased tag names linked many-to-many, cascading
//     on record deletion
//   - folder_aggregates: live media count per folder, fully rebuilt inside
//     the final transaction of every sync, trash, restore and delete
//   - metadata: housekeeping timestamps
//
// The store is single-writer: WithTx holds a mutex for the whole write
// transaction, so the synchronizer, the thumbnail workers and the trash
// manager never contend inside SQLite. Reads go straight to the pool and run
// concurrently under WAL.
//
// Two invariants are enforced by the schema itself: a partial unique index
// makes path_canon unique among non-trashed rows only, and a CHECK
// constraint ties is_trashed to original_path_canon being non-null.
package database
