package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Housekeeping keys stored in the metadata table.
const (
	MetaLastSyncAt           = "last_sync_at"
	MetaLastSyncDuration     = "last_sync_duration"
	MetaLastThumbnailCleanAt = "last_thumbnail_clean_at"
)

// GetMetadata retrieves a metadata value by key.
// Returns ErrNotFound if the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value sql.NullString
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value.String, nil
}

// SetMetadata sets a metadata key-value pair in its own write transaction.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	return d.WithTx(ctx, "set_metadata", func(tx *sql.Tx) error {
		return d.SetMetadataTx(ctx, tx, key, value)
	})
}

// SetMetadataTx sets a metadata key-value pair inside tx.
func (d *Database) SetMetadataTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetTime reads an RFC3339 timestamp stored under key. A missing or empty
// key yields the zero time.
func (d *Database) GetTime(ctx context.Context, key string) (time.Time, error) {
	value, err := d.GetMetadata(ctx, key)
	if errors.Is(err, ErrNotFound) || (err == nil && value == "") {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, value)
}

// SetTime stores t under key as RFC3339. The zero time clears the value.
func (d *Database) SetTime(ctx context.Context, key string, t time.Time) error {
	if t.IsZero() {
		return d.SetMetadata(ctx, key, "")
	}
	return d.SetMetadata(ctx, key, t.UTC().Format(time.RFC3339Nano))
}
