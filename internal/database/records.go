package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

const recordColumns = `id, path_canon, filename, subfolder, top_level_subfolder, format,
	size_bytes, mtime, is_directory, width, height, aspect_ratio_label,
	prompt_text, prompt_source, workflow_json, workflow_source, has_edit_file,
	thumbnail_status, thumbnail_priority_score, thumbnail_last_generated_at, thumb_hash,
	is_trashed, original_path_canon, discovered_at, last_synced_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*MediaRecord, error) {
	var (
		r                                 MediaRecord
		width, height                     sql.NullInt64
		ratio, prompt, workflow, original sql.NullString
		lastGenerated                     sql.NullFloat64
		promptSource, workflowSource      string
	)

	err := row.Scan(
		&r.ID, &r.PathCanon, &r.Filename, &r.Subfolder, &r.TopLevelSubfolder, &r.Format,
		&r.SizeBytes, &r.Mtime, &r.IsDirectory, &width, &height, &ratio,
		&prompt, &promptSource, &workflow, &workflowSource, &r.HasEditFile,
		&r.ThumbnailStatus, &r.ThumbnailPriorityScore, &lastGenerated, &r.ThumbHash,
		&r.IsTrashed, &original, &r.DiscoveredAt, &r.LastSyncedAt,
	)
	if err != nil {
		return nil, err
	}

	if width.Valid {
		w := int(width.Int64)
		r.Width = &w
	}
	if height.Valid {
		h := int(height.Int64)
		r.Height = &h
	}
	if lastGenerated.Valid {
		v := lastGenerated.Float64
		r.ThumbnailLastGeneratedAt = &v
	}
	r.AspectRatioLabel = ratio.String
	r.PromptText = prompt.String
	r.WorkflowJSON = workflow.String
	r.OriginalPathCanon = original.String
	r.PromptSource = MetadataSource(promptSource)
	r.WorkflowSource = MetadataSource(workflowSource)

	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nowEpoch() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// LoadBaseline returns path_canon → change-detection entry for every
// non-trashed record.
func (d *Database) LoadBaseline(ctx context.Context) (baseline map[string]BaselineEntry, err error) {
	done := observeQuery("load_baseline")
	defer func() { done(err) }()

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, path_canon, mtime, size_bytes, thumb_hash FROM media_records WHERE is_trashed = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	baseline = make(map[string]BaselineEntry)
	for rows.Next() {
		var path string
		var e BaselineEntry
		if err := rows.Scan(&e.ID, &path, &e.Mtime, &e.Size, &e.ThumbHash); err != nil {
			return nil, err
		}
		baseline[path] = e
	}
	return baseline, rows.Err()
}

// GetRecordByPath returns the non-trashed record at pathCanon.
func (d *Database) GetRecordByPath(ctx context.Context, pathCanon string) (*MediaRecord, error) {
	return d.getRecord(ctx, "get_record_by_path",
		`SELECT `+recordColumns+` FROM media_records WHERE path_canon = ? AND is_trashed = 0`, pathCanon)
}

// GetTrashedRecordByPath returns the trashed record whose current location
// is pathCanon. If several share it, the most recently trashed wins.
func (d *Database) GetTrashedRecordByPath(ctx context.Context, pathCanon string) (*MediaRecord, error) {
	return d.getRecord(ctx, "get_trashed_record",
		`SELECT `+recordColumns+` FROM media_records WHERE path_canon = ? AND is_trashed = 1
		ORDER BY id DESC LIMIT 1`, pathCanon)
}

// GetRecordByID returns a record regardless of trash state.
func (d *Database) GetRecordByID(ctx context.Context, id int64) (*MediaRecord, error) {
	return d.getRecord(ctx, "get_record_by_id",
		`SELECT `+recordColumns+` FROM media_records WHERE id = ?`, id)
}

func (d *Database) getRecord(ctx context.Context, op, query string, args ...any) (rec *MediaRecord, err error) {
	done := observeQuery(op)
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rec, err = scanRecord(d.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.Tags, err = d.getTags(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListTrashed returns every trashed record.
func (d *Database) ListTrashed(ctx context.Context) (records []*MediaRecord, err error) {
	done := observeQuery("list_trashed")
	defer func() { done(err) }()

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM media_records WHERE is_trashed = 1 ORDER BY path_canon`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// InsertRecord inserts a new non-trashed record with a Pending thumbnail
// and stores its tags. It returns ErrPathConflict if a live record already
// holds the path.
func (d *Database) InsertRecord(ctx context.Context, tx *sql.Tx, rec *MediaRecord) (int64, error) {
	now := nowEpoch()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO media_records (
			path_canon, filename, subfolder, top_level_subfolder, format,
			size_bytes, mtime, is_directory, width, height, aspect_ratio_label,
			prompt_text, prompt_source, workflow_json, workflow_source, has_edit_file,
			thumbnail_status, thumbnail_priority_score, thumbnail_last_generated_at, thumb_hash,
			is_trashed, original_path_canon, discovered_at, last_synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, 0, NULL, ?, ?)`,
		rec.PathCanon, rec.Filename, rec.Subfolder, rec.TopLevelSubfolder, rec.Format,
		rec.SizeBytes, rec.Mtime, rec.IsDirectory, nullInt(rec.Width), nullInt(rec.Height), nullString(rec.AspectRatioLabel),
		nullString(rec.PromptText), sourceOrNone(rec.PromptSource), nullString(rec.WorkflowJSON), sourceOrNone(rec.WorkflowSource), rec.HasEditFile,
		ThumbnailPending, PriorityDefault, rec.ThumbHash,
		now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%s: %w", rec.PathCanon, ErrPathConflict)
		}
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := d.setTags(ctx, tx, id, rec.Tags); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateRecord rewrites the content fields of a non-trashed record and
// resets its thumbnail to Pending. It reports false if the record was
// trashed or deleted in the meantime.
func (d *Database) UpdateRecord(ctx context.Context, tx *sql.Tx, rec *MediaRecord) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE media_records SET
			filename = ?, subfolder = ?, top_level_subfolder = ?, format = ?,
			size_bytes = ?, mtime = ?, width = ?, height = ?, aspect_ratio_label = ?,
			prompt_text = ?, prompt_source = ?, workflow_json = ?, workflow_source = ?, has_edit_file = ?,
			thumbnail_status = ?, thumbnail_priority_score = ?, thumbnail_last_generated_at = NULL,
			thumb_hash = ?, last_synced_at = ?
		WHERE id = ? AND is_trashed = 0`,
		rec.Filename, rec.Subfolder, rec.TopLevelSubfolder, rec.Format,
		rec.SizeBytes, rec.Mtime, nullInt(rec.Width), nullInt(rec.Height), nullString(rec.AspectRatioLabel),
		nullString(rec.PromptText), sourceOrNone(rec.PromptSource), nullString(rec.WorkflowJSON), sourceOrNone(rec.WorkflowSource), rec.HasEditFile,
		ThumbnailPending, PriorityDefault,
		rec.ThumbHash, nowEpoch(),
		rec.ID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return false, err
	}
	return true, d.setTags(ctx, tx, rec.ID, rec.Tags)
}

// DeleteStaleRecords removes non-trashed records by id. Records trashed
// since the baseline was read are left alone.
func (d *Database) DeleteStaleRecords(ctx context.Context, tx *sql.Tx, ids []int64) (int64, error) {
	var total int64
	for _, chunk := range chunkIDs(ids) {
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM media_records WHERE is_trashed = 0 AND id IN (`+placeholders(len(chunk))+`)`, args...)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	observeRows("delete_stale", total)
	return total, nil
}

// DeleteRecord removes a record by id. The tag links cascade.
func (d *Database) DeleteRecord(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM media_records WHERE id = ?`, id)
	return err
}

// DeleteTrashedRecords removes every trashed record and returns how many
// were deleted.
func (d *Database) DeleteTrashedRecords(ctx context.Context, tx *sql.Tx) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM media_records WHERE is_trashed = 1`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	observeRows("delete_trashed", n)
	return n, err
}

// MarkTrashed moves a live record to its trash location. It reports false
// if the record was not live.
func (d *Database) MarkTrashed(ctx context.Context, tx *sql.Tx, id int64, loc Location) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE media_records SET
			is_trashed = 1, original_path_canon = path_canon,
			path_canon = ?, filename = ?, subfolder = ?, top_level_subfolder = ?
		WHERE id = ? AND is_trashed = 0`,
		loc.PathCanon, loc.Filename, loc.Subfolder, loc.TopLevelSubfolder, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkRestored moves a trashed record back to loc, optionally re-queuing
// its thumbnail. It reports false if the record was not trashed.
func (d *Database) MarkRestored(ctx context.Context, tx *sql.Tx, id int64, loc Location, requeue bool) (bool, error) {
	query := `
		UPDATE media_records SET
			is_trashed = 0, original_path_canon = NULL,
			path_canon = ?, filename = ?, subfolder = ?, top_level_subfolder = ?`
	if requeue {
		query += `, thumbnail_status = 0, thumbnail_priority_score = 1000, thumbnail_last_generated_at = NULL`
	}
	query += ` WHERE id = ? AND is_trashed = 1`

	res, err := tx.ExecContext(ctx, query, loc.PathCanon, loc.Filename, loc.Subfolder, loc.TopLevelSubfolder, id)
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("%s: %w", loc.PathCanon, ErrPathConflict)
		}
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Location is the set of path fields rewritten when a record moves.
type Location struct {
	PathCanon         string
	Filename          string
	Subfolder         string
	TopLevelSubfolder string
}

// LocationOf derives the path fields for a canonical POSIX path relative to
// the media root. Files at the root have an empty subfolder.
func LocationOf(pathCanon string) Location {
	dir, file := path.Split(pathCanon)
	dir = strings.TrimSuffix(dir, "/")
	top, _, _ := strings.Cut(dir, "/")
	return Location{
		PathCanon:         pathCanon,
		Filename:          file,
		Subfolder:         dir,
		TopLevelSubfolder: top,
	}
}

func sourceOrNone(s MetadataSource) string {
	if s == "" {
		return string(SourceNone)
	}
	return string(s)
}
