package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

const jobColumns = `id, path_canon, format, mtime, thumb_hash, thumbnail_status,
	thumbnail_priority_score, thumbnail_last_generated_at, has_edit_file, is_trashed`

func scanJob(row rowScanner) (*ThumbnailJob, error) {
	var j ThumbnailJob
	var lastGenerated sql.NullFloat64
	if err := row.Scan(&j.ID, &j.PathCanon, &j.Format, &j.Mtime, &j.ThumbHash, &j.Status,
		&j.Score, &lastGenerated, &j.HasEditFile, &j.IsTrashed); err != nil {
		return nil, err
	}
	if lastGenerated.Valid {
		v := lastGenerated.Float64
		j.LastGeneratedAt = &v
	}
	return &j, nil
}

// NextThumbnailJob returns the most urgent live record needing a thumbnail:
// Prioritized rows first, then Pending rows, each ordered by priority score
// ascending and mtime descending. Rows whose ids are in skip are ignored.
// It returns ErrNotFound when the queue is empty.
func (d *Database) NextThumbnailJob(ctx context.Context, skip []int64) (job *ThumbnailJob, err error) {
	done := observeQuery("next_thumbnail_job")
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	exclude := ""
	if len(skip) > 0 {
		exclude = ` AND id NOT IN (` + placeholders(len(skip)) + `)`
	}

	for _, status := range []ThumbnailStatus{ThumbnailPrioritized, ThumbnailPending} {
		args := make([]any, 0, len(skip)+1)
		args = append(args, status)
		for _, id := range skip {
			args = append(args, id)
		}

		// Pending is ordered by score too, so backed-off rows sink behind
		// untouched ones.
		job, err = scanJob(d.db.QueryRowContext(ctx, `
			SELECT `+jobColumns+` FROM media_records
			WHERE is_trashed = 0 AND is_directory = 0 AND thumbnail_status = ?`+exclude+`
			ORDER BY thumbnail_priority_score ASC, mtime DESC
			LIMIT 1`, args...))
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// GetThumbnailJob returns the thumbnail view of the live record at pathCanon.
func (d *Database) GetThumbnailJob(ctx context.Context, pathCanon string) (job *ThumbnailJob, err error) {
	done := observeQuery("get_thumbnail_job")
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	job, err = scanJob(d.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM media_records WHERE path_canon = ? AND is_trashed = 0`, pathCanon))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// TransitionThumbnail applies a guarded thumbnail state change in its own
// write transaction. Status and score are always written together.
func (d *Database) TransitionThumbnail(ctx context.Context, t ThumbnailTransition) (TransitionResult, error) {
	var result TransitionResult

	err := d.WithTx(ctx, "transition_thumbnail", func(tx *sql.Tx) error {
		var mtime float64
		err := tx.QueryRowContext(ctx,
			`SELECT thumbnail_status, is_trashed, mtime FROM media_records WHERE id = ?`, t.ID,
		).Scan(&result.Previous, &result.Trashed, &mtime)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if len(t.From) > 0 && !containsStatus(t.From, result.Previous) {
			return nil
		}
		if t.ExpectMtime != 0 && mtime != t.ExpectMtime {
			return nil
		}

		var generatedAt any
		if t.To == ThumbnailGenerated {
			generatedAt = t.GeneratedAt
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE media_records
			SET thumbnail_status = ?, thumbnail_priority_score = ?,
				thumbnail_last_generated_at = CASE WHEN ? = 2 THEN ? ELSE thumbnail_last_generated_at END
			WHERE id = ?`,
			t.To, t.Score, t.To, generatedAt, t.ID)
		if err != nil {
			return err
		}
		result.Applied = true
		return nil
	})

	return result, err
}

func containsStatus(list []ThumbnailStatus, s ThumbnailStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// PrioritizeThumbnails raises Pending and Prioritized live records at the
// given paths to Prioritized with the visible score. Generated and
// FailedPermanent rows are untouched.
func (d *Database) PrioritizeThumbnails(ctx context.Context, paths []string) (int64, error) {
	var total int64
	err := d.WithTx(ctx, "prioritize_thumbnails", func(tx *sql.Tx) error {
		for _, chunk := range chunkStrings(paths) {
			args := make([]any, 0, len(chunk)+2)
			args = append(args, ThumbnailPrioritized, PriorityVisible)
			for _, p := range chunk {
				args = append(args, p)
			}
			res, err := tx.ExecContext(ctx, `
				UPDATE media_records SET thumbnail_status = ?, thumbnail_priority_score = ?
				WHERE is_trashed = 0 AND thumbnail_status IN (0, 1)
				AND path_canon IN (`+placeholders(len(chunk))+`)`, args...)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			total += n
		}
		return nil
	})
	return total, err
}

// RequeueGenerated demotes live Generated records back to Pending with the
// default score. It returns the number of rows demoted.
func (d *Database) RequeueGenerated(ctx context.Context, ids []int64) (int64, error) {
	var total int64
	err := d.WithTx(ctx, "requeue_generated", func(tx *sql.Tx) error {
		for _, chunk := range chunkIDs(ids) {
			args := make([]any, 0, len(chunk))
			for _, id := range chunk {
				args = append(args, id)
			}
			res, err := tx.ExecContext(ctx, `
				UPDATE media_records
				SET thumbnail_status = 0, thumbnail_priority_score = 1000, thumbnail_last_generated_at = NULL
				WHERE thumbnail_status = 2 AND is_trashed = 0
				AND id IN (`+placeholders(len(chunk))+`)`, args...)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			total += n
		}
		return nil
	})
	observeRows("requeue_generated", total)
	return total, err
}

// ListGeneratedJobs returns the thumbnail view of every live Generated record.
func (d *Database) ListGeneratedJobs(ctx context.Context) (jobs []*ThumbnailJob, err error) {
	done := observeQuery("list_generated")
	defer func() { done(err) }()

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM media_records WHERE thumbnail_status = 2 AND is_trashed = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ThumbHashes returns every thumb_hash held by any record, trashed included.
func (d *Database) ThumbHashes(ctx context.Context) (hashes map[string]struct{}, err error) {
	done := observeQuery("thumb_hashes")
	defer func() { done(err) }()

	rows, err := d.db.QueryContext(ctx, `SELECT DISTINCT thumb_hash FROM media_records`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes = make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes[strings.ToLower(h)] = struct{}{}
	}
	return hashes, rows.Err()
}

// ThumbHashInUse reports whether any record references hash.
func (d *Database) ThumbHashInUse(ctx context.Context, hash string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM media_records WHERE thumb_hash = ?`, hash).Scan(&n)
	return n > 0, err
}

// ThumbnailStatusCounts returns live record counts per thumbnail status.
func (d *Database) ThumbnailStatusCounts(ctx context.Context) (counts map[ThumbnailStatus]int64, err error) {
	done := observeQuery("thumbnail_status_counts")
	defer func() { done(err) }()

	rows, err := d.db.QueryContext(ctx, `
		SELECT thumbnail_status, COUNT(*) FROM media_records
		WHERE is_trashed = 0 AND is_directory = 0
		GROUP BY thumbnail_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts = make(map[ThumbnailStatus]int64)
	for rows.Next() {
		var s ThumbnailStatus
		var n int64
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}
