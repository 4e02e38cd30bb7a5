package database

import (
	"context"
	"database/sql"
)

// RebuildFolderAggregates recomputes folder_aggregates from the live record
// set. It must run inside the final transaction of every operation that
// changes which records are live.
func (d *Database) RebuildFolderAggregates(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM folder_aggregates`); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO folder_aggregates (folder_path, image_count)
		SELECT subfolder, COUNT(*) FROM media_records
		WHERE is_trashed = 0 AND is_directory = 0
		GROUP BY subfolder`)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	observeRows("rebuild_folder_aggregates", n)
	return nil
}

// GetFolderAggregates returns every folder's live media count ordered by path.
func (d *Database) GetFolderAggregates(ctx context.Context) (aggs []FolderAggregate, err error) {
	done := observeQuery("get_folder_aggregates")
	defer func() { done(err) }()

	rows, err := d.db.QueryContext(ctx,
		`SELECT folder_path, image_count FROM folder_aggregates ORDER BY folder_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a FolderAggregate
		if err := rows.Scan(&a.FolderPath, &a.ImageCount); err != nil {
			return nil, err
		}
		aggs = append(aggs, a)
	}
	return aggs, rows.Err()
}

// CountCatalog runs the two aggregate queries the stats cache mirrors: live
// records, and live records with a generated thumbnail.
func (d *Database) CountCatalog(ctx context.Context) (total, generated int64, err error) {
	done := observeQuery("count_catalog")
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN thumbnail_status = 2 THEN 1 ELSE 0 END), 0)
		FROM media_records
		WHERE is_trashed = 0 AND is_directory = 0`).Scan(&total, &generated)
	return total, generated, err
}
