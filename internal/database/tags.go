package database

import (
	"context"
	"database/sql"
	"strings"

	"media-catalog/internal/logging"
)

// NormalizeTags lower-cases, trims and de-duplicates tag names, preserving
// first-seen order and dropping empties.
func NormalizeTags(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// setTags replaces the tag set of a record within tx.
func (d *Database) setTags(ctx context.Context, tx *sql.Tx, mediaID int64, names []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM media_tags WHERE media_id = ?", mediaID); err != nil {
		return err
	}

	for _, name := range NormalizeTags(names) {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO tags (name) VALUES (?)", name); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO media_tags (media_id, tag_id)
			SELECT ?, id FROM tags WHERE name = ?`, mediaID, name); err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) getTags(ctx context.Context, mediaID int64) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT t.name
		FROM tags t
		INNER JOIN media_tags mt ON t.id = mt.tag_id
		WHERE mt.media_id = ?
		ORDER BY t.name
	`, mediaID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

// PruneUnusedTags deletes tags no longer linked to any record.
func (d *Database) PruneUnusedTags(ctx context.Context, tx *sql.Tx) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM tags WHERE id NOT IN (SELECT DISTINCT tag_id FROM media_tags)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
