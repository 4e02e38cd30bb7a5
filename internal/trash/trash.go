package trash

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"media-catalog/internal/database"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
)

// Trash moves each live record's file and sidecars under the trash root,
// mirroring its subfolder, and marks the record trashed. Name collisions
// in the trash get a numeric suffix. A record whose file is already gone
// is still trashed and the discrepancy reported in the item message.
func (m *Manager) Trash(ctx context.Context, paths []string) []ItemResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]ItemResult, 0, len(paths))
	for _, p := range paths {
		newPath, note, err := m.trashOne(ctx, p)
		r := result("trash", p, err)
		r.NewPath = newPath
		if err == nil && note != "" {
			r.Message = note
		}
		results = append(results, r)
	}
	if len(paths) > 0 {
		m.finalize(ctx, "trash")
	}
	return results
}

func (m *Manager) trashOne(ctx context.Context, p string) (string, string, error) {
	if err := validate(p); err != nil {
		return "", "", err
	}
	rec, err := m.db.GetRecordByPath(ctx, p)
	if errors.Is(err, database.ErrNotFound) {
		return "", "", fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if err != nil {
		return "", "", err
	}

	srcAbs := m.abs(p)
	missing := false
	if _, err := os.Lstat(srcAbs); errors.Is(err, os.ErrNotExist) {
		missing = true
	}

	dest, err := m.trashDest(ctx, rec)
	if err != nil {
		return "", "", err
	}

	moved, err := m.move(srcAbs, m.abs(dest), !missing)
	if err != nil {
		return "", "", err
	}

	var applied bool
	err = m.db.WithTx(ctx, "trash", func(tx *sql.Tx) error {
		var err error
		applied, err = m.db.MarkTrashed(ctx, tx, rec.ID, database.LocationOf(dest))
		return err
	})
	if err == nil && !applied {
		err = fmt.Errorf("%s changed during trash: %w", p, ErrNotFound)
	}
	if err != nil {
		undo(moved)
		return "", "", err
	}

	m.statsDelta(-1, -generatedDelta(rec))
	logging.Info("Trashed %s -> %s", p, dest)
	if missing {
		return dest, "source file was already missing; record trashed", nil
	}
	return dest, "", nil
}

// trashDest picks the first free location for rec inside the trash root:
// the mirrored path itself, then name_1.ext, name_2.ext and so on.
func (m *Manager) trashDest(ctx context.Context, rec *database.MediaRecord) (string, error) {
	dir := path.Join(m.config.TrashDirName, rec.Subfolder)
	srcAbs := m.abs(rec.PathCanon)
	for n := 0; n < maxSuffix; n++ {
		rel := path.Join(dir, suffixed(rec.Filename, n))
		free, err := m.destFree(ctx, srcAbs, rel)
		if err != nil {
			return "", err
		}
		if free {
			return rel, nil
		}
	}
	return "", fmt.Errorf("no free trash name for %s: %w", rec.PathCanon, ErrConflict)
}

// destFree reports whether rel is unused on disk and in the catalog, and
// whether every sidecar the source has can follow it without overwriting.
func (m *Manager) destFree(ctx context.Context, srcAbs, rel string) (bool, error) {
	dstAbs := m.abs(rel)
	if filesystem.Exists(dstAbs) {
		return false, nil
	}
	_, err := m.db.GetTrashedRecordByPath(ctx, rel)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return false, err
	}

	src, dst := m.companions(srcAbs), m.companions(dstAbs)
	for i := range src {
		if filesystem.Exists(src[i]) && filesystem.Exists(dst[i]) {
			return false, nil
		}
	}
	return true, nil
}

// Restore moves trashed files back to their original paths. An occupied
// destination is a conflict and nothing moves. A trashed record whose file
// has disappeared is deleted instead.
func (m *Manager) Restore(ctx context.Context, paths []string) []ItemResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]ItemResult, 0, len(paths))
	for _, p := range paths {
		newPath, err := m.restoreOne(ctx, p)
		r := result("restore", p, err)
		r.NewPath = newPath
		results = append(results, r)
	}
	if len(paths) > 0 {
		m.finalize(ctx, "restore")
	}
	return results
}

func (m *Manager) restoreOne(ctx context.Context, p string) (string, error) {
	if err := validate(p); err != nil {
		return "", err
	}
	rec, err := m.db.GetTrashedRecordByPath(ctx, p)
	if errors.Is(err, database.ErrNotFound) {
		return "", fmt.Errorf("%s is not in the trash: %w", p, ErrNotFound)
	}
	if err != nil {
		return "", err
	}

	trashedAbs := m.abs(p)
	if _, err := os.Lstat(trashedAbs); errors.Is(err, os.ErrNotExist) {
		if err := m.deleteOrphan(ctx, rec); err != nil {
			return "", err
		}
		return "", fmt.Errorf("trashed file missing, orphaned record deleted: %w", ErrNotFound)
	}

	orig := rec.OriginalPathCanon
	destAbs := m.abs(orig)
	if filesystem.Exists(destAbs) {
		return "", fmt.Errorf("%s already exists: %w", orig, ErrConflict)
	}
	if _, err := m.db.GetRecordByPath(ctx, orig); err == nil {
		return "", fmt.Errorf("%s is cataloged again: %w", orig, ErrConflict)
	} else if !errors.Is(err, database.ErrNotFound) {
		return "", err
	}

	requeue := m.needsRequeue(rec)

	moved, err := m.move(trashedAbs, destAbs, true)
	if err != nil {
		return "", err
	}

	var applied bool
	err = m.db.WithTx(ctx, "restore", func(tx *sql.Tx) error {
		var err error
		applied, err = m.db.MarkRestored(ctx, tx, rec.ID, database.LocationOf(orig), requeue)
		return err
	})
	switch {
	case errors.Is(err, database.ErrPathConflict):
		err = fmt.Errorf("%s: %w", orig, ErrConflict)
	case err == nil && !applied:
		err = fmt.Errorf("%s changed during restore: %w", p, ErrNotFound)
	}
	if err != nil {
		undo(moved)
		return "", err
	}

	gen := generatedDelta(rec)
	if requeue {
		gen = 0
	}
	m.statsDelta(1, gen)
	logging.Info("Restored %s -> %s (requeue=%v)", p, orig, requeue)
	return orig, nil
}

// needsRequeue reports whether a restored record's Generated thumbnail can
// no longer be trusted: the cache file is gone or was rewritten after the
// record's last generation.
func (m *Manager) needsRequeue(rec *database.MediaRecord) bool {
	if rec.ThumbnailStatus != database.ThumbnailGenerated {
		return false
	}
	if rec.ThumbnailLastGeneratedAt == nil || m.config.ThumbDir == "" {
		return true
	}
	info, err := os.Stat(filepath.Join(m.config.ThumbDir, rec.ThumbHash+media.ThumbExt))
	if err != nil {
		return true
	}
	return float64(info.ModTime().UnixNano())/1e9 > *rec.ThumbnailLastGeneratedAt
}

// deleteOrphan removes a trashed record whose file no longer exists.
func (m *Manager) deleteOrphan(ctx context.Context, rec *database.MediaRecord) error {
	err := m.db.WithTx(ctx, "delete_orphan", func(tx *sql.Tx) error {
		return m.db.DeleteRecord(ctx, tx, rec.ID)
	})
	if err != nil {
		return fmt.Errorf("delete orphaned record: %w", err)
	}
	m.removeSidecars(m.abs(rec.PathCanon))
	m.removeThumbIfUnused(ctx, rec.ThumbHash)
	logging.Info("Deleted orphaned trash record %s", rec.PathCanon)
	return nil
}
