package trash

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// PermanentDelete removes live records together with their files,
// sidecars and cached thumbnails. Trashed records are refused: they must
// be restored or removed by EmptyTrash.
func (m *Manager) PermanentDelete(ctx context.Context, paths []string) []ItemResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]ItemResult, 0, len(paths))
	for _, p := range paths {
		results = append(results, result("delete", p, m.deleteOne(ctx, p)))
	}
	if len(paths) > 0 {
		m.finalize(ctx, "delete")
	}
	return results
}

func (m *Manager) deleteOne(ctx context.Context, p string) error {
	if err := validate(p); err != nil {
		return err
	}
	rec, err := m.db.GetRecordByPath(ctx, p)
	if errors.Is(err, database.ErrNotFound) {
		if _, terr := m.db.GetTrashedRecordByPath(ctx, p); terr == nil {
			return fmt.Errorf("%s is in the trash, restore it or empty the trash: %w", p, ErrConflict)
		}
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if err != nil {
		return err
	}

	// The file goes inside the transaction so a failure on either side
	// leaves both the record and the file in place.
	abs := m.abs(p)
	err = m.db.WithTx(ctx, "permanent_delete", func(tx *sql.Tx) error {
		if err := m.db.DeleteRecord(ctx, tx, rec.ID); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.removeSidecars(abs)
	m.removeThumbIfUnused(ctx, rec.ThumbHash)
	m.statsDelta(-1, -generatedDelta(rec))
	logging.Info("Permanently deleted %s", p)
	return nil
}

// EmptyTrash deletes everything under the trash root and every trashed
// record. The two halves run independently and all failures are
// collected in the result.
func (m *Manager) EmptyTrash(ctx context.Context) EmptyResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res EmptyResult

	entries, err := os.ReadDir(m.TrashRoot())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		res.Errors = append(res.Errors, fmt.Sprintf("read trash: %v", err))
	}
	for _, entry := range entries {
		p := filepath.Join(m.TrashRoot(), entry.Name())
		n := countFiles(p)
		if err := os.RemoveAll(p); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("remove %s: %v", entry.Name(), err))
			continue
		}
		res.FilesDeleted += n
	}

	trashed, err := m.db.ListTrashed(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("list trashed records: %v", err))
	}

	err = m.db.WithTx(ctx, "empty_trash", func(tx *sql.Tx) error {
		n, err := m.db.DeleteTrashedRecords(ctx, tx)
		if err != nil {
			return err
		}
		res.RecordsDeleted = n
		return m.db.RebuildFolderAggregates(ctx, tx)
	})
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("delete trashed records: %v", err))
	} else {
		for _, rec := range trashed {
			m.removeThumbIfUnused(ctx, rec.ThumbHash)
		}
	}

	if m.stats != nil {
		if err := m.stats.ForceRefresh(ctx); err != nil {
			logging.Warn("Stats refresh after emptying trash failed: %v", err)
		}
	}

	status := string(StatusOK)
	if len(res.Errors) > 0 {
		status = string(StatusError)
	}
	metrics.TrashOperationsTotal.WithLabelValues("empty", status).Inc()
	logging.Info("Emptied trash: files=%d records=%d errors=%d", res.FilesDeleted, res.RecordsDeleted, len(res.Errors))
	return res
}

// countFiles counts the non-directory entries at or below p.
func countFiles(p string) int {
	n := 0
	_ = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

// removeSidecars deletes whatever sidecars of abs exist.
func (m *Manager) removeSidecars(abs string) {
	for _, s := range m.companions(abs) {
		if err := os.Remove(s); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Failed to remove sidecar %s: %v", s, err)
		}
	}
}

// removeThumbIfUnused deletes the cached thumbnail for hash unless another
// record still refers to it.
func (m *Manager) removeThumbIfUnused(ctx context.Context, hash string) {
	inUse, err := m.db.ThumbHashInUse(ctx, hash)
	if err != nil || inUse {
		return
	}
	m.removeThumb(hash)
}
