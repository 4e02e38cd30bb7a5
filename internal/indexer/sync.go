package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metadata"
	"media-catalog/internal/metrics"
)

// SyncResult summarizes one synchronization pass.
type SyncResult struct {
	Trigger   string        `json:"trigger"`
	Scanned   int           `json:"scanned"`
	Added     int           `json:"added"`
	Updated   int           `json:"updated"`
	Removed   int           `json:"removed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// candidate is a file the walk found dirty.
type candidate struct {
	absPath   string
	pathCanon string
	thumbHash string
	size      int64
	mtime     float64
	id        int64 // baseline id, 0 when new
}

// walkResult is everything the walk learned about the tree.
type walkResult struct {
	dirty   []candidate
	seen    map[string]struct{}
	scanned int
	// unreadable directories; baseline entries below them are not swept
	unreadable []string
}

// Synchronize reconciles the catalog with the media tree. It returns
// ErrSyncInProgress if another pass is running.
func (idx *Indexer) Synchronize(ctx context.Context) (SyncResult, error) {
	return idx.synchronize(ctx, "manual")
}

func (idx *Indexer) synchronize(ctx context.Context, trigger string) (result SyncResult, err error) {
	if !idx.tryStartSync() {
		return SyncResult{}, ErrSyncInProgress
	}
	defer func() { idx.finishSync(result, err) }()

	metrics.SyncIsRunning.Set(1)
	defer metrics.SyncIsRunning.Set(0)

	result = SyncResult{Trigger: trigger, StartedAt: time.Now()}
	logging.Info("Starting synchronization (trigger: %s)", trigger)

	defer func() {
		result.Duration = time.Since(result.StartedAt)
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.SyncRunsTotal.WithLabelValues(trigger, status).Inc()
		metrics.SyncLastRunDuration.Set(result.Duration.Seconds())
		metrics.SyncLastRunTimestamp.Set(float64(time.Now().Unix()))
		metrics.SyncRecordsTotal.WithLabelValues("added").Add(float64(result.Added))
		metrics.SyncRecordsTotal.WithLabelValues("updated").Add(float64(result.Updated))
		metrics.SyncRecordsTotal.WithLabelValues("removed").Add(float64(result.Removed))
		metrics.SyncRecordsTotal.WithLabelValues("skipped").Add(float64(result.Skipped))
		metrics.SyncRecordsTotal.WithLabelValues("failed").Add(float64(result.Failed))
	}()

	baseline, err := idx.db.LoadBaseline(ctx)
	if err != nil {
		return result, fmt.Errorf("load baseline: %w", err)
	}

	walk, err := idx.walk(ctx, baseline)
	if err != nil {
		return result, err
	}
	result.Scanned = walk.scanned
	logging.Debug("Walk found %d media files, %d dirty, baseline %d", walk.scanned, len(walk.dirty), len(baseline))

	for start := 0; start < len(walk.dirty); start += idx.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := min(start+idx.config.BatchSize, len(walk.dirty))
		if err := idx.processBatch(ctx, walk.dirty[start:end], &result); err != nil {
			return result, err
		}
		if end < len(walk.dirty) {
			time.Sleep(idx.config.BatchDelay)
		}
	}

	stale := staleIDs(baseline, walk)
	err = idx.db.WithTx(ctx, "sync_finalize", func(tx *sql.Tx) error {
		removed, err := idx.db.DeleteStaleRecords(ctx, tx, stale)
		if err != nil {
			return fmt.Errorf("delete stale records: %w", err)
		}
		result.Removed = int(removed)

		if _, err := idx.db.PruneUnusedTags(ctx, tx); err != nil {
			return fmt.Errorf("prune tags: %w", err)
		}
		if err := idx.db.RebuildFolderAggregates(ctx, tx); err != nil {
			return fmt.Errorf("rebuild folder aggregates: %w", err)
		}
		if err := idx.db.SetMetadataTx(ctx, tx, database.MetaLastSyncAt, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
		return idx.db.SetMetadataTx(ctx, tx, database.MetaLastSyncDuration, time.Since(result.StartedAt).String())
	})
	if err != nil {
		return result, err
	}

	if idx.stats != nil {
		if err := idx.stats.ForceRefresh(ctx); err != nil {
			logging.Warn("Stats refresh after sync failed: %v", err)
		}
	}

	logging.Info("Synchronization complete: scanned=%d added=%d updated=%d removed=%d skipped=%d failed=%d in %v",
		result.Scanned, result.Added, result.Updated, result.Removed, result.Skipped, result.Failed,
		time.Since(result.StartedAt).Round(time.Millisecond))
	return result, nil
}

// walk visits the media tree depth-first and compares every media file
// against the baseline.
func (idx *Indexer) walk(ctx context.Context, baseline map[string]database.BaselineEntry) (*walkResult, error) {
	res := &walkResult{seen: make(map[string]struct{}, len(baseline))}
	root := idx.config.MediaDir

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			logging.Warn("Error accessing path %s: %v", path, err)
			if d == nil || d.IsDir() {
				res.unreadable = append(res.unreadable, idx.canon(path))
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		if d.IsDir() {
			if idx.skipDir(path, d.Name()) {
				return fs.SkipDir
			}
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") || !d.Type().IsRegular() {
			return nil
		}
		if !mediatypes.IsMediaFile(mediatypes.Ext(name)) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// vanished between readdir and stat
			logging.Debug("Skipping %s: %v", path, err)
			return nil
		}

		pathCanon := idx.canon(path)
		res.scanned++
		res.seen[pathCanon] = struct{}{}

		c := candidate{
			absPath:   path,
			pathCanon: pathCanon,
			thumbHash: media.ThumbHash(pathCanon),
			size:      info.Size(),
			mtime:     epochSeconds(info.ModTime()),
		}
		if b, ok := baseline[pathCanon]; ok {
			if b.Mtime == c.mtime && b.Size == c.size && b.ThumbHash == c.thumbHash {
				return nil
			}
			c.id = b.ID
		}
		res.dirty = append(res.dirty, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return res, nil
}

// skipDir reports whether a directory is pruned from the walk: the trash
// root, any edit-sidecar directory and hidden directories.
func (idx *Indexer) skipDir(path, name string) bool {
	if strings.HasPrefix(name, ".") || name == idx.config.EditsDirName {
		return true
	}
	return filepath.Clean(path) == idx.trashRoot()
}

func (idx *Indexer) trashRoot() string {
	return filepath.Join(idx.config.MediaDir, idx.config.TrashDirName)
}

// canon converts an absolute path below the media root to its catalog path.
func (idx *Indexer) canon(path string) string {
	rel, err := filepath.Rel(idx.config.MediaDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// processBatch extracts metadata for a batch in parallel and commits all
// of its upserts in one transaction.
func (idx *Indexer) processBatch(ctx context.Context, batch []candidate, result *SyncResult) error {
	records := make([]*database.MediaRecord, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.config.Workers)
	for i := range batch {
		i, c := i, batch[i]
		g.Go(func() error {
			meta, err := idx.extractor.Extract(gctx, c.absPath)
			if err != nil {
				logging.Warn("Skipping %s: %v", c.pathCanon, err)
				return nil
			}
			if meta.Err != nil {
				logging.Debug("Metadata for %s incomplete: %v", c.pathCanon, meta.Err)
			}
			records[i] = buildRecord(c, meta)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return idx.db.WithTx(ctx, "sync_batch", func(tx *sql.Tx) error {
		for i, rec := range records {
			if rec == nil {
				result.Failed++
				continue
			}
			if batch[i].id == 0 {
				_, err := idx.db.InsertRecord(ctx, tx, rec)
				if errors.Is(err, database.ErrPathConflict) {
					logging.Debug("Insert of %s lost to a concurrent change", rec.PathCanon)
					result.Skipped++
					continue
				}
				if err != nil {
					return fmt.Errorf("insert %s: %w", rec.PathCanon, err)
				}
				result.Added++
				continue
			}

			rec.ID = batch[i].id
			ok, err := idx.db.UpdateRecord(ctx, tx, rec)
			if err != nil {
				return fmt.Errorf("update %s: %w", rec.PathCanon, err)
			}
			if !ok {
				logging.Debug("Update of %s skipped, record no longer live", rec.PathCanon)
				result.Skipped++
				continue
			}
			result.Updated++
		}
		return nil
	})
}

func buildRecord(c candidate, meta metadata.Metadata) *database.MediaRecord {
	loc := database.LocationOf(c.pathCanon)
	rec := &database.MediaRecord{
		PathCanon:         loc.PathCanon,
		Filename:          loc.Filename,
		Subfolder:         loc.Subfolder,
		TopLevelSubfolder: loc.TopLevelSubfolder,
		Format:            mediatypes.Format(loc.Filename),
		SizeBytes:         c.size,
		Mtime:             c.mtime,
		AspectRatioLabel:  meta.RatioLabel,
		PromptText:        meta.Prompt,
		PromptSource:      database.MetadataSource(meta.PromptSource),
		WorkflowJSON:      meta.Workflow,
		WorkflowSource:    database.MetadataSource(meta.WorkflowSource),
		HasEditFile:       meta.HasEdits,
		Tags:              meta.Tags,
		ThumbHash:         c.thumbHash,
	}
	if meta.Width > 0 && meta.Height > 0 {
		w, h := meta.Width, meta.Height
		rec.Width, rec.Height = &w, &h
	}
	return rec
}

// staleIDs lists baseline records the walk did not see, excluding those
// below directories that could not be read.
func staleIDs(baseline map[string]database.BaselineEntry, walk *walkResult) []int64 {
	var ids []int64
	for p, b := range baseline {
		if _, ok := walk.seen[p]; ok {
			continue
		}
		if underAny(p, walk.unreadable) {
			continue
		}
		ids = append(ids, b.ID)
	}
	return ids
}

func underAny(p string, dirs []string) bool {
	for _, d := range dirs {
		if d == "." || strings.HasPrefix(p, d+"/") {
			return true
		}
	}
	return false
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
