package thumbnails

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/memory"
	"media-catalog/internal/metrics"
	"media-catalog/internal/stats"
	"media-catalog/internal/workers"
)

// ErrFailedPermanent is returned by GetThumbnail for a record whose
// generation failed permanently, unless regeneration is forced.
var ErrFailedPermanent = errors.New("thumbnail generation failed permanently")

// Config controls the thumbnail service.
type Config struct {
	// MediaDir is the media root that canonical paths are relative to.
	MediaDir string
	// EditsDirName is the per-folder directory holding edit sidecars.
	EditsDirName string
	// Workers is the number of background worker goroutines.
	Workers int
	// IdleInterval is how long a worker sleeps when the queue is empty.
	IdleInterval time.Duration
	// Pause is the brief sleep between successful jobs.
	Pause time.Duration
	// MaxBackoff caps the sleep after consecutive failures.
	MaxBackoff time.Duration
	// TempGrace is the age after which unrecognised files in the cache
	// directory are treated as abandoned temp files.
	TempGrace time.Duration
}

// DefaultConfig returns service defaults for mediaDir.
func DefaultConfig(mediaDir string) Config {
	return Config{
		MediaDir:     mediaDir,
		EditsDirName: "_edits",
		Workers:      workers.ForMixed(4),
		IdleInterval: 5 * time.Second,
		Pause:        100 * time.Millisecond,
		MaxBackoff:   time.Minute,
		TempGrace:    time.Hour,
	}
}

// Service owns the thumbnail state machine: the background worker pool,
// the on-demand fetch path and cache reconciliation.
type Service struct {
	db        *database.Database
	generator *media.Generator
	stats     *stats.Cache
	memory    *memory.Monitor
	config    Config

	claimMu sync.Mutex
	claimed map[int64]struct{}

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a Service. mon may be nil to disable memory backpressure.
func New(db *database.Database, gen *media.Generator, cache *stats.Cache, mon *memory.Monitor, config Config) *Service {
	def := DefaultConfig(config.MediaDir)
	if config.EditsDirName == "" {
		config.EditsDirName = def.EditsDirName
	}
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.IdleInterval <= 0 {
		config.IdleInterval = def.IdleInterval
	}
	if config.Pause < 0 {
		config.Pause = 0
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = def.MaxBackoff
	}
	if config.TempGrace <= 0 {
		config.TempGrace = def.TempGrace
	}

	return &Service{
		db:        db,
		generator: gen,
		stats:     cache,
		memory:    mon,
		config:    config,
		claimed:   make(map[int64]struct{}),
	}
}

// GetThumbnail returns the JPEG for the live record at pathCanon. A fresh
// cached file is served as is; a stale or missing one is regenerated
// before returning, so callers never receive an outdated image.
func (s *Service) GetThumbnail(ctx context.Context, pathCanon string, force bool) ([]byte, error) {
	job, err := s.db.GetThumbnailJob(ctx, pathCanon)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			metrics.ThumbnailRequestsTotal.WithLabelValues("not_found").Inc()
			return nil, fmt.Errorf("%s: %w", pathCanon, database.ErrNotFound)
		}
		return nil, err
	}

	if job.Status == database.ThumbnailFailedPermanent && !force {
		metrics.ThumbnailRequestsTotal.WithLabelValues("failed_permanent").Inc()
		return nil, fmt.Errorf("%s: %w", pathCanon, ErrFailedPermanent)
	}

	if !force && s.isFresh(job) {
		data, err := os.ReadFile(s.generator.ThumbPath(job.ThumbHash))
		if err == nil {
			metrics.ThumbnailRequestsTotal.WithLabelValues("hit").Inc()
			return data, nil
		}
		logging.Debug("Cached thumbnail for %s unreadable: %v", pathCanon, err)
	}

	if job.Status == database.ThumbnailGenerated {
		s.markStale(ctx, job)
	}

	metrics.ThumbnailRequestsTotal.WithLabelValues("generated").Inc()
	return s.generate(ctx, job)
}

// SetVisible raises the urgency of the given records' thumbnails. Only
// Pending and Prioritized rows change. It returns the number raised.
func (s *Service) SetVisible(ctx context.Context, paths []string) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	n, err := s.db.PrioritizeThumbnails(ctx, paths)
	if err != nil {
		return 0, fmt.Errorf("prioritize thumbnails: %w", err)
	}
	metrics.ThumbnailTransitionsTotal.WithLabelValues(database.ThumbnailPrioritized.String()).Add(float64(n))
	return n, nil
}

// isFresh applies the staleness rules: the row must be Generated, stamped
// no earlier than the source mtime and the edit sidecar, and the cache
// file must exist.
func (s *Service) isFresh(job *database.ThumbnailJob) bool {
	if job.Status != database.ThumbnailGenerated || job.LastGeneratedAt == nil {
		return false
	}
	if job.Mtime > *job.LastGeneratedAt {
		return false
	}
	// The row mtime only moves on sync; the file may have changed since.
	if info, err := os.Stat(s.absPath(job.PathCanon)); err != nil ||
		epochSeconds(info.ModTime()) > *job.LastGeneratedAt {
		return false
	}
	if job.HasEditFile {
		if info, err := os.Stat(s.editPath(job.PathCanon)); err == nil &&
			epochSeconds(info.ModTime()) > *job.LastGeneratedAt {
			return false
		}
	}
	_, err := os.Stat(s.generator.ThumbPath(job.ThumbHash))
	return err == nil
}

// markStale demotes a Generated row found stale at read time.
func (s *Service) markStale(ctx context.Context, job *database.ThumbnailJob) {
	res, err := s.db.TransitionThumbnail(ctx, database.ThumbnailTransition{
		ID:    job.ID,
		To:    database.ThumbnailPending,
		Score: database.PriorityDefault,
		From:  []database.ThumbnailStatus{database.ThumbnailGenerated},
	})
	if err != nil {
		logging.Warn("Failed to mark thumbnail stale for %s: %v", job.PathCanon, err)
		return
	}
	s.observe(res, database.ThumbnailPending)
	job.Status = database.ThumbnailPending
}

// generate renders job through the shared generation routine and records
// the outcome on the row.
func (s *Service) generate(ctx context.Context, job *database.ThumbnailJob) ([]byte, error) {
	req := media.Request{
		SourcePath: s.absPath(job.PathCanon),
		ThumbHash:  job.ThumbHash,
		EditPath:   s.editPath(job.PathCanon),
	}
	inputs := s.inputsMtime(job, req)

	data, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.recordFailure(ctx, job, err)
		return nil, err
	}
	// A source dated ahead of the local clock would otherwise never look
	// fresh, so the stamp covers the inputs' mtimes.
	s.recordSuccess(ctx, job, max(epochSeconds(time.Now()), inputs))
	return data, nil
}

// inputsMtime returns the newest mtime among the row, the source file and
// the edit sidecar, read before generation starts.
func (s *Service) inputsMtime(job *database.ThumbnailJob, req media.Request) float64 {
	newest := job.Mtime
	for _, p := range []string{req.SourcePath, req.EditPath} {
		if info, err := os.Stat(p); err == nil {
			newest = max(newest, epochSeconds(info.ModTime()))
		}
	}
	return newest
}

func (s *Service) recordSuccess(ctx context.Context, job *database.ThumbnailJob, stamp float64) {
	res, err := s.db.TransitionThumbnail(ctx, database.ThumbnailTransition{
		ID:          job.ID,
		To:          database.ThumbnailGenerated,
		Score:       database.PriorityDefault,
		GeneratedAt: stamp,
		ExpectMtime: job.Mtime,
	})
	if err != nil {
		logging.Error("Failed to record thumbnail for %s: %v", job.PathCanon, err)
		return
	}
	if !res.Applied {
		logging.Debug("Source of %s changed during generation, leaving it queued", job.PathCanon)
	}
	s.observe(res, database.ThumbnailGenerated)
}

func (s *Service) recordFailure(ctx context.Context, job *database.ThumbnailJob, genErr error) {
	t := database.ThumbnailTransition{
		ID:    job.ID,
		To:    database.ThumbnailPending,
		Score: max(job.Score, database.PriorityBackoff),
		From:  []database.ThumbnailStatus{database.ThumbnailPending, database.ThumbnailPrioritized},
	}
	if media.IsPermanent(genErr) {
		t = database.ThumbnailTransition{
			ID:    job.ID,
			To:    database.ThumbnailFailedPermanent,
			Score: database.PriorityNever,
		}
		s.removeCached(job.ThumbHash)
		logging.Warn("Thumbnail for %s failed permanently: %v", job.PathCanon, genErr)
	} else {
		logging.Warn("Thumbnail for %s failed, will retry: %v", job.PathCanon, genErr)
	}

	res, err := s.db.TransitionThumbnail(ctx, t)
	if err != nil {
		logging.Error("Failed to record thumbnail failure for %s: %v", job.PathCanon, err)
		return
	}
	s.observe(res, t.To)
}

// observe keeps the stats cache and metrics in step with an applied
// transition. Trashed rows are not counted by the cache.
func (s *Service) observe(res database.TransitionResult, to database.ThumbnailStatus) {
	if !res.Applied {
		return
	}
	metrics.ThumbnailTransitionsTotal.WithLabelValues(to.String()).Inc()
	if res.Trashed || s.stats == nil {
		return
	}
	switch {
	case to == database.ThumbnailGenerated && res.Previous != database.ThumbnailGenerated:
		s.stats.AddGenerated(1)
	case to != database.ThumbnailGenerated && res.Previous == database.ThumbnailGenerated:
		s.stats.SubGenerated(1)
	}
}

func (s *Service) removeCached(hash string) {
	err := os.Remove(s.generator.ThumbPath(hash))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Failed to remove cached thumbnail %s: %v", hash, err)
	}
}

func (s *Service) absPath(pathCanon string) string {
	return filepath.Join(s.config.MediaDir, filepath.FromSlash(pathCanon))
}

func (s *Service) editPath(pathCanon string) string {
	dir, name := filepath.Split(s.absPath(pathCanon))
	return filepath.Join(dir, s.config.EditsDirName, mediatypes.EditSidecarName(name))
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
