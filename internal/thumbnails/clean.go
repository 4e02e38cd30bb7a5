package thumbnails

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"time"

	"media-catalog/internal/database"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/metrics"
)

// CleanResult summarises a cache reconciliation pass.
type CleanResult struct {
	OrphansRemoved int           `json:"orphansRemoved"`
	TempRemoved    int           `json:"tempRemoved"`
	Requeued       int           `json:"requeued"`
	Errors         []string      `json:"errors,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// CleanThumbnails reconciles the cache directory with the catalog. Cache
// files whose hash no record holds are removed, abandoned temp files are
// removed, and Generated rows whose file is missing or undecodable are
// queued again. Per-file failures are collected, not fatal.
func (s *Service) CleanThumbnails(ctx context.Context) (CleanResult, error) {
	start := time.Now()
	var result CleanResult

	entries, err := os.ReadDir(s.generator.ThumbDir())
	if err != nil {
		return result, fmt.Errorf("read thumbnail dir: %w", err)
	}

	hashes, err := s.db.ThumbHashes(ctx)
	if err != nil {
		return result, fmt.Errorf("load thumb hashes: %w", err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(s.generator.ThumbDir(), name)

		hash, ok := media.IsThumbName(name)
		if !ok {
			if s.removeTemp(path, entry, &result) {
				result.TempRemoved++
				metrics.ThumbnailCleanupRemoved.WithLabelValues("temp_removed").Inc()
			}
			continue
		}
		if _, known := hashes[hash]; known {
			continue
		}

		// A record may have been cataloged since the hash snapshot.
		if inUse, err := s.db.ThumbHashInUse(ctx, hash); err != nil || inUse {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			result.Errors = append(result.Errors, fmt.Sprintf("remove %s: %v", name, err))
			continue
		}
		result.OrphansRemoved++
		metrics.ThumbnailCleanupRemoved.WithLabelValues("orphan_removed").Inc()
	}

	requeued, err := s.requeueBroken(ctx, &result)
	if err != nil {
		return result, err
	}
	result.Requeued = requeued

	if err := s.db.SetTime(ctx, database.MetaLastThumbnailCleanAt, time.Now()); err != nil {
		logging.Warn("Failed to record thumbnail clean time: %v", err)
	}

	result.Duration = time.Since(start)
	logging.Info("Thumbnail cleanup: orphans=%d temp=%d requeued=%d errors=%d in %v",
		result.OrphansRemoved, result.TempRemoved, result.Requeued, len(result.Errors),
		result.Duration.Round(time.Millisecond))
	return result, nil
}

// removeTemp deletes an unrecognised cache file once it is older than the
// grace period. Younger files may be writes still in flight.
func (s *Service) removeTemp(path string, entry os.DirEntry, result *CleanResult) bool {
	info, err := entry.Info()
	if err != nil || time.Since(info.ModTime()) < s.config.TempGrace {
		return false
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		result.Errors = append(result.Errors, fmt.Sprintf("remove %s: %v", entry.Name(), err))
		return false
	}
	return true
}

// requeueBroken demotes Generated rows whose cache file is gone or cannot
// be decoded. Undecodable files are removed.
func (s *Service) requeueBroken(ctx context.Context, result *CleanResult) (int, error) {
	jobs, err := s.db.ListGeneratedJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list generated thumbnails: %w", err)
	}

	var broken []int64
	for _, job := range jobs {
		path := s.generator.ThumbPath(job.ThumbHash)
		if err := checkThumb(path); err != nil {
			logging.Debug("Requeueing %s: %v", job.PathCanon, err)
			if !errors.Is(err, os.ErrNotExist) {
				if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
					result.Errors = append(result.Errors, fmt.Sprintf("remove %s: %v", filepath.Base(path), rmErr))
				}
			}
			broken = append(broken, job.ID)
		}
	}
	if len(broken) == 0 {
		return 0, nil
	}

	n, err := s.db.RequeueGenerated(ctx, broken)
	if err != nil {
		return 0, fmt.Errorf("requeue thumbnails: %w", err)
	}
	metrics.ThumbnailCleanupRemoved.WithLabelValues("requeued").Add(float64(n))
	if s.stats != nil {
		s.stats.SubGenerated(n)
	}
	return int(n), nil
}

// checkThumb verifies that path holds a decodable JPEG header.
func checkThumb(path string) error {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return err
	}
	defer f.Close()

	if _, format, err := image.DecodeConfig(f); err != nil {
		return fmt.Errorf("undecodable: %w", err)
	} else if format != "jpeg" {
		return fmt.Errorf("unexpected format %s", format)
	}
	return nil
}
