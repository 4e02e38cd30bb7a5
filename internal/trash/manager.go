package trash

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/metrics"
	"media-catalog/internal/stats"
)

var (
	// ErrConflict means the operation would overwrite or bypass something
	// and was refused without side effects.
	ErrConflict = errors.New("conflict")
	// ErrNotFound means no matching record exists.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPath means a path is not a canonical media-relative path.
	ErrInvalidPath = errors.New("invalid path")
)

// Status is the per-item outcome of a batch operation.
type Status string

const (
	StatusOK       Status = "ok"
	StatusConflict Status = "conflict"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

// ItemResult reports what happened to one path of a batch.
type ItemResult struct {
	Path    string `json:"path"`
	Status  Status `json:"status"`
	NewPath string `json:"newPath,omitempty"`
	Message string `json:"message,omitempty"`
	// Err carries the underlying error for errors.Is checks.
	Err error `json:"-"`
}

// EmptyResult reports an EmptyTrash run. Filesystem and record deletion
// proceed independently; their failures are collected in Errors.
type EmptyResult struct {
	FilesDeleted   int      `json:"filesDeleted"`
	RecordsDeleted int64    `json:"recordsDeleted"`
	Errors         []string `json:"errors,omitempty"`
}

// Config locates the trees the manager moves files between.
type Config struct {
	MediaDir     string
	TrashDirName string
	EditsDirName string
	ThumbDir     string
}

// Manager implements the trash lifecycle: soft delete, restore, permanent
// delete and emptying the trash. Operations are serialized with each other.
type Manager struct {
	db     *database.Database
	stats  *stats.Cache
	config Config

	mu sync.Mutex
}

// New creates a Manager.
func New(db *database.Database, cache *stats.Cache, config Config) *Manager {
	if config.TrashDirName == "" {
		config.TrashDirName = "trash"
	}
	if config.EditsDirName == "" {
		config.EditsDirName = "_edits"
	}
	return &Manager{db: db, stats: cache, config: config}
}

// TrashRoot returns the absolute trash directory.
func (m *Manager) TrashRoot() string {
	return filepath.Join(m.config.MediaDir, m.config.TrashDirName)
}

func (m *Manager) abs(pathCanon string) string {
	return filepath.Join(m.config.MediaDir, filepath.FromSlash(pathCanon))
}

// validate rejects anything that is not a clean relative POSIX path.
func validate(p string) error {
	if p == "" || !fs.ValidPath(p) || p == "." || path.Clean(p) != p {
		return fmt.Errorf("%q: %w", p, ErrInvalidPath)
	}
	return nil
}

// result builds an ItemResult from err and counts it.
func result(op, p string, err error) ItemResult {
	r := ItemResult{Path: p, Status: StatusOK, Err: err}
	switch {
	case err == nil:
	case errors.Is(err, ErrConflict):
		r.Status = StatusConflict
	case errors.Is(err, ErrNotFound):
		r.Status = StatusNotFound
	default:
		r.Status = StatusError
	}
	if err != nil {
		r.Message = err.Error()
		logging.Warn("%s %s: %v", op, p, err)
	}
	metrics.TrashOperationsTotal.WithLabelValues(op, string(r.Status)).Inc()
	return r
}

// finalize rebuilds the folder aggregates after a batch changed which
// records are live.
func (m *Manager) finalize(ctx context.Context, op string) {
	err := m.db.WithTx(ctx, op+"_finalize", func(tx *sql.Tx) error {
		return m.db.RebuildFolderAggregates(ctx, tx)
	})
	if err != nil {
		logging.Error("Failed to rebuild folder aggregates after %s: %v", op, err)
	}
}

// removeThumb deletes the cached thumbnail for hash, if any.
func (m *Manager) removeThumb(hash string) {
	if m.config.ThumbDir == "" || hash == "" {
		return
	}
	err := os.Remove(filepath.Join(m.config.ThumbDir, hash+media.ThumbExt))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Failed to remove thumbnail %s: %v", hash, err)
	}
}

func (m *Manager) statsDelta(records, generated int64) {
	if m.stats == nil {
		return
	}
	switch {
	case records > 0:
		m.stats.AddRecords(records)
	case records < 0:
		m.stats.SubRecords(-records)
	}
	switch {
	case generated > 0:
		m.stats.AddGenerated(generated)
	case generated < 0:
		m.stats.SubGenerated(-generated)
	}
}

func generatedDelta(rec *database.MediaRecord) int64 {
	if rec.ThumbnailStatus == database.ThumbnailGenerated {
		return 1
	}
	return 0
}
