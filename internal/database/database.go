package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Default timeout for single-statement reads
const defaultTimeout = 5 * time.Second

// maxParams bounds the number of bound parameters per statement.
const maxParams = 500

// Database is the catalog store. Reads run concurrently over WAL; every
// write transaction holds writeMu for its whole duration.
type Database struct {
	db      *sql.DB
	dbPath  string
	writeMu sync.Mutex
}

// New opens (creating if needed) the catalog at dbPath, which must be a file
// path whose parent directory already exists and is writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_temp_store=MEMORY", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS media_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path_canon TEXT NOT NULL,
	filename TEXT NOT NULL,
	subfolder TEXT NOT NULL DEFAULT '',
	top_level_subfolder TEXT NOT NULL DEFAULT '',
	format TEXT NOT NULL DEFAULT '',
	size_bytes INTEGER NOT NULL DEFAULT 0,
	mtime REAL NOT NULL DEFAULT 0,
	is_directory INTEGER NOT NULL DEFAULT 0,
	width INTEGER,
	height INTEGER,
	aspect_ratio_label TEXT,
	prompt_text TEXT,
	prompt_source TEXT NOT NULL DEFAULT 'none',
	workflow_json TEXT,
	workflow_source TEXT NOT NULL DEFAULT 'none',
	has_edit_file INTEGER NOT NULL DEFAULT 0,
	thumbnail_status INTEGER NOT NULL DEFAULT 0 CHECK (thumbnail_status BETWEEN 0 AND 3),
	thumbnail_priority_score INTEGER NOT NULL DEFAULT 1000,
	thumbnail_last_generated_at REAL,
	thumb_hash TEXT NOT NULL,
	is_trashed INTEGER NOT NULL DEFAULT 0,
	original_path_canon TEXT,
	discovered_at REAL NOT NULL,
	last_synced_at REAL NOT NULL,
	CHECK ((is_trashed = 1) = (original_path_canon IS NOT NULL))
);

-- Unique among live records only; a trashed record may share a path with a
-- file created after it was trashed.
CREATE UNIQUE INDEX IF NOT EXISTS idx_media_path_live ON media_records(path_canon) WHERE is_trashed = 0;
CREATE INDEX IF NOT EXISTS idx_media_path ON media_records(path_canon);
CREATE INDEX IF NOT EXISTS idx_media_queue ON media_records(thumbnail_status, thumbnail_priority_score, mtime DESC) WHERE is_trashed = 0;
CREATE INDEX IF NOT EXISTS idx_media_subfolder ON media_records(subfolder);
CREATE INDEX IF NOT EXISTS idx_media_thumb_hash ON media_records(thumb_hash);
CREATE INDEX IF NOT EXISTS idx_media_trashed ON media_records(is_trashed);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS media_tags (
	media_id INTEGER NOT NULL,
	tag_id INTEGER NOT NULL,
	PRIMARY KEY (media_id, tag_id),
	FOREIGN KEY (media_id) REFERENCES media_records(id) ON DELETE CASCADE,
	FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_media_tags_tag ON media_tags(tag_id);

CREATE TABLE IF NOT EXISTS folder_aggregates (
	folder_path TEXT PRIMARY KEY,
	image_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT
);
`

func (d *Database) initialize(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// WithTx runs fn inside a write transaction while holding the writer lock.
// fn's error rolls the transaction back; otherwise it is committed.
func (d *Database) WithTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	start := time.Now()
	defer func() { recordQuery(op, start, err) }()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	metrics.DBWriterWaitDuration.Observe(time.Since(start).Seconds())

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", op, err)
	}

	if err = fn(tx); err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(start).Seconds())
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(start).Seconds())
	return nil
}

// Vacuum optimizes the database.
func (d *Database) Vacuum(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("vacuum", start, err) }()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// Ping checks that the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// observeQuery returns a completion callback that records query metrics.
func observeQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		recordQuery(operation, start, err)
	}
}

func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func observeRows(operation string, n int64) {
	if n > 0 {
		metrics.DBRowsAffected.WithLabelValues(operation).Observe(float64(n))
	}
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func chunkIDs(ids []int64) [][]int64 {
	var chunks [][]int64
	for len(ids) > maxParams {
		chunks = append(chunks, ids[:maxParams])
		ids = ids[maxParams:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

func chunkStrings(items []string) [][]string {
	var chunks [][]string
	for len(items) > maxParams {
		chunks = append(chunks, items[:maxParams])
		items = items[maxParams:]
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}

// diagnoseDatabasePermissions checks the database directory is writable and
// repairs read-only WAL/SHM files left behind by a different container user.
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	if info, err := os.Stat(dbPath); err == nil && info.Mode().Perm()&0o200 == 0 {
		logging.Warn("Database file is read-only! Mode: %v", info.Mode())
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		path := dbPath + suffix
		info, err := os.Stat(path)
		if err != nil || info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only (mode %v), this will cause write failures", path, info.Mode())
		if err := os.Chmod(path, 0o600); err != nil {
			logging.Error("Failed to fix permissions on %s: %v", path, err)
		} else {
			logging.Info("Fixed permissions on %s", path)
		}
	}

	return nil
}
