package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func setupTestDB(t testing.TB) *Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newRecord(path string, mtime float64) *MediaRecord {
	dir, file := filepath.Split(path)
	dir = filepath.Clean(dir)
	if dir == "." {
		dir = ""
	}
	top := dir
	if i := strings.IndexByte(dir, '/'); i >= 0 {
		top = dir[:i]
	}
	return &MediaRecord{
		PathCanon:         path,
		Filename:          file,
		Subfolder:         dir,
		TopLevelSubfolder: top,
		Format:            "png",
		SizeBytes:         100,
		Mtime:             mtime,
		ThumbHash:         "hash-" + path,
	}
}

func insert(t *testing.T, db *Database, rec *MediaRecord) int64 {
	t.Helper()
	var id int64
	err := db.WithTx(context.Background(), "test_insert", func(tx *sql.Tx) error {
		var err error
		id, err = db.InsertRecord(context.Background(), tx, rec)
		return err
	})
	if err != nil {
		t.Fatalf("InsertRecord(%s) error = %v", rec.PathCanon, err)
	}
	return id
}

func trash(t *testing.T, db *Database, id int64, newPath string) {
	t.Helper()
	rec := newRecord(newPath, 0)
	err := db.WithTx(context.Background(), "test_trash", func(tx *sql.Tx) error {
		ok, err := db.MarkTrashed(context.Background(), tx, id, Location{
			PathCanon: rec.PathCanon, Filename: rec.Filename,
			Subfolder: rec.Subfolder, TopLevelSubfolder: rec.TopLevelSubfolder,
		})
		if !ok && err == nil {
			t.Errorf("MarkTrashed(%d) did not apply", id)
		}
		return err
	})
	if err != nil {
		t.Fatalf("MarkTrashed error = %v", err)
	}
}

func TestNewCreatesDatabaseFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q", db.Path())
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestNewIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	for i := 0; i < 2; i++ {
		db, err := New(context.Background(), dbPath)
		if err != nil {
			t.Fatalf("New() run %d error = %v", i, err)
		}
		db.Close()
	}
}

func TestTrashInvariantEnforcedBySchema(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		trashed  int
		original any
	}{
		{"trashed without original", 1, nil},
		{"live with original", 0, "a/img.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.db.ExecContext(ctx, `
				INSERT INTO media_records (path_canon, filename, thumb_hash, is_trashed, original_path_canon, discovered_at, last_synced_at)
				VALUES ('x.png', 'x.png', 'h', ?, ?, 0, 0)`, tt.trashed, tt.original)
			if err == nil {
				t.Error("insert violating the trash invariant succeeded")
			}
		})
	}
}

func TestInsertAndGetRecord(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := newRecord("a/b/img.png", 1700000000.5)
	w, h := 1024, 768
	rec.Width, rec.Height = &w, &h
	rec.AspectRatioLabel = "4:3"
	rec.PromptText = "a cat"
	rec.PromptSource = SourceSidecar
	rec.Tags = []string{"Cat", " animal ", "cat", ""}

	id := insert(t, db, rec)

	got, err := db.GetRecordByPath(ctx, "a/b/img.png")
	if err != nil {
		t.Fatalf("GetRecordByPath() error = %v", err)
	}

	if got.ID != id || got.Subfolder != "a/b" || got.TopLevelSubfolder != "a" || got.Filename != "img.png" {
		t.Errorf("identity fields = %+v", got)
	}
	if got.Width == nil || *got.Width != 1024 || got.Height == nil || *got.Height != 768 {
		t.Errorf("dimensions = %v x %v", got.Width, got.Height)
	}
	if got.PromptSource != SourceSidecar || got.WorkflowSource != SourceNone {
		t.Errorf("sources = %q, %q", got.PromptSource, got.WorkflowSource)
	}
	if got.ThumbnailStatus != ThumbnailPending || got.ThumbnailPriorityScore != PriorityDefault {
		t.Errorf("thumbnail state = %v/%d", got.ThumbnailStatus, got.ThumbnailPriorityScore)
	}
	if got.ThumbnailLastGeneratedAt != nil {
		t.Error("new record has a last-generated time")
	}
	if !reflect.DeepEqual(got.Tags, []string{"animal", "cat"}) {
		t.Errorf("Tags = %v", got.Tags)
	}
	if got.Mtime != 1700000000.5 {
		t.Errorf("Mtime = %v", got.Mtime)
	}

	if _, err := db.GetRecordByPath(ctx, "missing.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRecordByPath(missing) error = %v, want ErrNotFound", err)
	}
}

func TestPathUniqueAmongLiveRecordsOnly(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id := insert(t, db, newRecord("a/img.png", 1))

	err := db.WithTx(ctx, "dup", func(tx *sql.Tx) error {
		_, err := db.InsertRecord(ctx, tx, newRecord("a/img.png", 2))
		return err
	})
	if !errors.Is(err, ErrPathConflict) {
		t.Fatalf("duplicate live insert error = %v, want ErrPathConflict", err)
	}

	trash(t, db, id, "trash/a/img.png")

	// A new file at the original path may coexist with the trashed record.
	insert(t, db, newRecord("a/img.png", 3))

	// Restoring onto the occupied path is rejected by the store.
	err = db.WithTx(ctx, "restore", func(tx *sql.Tx) error {
		_, err := db.MarkRestored(ctx, tx, id, Location{PathCanon: "a/img.png", Filename: "img.png", Subfolder: "a", TopLevelSubfolder: "a"}, false)
		return err
	})
	if !errors.Is(err, ErrPathConflict) {
		t.Errorf("restore onto live path error = %v, want ErrPathConflict", err)
	}
}

func TestTrashAndRestoreRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id := insert(t, db, newRecord("a/b/img.png", 1))
	trash(t, db, id, "trash/a/b/img_1.png")

	trashed, err := db.GetTrashedRecordByPath(ctx, "trash/a/b/img_1.png")
	if err != nil {
		t.Fatalf("GetTrashedRecordByPath() error = %v", err)
	}
	if !trashed.IsTrashed || trashed.OriginalPathCanon != "a/b/img.png" || trashed.Filename != "img_1.png" {
		t.Errorf("trashed record = %+v", trashed)
	}
	if _, err := db.GetRecordByPath(ctx, "a/b/img.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("trashed record still visible at original path: %v", err)
	}

	err = db.WithTx(ctx, "restore", func(tx *sql.Tx) error {
		_, err := db.MarkRestored(ctx, tx, id, Location{PathCanon: "a/b/img.png", Filename: "img.png", Subfolder: "a/b", TopLevelSubfolder: "a"}, false)
		return err
	})
	if err != nil {
		t.Fatalf("MarkRestored() error = %v", err)
	}

	restored, err := db.GetRecordByPath(ctx, "a/b/img.png")
	if err != nil {
		t.Fatalf("GetRecordByPath() after restore error = %v", err)
	}
	if restored.IsTrashed || restored.OriginalPathCanon != "" || restored.Subfolder != "a/b" {
		t.Errorf("restored record = %+v", restored)
	}
}

func TestUpdateRecordResetsThumbnail(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id := insert(t, db, newRecord("img.png", 1))
	if _, err := db.TransitionThumbnail(ctx, ThumbnailTransition{ID: id, To: ThumbnailGenerated, Score: PriorityDefault, GeneratedAt: 5}); err != nil {
		t.Fatal(err)
	}

	rec := newRecord("img.png", 10)
	rec.ID = id
	rec.Tags = []string{"new"}
	err := db.WithTx(ctx, "update", func(tx *sql.Tx) error {
		ok, err := db.UpdateRecord(ctx, tx, rec)
		if !ok && err == nil {
			t.Error("UpdateRecord did not apply")
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := db.GetRecordByID(ctx, id)
	if got.ThumbnailStatus != ThumbnailPending || got.ThumbnailPriorityScore != PriorityDefault || got.ThumbnailLastGeneratedAt != nil {
		t.Errorf("thumbnail state after update = %v/%d/%v", got.ThumbnailStatus, got.ThumbnailPriorityScore, got.ThumbnailLastGeneratedAt)
	}
	if got.Mtime != 10 || !reflect.DeepEqual(got.Tags, []string{"new"}) {
		t.Errorf("content after update = mtime %v tags %v", got.Mtime, got.Tags)
	}
}

func TestUpdateRecordSkipsTrashed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id := insert(t, db, newRecord("img.png", 1))
	trash(t, db, id, "trash/img.png")

	rec := newRecord("img.png", 2)
	rec.ID = id
	err := db.WithTx(ctx, "update", func(tx *sql.Tx) error {
		ok, err := db.UpdateRecord(ctx, tx, rec)
		if ok {
			t.Error("UpdateRecord applied to a trashed record")
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBaselineAndStaleSweepIgnoreTrashed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	keep := insert(t, db, newRecord("keep.png", 1))
	gone := insert(t, db, newRecord("gone.png", 1))
	trashedID := insert(t, db, newRecord("old.png", 1))
	trash(t, db, trashedID, "trash/old.png")

	baseline, err := db.LoadBaseline(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(baseline) != 2 || baseline["keep.png"].ID != keep || baseline["gone.png"].ID != gone {
		t.Errorf("baseline = %+v", baseline)
	}

	var removed int64
	err = db.WithTx(ctx, "sweep", func(tx *sql.Tx) error {
		var err error
		removed, err = db.DeleteStaleRecords(ctx, tx, []int64{gone, trashedID})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := db.GetRecordByID(ctx, trashedID); err != nil {
		t.Errorf("trashed record was swept: %v", err)
	}
}

func TestTagsCascadeOnDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := newRecord("img.png", 1)
	rec.Tags = []string{"sunset"}
	id := insert(t, db, rec)

	err := db.WithTx(ctx, "delete", func(tx *sql.Tx) error {
		return db.DeleteRecord(ctx, tx, id)
	})
	if err != nil {
		t.Fatal(err)
	}

	var links int
	if err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media_tags`).Scan(&links); err != nil {
		t.Fatal(err)
	}
	if links != 0 {
		t.Errorf("media_tags rows after delete = %d, want 0", links)
	}

	var pruned int64
	err = db.WithTx(ctx, "prune", func(tx *sql.Tx) error {
		var err error
		pruned, err = db.PruneUnusedTags(ctx, tx)
		return err
	})
	if err != nil || pruned != 1 {
		t.Errorf("PruneUnusedTags() = %d, %v", pruned, err)
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" B", "a", "b", "", "A "})
	if !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("NormalizeTags() = %v", got)
	}
}

func TestFolderAggregatesAndCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	insert(t, db, newRecord("root.png", 1))
	insert(t, db, newRecord("a/one.png", 1))
	gen := insert(t, db, newRecord("a/two.png", 1))
	trashedID := insert(t, db, newRecord("b/three.png", 1))
	trash(t, db, trashedID, "trash/b/three.png")

	if _, err := db.TransitionThumbnail(ctx, ThumbnailTransition{ID: gen, To: ThumbnailGenerated, Score: PriorityDefault, GeneratedAt: 2}); err != nil {
		t.Fatal(err)
	}

	if err := db.WithTx(ctx, "aggregates", func(tx *sql.Tx) error {
		return db.RebuildFolderAggregates(ctx, tx)
	}); err != nil {
		t.Fatal(err)
	}

	aggs, err := db.GetFolderAggregates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []FolderAggregate{{FolderPath: "", ImageCount: 1}, {FolderPath: "a", ImageCount: 2}}
	if !reflect.DeepEqual(aggs, want) {
		t.Errorf("aggregates = %+v, want %+v", aggs, want)
	}

	total, generated, err := db.CountCatalog(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || generated != 1 {
		t.Errorf("CountCatalog() = %d, %d, want 3, 1", total, generated)
	}
}

func TestMetadataTimes(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	got, err := db.GetTime(ctx, MetaLastSyncAt)
	if err != nil || !got.IsZero() {
		t.Fatalf("GetTime(unset) = %v, %v", got, err)
	}

	now := time.Date(2025, 1, 2, 3, 4, 5, 600, time.UTC)
	if err := db.SetTime(ctx, MetaLastSyncAt, now); err != nil {
		t.Fatal(err)
	}
	got, err = db.GetTime(ctx, MetaLastSyncAt)
	if err != nil || !got.Equal(now) {
		t.Errorf("GetTime() = %v, %v, want %v", got, err, now)
	}

	if err := db.SetTime(ctx, MetaLastSyncAt, time.Time{}); err != nil {
		t.Fatal(err)
	}
	if got, _ := db.GetTime(ctx, MetaLastSyncAt); !got.IsZero() {
		t.Errorf("GetTime() after clear = %v", got)
	}

	if _, err := db.GetMetadata(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMetadata(missing) error = %v", err)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTx(ctx, "rollback", func(tx *sql.Tx) error {
		if _, err := db.InsertRecord(ctx, tx, newRecord("img.png", 1)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}
	if total, _, _ := db.CountCatalog(ctx); total != 0 {
		t.Errorf("record survived rollback, total = %d", total)
	}
}

func TestLocationOf(t *testing.T) {
	tests := []struct {
		in   string
		want Location
	}{
		{"img.png", Location{PathCanon: "img.png", Filename: "img.png"}},
		{"a/img.png", Location{PathCanon: "a/img.png", Filename: "img.png", Subfolder: "a", TopLevelSubfolder: "a"}},
		{"trash/a/b/img_1.png", Location{PathCanon: "trash/a/b/img_1.png", Filename: "img_1.png", Subfolder: "trash/a/b", TopLevelSubfolder: "trash"}},
	}
	for _, tt := range tests {
		if got := LocationOf(tt.in); got != tt.want {
			t.Errorf("LocationOf(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
