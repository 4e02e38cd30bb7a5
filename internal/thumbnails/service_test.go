package thumbnails

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"testing"
	"time"

	"media-catalog/internal/database"
	"media-catalog/internal/media"
	"media-catalog/internal/stats"
)

type testEnv struct {
	db       *database.Database
	stats    *stats.Cache
	gen      *media.Generator
	svc      *Service
	mediaDir string
}

func setupTestService(t *testing.T, mutateGen func(*media.Config), mutate func(*Config)) *testEnv {
	t.Helper()

	ctx := context.Background()
	db, err := database.New(ctx, filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	genCfg := media.DefaultConfig(filepath.Join(t.TempDir(), "thumbs"))
	genCfg.Size = 64
	genCfg.FFmpegPath = filepath.Join(t.TempDir(), "no-ffmpeg")
	if mutateGen != nil {
		mutateGen(&genCfg)
	}
	gen, err := media.NewGenerator(genCfg)
	if err != nil {
		t.Fatal(err)
	}

	mediaDir := t.TempDir()
	cfg := DefaultConfig(mediaDir)
	cfg.Workers = 2
	cfg.IdleInterval = 20 * time.Millisecond
	cfg.Pause = 0
	cfg.MaxBackoff = 50 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	cache := stats.New(db)
	return &testEnv{
		db:       db,
		stats:    cache,
		gen:      gen,
		svc:      New(db, gen, cache, nil, cfg),
		mediaDir: mediaDir,
	}
}

// catalog writes rel under the media root and inserts its record.
func (e *testEnv) catalog(t *testing.T, rel string, content []byte) int64 {
	t.Helper()
	return e.catalogAt(t, rel, content, time.Time{})
}

// catalogAt is catalog with the file's mtime set to mtime, unless zero.
func (e *testEnv) catalogAt(t *testing.T, rel string, content []byte, mtime time.Time) int64 {
	t.Helper()
	abs := filepath.Join(e.mediaDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, content, 0644); err != nil {
		t.Fatal(err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(abs, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}
	info, err := os.Stat(abs)
	if err != nil {
		t.Fatal(err)
	}

	loc := database.LocationOf(rel)
	rec := &database.MediaRecord{
		PathCanon:         loc.PathCanon,
		Filename:          loc.Filename,
		Subfolder:         loc.Subfolder,
		TopLevelSubfolder: loc.TopLevelSubfolder,
		Format:            path.Ext(rel)[1:],
		SizeBytes:         info.Size(),
		Mtime:             epochSeconds(info.ModTime()),
		ThumbHash:         media.ThumbHash(rel),
	}

	var id int64
	err = e.db.WithTx(context.Background(), "test_insert", func(tx *sql.Tx) error {
		id, err = e.db.InsertRecord(context.Background(), tx, rec)
		return err
	})
	if err != nil {
		t.Fatalf("InsertRecord(%s) error = %v", rel, err)
	}
	if err := e.stats.ForceRefresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	return id
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func (e *testEnv) job(t *testing.T, rel string) *database.ThumbnailJob {
	t.Helper()
	job, err := e.db.GetThumbnailJob(context.Background(), rel)
	if err != nil {
		t.Fatalf("GetThumbnailJob(%s) error = %v", rel, err)
	}
	return job
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("thumbnail is not a JPEG: %v", err)
	}
	return img
}

func TestGetThumbnailGeneratesThenServesCache(t *testing.T) {
	env := setupTestService(t, nil, nil)
	ctx := context.Background()
	env.catalog(t, "a/wide.png", pngBytes(t, 200, 100))

	data, err := env.svc.GetThumbnail(ctx, "a/wide.png", false)
	if err != nil {
		t.Fatalf("GetThumbnail() error = %v", err)
	}
	if b := decodeJPEG(t, data).Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("thumbnail size = %dx%d, want 64x32", b.Dx(), b.Dy())
	}

	job := env.job(t, "a/wide.png")
	if job.Status != database.ThumbnailGenerated || job.LastGeneratedAt == nil {
		t.Fatalf("status = %v, last generated = %v", job.Status, job.LastGeneratedAt)
	}
	if got := env.stats.Get().Generated; got != 1 {
		t.Errorf("generated count = %d, want 1", got)
	}

	// Replace the cached file: a fresh row must be served from the cache.
	marker := []byte("cached")
	if err := os.WriteFile(env.gen.ThumbPath(job.ThumbHash), marker, 0644); err != nil {
		t.Fatal(err)
	}
	data, err = env.svc.GetThumbnail(ctx, "a/wide.png", false)
	if err != nil || !bytes.Equal(data, marker) {
		t.Errorf("second GetThumbnail() = %q, %v, want cached bytes", data, err)
	}

	// Forcing regenerates even when fresh, without double counting.
	data, err = env.svc.GetThumbnail(ctx, "a/wide.png", true)
	if err != nil {
		t.Fatal(err)
	}
	decodeJPEG(t, data)
	if got := env.stats.Get().Generated; got != 1 {
		t.Errorf("generated count after force = %d, want 1", got)
	}
}

func TestGetThumbnailRegeneratesStale(t *testing.T) {
	tests := []struct {
		name  string
		stale func(t *testing.T, env *testEnv, job *database.ThumbnailJob) *database.ThumbnailJob
	}{
		{
			name: "cache file missing",
			stale: func(t *testing.T, env *testEnv, job *database.ThumbnailJob) *database.ThumbnailJob {
				if err := os.Remove(env.gen.ThumbPath(job.ThumbHash)); err != nil {
					t.Fatal(err)
				}
				return env.job(t, job.PathCanon)
			},
		},
		{
			name: "source newer than generation",
			stale: func(t *testing.T, env *testEnv, job *database.ThumbnailJob) *database.ThumbnailJob {
				if err := os.WriteFile(env.gen.ThumbPath(job.ThumbHash), []byte("old"), 0644); err != nil {
					t.Fatal(err)
				}
				_, err := env.db.TransitionThumbnail(context.Background(), database.ThumbnailTransition{
					ID: job.ID, To: database.ThumbnailGenerated, Score: database.PriorityDefault,
					GeneratedAt: job.Mtime - 10,
				})
				if err != nil {
					t.Fatal(err)
				}
				return env.job(t, job.PathCanon)
			},
		},
		{
			name: "source rewritten since the last sync",
			stale: func(t *testing.T, env *testEnv, job *database.ThumbnailJob) *database.ThumbnailJob {
				abs := filepath.Join(env.mediaDir, "img.png")
				if err := os.WriteFile(abs, pngBytes(t, 50, 100), 0644); err != nil {
					t.Fatal(err)
				}
				later := time.Unix(0, int64(*job.LastGeneratedAt*1e9)).Add(2 * time.Second)
				if err := os.Chtimes(abs, later, later); err != nil {
					t.Fatal(err)
				}
				// The row still carries the mtime of the previous sync.
				return env.job(t, job.PathCanon)
			},
		},
		{
			name: "edit sidecar newer than generation",
			stale: func(t *testing.T, env *testEnv, job *database.ThumbnailJob) *database.ThumbnailJob {
				dir := filepath.Join(env.mediaDir, "_edits")
				if err := os.MkdirAll(dir, 0755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(filepath.Join(dir, "img.png.json"), []byte(`{"rotate":90}`), 0644); err != nil {
					t.Fatal(err)
				}
				future := time.Now().Add(time.Hour)
				if err := os.Chtimes(filepath.Join(dir, "img.png.json"), future, future); err != nil {
					t.Fatal(err)
				}
				// The sidecar flag is normally set by synchronization.
				job.HasEditFile = true
				return job
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestService(t, nil, nil)
			ctx := context.Background()
			env.catalog(t, "img.png", pngBytes(t, 100, 50))

			if _, err := env.svc.GetThumbnail(ctx, "img.png", false); err != nil {
				t.Fatal(err)
			}
			job := tt.stale(t, env, env.job(t, "img.png"))

			if env.svc.isFresh(job) {
				t.Fatal("isFresh() = true after making the thumbnail stale")
			}
			if job.HasEditFile {
				return
			}

			data, err := env.svc.GetThumbnail(ctx, "img.png", false)
			if err != nil {
				t.Fatalf("GetThumbnail() error = %v", err)
			}
			decodeJPEG(t, data)

			job = env.job(t, "img.png")
			if job.Status != database.ThumbnailGenerated || *job.LastGeneratedAt < job.Mtime {
				t.Errorf("after regeneration status = %v, stamp = %v, mtime = %v",
					job.Status, *job.LastGeneratedAt, job.Mtime)
			}
			if got := env.stats.Get().Generated; got != 1 {
				t.Errorf("generated count = %d, want 1", got)
			}
		})
	}
}

func TestGetThumbnailServesRewrittenSource(t *testing.T) {
	env := setupTestService(t, nil, nil)
	ctx := context.Background()
	env.catalog(t, "img.png", pngBytes(t, 100, 50))

	if _, err := env.svc.GetThumbnail(ctx, "img.png", false); err != nil {
		t.Fatal(err)
	}

	abs := filepath.Join(env.mediaDir, "img.png")
	if err := os.WriteFile(abs, pngBytes(t, 50, 100), 0644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(abs, later, later); err != nil {
		t.Fatal(err)
	}

	data, err := env.svc.GetThumbnail(ctx, "img.png", false)
	if err != nil {
		t.Fatalf("GetThumbnail() error = %v", err)
	}
	if b := decodeJPEG(t, data).Bounds(); b.Dx() != 32 || b.Dy() != 64 {
		t.Errorf("thumbnail size = %dx%d, want 32x64 from the rewritten source", b.Dx(), b.Dy())
	}
	job := env.job(t, "img.png")
	if *job.LastGeneratedAt < epochSeconds(later) {
		t.Errorf("stamp = %v, want at least the new source mtime %v", *job.LastGeneratedAt, epochSeconds(later))
	}
}

func TestGetThumbnailFutureMtimeServedFromCache(t *testing.T) {
	env := setupTestService(t, nil, nil)
	ctx := context.Background()
	env.catalogAt(t, "future.png", pngBytes(t, 100, 50), time.Now().Add(time.Hour))

	if _, err := env.svc.GetThumbnail(ctx, "future.png", false); err != nil {
		t.Fatal(err)
	}
	job := env.job(t, "future.png")
	if job.Status != database.ThumbnailGenerated || *job.LastGeneratedAt < job.Mtime {
		t.Fatalf("status = %v, stamp = %v, want generated with stamp >= mtime %v",
			job.Status, *job.LastGeneratedAt, job.Mtime)
	}
	if !env.svc.isFresh(job) {
		t.Fatal("isFresh() = false right after generation")
	}

	marker := []byte("cached")
	if err := os.WriteFile(env.gen.ThumbPath(job.ThumbHash), marker, 0644); err != nil {
		t.Fatal(err)
	}
	data, err := env.svc.GetThumbnail(ctx, "future.png", false)
	if err != nil || !bytes.Equal(data, marker) {
		t.Errorf("second GetThumbnail() = %q, %v, want cached bytes", data, err)
	}
	if got := env.stats.Get().Generated; got != 1 {
		t.Errorf("generated count = %d, want 1", got)
	}
}

func TestGetThumbnailFailures(t *testing.T) {
	env := setupTestService(t, nil, nil)
	ctx := context.Background()

	env.catalog(t, "corrupt.png", []byte("definitely not a png"))
	env.catalog(t, "gone.png", pngBytes(t, 10, 10))
	if err := os.Remove(filepath.Join(env.mediaDir, "gone.png")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path    string
		force   bool
		wantErr error
	}{
		{"uncataloged.png", false, database.ErrNotFound},
		{"corrupt.png", false, media.ErrCorrupt},
		{"corrupt.png", false, ErrFailedPermanent},
		{"corrupt.png", true, media.ErrCorrupt},
		{"gone.png", false, media.ErrSourceMissing},
		{"gone.png", false, ErrFailedPermanent},
	}

	for _, tt := range tests {
		_, err := env.svc.GetThumbnail(ctx, tt.path, tt.force)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("GetThumbnail(%s, force=%v) error = %v, want %v", tt.path, tt.force, err, tt.wantErr)
		}
	}

	for _, p := range []string{"corrupt.png", "gone.png"} {
		job := env.job(t, p)
		if job.Status != database.ThumbnailFailedPermanent || job.Score != database.PriorityNever {
			t.Errorf("%s state = %v/%d, want failed_permanent/never", p, job.Status, job.Score)
		}
	}
}

func TestGetThumbnailTransientFailureBacksOff(t *testing.T) {
	script := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexec sleep 5\n"), 0755); err != nil {
		t.Fatal(err)
	}
	env := setupTestService(t, func(c *media.Config) {
		c.FFmpegPath = script
		c.Timeout = 100 * time.Millisecond
	}, nil)
	env.catalog(t, "clip.mp4", []byte("video"))

	_, err := env.svc.GetThumbnail(context.Background(), "clip.mp4", false)
	if !errors.Is(err, media.ErrTimeout) {
		t.Fatalf("GetThumbnail() error = %v, want timeout", err)
	}

	job := env.job(t, "clip.mp4")
	if job.Status != database.ThumbnailPending || job.Score != database.PriorityBackoff {
		t.Errorf("state = %v/%d, want pending/backoff", job.Status, job.Score)
	}
}

func TestSetVisible(t *testing.T) {
	env := setupTestService(t, nil, nil)
	ctx := context.Background()

	env.catalog(t, "a.png", pngBytes(t, 10, 10))
	env.catalog(t, "b.png", pngBytes(t, 10, 10))
	if _, err := env.svc.GetThumbnail(ctx, "b.png", false); err != nil {
		t.Fatal(err)
	}

	n, err := env.svc.SetVisible(ctx, []string{"a.png", "b.png", "missing.png"})
	if err != nil || n != 1 {
		t.Fatalf("SetVisible() = %d, %v, want 1", n, err)
	}
	if job := env.job(t, "a.png"); job.Status != database.ThumbnailPrioritized || job.Score != database.PriorityVisible {
		t.Errorf("a.png state = %v/%d", job.Status, job.Score)
	}
	if job := env.job(t, "b.png"); job.Status != database.ThumbnailGenerated {
		t.Errorf("b.png status = %v, want generated", job.Status)
	}

	if n, err := env.svc.SetVisible(ctx, nil); n != 0 || err != nil {
		t.Errorf("SetVisible(nil) = %d, %v", n, err)
	}
}

func TestWorkersDrainQueue(t *testing.T) {
	env := setupTestService(t, nil, nil)
	ctx := context.Background()

	for _, p := range []string{"one.png", "sub/two.png", "sub/deep/three.png"} {
		env.catalog(t, p, pngBytes(t, 30, 20))
	}
	env.catalog(t, "broken.png", []byte("garbage"))

	env.svc.Start(ctx)
	deadline := time.Now().Add(10 * time.Second)
	for {
		counts, err := env.db.ThumbnailStatusCounts(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if counts[database.ThumbnailGenerated] == 3 && counts[database.ThumbnailFailedPermanent] == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("queue not drained: %v", counts)
		}
		time.Sleep(20 * time.Millisecond)
	}
	env.svc.Stop()

	if got := env.stats.Get().Generated; got != 3 {
		t.Errorf("generated count = %d, want 3", got)
	}
	for _, p := range []string{"one.png", "sub/two.png", "sub/deep/three.png"} {
		if _, err := os.Stat(env.gen.ThumbPath(media.ThumbHash(p))); err != nil {
			t.Errorf("cache file for %s: %v", p, err)
		}
	}
}

func TestStopWithoutStart(t *testing.T) {
	env := setupTestService(t, nil, nil)
	env.svc.Stop()
}
