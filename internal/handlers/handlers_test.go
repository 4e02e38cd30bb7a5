package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"media-catalog/internal/database"
	"media-catalog/internal/indexer"
	"media-catalog/internal/media"
	"media-catalog/internal/metadata"
	"media-catalog/internal/stats"
	"media-catalog/internal/thumbnails"
	"media-catalog/internal/trash"
)

type testServer struct {
	router   *mux.Router
	db       *database.Database
	mediaDir string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	ctx := context.Background()
	db, err := database.New(ctx, filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mediaDir := t.TempDir()
	thumbDir := filepath.Join(t.TempDir(), "thumbs")
	cache := stats.New(db)

	idxCfg := indexer.DefaultConfig(mediaDir)
	idxCfg.BatchDelay = 0
	idx := indexer.New(db, metadata.NewExtractor(metadata.DefaultConfig()), cache, idxCfg)

	genCfg := media.DefaultConfig(thumbDir)
	genCfg.Size = 64
	genCfg.FFmpegPath = filepath.Join(t.TempDir(), "no-ffmpeg")
	gen, err := media.NewGenerator(genCfg)
	if err != nil {
		t.Fatal(err)
	}
	thumbs := thumbnails.New(db, gen, cache, nil, thumbnails.DefaultConfig(mediaDir))

	tm := trash.New(db, cache, trash.Config{
		MediaDir:     mediaDir,
		TrashDirName: "trash",
		EditsDirName: "_edits",
		ThumbDir:     thumbDir,
	})

	router := mux.NewRouter()
	New(db, idx, thumbs, tm, cache).RegisterRoutes(router)
	return &testServer{router: router, db: db, mediaDir: mediaDir}
}

func (s *testServer) writePNG(t *testing.T, rel string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: 80, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	s.writeFile(t, rel, buf.Bytes())
}

func (s *testServer) writeFile(t *testing.T, rel string, data []byte) {
	t.Helper()
	abs := filepath.Join(s.mediaDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func (s *testServer) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) sync(t *testing.T) indexer.SyncResult {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/sync", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/sync = %d: %s", rec.Code, rec.Body.String())
	}
	var result indexer.SyncResult
	decode(t, rec, &result)
	return result
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestReadinessFollowsFirstSync(t *testing.T) {
	s := setupTestServer(t)
	s.writePNG(t, "a.png")
	s.writePNG(t, "sub/b.png")

	if rec := s.do(t, http.MethodGet, "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz before sync = %d, want 503", rec.Code)
	}
	rec := s.do(t, http.MethodGet, "/api/health", nil)
	var health HealthResponse
	decode(t, rec, &health)
	if rec.Code != http.StatusServiceUnavailable || health.Status != statusStarting {
		t.Errorf("/api/health before sync = %d %q", rec.Code, health.Status)
	}
	if rec := s.do(t, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d, want 200", rec.Code)
	}

	result := s.sync(t)
	if result.Added != 2 {
		t.Errorf("sync added %d, want 2", result.Added)
	}

	if rec := s.do(t, http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
		t.Errorf("/readyz after sync = %d, want 200", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/api/health", nil)
	decode(t, rec, &health)
	if health.Status != statusHealthy || !health.Sync.Ready {
		t.Errorf("health after sync = %+v", health)
	}

	var snap stats.Snapshot
	decode(t, s.do(t, http.MethodGet, "/api/stats", nil), &snap)
	if snap.Total != 2 || snap.Generated != 0 {
		t.Errorf("stats = %+v, want total 2 generated 0", snap)
	}
}

func TestGetFile(t *testing.T) {
	s := setupTestServer(t)
	s.writePNG(t, "sub/a.png")
	s.writeFile(t, "sub/a.txt", []byte("a lighthouse at dusk"))
	s.sync(t)

	rec := s.do(t, http.MethodGet, "/api/files/sub/a.png", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET file = %d: %s", rec.Code, rec.Body.String())
	}
	var got database.MediaRecord
	decode(t, rec, &got)
	if got.PathCanon != "sub/a.png" || got.Subfolder != "sub" || got.PromptText != "a lighthouse at dusk" {
		t.Errorf("record = %+v", got)
	}

	if rec := s.do(t, http.MethodGet, "/api/files/sub/missing.png", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing file = %d, want 404", rec.Code)
	}
}

func TestGetThumbnail(t *testing.T) {
	s := setupTestServer(t)
	s.writePNG(t, "a.png")
	s.writeFile(t, "broken.png", []byte("not a png"))
	s.sync(t)

	rec := s.do(t, http.MethodGet, "/api/thumbnail/a.png", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("thumbnail = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if _, err := jpeg.Decode(rec.Body); err != nil {
		t.Errorf("thumbnail is not a JPEG: %v", err)
	}

	var snap stats.Snapshot
	decode(t, s.do(t, http.MethodGet, "/api/stats", nil), &snap)
	if snap.Generated != 1 {
		t.Errorf("generated = %d, want 1", snap.Generated)
	}

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"cached", "/api/thumbnail/a.png", http.StatusOK},
		{"forced", "/api/thumbnail/a.png?force=1", http.StatusOK},
		{"corrupt", "/api/thumbnail/broken.png", http.StatusUnprocessableEntity},
		{"failed permanently", "/api/thumbnail/broken.png", http.StatusUnprocessableEntity},
		{"not cataloged", "/api/thumbnail/nope.png", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.target, nil)
			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d: %s", tt.target, rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	job, err := s.db.GetThumbnailJob(context.Background(), "broken.png")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != database.ThumbnailFailedPermanent {
		t.Errorf("broken.png status = %v, want FailedPermanent", job.Status)
	}
}

func TestSetVisible(t *testing.T) {
	s := setupTestServer(t)
	s.writePNG(t, "a.png")
	s.writePNG(t, "b.png")
	s.sync(t)

	rec := s.do(t, http.MethodPost, "/api/thumbnails/visible", pathsRequest{Paths: []string{"a.png", "nope.png"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("visible = %d: %s", rec.Code, rec.Body.String())
	}
	var got map[string]int64
	decode(t, rec, &got)
	if got["prioritized"] != 1 {
		t.Errorf("prioritized = %d, want 1", got["prioritized"])
	}

	job, err := s.db.GetThumbnailJob(context.Background(), "a.png")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != database.ThumbnailPrioritized || job.Score != database.PriorityVisible {
		t.Errorf("a.png = %v/%d, want Prioritized/%d", job.Status, job.Score, database.PriorityVisible)
	}
}

func TestBatchRequestValidation(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"paths": [`},
		{"empty", `{"paths": []}`},
		{"unknown field", `{"paths": ["a.png"], "all": true}`},
		{"parent escape", `{"paths": ["../etc/passwd"]}`},
		{"absolute", `{"paths": ["/etc/passwd"]}`},
	}
	endpoints := []string{"/api/trash", "/api/trash/restore", "/api/delete", "/api/thumbnails/visible"}
	for _, tt := range tests {
		for _, ep := range endpoints {
			t.Run(tt.name+ep, func(t *testing.T) {
				rec := s.do(t, http.MethodPost, ep, tt.body)
				if rec.Code != http.StatusBadRequest {
					t.Errorf("POST %s %s = %d, want 400", ep, tt.body, rec.Code)
				}
				var body map[string]string
				decode(t, rec, &body)
				if body["error"] == "" {
					t.Error("expected error message")
				}
			})
		}
	}
}

func TestTrashLifecycle(t *testing.T) {
	s := setupTestServer(t)
	s.writePNG(t, "a.png")
	s.writePNG(t, "b.png")
	s.sync(t)

	var resp batchResponse
	rec := s.do(t, http.MethodPost, "/api/trash", pathsRequest{Paths: []string{"a.png", "nope.png"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("trash = %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &resp)
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	if resp.Results[0].Status != trash.StatusOK || resp.Results[0].NewPath != "trash/a.png" {
		t.Errorf("trash a.png = %+v", resp.Results[0])
	}
	if resp.Results[1].Status != trash.StatusNotFound {
		t.Errorf("trash nope.png = %+v", resp.Results[1])
	}
	if rec := s.do(t, http.MethodGet, "/api/files/a.png", nil); rec.Code != http.StatusNotFound {
		t.Errorf("trashed file still served: %d", rec.Code)
	}

	decode(t, s.do(t, http.MethodPost, "/api/trash/restore", pathsRequest{Paths: []string{"trash/a.png"}}), &resp)
	if resp.Results[0].Status != trash.StatusOK || resp.Results[0].NewPath != "a.png" {
		t.Errorf("restore = %+v", resp.Results[0])
	}
	if rec := s.do(t, http.MethodGet, "/api/files/a.png", nil); rec.Code != http.StatusOK {
		t.Errorf("restored file = %d, want 200", rec.Code)
	}

	decode(t, s.do(t, http.MethodPost, "/api/delete", pathsRequest{Paths: []string{"b.png"}}), &resp)
	if resp.Results[0].Status != trash.StatusOK {
		t.Errorf("delete = %+v", resp.Results[0])
	}
	if _, err := os.Stat(filepath.Join(s.mediaDir, "b.png")); !os.IsNotExist(err) {
		t.Error("b.png still on disk after delete")
	}

	decode(t, s.do(t, http.MethodPost, "/api/trash", pathsRequest{Paths: []string{"a.png"}}), &resp)
	rec = s.do(t, http.MethodPost, "/api/trash/empty", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("empty = %d", rec.Code)
	}
	var empty trash.EmptyResult
	decode(t, rec, &empty)
	if empty.FilesDeleted != 1 || empty.RecordsDeleted != 1 || len(empty.Errors) != 0 {
		t.Errorf("empty = %+v", empty)
	}

	var snap stats.Snapshot
	decode(t, s.do(t, http.MethodGet, "/api/stats", nil), &snap)
	if snap.Total != 0 {
		t.Errorf("total = %d, want 0", snap.Total)
	}
}

func TestCleanThumbnails(t *testing.T) {
	s := setupTestServer(t)
	s.writePNG(t, "a.png")
	s.sync(t)

	rec := s.do(t, http.MethodPost, "/api/thumbnails/clean", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clean = %d: %s", rec.Code, rec.Body.String())
	}
	var result thumbnails.CleanResult
	decode(t, rec, &result)
	if result.OrphansRemoved != 0 || result.Requeued != 0 {
		t.Errorf("clean on fresh cache = %+v", result)
	}
}

func TestRouting(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/api/sync", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/nothing", http.StatusNotFound},
		{http.MethodGet, "/api/version", http.StatusOK},
		{http.MethodHead, "/healthz", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s", tt.method, tt.target), func(t *testing.T) {
			rec := s.do(t, tt.method, tt.target, nil)
			if rec.Code != tt.want {
				t.Errorf("got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestThumbnailErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", database.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", media.ErrSourceMissing), http.StatusNotFound},
		{fmt.Errorf("x: %w", thumbnails.ErrFailedPermanent), http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", media.ErrCorrupt), http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", media.ErrUnsupported), http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", media.ErrTimeout), http.StatusServiceUnavailable},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got, _ := thumbnailErrorStatus(tt.err); got != tt.want {
				t.Errorf("thumbnailErrorStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestValidPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a.png", true},
		{"sub/dir/a.png", true},
		{"", false},
		{".", false},
		{"../a.png", false},
		{"sub/../a.png", false},
		{"/a.png", false},
		{"sub//a.png", false},
	}
	for _, tt := range tests {
		t.Run(strings.ReplaceAll(tt.path, "/", "_"), func(t *testing.T) {
			if got := validPath(tt.path); got != tt.want {
				t.Errorf("validPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestFoldersAndThumbnailStatus(t *testing.T) {
	s := setupTestServer(t)

	var folders []database.FolderAggregate
	decode(t, s.do(t, http.MethodGet, "/api/folders", nil), &folders)
	if folders == nil || len(folders) != 0 {
		t.Errorf("empty catalog folders = %#v, want []", folders)
	}

	s.writePNG(t, "a.png")
	s.writePNG(t, "sub/b.png")
	s.writePNG(t, "sub/c.png")
	s.sync(t)

	decode(t, s.do(t, http.MethodGet, "/api/folders", nil), &folders)
	want := map[string]int{"": 1, "sub": 2}
	if len(folders) != len(want) {
		t.Fatalf("folders = %+v", folders)
	}
	for _, f := range folders {
		if want[f.FolderPath] != f.ImageCount {
			t.Errorf("folder %q count = %d, want %d", f.FolderPath, f.ImageCount, want[f.FolderPath])
		}
	}

	if rec := s.do(t, http.MethodGet, "/api/thumbnail/a.png", nil); rec.Code != http.StatusOK {
		t.Fatalf("thumbnail = %d", rec.Code)
	}
	var counts map[string]int64
	decode(t, s.do(t, http.MethodGet, "/api/thumbnails/status", nil), &counts)
	if counts["generated"] != 1 || counts["pending"] != 2 || counts["failed_permanent"] != 0 {
		t.Errorf("status counts = %v", counts)
	}
}
