package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
	if info.OS == "" || info.Arch == "" {
		t.Errorf("Expected OS/Arch to be set, got %q/%q", info.OS, info.Arch)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_BOOL", "false")
	t.Setenv("TEST_BAD_BOOL", "maybe")
	t.Setenv("TEST_INT", "12")
	t.Setenv("TEST_NEG_INT", "-3")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_BAD_DUR", "soon")

	if got := getEnv("TEST_STR", "x"); got != "value" {
		t.Errorf("getEnv = %q", got)
	}
	if got := getEnv("TEST_UNSET_STR", "x"); got != "x" {
		t.Errorf("getEnv default = %q", got)
	}
	if got := getEnvBool("TEST_BOOL", true); got {
		t.Error("getEnvBool = true, want false")
	}
	if got := getEnvBool("TEST_BAD_BOOL", true); !got {
		t.Error("getEnvBool with malformed value should fall back to default")
	}
	if got := getEnvInt("TEST_INT", 1); got != 12 {
		t.Errorf("getEnvInt = %d", got)
	}
	if got := getEnvInt("TEST_NEG_INT", 7); got != 7 {
		t.Errorf("getEnvInt negative = %d, want default", got)
	}
	if got := getEnvDuration("TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration = %v", got)
	}
	if got := getEnvDuration("TEST_BAD_DUR", time.Second); got != time.Second {
		t.Errorf("getEnvDuration malformed = %v", got)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SYNC_INTERVAL", "0")
	t.Setenv("SYNC_BATCH_SIZE", "10")
	t.Setenv("WATCH_ENABLED", "false")
	t.Setenv("THUMBNAIL_QUALITY", "250")
	t.Setenv("THUMBNAIL_WORKERS", "3")
	t.Setenv("TRASH_DIR_NAME", ".bin")

	c := configFromEnv()
	if c.SyncInterval != 0 {
		t.Errorf("SyncInterval = %v, want 0", c.SyncInterval)
	}
	if c.SyncBatchSize != 10 {
		t.Errorf("SyncBatchSize = %d", c.SyncBatchSize)
	}
	if c.WatchEnabled {
		t.Error("WatchEnabled should be false")
	}
	if c.ThumbnailQuality != 85 {
		t.Errorf("out of range quality should reset to 85, got %d", c.ThumbnailQuality)
	}
	if c.ThumbnailWorkers != 3 {
		t.Errorf("ThumbnailWorkers = %d", c.ThumbnailWorkers)
	}
	if c.TrashDirName != ".bin" {
		t.Errorf("TrashDirName = %q", c.TrashDirName)
	}
	if c.EditsDirName != "_edits" {
		t.Errorf("EditsDirName default = %q", c.EditsDirName)
	}
}

func TestLoadConfigPreparesDirectories(t *testing.T) {
	root := t.TempDir()
	media := filepath.Join(root, "media")
	if err := os.Mkdir(media, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MEDIA_DIR", media)
	t.Setenv("CACHE_DIR", filepath.Join(root, "cache"))
	t.Setenv("DATABASE_DIR", filepath.Join(root, "db"))
	t.Setenv("ENV_FILE", filepath.Join(root, "missing.env"))

	c, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.DatabasePath != filepath.Join(root, "db", "catalog.db") {
		t.Errorf("DatabasePath = %s", c.DatabasePath)
	}
	if c.ThumbnailDir != filepath.Join(root, "cache", "thumbnails") {
		t.Errorf("ThumbnailDir = %s", c.ThumbnailDir)
	}
	if info, err := os.Stat(c.ThumbnailDir); err != nil || !info.IsDir() {
		t.Errorf("thumbnail dir not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(c.DatabaseDir, ".write-test")); !os.IsNotExist(err) {
		t.Error("write test file left behind")
	}
}

func TestLoadConfigMissingMediaDir(t *testing.T) {
	root := t.TempDir()
	t.Setenv("MEDIA_DIR", filepath.Join(root, "nope"))
	t.Setenv("CACHE_DIR", filepath.Join(root, "cache"))
	t.Setenv("DATABASE_DIR", filepath.Join(root, "db"))
	t.Setenv("ENV_FILE", filepath.Join(root, "missing.env"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing media directory")
	}
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	content := "MC_TEST_FROM_FILE=file\nMC_TEST_PRESET=file\n"
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("MC_TEST_PRESET", "env")
	t.Setenv("MC_TEST_FROM_FILE", "")
	os.Unsetenv("MC_TEST_FROM_FILE")

	if err := LoadEnvFile(); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("MC_TEST_FROM_FILE"); got != "file" {
		t.Errorf("MC_TEST_FROM_FILE = %q, want file", got)
	}
	if got := os.Getenv("MC_TEST_PRESET"); got != "env" {
		t.Errorf("MC_TEST_PRESET = %q, want env", got)
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/trash/restore", "api/trash"},
		{"/api/stats", "api/stats"},
		{"/healthz", "healthz"},
		{"/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := getRouteGroup(tt.path); got != tt.want {
				t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestGetRoutes(t *testing.T) {
	r := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	r.HandleFunc("/api/sync", noop).Methods(http.MethodPost)
	r.HandleFunc("/api/stats", noop).Methods(http.MethodGet, http.MethodHead)

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes: %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("got %d routes, want 3: %+v", len(routes), routes)
	}
	if routes[0].Method != http.MethodPost || routes[0].Path != "/api/sync" {
		t.Errorf("first route = %+v", routes[0])
	}
}
