package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"media-catalog/internal/logging"
	"media-catalog/internal/workers"
)

// Config holds all application configuration
type Config struct {
	MediaDir       string
	CacheDir       string
	DatabaseDir    string
	Port           string
	MetricsPort    string
	MetricsEnabled bool

	SyncInterval  time.Duration
	SyncBatchSize int
	WatchEnabled  bool
	TrashDirName  string
	EditsDirName  string

	ThumbnailSize         int
	ThumbnailQuality      int
	ThumbnailWorkers      int
	ThumbnailIdleInterval time.Duration
	VipsEnabled           bool

	ProbeTimeout    time.Duration
	GenerateTimeout time.Duration

	LogHealthChecks bool

	// Derived paths
	DatabasePath string
	ThumbnailDir string
}

// LoadEnvFile loads ENV_FILE (default .env) into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile() error {
	path := getEnv("ENV_FILE", ".env")
	err := godotenv.Load(path)
	if err == nil {
		logging.Debug("Loaded environment from %s", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}

	if level, ok := logging.ParseLevel(os.Getenv("LOG_LEVEL")); ok {
		logging.SetLevel(level)
	}
	return nil
}

// LoadConfig loads configuration from the environment, then resolves and
// validates the directories, logging each step.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	if err := LoadEnvFile(); err != nil {
		return nil, err
	}

	config := configFromEnv()
	logConfig(config)

	section("DIRECTORY SETUP")
	if err := config.prepareDirs(); err != nil {
		return nil, err
	}
	return config, nil
}

// Load is LoadConfig without the banner and configuration dump, for
// command-line tools.
func Load() (*Config, error) {
	if err := LoadEnvFile(); err != nil {
		return nil, err
	}
	config := configFromEnv()
	if err := config.prepareDirs(); err != nil {
		return nil, err
	}
	return config, nil
}

// configFromEnv reads every setting, falling back to defaults for unset or
// malformed values.
func configFromEnv() *Config {
	c := &Config{
		MediaDir:       getEnv("MEDIA_DIR", "/media"),
		CacheDir:       getEnv("CACHE_DIR", "/cache"),
		DatabaseDir:    getEnv("DATABASE_DIR", "/database"),
		Port:           getEnv("PORT", "8080"),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Minute),
		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 50),
		WatchEnabled:  getEnvBool("WATCH_ENABLED", true),
		TrashDirName:  getEnv("TRASH_DIR_NAME", "trash"),
		EditsDirName:  getEnv("EDITS_DIR_NAME", "_edits"),

		ThumbnailSize:         getEnvInt("THUMBNAIL_SIZE", 256),
		ThumbnailQuality:      getEnvInt("THUMBNAIL_QUALITY", 85),
		ThumbnailWorkers:      workers.Resolve(getEnvInt("THUMBNAIL_WORKERS", 0), 0.5, 4),
		ThumbnailIdleInterval: getEnvDuration("THUMBNAIL_IDLE_INTERVAL", 5*time.Second),
		VipsEnabled:           getEnvBool("VIPS_ENABLED", true),

		ProbeTimeout:    getEnvDuration("PROBE_TIMEOUT", 15*time.Second),
		GenerateTimeout: getEnvDuration("GENERATE_TIMEOUT", 60*time.Second),

		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", false),
	}
	if c.ThumbnailQuality < 1 || c.ThumbnailQuality > 100 {
		logging.Warn("THUMBNAIL_QUALITY %d out of range, using 85", c.ThumbnailQuality)
		c.ThumbnailQuality = 85
	}
	return c
}

func logConfig(c *Config) {
	section("CONFIGURATION")
	logging.Info("  MEDIA_DIR:               %s", c.MediaDir)
	logging.Info("  CACHE_DIR:               %s", c.CacheDir)
	logging.Info("  DATABASE_DIR:            %s", c.DatabaseDir)
	logging.Info("  PORT:                    %s", c.Port)
	logging.Info("  METRICS_PORT:            %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:         %v", c.MetricsEnabled)
	logging.Info("  SYNC_INTERVAL:           %v", c.SyncInterval)
	logging.Info("  SYNC_BATCH_SIZE:         %d", c.SyncBatchSize)
	logging.Info("  WATCH_ENABLED:           %v", c.WatchEnabled)
	logging.Info("  TRASH_DIR_NAME:          %s", c.TrashDirName)
	logging.Info("  EDITS_DIR_NAME:          %s", c.EditsDirName)
	logging.Info("  THUMBNAIL_SIZE:          %d", c.ThumbnailSize)
	logging.Info("  THUMBNAIL_QUALITY:       %d", c.ThumbnailQuality)
	logging.Info("  THUMBNAIL_WORKERS:       %d", c.ThumbnailWorkers)
	logging.Info("  THUMBNAIL_IDLE_INTERVAL: %v", c.ThumbnailIdleInterval)
	logging.Info("  VIPS_ENABLED:            %v", c.VipsEnabled)
	logging.Info("  PROBE_TIMEOUT:           %v", c.ProbeTimeout)
	logging.Info("  GENERATE_TIMEOUT:        %v", c.GenerateTimeout)
	logging.Info("  LOG_LEVEL:               %s", logging.GetLevel())
}

// prepareDirs makes the configured directories absolute and checks them.
// The media root must exist; the database and cache directories are
// created and must be writable.
func (c *Config) prepareDirs() error {
	for _, d := range []*string{&c.MediaDir, &c.CacheDir, &c.DatabaseDir} {
		abs, err := filepath.Abs(*d)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", *d, err)
		}
		*d = abs
	}
	c.DatabasePath = filepath.Join(c.DatabaseDir, "catalog.db")
	c.ThumbnailDir = filepath.Join(c.CacheDir, "thumbnails")

	info, err := os.Stat(c.MediaDir)
	if err != nil {
		return fmt.Errorf("media directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media directory %s is not a directory", c.MediaDir)
	}
	logging.Debug("  [OK] Media directory: %s", c.MediaDir)

	for _, dir := range []struct{ path, name string }{
		{c.DatabaseDir, "database"},
		{c.ThumbnailDir, "thumbnail cache"},
	} {
		if err := ensureWritableDir(dir.path); err != nil {
			return fmt.Errorf("%s directory: %w", dir.name, err)
		}
		logging.Debug("  [OK] %s directory is writable: %s", dir.name, dir.path)
	}
	return nil
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
