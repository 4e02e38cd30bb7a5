package app

import (
	"context"
	"fmt"
	"time"

	"media-catalog/internal/database"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/memory"
	"media-catalog/internal/metadata"
	"media-catalog/internal/metrics"
	"media-catalog/internal/startup"
	"media-catalog/internal/stats"
	"media-catalog/internal/thumbnails"
	"media-catalog/internal/trash"
)

// App holds the wired catalog services shared by the server and the
// maintenance CLI.
type App struct {
	Config     *startup.Config
	DB         *database.Database
	Stats      *stats.Cache
	Memory     *memory.Monitor
	Indexer    *indexer.Indexer
	Thumbnails *thumbnails.Service
	Trash      *trash.Manager

	vips bool
}

// Build opens the catalog and constructs every service from config. Nothing
// is started; the caller decides which background loops to run.
func Build(ctx context.Context, config *startup.Config) (*App, error) {
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	cache := stats.New(db)
	if err := cache.ForceRefresh(ctx); err != nil {
		db.Close()
		return nil, err
	}
	startup.LogDatabaseInit(time.Since(dbStart), cache.Get().Total)

	a := &App{Config: config, DB: db, Stats: cache}

	if config.VipsEnabled {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, falling back to pure Go decoding: %v", err)
		} else {
			a.vips = true
		}
	}

	gen, err := media.NewGenerator(media.Config{
		ThumbDir: config.ThumbnailDir,
		Size:     config.ThumbnailSize,
		Quality:  config.ThumbnailQuality,
		Timeout:  config.GenerateTimeout,
		UseVips:  a.vips,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("thumbnail generator: %w", err)
	}

	a.Memory = memory.NewMonitor(memory.DefaultConfig())

	extractor := metadata.NewExtractor(metadata.Config{
		EditsDirName: config.EditsDirName,
		ProbeTimeout: config.ProbeTimeout,
	})

	idxCfg := indexer.DefaultConfig(config.MediaDir)
	idxCfg.TrashDirName = config.TrashDirName
	idxCfg.EditsDirName = config.EditsDirName
	idxCfg.BatchSize = config.SyncBatchSize
	idxCfg.Interval = config.SyncInterval
	idxCfg.WatchEnabled = config.WatchEnabled
	a.Indexer = indexer.New(db, extractor, cache, idxCfg)

	thumbCfg := thumbnails.DefaultConfig(config.MediaDir)
	thumbCfg.EditsDirName = config.EditsDirName
	thumbCfg.Workers = config.ThumbnailWorkers
	thumbCfg.IdleInterval = config.ThumbnailIdleInterval
	a.Thumbnails = thumbnails.New(db, gen, cache, a.Memory, thumbCfg)

	a.Trash = trash.New(db, cache, trash.Config{
		MediaDir:     config.MediaDir,
		TrashDirName: config.TrashDirName,
		EditsDirName: config.EditsDirName,
		ThumbDir:     config.ThumbnailDir,
	})

	return a, nil
}

// Close releases libvips and the database.
func (a *App) Close() {
	if a.vips {
		media.ShutdownVips()
	}
	if err := a.DB.Close(); err != nil {
		logging.Error("Failed to close database: %v", err)
	}
}
