package indexer

import (
	"context"
	"errors"
	"sync"
	"time"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
	"media-catalog/internal/metadata"
	"media-catalog/internal/stats"
	"media-catalog/internal/workers"
)

// ErrSyncInProgress is returned when a synchronization is requested while
// another one is running.
var ErrSyncInProgress = errors.New("synchronization already in progress")

// Extractor reads content metadata for one file.
type Extractor interface {
	Extract(ctx context.Context, absPath string) (metadata.Metadata, error)
}

// Config controls the synchronizer.
type Config struct {
	MediaDir     string
	TrashDirName string
	EditsDirName string
	// BatchSize is the number of upserts committed per transaction.
	BatchSize int
	// BatchDelay is the pause between batch commits.
	BatchDelay time.Duration
	// Workers bounds concurrent metadata extraction.
	Workers int
	// Interval between periodic passes. Zero disables the periodic loop.
	Interval time.Duration
	// WatchEnabled turns on the fsnotify change-hint watcher.
	WatchEnabled bool
	// WatchDebounce coalesces bursts of watcher events into one pass.
	WatchDebounce time.Duration
}

// DefaultConfig returns synchronizer defaults for mediaDir.
func DefaultConfig(mediaDir string) Config {
	return Config{
		MediaDir:      mediaDir,
		TrashDirName:  "trash",
		EditsDirName:  "_edits",
		BatchSize:     50,
		BatchDelay:    10 * time.Millisecond,
		Workers:       workers.ForIO(8),
		Interval:      30 * time.Minute,
		WatchDebounce: 5 * time.Second,
	}
}

// Indexer keeps the catalog in step with the media tree.
type Indexer struct {
	db        *database.Database
	extractor Extractor
	stats     *stats.Cache
	config    Config

	mu              sync.Mutex
	syncing         bool
	lastResult      *SyncResult
	lastErr         error
	lastSync        time.Time
	initialComplete bool
	startTime       time.Time

	trigger  chan string
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready       bool        `json:"ready"`
	Syncing     bool        `json:"syncing"`
	StartTime   time.Time   `json:"startTime"`
	Uptime      string      `json:"uptime"`
	LastSync    time.Time   `json:"lastSync,omitempty"`
	LastResult  *SyncResult `json:"lastResult,omitempty"`
	LastError   string      `json:"lastError,omitempty"`
	WatchActive bool        `json:"watchActive"`
}

// New creates an Indexer. Unset config fields take their defaults.
func New(db *database.Database, extractor Extractor, cache *stats.Cache, config Config) *Indexer {
	def := DefaultConfig(config.MediaDir)
	if config.TrashDirName == "" {
		config.TrashDirName = def.TrashDirName
	}
	if config.EditsDirName == "" {
		config.EditsDirName = def.EditsDirName
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.BatchDelay < 0 {
		config.BatchDelay = 0
	}
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.WatchDebounce <= 0 {
		config.WatchDebounce = def.WatchDebounce
	}

	return &Indexer{
		db:        db,
		extractor: extractor,
		stats:     cache,
		config:    config,
		startTime: time.Now(),
		trigger:   make(chan string, 1),
		stopChan:  make(chan struct{}),
	}
}

// Start runs an initial pass in the background, then the periodic loop and,
// when enabled, the change-hint watcher. Stop ends them.
func (idx *Indexer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-idx.stopChan
		cancel()
	}()

	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		idx.run(ctx)
	}()

	if idx.config.WatchEnabled {
		idx.wg.Add(1)
		go func() {
			defer idx.wg.Done()
			idx.watch(ctx)
		}()
	}
}

// Stop signals the background loops to exit and waits for them. A pass in
// progress is cancelled between files.
func (idx *Indexer) Stop() {
	close(idx.stopChan)
	idx.wg.Wait()
}

// run owns the periodic schedule. Passes never overlap because they all
// run on this goroutine or are rejected by tryStartSync.
func (idx *Indexer) run(ctx context.Context) {
	idx.runPass(ctx, "startup")

	var tick <-chan time.Time
	if idx.config.Interval > 0 {
		ticker := time.NewTicker(idx.config.Interval)
		defer ticker.Stop()
		tick = ticker.C
		logging.Info("Periodic synchronization every %v", idx.config.Interval)
	}

	for {
		select {
		case <-tick:
			idx.runPass(ctx, "periodic")
		case trigger := <-idx.trigger:
			idx.runPass(ctx, trigger)
		case <-ctx.Done():
			return
		}
	}
}

func (idx *Indexer) runPass(ctx context.Context, trigger string) {
	_, err := idx.synchronize(ctx, trigger)
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInProgress):
		logging.Debug("Skipping %s synchronization: %v", trigger, err)
	case errors.Is(err, context.Canceled):
		logging.Info("Synchronization cancelled")
	default:
		logging.Error("%s synchronization failed: %v", trigger, err)
	}
}

// TriggerSync asks the background loop for a pass. Requests made while one
// is already queued are coalesced.
func (idx *Indexer) TriggerSync(trigger string) {
	select {
	case idx.trigger <- trigger:
	default:
	}
}

func (idx *Indexer) tryStartSync() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.syncing {
		return false
	}
	idx.syncing = true
	return true
}

func (idx *Indexer) finishSync(result SyncResult, err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.syncing = false
	idx.lastErr = err
	if err == nil {
		idx.lastResult = &result
		idx.lastSync = time.Now()
		idx.initialComplete = true
	}
}

// IsSyncing returns whether a pass is in progress.
func (idx *Indexer) IsSyncing() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.syncing
}

// LastResult returns the result of the last successful pass, if any.
func (idx *Indexer) LastResult() (SyncResult, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.lastResult == nil {
		return SyncResult{}, false
	}
	return *idx.lastResult, true
}

// IsReady reports whether at least one pass has completed.
func (idx *Indexer) IsReady() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.initialComplete
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	status := HealthStatus{
		Ready:       idx.initialComplete,
		Syncing:     idx.syncing,
		StartTime:   idx.startTime,
		Uptime:      time.Since(idx.startTime).Round(time.Second).String(),
		LastSync:    idx.lastSync,
		WatchActive: idx.config.WatchEnabled,
	}
	if idx.lastResult != nil {
		r := *idx.lastResult
		status.LastResult = &r
	}
	if idx.lastErr != nil {
		status.LastError = idx.lastErr.Error()
	}
	return status
}
