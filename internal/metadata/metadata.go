package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-catalog/internal/filesystem"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Source records where a prompt or workflow came from.
type Source string

const (
	SourceNone     Source = "none"
	SourceEmbedded Source = "internal_embedded"
	SourceSidecar  Source = "external_sidecar"
	SourceError    Source = "error"
)

// ErrProbeTimeout is recorded in Metadata.Err when the video probe is killed.
var ErrProbeTimeout = errors.New("probe timed out")

// Metadata is everything the catalog stores about a file's content.
// Err holds content-level problems (corrupt image, bad sidecar, probe
// failure); the remaining fields are still valid where they could be read.
type Metadata struct {
	Width          int
	Height         int
	RatioLabel     string
	Prompt         string
	PromptSource   Source
	Workflow       string
	WorkflowSource Source
	Tags           []string
	HasEdits       bool
	Err            error
}

// Config controls an Extractor.
type Config struct {
	// EditsDirName is the per-folder directory holding edit sidecars.
	EditsDirName string
	// ProbeTimeout bounds each ffprobe invocation.
	ProbeTimeout time.Duration
	// FFprobePath overrides the ffprobe binary. Empty means look it up on PATH.
	FFprobePath string
}

// DefaultConfig returns the extractor defaults.
func DefaultConfig() Config {
	return Config{
		EditsDirName: "_edits",
		ProbeTimeout: 15 * time.Second,
	}
}

// Extractor reads content metadata from media files and their sidecars.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	config Config
}

// NewExtractor creates an Extractor, filling unset fields from DefaultConfig.
func NewExtractor(config Config) *Extractor {
	def := DefaultConfig()
	if config.EditsDirName == "" {
		config.EditsDirName = def.EditsDirName
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = def.ProbeTimeout
	}
	return &Extractor{config: config}
}

// Extract reads metadata for the media file at absPath. A returned error
// means the file itself could not be examined (vanished, not a regular
// file) and should not be cataloged. Problems with the content are reported
// through Metadata.Err instead.
func (e *Extractor) Extract(ctx context.Context, absPath string) (Metadata, error) {
	m := Metadata{PromptSource: SourceNone, WorkflowSource: SourceNone}

	info, err := filesystem.StatWithRetry(absPath, filesystem.DefaultRetryConfig())
	if err != nil {
		return m, fmt.Errorf("stat %s: %w", absPath, err)
	}
	if info.IsDir() {
		return m, fmt.Errorf("%s is a directory", absPath)
	}

	fileType := mediatypes.GetFileType(mediatypes.Ext(absPath))
	var errs []error

	if err := e.readSidecars(absPath, &m); err != nil {
		errs = append(errs, err)
	}
	m.HasEdits = filesystem.Exists(e.EditSidecarPath(absPath))

	switch fileType {
	case mediatypes.FileTypeImage:
		if err := e.readImage(absPath, &m); err != nil {
			errs = append(errs, err)
		}
	case mediatypes.FileTypeVideo:
		w, h, err := e.probeVideo(ctx, absPath)
		if err != nil {
			errs = append(errs, err)
		} else {
			m.Width, m.Height = w, h
		}
	}

	if m.Width > 0 && m.Height > 0 {
		m.RatioLabel = RatioLabel(m.Width, m.Height)
	}

	status := "success"
	if len(errs) > 0 {
		m.Err = errors.Join(errs...)
		status = "content_error"
		logging.Debug("Metadata for %s extracted with errors: %v", absPath, m.Err)
	}
	metrics.MetadataExtractionsTotal.WithLabelValues(string(fileType), status).Inc()

	return m, nil
}

// EditSidecarPath returns where the edit sidecar for absPath would live.
func (e *Extractor) EditSidecarPath(absPath string) string {
	dir, name := filepath.Split(absPath)
	return filepath.Join(dir, e.config.EditsDirName, mediatypes.EditSidecarName(name))
}

// readSidecars fills prompt, workflow and tags from sibling files sharing
// the media file's base name.
func (e *Extractor) readSidecars(absPath string, m *Metadata) error {
	dir, name := filepath.Split(absPath)
	names := mediatypes.SidecarNames(name)
	var errs []error

	if data, ok, err := readOptional(filepath.Join(dir, names[0])); err != nil {
		m.PromptSource = SourceError
		errs = append(errs, err)
	} else if ok {
		m.Prompt = strings.TrimSpace(string(data))
		m.PromptSource = SourceSidecar
	}

	if data, ok, err := readOptional(filepath.Join(dir, names[1])); err != nil {
		m.WorkflowSource = SourceError
		errs = append(errs, err)
	} else if ok {
		if !json.Valid(data) {
			m.WorkflowSource = SourceError
			errs = append(errs, fmt.Errorf("workflow sidecar %s is not valid JSON", names[1]))
		} else {
			m.Workflow = string(data)
			m.WorkflowSource = SourceSidecar
		}
	}

	if data, ok, err := readOptional(filepath.Join(dir, names[2])); err != nil {
		errs = append(errs, err)
	} else if ok {
		m.Tags = ParseTags(string(data))
	}

	return errors.Join(errs...)
}

// readImage decodes the image header for dimensions and, for PNG, falls
// back to embedded text chunks for anything the sidecars did not supply.
func (e *Extractor) readImage(absPath string, m *Metadata) error {
	f, err := filesystem.OpenWithRetry(absPath, filesystem.DefaultRetryConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", absPath, err)
		}
	}()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	m.Width, m.Height = cfg.Width, cfg.Height

	if mediatypes.Ext(absPath) != ".png" {
		return nil
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	chunks, err := ReadPNGText(f)
	if err != nil {
		return fmt.Errorf("png text: %w", err)
	}
	applyEmbedded(chunks, m)
	return nil
}

// applyEmbedded copies embedded PNG text into m where no sidecar won.
func applyEmbedded(chunks map[string]string, m *Metadata) {
	if m.PromptSource == SourceNone {
		for _, key := range []string{"parameters", "prompt", "Description"} {
			if v := strings.TrimSpace(chunks[key]); v != "" {
				m.Prompt = v
				m.PromptSource = SourceEmbedded
				break
			}
		}
	}
	if m.WorkflowSource == SourceNone {
		if v, ok := chunks["workflow"]; ok {
			if json.Valid([]byte(v)) {
				m.Workflow = v
				m.WorkflowSource = SourceEmbedded
			} else {
				m.WorkflowSource = SourceError
			}
		}
	}
	if len(m.Tags) == 0 {
		if v := chunks["Keywords"]; v != "" {
			m.Tags = ParseTags(v)
		}
	}
}

func readOptional(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// ParseTags splits a tag list on commas and newlines, trimming, lower-casing
// and de-duplicating while keeping first-seen order.
func ParseTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	seen := make(map[string]bool, len(fields))
	var tags []string
	for _, f := range fields {
		t := strings.ToLower(strings.TrimSpace(f))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags
}
