package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"media-catalog/internal/filesystem"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"

	"github.com/disintegration/imaging"
	"github.com/natefinch/atomic"
)

// ThumbExt is the extension of every cached thumbnail.
const ThumbExt = ".jpg"

// ThumbHash returns the cache key for a canonical path: the first 32 hex
// characters of its SHA-256.
func ThumbHash(pathCanon string) string {
	sum := sha256.Sum256([]byte(pathCanon))
	return hex.EncodeToString(sum[:16])
}

// Config controls thumbnail generation.
type Config struct {
	ThumbDir   string
	Size       int
	Quality    int
	Timeout    time.Duration
	FFmpegPath string
	UseVips    bool
}

// DefaultConfig returns generation defaults for thumbDir.
func DefaultConfig(thumbDir string) Config {
	return Config{
		ThumbDir: thumbDir,
		Size:     256,
		Quality:  85,
		Timeout:  60 * time.Second,
	}
}

// Request describes one thumbnail to produce.
type Request struct {
	// SourcePath is the absolute path of the media file.
	SourcePath string
	// ThumbHash names the output file.
	ThumbHash string
	// EditPath is the edit sidecar to apply, or empty.
	EditPath string
}

// Generator renders thumbnails into the cache directory. It keeps no
// per-request state: concurrent calls for the same hash produce identical
// output and the last rename wins.
type Generator struct {
	config Config
}

// NewGenerator creates the cache directory and returns a Generator.
func NewGenerator(config Config) (*Generator, error) {
	def := DefaultConfig(config.ThumbDir)
	if config.Size <= 0 {
		config.Size = def.Size
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = def.Quality
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.FFmpegPath == "" {
		config.FFmpegPath = "ffmpeg"
	}
	if err := os.MkdirAll(config.ThumbDir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnail dir: %w", err)
	}
	logging.Debug("Thumbnail generator: dir=%s size=%d quality=%d vips=%v",
		config.ThumbDir, config.Size, config.Quality, config.UseVips)
	return &Generator{config: config}, nil
}

// ThumbDir returns the cache directory.
func (g *Generator) ThumbDir() string {
	return g.config.ThumbDir
}

// ThumbPath returns the cache path for hash.
func (g *Generator) ThumbPath(hash string) string {
	return filepath.Join(g.config.ThumbDir, hash+ThumbExt)
}

// Generate renders req into the cache and returns the encoded JPEG. The
// output appears atomically; a failed call leaves no partial file behind.
func (g *Generator) Generate(ctx context.Context, req Request) (data []byte, err error) {
	fileType := mediatypes.GetFileType(mediatypes.Ext(req.SourcePath))
	start := time.Now()
	defer func() {
		metrics.ThumbnailGenerationsTotal.WithLabelValues(string(fileType), StatusLabel(err)).Inc()
		if err == nil {
			metrics.ThumbnailGenerationDuration.WithLabelValues(string(fileType)).Observe(time.Since(start).Seconds())
		}
	}()

	if _, err := filesystem.StatWithRetry(req.SourcePath, filesystem.DefaultRetryConfig()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", req.SourcePath, ErrSourceMissing)
		}
		return nil, fmt.Errorf("stat %s: %w", req.SourcePath, err)
	}

	adj, err := LoadAdjustments(req.EditPath)
	if err != nil {
		logging.Warn("Ignoring unreadable edit sidecar for %s: %v", req.SourcePath, err)
		adj = nil
	}

	var img image.Image
	switch fileType {
	case mediatypes.FileTypeImage:
		img, err = g.loadImage(ctx, req.SourcePath, adj.HasCrop())
	case mediatypes.FileTypeVideo:
		img, err = g.extractFrame(ctx, req.SourcePath)
	default:
		return nil, fmt.Errorf("%s: %w", req.SourcePath, ErrUnsupported)
	}
	if err != nil {
		return nil, err
	}

	img = adj.Apply(img)
	thumb := imaging.Fit(img, g.config.Size, g.config.Size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(g.config.Quality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	if err := atomic.WriteFile(g.ThumbPath(req.ThumbHash), bytes.NewReader(buf.Bytes())); err != nil {
		return nil, fmt.Errorf("write thumbnail: %w", err)
	}

	logging.Debug("Thumbnail generated for %s (%d bytes)", req.SourcePath, buf.Len())
	return buf.Bytes(), nil
}

// loadImage decodes a still image, preferring libvips' shrink-on-load when
// no crop needs the full resolution. Undecodable sources fall back to
// ffmpeg before being declared corrupt.
func (g *Generator) loadImage(ctx context.Context, path string, needsFullRes bool) (image.Image, error) {
	if g.config.UseVips && !needsFullRes && IsVipsAvailable() {
		img, err := LoadImageWithVips(path, g.config.Size)
		if err == nil {
			return img, nil
		}
		logging.Debug("vips failed for %s: %v, trying imaging", path, err)
	}

	img, err := LoadImageConstrained(path, MaxImageDimension, MaxImagePixels)
	if err == nil {
		return img, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrSourceMissing)
	}
	logging.Debug("Decode failed for %s: %v, trying ffmpeg fallback", path, err)

	img, ffErr := g.runFFmpeg(ctx, path, false)
	if ffErr == nil {
		return img, nil
	}
	if errors.Is(ffErr, ErrTimeout) {
		return nil, ffErr
	}
	return nil, decodeError(path, err)
}

// extractFrame grabs one frame from a video, one second in when the clip
// is long enough and the first frame otherwise.
func (g *Generator) extractFrame(ctx context.Context, path string) (image.Image, error) {
	if _, err := exec.LookPath(g.config.FFmpegPath); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", ErrUnsupported)
	}

	img, err := g.runFFmpeg(ctx, path, true)
	if err == nil || errors.Is(err, ErrTimeout) {
		return img, err
	}
	logging.Debug("FFmpeg seek attempt failed for %s: %v", path, err)

	img, err = g.runFFmpeg(ctx, path, false)
	if err != nil && !errors.Is(err, ErrTimeout) {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrCorrupt, err)
	}
	return img, err
}

// runFFmpeg decodes a single frame of path to PNG on stdout. The process
// is killed when the generation timeout elapses.
func (g *Generator) runFFmpeg(ctx context.Context, path string, seek bool) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	args := []string{"-v", "error"}
	if seek {
		args = append(args, "-ss", "00:00:01")
	}
	args = append(args, "-i", path, "-vframes", "1", "-f", "image2pipe", "-vcodec", "png", "-")

	cmd := exec.CommandContext(ctx, g.config.FFmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("ffmpeg %s: %w", path, ErrTimeout)
	}
	if err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}

// IsThumbName reports whether name looks like a finished cache file and
// returns its hash.
func IsThumbName(name string) (string, bool) {
	hash, ok := strings.CutSuffix(name, ThumbExt)
	if !ok || len(hash) != 32 {
		return "", false
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", false
		}
	}
	return hash, true
}
