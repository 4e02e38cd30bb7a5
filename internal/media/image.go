package media

import (
	"fmt"
	"image"

	"media-catalog/internal/filesystem"
	"media-catalog/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageDimension is the maximum width or height decoded at full size.
	// Larger sources are downscaled right after decode.
	MaxImageDimension = 4096

	// MaxImagePixels caps the decoded pixel count (~80MB as RGBA).
	MaxImagePixels = 20_000_000
)

// openImage decodes path with EXIF auto-orientation.
func openImage(path string) (image.Image, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()
	return imaging.Decode(f, imaging.AutoOrientation(true))
}

// constrainedSize scales width x height down to fit maxDimension and
// maxPixels, preserving aspect ratio. ok is false when no scaling is needed.
func constrainedSize(width, height, maxDimension, maxPixels int) (int, int, bool) {
	if width <= maxDimension && height <= maxDimension && width*height <= maxPixels {
		return width, height, false
	}

	w, h := width, height
	if w > maxDimension || h > maxDimension {
		if w > h {
			h = h * maxDimension / w
			w = maxDimension
		} else {
			w = w * maxDimension / h
			h = maxDimension
		}
	}
	if w*h > maxPixels {
		scale := float64(maxPixels) / float64(w*h)
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
	}
	return max(w, 1), max(h, 1), true
}

// LoadImageConstrained decodes path and downscales it when it exceeds the
// dimension or pixel limits, keeping memory bounded for huge sources.
func LoadImageConstrained(path string, maxDimension, maxPixels int) (image.Image, error) {
	img, err := openImage(path)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h, scale := constrainedSize(b.Dx(), b.Dy(), maxDimension, maxPixels)
	if !scale {
		return img, nil
	}

	logging.Debug("Constraining large image %s from %dx%d to %dx%d", path, b.Dx(), b.Dy(), w, h)
	return imaging.Resize(img, w, h, imaging.Lanczos), nil
}

// decodeError classifies a decode failure of an existing file.
func decodeError(path string, err error) error {
	return fmt.Errorf("decode %s: %w: %v", path, ErrCorrupt, err)
}
