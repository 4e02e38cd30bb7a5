package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
)

// CropRect selects a region as fractions (0..1) of the source frame.
type CropRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Adjustments are the non-destructive visual edits stored in an edit
// sidecar. Zero values leave the image unchanged.
type Adjustments struct {
	Rotate     int       `json:"rotate"` // clockwise degrees, multiple of 90
	FlipH      bool      `json:"flipHorizontal"`
	FlipV      bool      `json:"flipVertical"`
	Crop       *CropRect `json:"crop,omitempty"`
	Brightness float64   `json:"brightness"` // percent, -100..100
	Contrast   float64   `json:"contrast"`   // percent, -100..100
	Saturation float64   `json:"saturation"` // percent, -100..500
	Gamma      float64   `json:"gamma"`      // 0 or 1 means unchanged
	Blur       float64   `json:"blur"`       // gaussian sigma
	Sharpen    float64   `json:"sharpen"`    // sigma
	Grayscale  bool      `json:"grayscale"`
	Invert     bool      `json:"invert"`
}

// LoadAdjustments reads an edit sidecar. A missing file yields nil, nil.
func LoadAdjustments(path string) (*Adjustments, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var a Adjustments
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse edit sidecar %s: %w", path, err)
	}
	return &a, nil
}

// HasCrop reports whether the adjustments select a sub-region.
func (a *Adjustments) HasCrop() bool {
	return a != nil && a.Crop != nil && a.Crop.Width > 0 && a.Crop.Height > 0
}

// Apply returns img with the adjustments applied: geometry first (crop,
// rotation, flips), then tone, then filters.
func (a *Adjustments) Apply(img image.Image) image.Image {
	if a == nil {
		return img
	}

	if a.HasCrop() {
		b := img.Bounds()
		rect := image.Rect(
			b.Min.X+int(a.Crop.X*float64(b.Dx())),
			b.Min.Y+int(a.Crop.Y*float64(b.Dy())),
			b.Min.X+int((a.Crop.X+a.Crop.Width)*float64(b.Dx())),
			b.Min.Y+int((a.Crop.Y+a.Crop.Height)*float64(b.Dy())),
		).Intersect(b)
		if !rect.Empty() {
			img = imaging.Crop(img, rect)
		}
	}

	switch ((a.Rotate % 360) + 360) % 360 {
	case 90:
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	}
	if a.FlipH {
		img = imaging.FlipH(img)
	}
	if a.FlipV {
		img = imaging.FlipV(img)
	}

	if a.Brightness != 0 {
		img = imaging.AdjustBrightness(img, a.Brightness)
	}
	if a.Contrast != 0 {
		img = imaging.AdjustContrast(img, a.Contrast)
	}
	if a.Saturation != 0 {
		img = imaging.AdjustSaturation(img, a.Saturation)
	}
	if a.Gamma > 0 && a.Gamma != 1 {
		img = imaging.AdjustGamma(img, a.Gamma)
	}

	if a.Blur > 0 {
		img = imaging.Blur(img, a.Blur)
	}
	if a.Sharpen > 0 {
		img = imaging.Sharpen(img, a.Sharpen)
	}
	if a.Grayscale {
		img = imaging.Grayscale(img)
	}
	if a.Invert {
		img = imaging.Invert(img)
	}
	return img
}
