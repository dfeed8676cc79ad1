// Package storage prepares uploaded images for the CDN and writes them to an
// S3-compatible bucket.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder

	"github.com/disintegration/imaging"
)

var (
	// ErrTooLarge is returned when the upload exceeds the size limit.
	ErrTooLarge = errors.New("image too large")
	// ErrUnsupportedFormat is returned for anything but jpeg, png or gif.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// MaxPixels caps width*height of an upload. A few KiB of PNG can declare
// dimensions whose decoded bitmap would not fit in memory.
const MaxPixels = 40_000_000

// Optimizer validates images, shrinks them to MaxWidth and re-encodes JPEG.
type Optimizer struct {
	MaxSize  int64
	MaxWidth int
	Quality  int
}

// NewOptimizer returns an Optimizer with JPEG quality 85.
func NewOptimizer(maxSize int64, maxWidth int) *Optimizer {
	return &Optimizer{MaxSize: maxSize, MaxWidth: maxWidth, Quality: 85}
}

// Validate checks size, declared dimensions and format without decoding
// pixel data.
func (o *Optimizer) Validate(data []byte) (format string, err error) {
	if o.MaxSize > 0 && int64(len(data)) > o.MaxSize {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), o.MaxSize)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return "", fmt.Errorf("%w: %dx%d pixels", ErrTooLarge, cfg.Width, cfg.Height)
	}
	switch format {
	case "jpeg", "png", "gif":
		return format, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Optimize returns the image re-encoded as JPEG, downscaled to fit MaxWidth
// while keeping its aspect ratio. Smaller images are not enlarged.
func (o *Optimizer) Optimize(data []byte) ([]byte, error) {
	if _, err := o.Validate(data); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if o.MaxWidth > 0 && img.Bounds().Dx() > o.MaxWidth {
		img = imaging.Resize(img, o.MaxWidth, 0, imaging.Lanczos)
	}

	q := o.Quality
	if q <= 0 || q > 100 {
		q = 85
	}
	// Flatten transparency onto white before JPEG.
	bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), image.White)
	flat := imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: q}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
