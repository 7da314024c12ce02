// Package raster flattens an image and its redaction boxes into a single
// raster and encodes it for export.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/vector"

	"github.com/menta2k/image-redactor/pkg/types"
)

var (
	// ErrNoImage is returned when export is requested without a loaded image
	ErrNoImage = errors.New("no image loaded")
	// ErrEncode wraps failures of the output encoder
	ErrEncode = errors.New("encode failed")
	// ErrInvalidBox is returned for boxes with NaN or infinite components
	ErrInvalidBox = errors.New("invalid box geometry")
)

// Config holds fill style for redaction boxes
type Config struct {
	Fill        color.Color
	RadiusRatio float64
	MinRadius   float64
	MaxRadius   float64
}

// DefaultConfig returns solid black boxes with the standard corner radius
func DefaultConfig() Config {
	return Config{
		Fill:        color.Black,
		RadiusRatio: RadiusRatio,
		MinRadius:   MinRadius,
		MaxRadius:   MaxRadius,
	}
}

// EncodeFunc writes img to w in the export format
type EncodeFunc func(w io.Writer, img image.Image) error

// Rasterizer burns redaction boxes into a copy of an image
type Rasterizer struct {
	config Config
	encode EncodeFunc
}

// New creates a Rasterizer with default configuration
func New() *Rasterizer {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Rasterizer with custom configuration
func NewWithConfig(config Config) *Rasterizer {
	if config.Fill == nil {
		config.Fill = color.Black
	}
	return &Rasterizer{config: config, encode: encodePNG}
}

// SetEncoder replaces the PNG encoder
func (r *Rasterizer) SetEncoder(fn EncodeFunc) {
	if fn != nil {
		r.encode = fn
	}
}

// Flatten copies img at its natural size and fills a rounded rectangle for
// every box, in order. The source image is not modified.
func (r *Rasterizer) Flatten(img image.Image, boxes []types.Box) (*image.NRGBA, error) {
	if img == nil {
		return nil, ErrNoImage
	}
	for i, b := range boxes {
		if !b.Finite() {
			return nil, fmt.Errorf("%w: box %d is %+v", ErrInvalidBox, i, b)
		}
	}
	dst := imaging.Clone(img)
	bounds := dst.Bounds()
	fw, fh := float64(bounds.Dx()), float64(bounds.Dy())
	fill := image.NewUniform(r.config.Fill)

	z := vector.NewRasterizer(1, 1)
	for _, b := range boxes {
		x, y, w, h := b.X*fw, b.Y*fh, b.W*fw, b.H*fh
		rad := CornerRadius(w, h, r.config.RadiusRatio, r.config.MinRadius, r.config.MaxRadius)
		path := RoundedRect(x, y, w, h, rad)
		if path == nil {
			continue
		}

		px0, py0, px1, py1 := path.Bounds()
		area := image.Rect(
			int(math.Floor(px0)), int(math.Floor(py0)),
			int(math.Ceil(px1)), int(math.Ceil(py1)),
		).Intersect(bounds)
		if area.Empty() {
			continue
		}

		// Coverage is rasterized into a mask the size of the box area, so the
		// path is shifted into mask space first.
		mask := image.NewAlpha(image.Rect(0, 0, area.Dx(), area.Dy()))
		z.Reset(area.Dx(), area.Dy())
		path.Translate(-float64(area.Min.X), -float64(area.Min.Y)).Replay(z)
		z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
		draw.DrawMask(dst, area, fill, image.Point{}, mask, image.Point{}, draw.Over)
	}
	return dst, nil
}

// Export flattens the image and encodes the result as PNG
func (r *Rasterizer) Export(img image.Image, items []types.Redaction) ([]byte, error) {
	boxes := make([]types.Box, len(items))
	for i, it := range items {
		boxes[i] = it.Box
	}
	out, err := r.Flatten(img, boxes)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := r.encode(&buf, out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrEncode)
	}
	return buf.Bytes(), nil
}

func encodePNG(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.PNG)
}
