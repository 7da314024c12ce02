package processing

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-redactor/pkg/types"
)

// Overlay colors of the editing surface
var (
	overlayFill     = color.NRGBA{0, 0, 0, 64}        // 25% black
	previewFill     = color.NRGBA{0, 0, 0, 255}       // opaque
	selectedBorder  = color.NRGBA{0xef, 0x44, 0x44, 255}
	defaultBorder   = color.NRGBA{0x11, 0x18, 0x27, 255}
	previewBorder   = color.NRGBA{255, 255, 255, 89} // 35% white
	overlayStrokePx = 2
)

// CreateOverlay renders the editing view of an image: every box drawn as a
// translucent fill with a border, the selected one highlighted. In preview
// mode fills are opaque. The model is not altered and nothing is exported.
func CreateOverlay(img image.Image, items []types.Redaction, selectedID string, preview bool) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	fill := overlayFill
	if preview {
		fill = previewFill
	}
	stroke := int(math.Max(float64(overlayStrokePx), 0.002*float64(min(w, h))))

	for _, it := range items {
		border := defaultBorder
		switch {
		case preview:
			border = previewBorder
		case it.ID == selectedID:
			border = selectedBorder
		}
		x0, y0, x1, y1 := boxToPixels(it.Box, w, h)
		r := image.Rect(x0, y0, x1, y1)
		blend(nrgba, r, fill)
		drawBox(nrgba, r, border, stroke)
	}
	return nrgba
}

// Helper functions
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boxToPixels(box types.Box, w, h int) (int, int, int, int) {
	x0 := int(clamp(box.X, 0, 1)*float64(w) + 0.5)
	y0 := int(clamp(box.Y, 0, 1)*float64(h) + 0.5)
	x1 := int(clamp(box.X+box.W, 0, 1)*float64(w) + 0.5)
	y1 := int(clamp(box.Y+box.H, 0, 1)*float64(h) + 0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return x0, y0, x1, y1
}

func blend(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Over)
}

// drawBox strokes the inside of r; strips do not overlap so translucent
// borders blend once per pixel
func drawBox(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	stroke = min(stroke, r.Dx()/2, r.Dy()/2)
	if stroke < 1 {
		blend(img, r, c)
		return
	}
	blend(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+stroke), c)
	blend(img, image.Rect(r.Min.X, r.Max.Y-stroke, r.Max.X, r.Max.Y), c)
	blend(img, image.Rect(r.Min.X, r.Min.Y+stroke, r.Min.X+stroke, r.Max.Y-stroke), c)
	blend(img, image.Rect(r.Max.X-stroke, r.Min.Y+stroke, r.Max.X, r.Max.Y-stroke), c)
}
