package types

import "math"

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// Right returns the normalized x coordinate of the right edge
func (b Box) Right() float64 { return b.X + b.W }

// Bottom returns the normalized y coordinate of the bottom edge
func (b Box) Bottom() float64 { return b.Y + b.H }

// Contains reports whether the normalized point lies inside the box
func (b Box) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.Right() && p.Y >= b.Y && p.Y <= b.Bottom()
}

// Finite reports whether every component is a real number
func (b Box) Finite() bool { return Finite(b.X, b.Y, b.W, b.H) }

// InBounds reports whether the box satisfies the image-bounds and minimum-size invariants
func (b Box) InBounds(minW, minH float64) bool {
	const eps = 1e-9
	return b.X >= -eps && b.Y >= -eps &&
		b.Right() <= 1+eps && b.Bottom() <= 1+eps &&
		b.W >= minW-eps && b.H >= minH-eps
}

// Redaction is a single blackout rectangle owned by a redaction set
type Redaction struct {
	ID  string `json:"id" yaml:"id"`
	Box Box    `json:"box" yaml:"box"`
}

// Point is a position, either in screen pixels or normalized units depending on context
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Finite reports whether both coordinates are real numbers
func (p Point) Finite() bool { return Finite(p.X, p.Y) }

// Finite reports whether none of vs is NaN or infinite
func Finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// DragMode tells how a drag session mutates its target
type DragMode int

const (
	DragNone DragMode = iota
	DragMove
	DragResizeBottomRight
)

func (m DragMode) String() string {
	switch m {
	case DragMove:
		return "move"
	case DragResizeBottomRight:
		return "resize-bottom-right"
	default:
		return "none"
	}
}

// ParseDragMode maps the textual form back to a DragMode
func ParseDragMode(s string) (DragMode, bool) {
	switch s {
	case "move":
		return DragMove, true
	case "resize", "resize-bottom-right":
		return DragResizeBottomRight, true
	}
	return DragNone, false
}

// DisplayFrame describes where the image is displayed on screen: the origin of its
// top-left corner and its displayed size, all in screen pixels.
// Every screen-to-normalized conversion goes through a frame value instead of
// querying the presentation layer.
type DisplayFrame struct {
	Origin Point   `json:"origin" yaml:"origin"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Valid reports whether the frame has a usable, positive area
func (f DisplayFrame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && Finite(f.Origin.X, f.Origin.Y, f.Width, f.Height)
}

// Delta converts a screen displacement into normalized units. It fails for
// an invalid frame or non-finite points.
func (f DisplayFrame) Delta(from, to Point) (dx, dy float64, ok bool) {
	if !f.Valid() || !from.Finite() || !to.Finite() {
		return 0, 0, false
	}
	dx, dy = (to.X-from.X)/f.Width, (to.Y-from.Y)/f.Height
	if !Finite(dx, dy) {
		return 0, 0, false
	}
	return dx, dy, true
}

// Normalize maps a screen point into the frame's normalized space, clamped to [0,1]
func (f DisplayFrame) Normalize(p Point) Point {
	if !f.Valid() {
		return Point{}
	}
	return Point{
		X: clamp01((p.X - f.Origin.X) / f.Width),
		Y: clamp01((p.Y - f.Origin.Y) / f.Height),
	}
}

// VisibleCenter returns the normalized center of the part of the image that is visible
// inside the given screen viewport. When the image is fully scrolled out of view the
// closest edge is used.
func (f DisplayFrame) VisibleCenter(viewport Viewport) Point {
	if !f.Valid() || !Finite(viewport.X, viewport.Y, viewport.Width, viewport.Height) {
		return Point{X: 0.5, Y: 0.5}
	}
	x0 := math.Max(f.Origin.X, viewport.X)
	y0 := math.Max(f.Origin.Y, viewport.Y)
	x1 := math.Min(f.Origin.X+f.Width, viewport.X+viewport.Width)
	y1 := math.Min(f.Origin.Y+f.Height, viewport.Y+viewport.Height)
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return f.Normalize(Point{X: (x0 + x1) / 2, Y: (y0 + y1) / 2})
}

// Viewport is the visible screen region in pixels
type Viewport struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
