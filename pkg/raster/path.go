package raster

import "math"

// Corner radius bounds, in output pixels.
const (
	RadiusRatio = 0.18
	MinRadius   = 4.0
	MaxRadius   = 18.0
)

// Op is a path construction operation
type Op int

const (
	OpMoveTo Op = iota
	OpLineTo
	OpQuadTo
	OpClose
)

// Segment is one path operation. QuadTo uses P[0] as the control point and
// P[1] as the end point; MoveTo and LineTo use P[0] only.
type Segment struct {
	Op Op
	P  [2][2]float64
}

// Path is a sequence of segments independent of any drawing backend
type Path []Segment

// Pather receives path operations. *vector.Rasterizer satisfies it.
type Pather interface {
	MoveTo(x, y float32)
	LineTo(x, y float32)
	QuadTo(cx, cy, x, y float32)
	ClosePath()
}

// CornerRadius returns clamp(ratio*min(w,h), lo, hi), further capped at half
// the shorter side so that the corners of tiny boxes do not overlap.
func CornerRadius(w, h, ratio, lo, hi float64) float64 {
	short := math.Min(w, h)
	r := math.Max(lo, math.Min(hi, short*ratio))
	return math.Max(0, math.Min(r, short/2))
}

// RoundedRect builds a closed rounded rectangle with quadratic Bezier corners.
// Traversal is clockwise in image space, starting after the top-left corner.
func RoundedRect(x, y, w, h, r float64) Path {
	if w <= 0 || h <= 0 {
		return nil
	}
	r = math.Max(0, math.Min(r, math.Min(w, h)/2))
	x1, y1 := x+w, y+h
	return Path{
		{Op: OpMoveTo, P: [2][2]float64{{x + r, y}}},
		{Op: OpLineTo, P: [2][2]float64{{x1 - r, y}}},
		{Op: OpQuadTo, P: [2][2]float64{{x1, y}, {x1, y + r}}},
		{Op: OpLineTo, P: [2][2]float64{{x1, y1 - r}}},
		{Op: OpQuadTo, P: [2][2]float64{{x1, y1}, {x1 - r, y1}}},
		{Op: OpLineTo, P: [2][2]float64{{x + r, y1}}},
		{Op: OpQuadTo, P: [2][2]float64{{x, y1}, {x, y1 - r}}},
		{Op: OpLineTo, P: [2][2]float64{{x, y + r}}},
		{Op: OpQuadTo, P: [2][2]float64{{x, y}, {x + r, y}}},
		{Op: OpClose},
	}
}

// Translate returns a copy of p shifted by (dx, dy)
func (p Path) Translate(dx, dy float64) Path {
	out := make(Path, len(p))
	for i, s := range p {
		out[i] = s
		for j := range s.P {
			out[i].P[j][0] += dx
			out[i].P[j][1] += dy
		}
	}
	return out
}

// Bounds returns the axis-aligned bounding box of every point in the path.
// Quadratic control points lie on the rectangle corners, so this is exact for
// RoundedRect.
func (p Path) Bounds() (x0, y0, x1, y1 float64) {
	x0, y0 = math.Inf(1), math.Inf(1)
	x1, y1 = math.Inf(-1), math.Inf(-1)
	for _, s := range p {
		n := 0
		switch s.Op {
		case OpMoveTo, OpLineTo:
			n = 1
		case OpQuadTo:
			n = 2
		}
		for _, pt := range s.P[:n] {
			x0, y0 = math.Min(x0, pt[0]), math.Min(y0, pt[1])
			x1, y1 = math.Max(x1, pt[0]), math.Max(y1, pt[1])
		}
	}
	return x0, y0, x1, y1
}

// Replay feeds the path into dst
func (p Path) Replay(dst Pather) {
	for _, s := range p {
		switch s.Op {
		case OpMoveTo:
			dst.MoveTo(float32(s.P[0][0]), float32(s.P[0][1]))
		case OpLineTo:
			dst.LineTo(float32(s.P[0][0]), float32(s.P[0][1]))
		case OpQuadTo:
			dst.QuadTo(float32(s.P[0][0]), float32(s.P[0][1]), float32(s.P[1][0]), float32(s.P[1][1]))
		case OpClose:
			dst.ClosePath()
		}
	}
}
