package interaction

import "github.com/menta2k/image-redactor/pkg/types"

// DefaultHandleSize is the side of the square resize handle in screen pixels
const DefaultHandleSize = 12.0

// HitTest finds the topmost box under a screen point. Points inside the
// handle square anchored at a box's bottom-right corner report a resize;
// anything else inside the box reports a move.
func HitTest(frame types.DisplayFrame, items []types.Redaction, pos types.Point, handleSize float64) (string, types.DragMode, bool) {
	if !frame.Valid() {
		return "", types.DragNone, false
	}
	if handleSize <= 0 {
		handleSize = DefaultHandleSize
	}
	for i := len(items) - 1; i >= 0; i-- {
		b := items[i].Box
		x0 := frame.Origin.X + b.X*frame.Width
		y0 := frame.Origin.Y + b.Y*frame.Height
		x1 := frame.Origin.X + b.Right()*frame.Width
		y1 := frame.Origin.Y + b.Bottom()*frame.Height

		if pos.X >= x1-handleSize && pos.X <= x1 && pos.Y >= y1-handleSize && pos.Y <= y1 {
			return items[i].ID, types.DragResizeBottomRight, true
		}
		if pos.X >= x0 && pos.X <= x1 && pos.Y >= y0 && pos.Y <= y1 {
			return items[i].ID, types.DragMove, true
		}
	}
	return "", types.DragNone, false
}
