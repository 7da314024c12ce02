// Package interaction turns pointer and keyboard input into redaction box
// mutations. The controller is a two-state machine (Idle, Dragging) that reads
// and writes boxes through a redaction.Set.
package interaction

import (
	"io"
	"math"
	"log/slog"

	"github.com/menta2k/image-redactor/pkg/redaction"
	"github.com/menta2k/image-redactor/pkg/types"
)

// State of the pointer controller
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// DragSession is the ephemeral state between pointer-down and pointer-up
type DragSession struct {
	ID       string
	Mode     types.DragMode
	StartPos types.Point
	Start    types.Box
}

// Controller applies drags and deletions to a redaction set
type Controller struct {
	set    *redaction.Set
	logger *slog.Logger
	drag   *DragSession
}

// NewController creates an idle controller bound to set. A nil logger discards output.
func NewController(set *redaction.Set, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{set: set, logger: logger}
}

// State returns the current controller state
func (c *Controller) State() State {
	if c.drag != nil {
		return Dragging
	}
	return Idle
}

// Session returns a copy of the active drag session
func (c *Controller) Session() (DragSession, bool) {
	if c.drag == nil {
		return DragSession{}, false
	}
	return *c.drag, true
}

// PointerDown starts a drag on box id. The box becomes selected and its current
// geometry is snapshotted. Unknown ids, DragNone and a NaN or infinite
// position leave the controller idle.
func (c *Controller) PointerDown(id string, mode types.DragMode, pos types.Point) bool {
	if mode != types.DragMove && mode != types.DragResizeBottomRight {
		return false
	}
	if !pos.Finite() {
		return false
	}
	r, ok := c.set.Get(id)
	if !ok {
		return false
	}
	c.set.Select(id)
	c.drag = &DragSession{ID: id, Mode: mode, StartPos: pos, Start: r.Box}
	c.logger.Debug("drag started", "id", id, "mode", mode.String())
	return true
}

// PointerMove recomputes the dragged box from the displacement since
// pointer-down, measured in the given display frame. It returns the new
// geometry, or false when idle, the frame is unusable, the position is not
// finite or the target is gone. A refused move leaves the drag running.
func (c *Controller) PointerMove(frame types.DisplayFrame, pos types.Point) (types.Box, bool) {
	if c.drag == nil || !pos.Finite() {
		return types.Box{}, false
	}
	if _, ok := c.set.Get(c.drag.ID); !ok {
		return types.Box{}, false
	}
	dx, dy, ok := frame.Delta(c.drag.StartPos, pos)
	if !ok {
		return types.Box{}, false
	}

	var next types.Box
	switch c.drag.Mode {
	case types.DragMove:
		next = Move(c.drag.Start, dx, dy)
	case types.DragResizeBottomRight:
		cfg := c.set.Config()
		next = Resize(c.drag.Start, dx, dy, cfg.MinWidth, cfg.MinHeight)
	default:
		return types.Box{}, false
	}
	if !c.set.Update(c.drag.ID, next) {
		return types.Box{}, false
	}
	return next, true
}

// PointerUp ends any drag. It is accepted anywhere, not only over the box.
func (c *Controller) PointerUp() {
	if c.drag == nil {
		return
	}
	c.logger.Debug("drag ended", "id", c.drag.ID)
	c.drag = nil
}

// DeleteSelected removes the selected box, regardless of drag state
func (c *Controller) DeleteSelected() bool {
	id := c.set.SelectedID()
	if id == "" {
		return false
	}
	return c.set.Remove(id)
}

// Move translates start by (dx, dy), clamping each axis to [0, 1-size]
func Move(start types.Box, dx, dy float64) types.Box {
	out := start
	out.X = clamp(start.X+dx, 0, 1-start.W)
	out.Y = clamp(start.Y+dy, 0, 1-start.H)
	return out
}

// Resize grows or shrinks start from its bottom-right corner. The top-left
// corner is anchored and the size is clamped to [min, 1-position].
func Resize(start types.Box, dx, dy, minW, minH float64) types.Box {
	out := start
	out.W = clamp(start.W+dx, minW, 1-start.X)
	out.H = clamp(start.H+dy, minH, 1-start.Y)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
