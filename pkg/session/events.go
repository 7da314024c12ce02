package session

import (
	"image"

	"github.com/menta2k/image-redactor/pkg/types"
)

// Event is an input delivered to a Loop. Events are applied in arrival order
// on the loop goroutine.
type Event interface {
	apply(l *Loop)
}

// SetFrame records a new display frame (layout change, scroll, zoom)
type SetFrame struct {
	Frame types.DisplayFrame
}

// AddBox adds a default box centered on a normalized point
type AddBox struct {
	Center types.Point
}

// AddBoxInView adds a default box centered on the visible part of the image
type AddBoxInView struct {
	Viewport types.Viewport
}

// PointerDown starts a drag. An empty Target hit-tests Pos against the
// display frame; otherwise Target is resolved as by Editor.ResolveTarget and
// Mode defaults to a move.
type PointerDown struct {
	Target string
	Mode   types.DragMode
	Pos    types.Point
}

// PointerMove moves the pointer to a screen position
type PointerMove struct {
	Pos types.Point
}

// PointerUp releases the pointer anywhere
type PointerUp struct{}

// KeyDelete is a delete or backspace key press
type KeyDelete struct{}

// Select changes the selection; an empty Target clears it
type Select struct {
	Target string
}

// TogglePreview flips preview mode
type TogglePreview struct{}

// LoadImage starts an asynchronous decode of encoded image bytes
type LoadImage struct {
	Data []byte
}

// ExportImage starts an asynchronous PNG export
type ExportImage struct{}

type loadDone struct {
	gen uint64
	img image.Image
	err error
}

type exportDone struct {
	job  ExportJob
	data []byte
	err  error
}

type call struct {
	fn   func(*Editor)
	done chan struct{}
}

func (ev SetFrame) apply(l *Loop) { l.editor.SetFrame(ev.Frame) }

func (ev AddBox) apply(l *Loop) {
	if id, ok := l.editor.AddBox(ev.Center); ok {
		l.logger.Debug("box added", "id", id)
	}
}

func (ev AddBoxInView) apply(l *Loop) {
	if id, ok := l.editor.AddBoxInView(ev.Viewport); ok {
		l.logger.Debug("box added", "id", id)
	}
}

func (ev PointerDown) apply(l *Loop) {
	if ev.Target == "" {
		l.editor.PointerDownAt(ev.Pos)
		return
	}
	id, ok := l.editor.ResolveTarget(ev.Target)
	if !ok {
		l.logger.Debug("pointer down on unknown target", "target", ev.Target)
		return
	}
	mode := ev.Mode
	if mode == types.DragNone {
		mode = types.DragMove
	}
	l.editor.PointerDown(id, mode, ev.Pos)
}

func (ev PointerMove) apply(l *Loop) { l.editor.PointerMove(ev.Pos) }

func (PointerUp) apply(l *Loop) { l.editor.PointerUp() }

func (KeyDelete) apply(l *Loop) { l.editor.KeyDelete() }

func (ev Select) apply(l *Loop) {
	if ev.Target == "" {
		l.editor.Select("")
		return
	}
	id, _ := l.editor.ResolveTarget(ev.Target)
	l.editor.Select(id)
}

func (TogglePreview) apply(l *Loop) { l.editor.TogglePreview() }

func (ev LoadImage) apply(l *Loop) { l.startLoad(ev.Data) }

func (ExportImage) apply(l *Loop) { l.startExport() }

func (ev loadDone) apply(l *Loop) { l.finishLoad(ev) }

func (ev exportDone) apply(l *Loop) { l.finishExport(ev) }

func (ev call) apply(l *Loop) {
	defer close(ev.done)
	ev.fn(l.editor)
}
