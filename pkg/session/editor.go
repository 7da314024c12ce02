// Package session owns a single editing session: the loaded image, its
// redaction set, the pointer controller and the display frame. All mutation
// goes through an *Editor, which is not safe for concurrent use; Loop
// serializes access from multiple goroutines.
package session

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/menta2k/image-redactor/pkg/analyzer"
	"github.com/menta2k/image-redactor/pkg/interaction"
	"github.com/menta2k/image-redactor/pkg/processing"
	"github.com/menta2k/image-redactor/pkg/raster"
	"github.com/menta2k/image-redactor/pkg/redaction"
	"github.com/menta2k/image-redactor/pkg/types"
)

var (
	// ErrNoImage is returned by operations that need a loaded image
	ErrNoImage = raster.ErrNoImage
	// ErrStaleLoad marks a decode completion superseded by a newer load
	ErrStaleLoad = errors.New("stale image load discarded")
	// ErrStaleExport marks an encode completion whose image has been replaced
	ErrStaleExport = errors.New("stale export discarded")
	// ErrClosed is returned once the session has been closed
	ErrClosed = errors.New("session closed")
)

// Config holds per-session settings
type Config struct {
	Redaction  redaction.Config
	Raster     raster.Config
	HandleSize float64
}

// DefaultConfig returns the standard editor settings
func DefaultConfig() Config {
	return Config{
		Redaction:  redaction.DefaultConfig(),
		Raster:     raster.DefaultConfig(),
		HandleSize: interaction.DefaultHandleSize,
	}
}

// Releaser is implemented by images holding resources that must be freed when
// the session drops them
type Releaser interface {
	Release()
}

// LoadedImage is the decoded image owned by the session
type LoadedImage struct {
	Image      image.Image
	Info       analyzer.ImageInfo
	Generation uint64
}

// ExportJob is a snapshot of what an export would rasterize
type ExportJob struct {
	Image      image.Image
	Items      []types.Redaction
	Generation uint64
}

// Editor is the explicit session object every operation goes through
type Editor struct {
	config   Config
	logger   *slog.Logger
	set      *redaction.Set
	ctrl     *interaction.Controller
	raster   *raster.Rasterizer
	analyzer *analyzer.ImageAnalyzer

	image      *LoadedImage
	generation uint64
	frame      types.DisplayFrame
	preview    bool
	closed     bool

	// exports counts encodes still reading each generation's image; retired
	// holds replaced images until their count drops to zero.
	exports map[uint64]int
	retired map[uint64]image.Image
}

// NewEditor creates an empty session. A nil logger discards output.
func NewEditor(config Config, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	set := redaction.NewWithConfig(config.Redaction)
	return &Editor{
		config:   config,
		logger:   logger,
		set:      set,
		ctrl:     interaction.NewController(set, logger),
		raster:   raster.NewWithConfig(config.Raster),
		analyzer: analyzer.New(),
		exports:  make(map[uint64]int),
		retired:  make(map[uint64]image.Image),
	}
}

// Rasterizer exposes the exporter so callers can swap its encoder
func (e *Editor) Rasterizer() *raster.Rasterizer { return e.raster }

// BeginLoad issues a new generation token. Any completion carrying an older
// token is stale from now on.
func (e *Editor) BeginLoad() uint64 {
	e.generation++
	e.logger.Debug("image load started", "generation", e.generation)
	return e.generation
}

// Generation returns the most recently issued load token
func (e *Editor) Generation() uint64 { return e.generation }

// CompleteLoad installs a decoded image if gen is still current. The previous
// image is released, or retired until its running exports end, and the
// redaction set is cleared. Stale images are
// released and rejected with ErrStaleLoad.
func (e *Editor) CompleteLoad(gen uint64, img image.Image) error {
	if e.closed {
		release(img)
		return ErrClosed
	}
	if gen != e.generation {
		e.logger.Debug("stale image load discarded", "generation", gen, "current", e.generation)
		release(img)
		return ErrStaleLoad
	}
	if img == nil {
		return fmt.Errorf("image load failed: %w", ErrNoImage)
	}

	e.retire()
	e.image = &LoadedImage{Image: img, Info: e.analyzer.GetImageInfo(img), Generation: gen}
	e.ctrl.PointerUp()
	e.set.Clear()
	e.logger.Debug("image loaded", "generation", gen, "width", e.image.Info.Width, "height", e.image.Info.Height)
	return nil
}

// FailLoad reports a failed decode or fetch. The editor keeps its previous
// state either way.
func (e *Editor) FailLoad(gen uint64, cause error) error {
	if gen != e.generation {
		return ErrStaleLoad
	}
	e.logger.Debug("image load failed", "generation", gen, "error", cause)
	return fmt.Errorf("image load failed: %w", cause)
}

// Load installs an already decoded image synchronously
func (e *Editor) Load(img image.Image) error {
	return e.CompleteLoad(e.BeginLoad(), img)
}

// Image returns the loaded image
func (e *Editor) Image() (LoadedImage, bool) {
	if e.image == nil {
		return LoadedImage{}, false
	}
	return *e.image, true
}

// HasImage reports whether an image is loaded
func (e *Editor) HasImage() bool { return e.image != nil }

// SetFrame records where the image is displayed on screen
func (e *Editor) SetFrame(frame types.DisplayFrame) { e.frame = frame }

// Frame returns the current display frame
func (e *Editor) Frame() types.DisplayFrame { return e.frame }

// AddBox adds a default box centered on the normalized viewport center. It is
// a no-op without an image.
func (e *Editor) AddBox(center types.Point) (string, bool) {
	if e.image == nil {
		return "", false
	}
	return e.set.AddDefault(center), true
}

// AddBoxInView adds a default box centered on the visible part of the image
func (e *Editor) AddBoxInView(viewport types.Viewport) (string, bool) {
	return e.AddBox(e.frame.VisibleCenter(viewport))
}

// AddBoxAt inserts a box with explicit geometry, clamped into the image.
// Geometry with NaN or infinite components is refused.
func (e *Editor) AddBoxAt(b types.Box) (string, bool) {
	if e.image == nil || !b.Finite() {
		return "", false
	}
	cfg := e.set.Config()
	id := e.set.AddDefault(types.Point{})
	b.W = clampRange(b.W, cfg.MinWidth, 1)
	b.H = clampRange(b.H, cfg.MinHeight, 1)
	b.X = clampRange(b.X, 0, 1-b.W)
	b.Y = clampRange(b.Y, 0, 1-b.H)
	e.set.Update(id, b)
	return id, true
}

// Remove deletes a box by identifier
func (e *Editor) Remove(id string) bool { return e.set.Remove(id) }

// Select sets the selection; "" clears it
func (e *Editor) Select(id string) { e.set.Select(id) }

// SelectedID returns the selected box identifier
func (e *Editor) SelectedID() string { return e.set.SelectedID() }

// Redactions returns the boxes in paint order
func (e *Editor) Redactions() []types.Redaction { return e.set.Items() }

// Get looks up a box
func (e *Editor) Get(id string) (types.Redaction, bool) { return e.set.Get(id) }

// PointerDown starts a drag on an explicit box
func (e *Editor) PointerDown(id string, mode types.DragMode, pos types.Point) bool {
	return e.ctrl.PointerDown(id, mode, pos)
}

// PointerDownAt hit-tests the screen point against the display frame and
// starts the matching drag
func (e *Editor) PointerDownAt(pos types.Point) (string, types.DragMode, bool) {
	id, mode, ok := interaction.HitTest(e.frame, e.set.Items(), pos, e.config.HandleSize)
	if !ok {
		return "", types.DragNone, false
	}
	return id, mode, e.ctrl.PointerDown(id, mode, pos)
}

// PointerMove updates the dragged box
func (e *Editor) PointerMove(pos types.Point) bool {
	_, ok := e.ctrl.PointerMove(e.frame, pos)
	return ok
}

// PointerUp ends any drag
func (e *Editor) PointerUp() { e.ctrl.PointerUp() }

// Dragging reports whether a drag session is active
func (e *Editor) Dragging() bool { return e.ctrl.State() == interaction.Dragging }

// KeyDelete removes the selected box (delete/backspace)
func (e *Editor) KeyDelete() bool { return e.ctrl.DeleteSelected() }

// TogglePreview flips preview mode and returns the new value
func (e *Editor) TogglePreview() bool {
	e.preview = !e.preview
	return e.preview
}

// SetPreview sets preview mode
func (e *Editor) SetPreview(on bool) { e.preview = on }

// Preview reports whether preview mode is on
func (e *Editor) Preview() bool { return e.preview }

// ResolveTarget maps a symbolic target to a box identifier: "selected",
// "last", "#N" (zero-based paint order) or a literal identifier.
func (e *Editor) ResolveTarget(target string) (string, bool) {
	items := e.set.Items()
	switch {
	case target == "selected":
		id := e.set.SelectedID()
		return id, id != ""
	case target == "last":
		if len(items) == 0 {
			return "", false
		}
		return items[len(items)-1].ID, true
	case strings.HasPrefix(target, "#"):
		i, err := strconv.Atoi(target[1:])
		if err != nil || i < 0 || i >= len(items) {
			return "", false
		}
		return items[i].ID, true
	}
	_, ok := e.set.Get(target)
	return target, ok
}

// Snapshot captures the image and boxes for an asynchronous export
func (e *Editor) Snapshot() (ExportJob, error) {
	if e.image == nil {
		return ExportJob{}, ErrNoImage
	}
	return ExportJob{Image: e.image.Image, Items: e.set.Items(), Generation: e.image.Generation}, nil
}

// BeginExport snapshots an export job and marks its image as in use until
// EndExport is called with the same job
func (e *Editor) BeginExport() (ExportJob, error) {
	job, err := e.Snapshot()
	if err != nil {
		return ExportJob{}, err
	}
	e.exports[job.Generation]++
	return job, nil
}

// EndExport marks job's encode as finished. A replaced image is released once
// its last export ends.
func (e *Editor) EndExport(job ExportJob) {
	n := e.exports[job.Generation] - 1
	if n > 0 {
		e.exports[job.Generation] = n
		return
	}
	delete(e.exports, job.Generation)
	if img, ok := e.retired[job.Generation]; ok {
		delete(e.retired, job.Generation)
		e.logger.Debug("retired image released", "generation", job.Generation)
		release(img)
	}
}

// IsCurrent reports whether an export job still matches the loaded image
func (e *Editor) IsCurrent(job ExportJob) bool {
	return e.image != nil && e.image.Generation == job.Generation
}

// Export rasterizes the boxes into the image and returns PNG bytes
func (e *Editor) Export() ([]byte, error) {
	job, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	data, err := e.raster.Export(job.Image, job.Items)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("export finished", "bytes", len(data), "boxes", len(job.Items))
	return data, nil
}

// Overlay renders the editing view; preview mode shows opaque boxes
func (e *Editor) Overlay() (image.Image, error) {
	if e.image == nil {
		return nil, ErrNoImage
	}
	return processing.CreateOverlay(e.image.Image, e.set.Items(), e.set.SelectedID(), e.preview), nil
}

// Close releases the loaded image, and any image retired behind an export,
// and invalidates in-flight loads. Callers must make sure no export is still
// encoding.
func (e *Editor) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.generation++
	e.ctrl.PointerUp()
	e.set.Clear()
	if e.image != nil {
		release(e.image.Image)
		e.image = nil
	}
	for gen, img := range e.retired {
		release(img)
		delete(e.retired, gen)
	}
	clear(e.exports)
}

// retire drops the current image, deferring its release while an export of
// its generation is still running
func (e *Editor) retire() {
	if e.image == nil {
		return
	}
	if e.exports[e.image.Generation] > 0 {
		e.logger.Debug("image retired behind running export", "generation", e.image.Generation)
		e.retired[e.image.Generation] = e.image.Image
	} else {
		release(e.image.Image)
	}
	e.image = nil
}

func release(img image.Image) {
	if r, ok := img.(Releaser); ok {
		r.Release()
	}
}

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
