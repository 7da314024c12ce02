// Package redactor flattens opaque redaction boxes into images.
//
// A session holds one image and an ordered set of boxes in normalized
// coordinates. Boxes are added at the visible center, dragged or resized with
// the pointer, and finally rasterized as rounded black rectangles into a PNG.
//
// Basic usage:
//
//	r := redactor.New()
//	img, _, err := r.Acquire(ctx, "screenshot.png")
//	if err != nil {
//		log.Fatal(err)
//	}
//	png, err := r.RedactImage(img, []types.Box{{X: 0.1, Y: 0.2, W: 0.3, H: 0.08}})
//
// Interactive use goes through a session.Loop, which serializes pointer and
// keyboard events and discards asynchronous results that a newer image has
// superseded:
//
//	loop := r.NewLoop(r.NewEditor(), session.LoopOptions{OnExport: save})
//	defer loop.Close()
//	loop.Load(data)
//	loop.Post(session.AddBox{Center: types.Point{X: 0.5, Y: 0.5}})
//	loop.Export()
package redactor

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/menta2k/image-redactor/internal/utils"
	"github.com/menta2k/image-redactor/pkg/analyzer"
	"github.com/menta2k/image-redactor/pkg/handoff"
	"github.com/menta2k/image-redactor/pkg/processing"
	"github.com/menta2k/image-redactor/pkg/raster"
	"github.com/menta2k/image-redactor/pkg/session"
	"github.com/menta2k/image-redactor/pkg/types"
)

// Version of the image redactor library
const Version = "1.0.0"

// Options configures a Redactor
type Options struct {
	Session    session.Config
	Processing processing.Config
	Analyzer   analyzer.Config
	Logger     *slog.Logger
}

// DefaultOptions returns the standard settings
func DefaultOptions() Options {
	return Options{
		Session:    session.DefaultConfig(),
		Processing: processing.DefaultConfig(),
		Analyzer:   analyzer.DefaultConfig(),
	}
}

// Redactor provides a high-level interface for acquiring and redacting images
type Redactor struct {
	options   Options
	logger    *slog.Logger
	processor *processing.Processor
	analyzer  *analyzer.ImageAnalyzer
	decode    session.Decoder
}

// New creates a Redactor with default configuration
func New() *Redactor {
	return NewWithOptions(DefaultOptions())
}

// NewWithOptions creates a Redactor with custom configuration
func NewWithOptions(opts Options) *Redactor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := analyzer.NewWithConfig(opts.Analyzer)
	return &Redactor{
		options:   opts,
		logger:    logger,
		processor: processing.NewProcessorWithConfig(opts.Processing),
		analyzer:  a,
		decode:    session.DefaultDecoder(a),
	}
}

// SetHTTPClient replaces the client used for remote sources
func (r *Redactor) SetHTTPClient(client *http.Client) {
	r.processor.SetHTTPClient(client)
}

// Decode decodes and validates encoded image bytes with the configured
// analyzer limits. It satisfies session.Decoder.
func (r *Redactor) Decode(ctx context.Context, data []byte) (image.Image, error) {
	img, err := r.decode(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("image validation failed: %w", err)
	}
	return img, nil
}

// Acquire loads an image from a file path, an http(s) URL or a data: URL
func (r *Redactor) Acquire(ctx context.Context, source string) (image.Image, analyzer.ImageInfo, error) {
	data, err := r.processor.LoadSource(ctx, source)
	if err != nil {
		return nil, analyzer.ImageInfo{}, fmt.Errorf("failed to load image: %w", err)
	}
	img, err := r.Decode(ctx, data)
	if err != nil {
		return nil, analyzer.ImageInfo{}, err
	}
	info := r.analyzer.GetImageInfo(img)
	r.logger.Debug("image acquired", "width", info.Width, "height", info.Height, "bytes", len(data))
	return img, info, nil
}

// OfferImage fetches a remote image and offers it to store as a data: URL
func (r *Redactor) OfferImage(ctx context.Context, store *handoff.Store, srcURL string) error {
	data, err := r.processor.FetchImage(ctx, srcURL)
	if err != nil {
		return err
	}
	if _, err := r.Decode(ctx, data); err != nil {
		return err
	}
	mediaType := http.DetectContentType(data)
	return store.Offer(handoff.Payload{
		Mode:      handoff.ModeImage,
		DataURL:   processing.EncodeDataURL(mediaType, data),
		SourceURL: srcURL,
	})
}

// OfferCapture encodes a captured frame as PNG and offers it to store
func (r *Redactor) OfferCapture(store *handoff.Store, img image.Image) error {
	data, err := raster.New().Export(img, nil)
	if err != nil {
		return err
	}
	return store.Offer(handoff.Payload{
		Mode:    handoff.ModeCaptureVisibleTab,
		DataURL: processing.EncodeDataURL("image/png", data),
	})
}

// TakeHandoff consumes the pending payload for mode. Blank mode and a missing
// payload both return a nil image and no error.
func (r *Redactor) TakeHandoff(ctx context.Context, store *handoff.Store, mode handoff.Mode) (image.Image, error) {
	if mode == handoff.ModeBlank {
		store.Clear()
		return nil, nil
	}
	p, ok := store.Take(mode)
	if !ok {
		return nil, nil
	}
	img, _, err := r.Acquire(ctx, p.DataURL)
	if err != nil {
		return nil, fmt.Errorf("handoff %s: %w", mode, err)
	}
	return img, nil
}

// NewEditor creates an empty editing session
func (r *Redactor) NewEditor() *session.Editor {
	return session.NewEditor(r.options.Session, r.logger)
}

// NewLoop starts an event loop for editor, decoding with this Redactor when
// opts carries no decoder
func (r *Redactor) NewLoop(editor *session.Editor, opts session.LoopOptions) *session.Loop {
	if opts.Decoder == nil {
		opts.Decoder = r.Decode
	}
	if opts.Logger == nil {
		opts.Logger = r.logger
	}
	return session.NewLoop(editor, opts)
}

// RedactImage rasterizes boxes into img and returns PNG bytes. Boxes are
// clamped into the image and painted in order.
func (r *Redactor) RedactImage(img image.Image, boxes []types.Box) ([]byte, error) {
	editor := r.NewEditor()
	if err := editor.Load(img); err != nil {
		return nil, err
	}
	for _, b := range boxes {
		editor.AddBoxAt(b)
	}
	return editor.Export()
}

// RedactFile acquires source, redacts it and writes the PNG to out
func (r *Redactor) RedactFile(ctx context.Context, source, out string, boxes []types.Box) error {
	img, _, err := r.Acquire(ctx, source)
	if err != nil {
		return err
	}
	data, err := r.RedactImage(img, boxes)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if err := utils.WriteFile(out, data); err != nil {
		return err
	}
	r.logger.Info("redacted image written", "path", out, "boxes", len(boxes), "size", utils.FormatFileSize(int64(len(data))))
	return nil
}

// SaveImage writes img to path in the format named by its extension. Quality
// applies to jpeg and lossy webp output.
func (r *Redactor) SaveImage(img image.Image, path string, quality int, lossless bool) error {
	if !utils.IsImageFile(path) {
		return fmt.Errorf("%w: %s", processing.ErrUnsupportedFormat, path)
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := r.processor.SaveImage(img, path, utils.GetFileExtension(path), quality, lossless); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
