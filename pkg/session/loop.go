package session

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/menta2k/image-redactor/pkg/analyzer"
	"github.com/menta2k/image-redactor/pkg/processing"
	"github.com/menta2k/image-redactor/pkg/types"
)

// Decoder turns encoded bytes into an image
type Decoder func(ctx context.Context, data []byte) (image.Image, error)

// LoadResult reports the outcome of a LoadImage event
type LoadResult struct {
	Generation uint64
	Info       analyzer.ImageInfo
	Err        error
}

// ExportResult reports the outcome of an ExportImage event
type ExportResult struct {
	Generation uint64
	Data       []byte
	Err        error
}

// LoopOptions configures a Loop. Callbacks run on the loop goroutine.
type LoopOptions struct {
	Decoder   Decoder
	OnLoad    func(LoadResult)
	OnExport  func(ExportResult)
	Logger    *slog.Logger
	QueueSize int
}

// Loop owns an Editor and applies events to it one at a time on a dedicated
// goroutine. Decoding and encoding run off the loop; their completions are
// tagged with a generation and discarded when a newer image has superseded
// them.
type Loop struct {
	editor  *Editor
	opts    LoopOptions
	logger  *slog.Logger
	events  chan Event
	done    chan struct{}
	exited  chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
	workers sync.WaitGroup
}

// NewLoop starts the event loop for editor. The loop takes ownership of the
// editor; use Do to read or mutate it from other goroutines.
func NewLoop(editor *Editor, opts LoopOptions) *Loop {
	if opts.Logger == nil {
		opts.Logger = editor.logger
	}
	if opts.Decoder == nil {
		opts.Decoder = DefaultDecoder(analyzer.New())
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		editor: editor,
		opts:   opts,
		logger: opts.Logger,
		events: make(chan Event, opts.QueueSize),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	go l.run()
	return l
}

// DefaultDecoder decodes with the processing package. The header is checked
// against a before any pixels are decoded; the decoded bounds are checked
// again once EXIF orientation has been applied.
func DefaultDecoder(a *analyzer.ImageAnalyzer) Decoder {
	return func(ctx context.Context, data []byte) (image.Image, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, _, err := processing.DecodeImage(data, a.ValidateConfig)
		if err != nil {
			return nil, err
		}
		if err := a.ValidateImage(img); err != nil {
			return nil, err
		}
		return img, nil
	}
}

func (l *Loop) run() {
	defer close(l.exited)
	for {
		select {
		case <-l.done:
			return
		case ev := <-l.events:
			l.handle(ev)
		}
	}
}

func (l *Loop) handle(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("session loop panic", "error", r, "event", fmt.Sprintf("%T", ev), "stack", string(debug.Stack()))
		}
	}()
	ev.apply(l)
}

// Post queues an event. It returns false once the loop is closed.
func (l *Loop) Post(ev Event) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.events <- ev:
		return true
	case <-l.done:
		return false
	}
}

// Load queues an asynchronous decode of data
func (l *Loop) Load(data []byte) bool { return l.Post(LoadImage{Data: data}) }

// Export queues an asynchronous PNG export
func (l *Loop) Export() bool { return l.Post(ExportImage{}) }

// Do runs fn on the loop goroutine after all previously posted events and
// waits for it to return. It must not be called from a callback.
func (l *Loop) Do(fn func(*Editor)) error {
	done := make(chan struct{})
	if !l.Post(call{fn: fn, done: done}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// Close stops the loop, waits for in-flight work and releases the editor's
// image. Queued events that have not run are dropped. It must not be called
// from a callback.
func (l *Loop) Close() {
	l.once.Do(func() {
		close(l.done)
		l.cancel()
		<-l.exited
		l.workers.Wait()
		l.editor.Close()
	})
}

func (l *Loop) startLoad(data []byte) {
	gen := l.editor.BeginLoad()
	l.workers.Add(1)
	go func() {
		defer l.workers.Done()
		img, err := l.decode(data)
		if !l.Post(loadDone{gen: gen, img: img, err: err}) {
			release(img)
		}
	}()
}

func (l *Loop) decode(data []byte) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("decode panic", "error", r)
			img, err = nil, fmt.Errorf("decode panic: %v", r)
		}
	}()
	return l.opts.Decoder(l.ctx, data)
}

func (l *Loop) finishLoad(ev loadDone) {
	var err error
	if ev.err != nil {
		err = l.editor.FailLoad(ev.gen, ev.err)
	} else {
		err = l.editor.CompleteLoad(ev.gen, ev.img)
	}
	res := LoadResult{Generation: ev.gen, Err: err}
	if err == nil {
		if loaded, ok := l.editor.Image(); ok {
			res.Info = loaded.Info
		}
	}
	if err != nil {
		l.logger.Debug("load completion", "generation", ev.gen, "error", err)
	}
	if l.opts.OnLoad != nil {
		l.opts.OnLoad(res)
	}
}

func (l *Loop) startExport() {
	job, err := l.editor.BeginExport()
	if err != nil {
		l.reportExport(ExportResult{Err: err})
		return
	}
	rast := l.editor.Rasterizer()
	l.workers.Add(1)
	go func() {
		defer l.workers.Done()
		data, err := l.encode(rast.Export, job)
		l.Post(exportDone{job: job, data: data, err: err})
	}()
}

func (l *Loop) encode(export func(image.Image, []types.Redaction) ([]byte, error), job ExportJob) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("export panic", "error", r)
			data, err = nil, fmt.Errorf("export panic: %v", r)
		}
	}()
	return export(job.Image, job.Items)
}

func (l *Loop) finishExport(ev exportDone) {
	l.editor.EndExport(ev.job)
	res := ExportResult{Generation: ev.job.Generation, Data: ev.data, Err: ev.err}
	if !l.editor.IsCurrent(ev.job) {
		res.Data, res.Err = nil, ErrStaleExport
	}
	l.reportExport(res)
}

func (l *Loop) reportExport(res ExportResult) {
	if res.Err != nil {
		l.logger.Debug("export completion", "generation", res.Generation, "error", res.Err)
	} else {
		l.logger.Debug("export completion", "generation", res.Generation, "bytes", len(res.Data))
	}
	if l.opts.OnExport != nil {
		l.opts.OnExport(res)
	}
}
