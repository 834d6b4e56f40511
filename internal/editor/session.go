package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/DMarby/picsum-editor/internal/blob"
	"github.com/DMarby/picsum-editor/internal/canvas"
	"github.com/DMarby/picsum-editor/internal/cropper"
	"github.com/DMarby/picsum-editor/internal/filter"
	"github.com/DMarby/picsum-editor/internal/format"
	"github.com/DMarby/picsum-editor/internal/history"
	"github.com/DMarby/picsum-editor/internal/logger"
	"github.com/DMarby/picsum-editor/internal/paint"
	"github.com/DMarby/picsum-editor/internal/tracing"
)

// Errors
var (
	ErrNotImage    = errors.New("upload is not an image")
	ErrBusy        = errors.New("session is busy")
	ErrPaintMode   = errors.New("not allowed in paint mode")
	ErrNotPainting = errors.New("not in paint mode")
	ErrDisposed    = errors.New("session has been disposed")
)

// Default container size the image is laid out in
const (
	DefaultContainerWidth  = 1280
	DefaultContainerHeight = 720
)

// Axis is a reflection axis
type Axis string

// Axes
const (
	Horizontal Axis = "horizontal"
	Vertical   Axis = "vertical"
)

// Upload is an image file supplied by the user
type Upload struct {
	Name string
	MIME string
	Data []byte
}

// Downloader delivers an exported image
type Downloader interface {
	Download(ctx context.Context, filename, mime string, data []byte) error
}

// Deps are the services a session uses
type Deps struct {
	Log             *logger.Logger
	Tracer          *tracing.Tracer
	Blobs           *blob.Store
	Decoder         *cropper.Decoder
	ContainerWidth  float64
	ContainerHeight float64
}

// Session is a single image being edited.
// Every mutation is refused with ErrBusy while a commit is being swapped into the cropper.
type Session struct {
	ID string

	mutex  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	log    *logger.Logger
	tracer *tracing.Tracer
	blobs  *blob.Store

	name       string
	cropper    *cropper.Cropper
	history    *history.Stack
	filters    filter.State
	formats    *format.Manager
	compositor *paint.Compositor

	paintMode   bool
	undoEnabled bool
	busy        bool
	idle        chan struct{}
	swapErr     error
	url         string
	disposed    bool
}

// Open decodes an upload and starts a session for it.
// Uploads that are not images are refused with ErrNotImage.
func Open(ctx context.Context, id string, deps Deps, upload Upload) (*Session, error) {
	ctx, span := deps.Tracer.Start(ctx, "editor.Open")
	defer span.End()

	if !format.IsImage(upload.MIME) {
		return nil, ErrNotImage
	}

	img, _, err := deps.Decoder.Decode(ctx, upload.Data)
	if err != nil {
		return nil, fmt.Errorf("error decoding upload: %w", err)
	}

	initial, err := history.NewBitmap(img)
	if err != nil {
		return nil, err
	}

	url, err := deps.Blobs.Create(ctx, upload.Data)
	if err != nil {
		return nil, err
	}

	containerWidth, containerHeight := deps.ContainerWidth, deps.ContainerHeight
	if containerWidth <= 0 || containerHeight <= 0 {
		containerWidth, containerHeight = DefaultContainerWidth, DefaultContainerHeight
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:         id,
		ctx:        sessionCtx,
		cancel:     cancel,
		log:        deps.Log.With("session-id", id),
		tracer:     deps.Tracer,
		blobs:      deps.Blobs,
		name:       upload.Name,
		cropper:    cropper.New(deps.Decoder, deps.Blobs, containerWidth, containerHeight),
		history:    history.New(initial),
		filters:    filter.Defaults(),
		formats:    format.NewManager(),
		compositor: paint.New(),
	}

	// Called from history with s.mutex already held by the mutating operation
	s.history.OnChange(func(length int) {
		s.undoEnabled = history.UndoEnabled(length, s.paintMode)
	})

	s.formats.Detect(upload.MIME)

	s.mutex.Lock()
	s.busy = true
	s.idle = make(chan struct{})
	s.swapURL(url)
	s.mutex.Unlock()

	s.log.Infow("opened session",
		"name", upload.Name,
		"mime", upload.MIME,
		"width", initial.Width(),
		"height", initial.Height(),
	)

	return s, nil
}

// begin enters the busy state, the mutex must be held
func (s *Session) begin() error {
	if s.disposed {
		return ErrDisposed
	}

	if s.busy {
		return ErrBusy
	}

	s.busy = true
	s.idle = make(chan struct{})
	return nil
}

// abort leaves the busy state after a commit failed before anything changed, the mutex must be held
func (s *Session) abort() {
	s.busy = false
	close(s.idle)
}

// guard refuses mutations while busy, the mutex must be held
func (s *Session) guard() error {
	if s.disposed {
		return ErrDisposed
	}

	if s.busy {
		return ErrBusy
	}

	return nil
}

// swap encodes a committed bitmap with the current format and replaces the cropper source with it.
// The session stays busy until the cropper has loaded the new source.
func (s *Session) swap(ctx context.Context, b *history.Bitmap) {
	ctx, span := s.tracer.Start(ctx, "editor.Session.swap")
	defer span.End()

	data, used, err := format.EncodeWithFallback(b.Image(), s.formats.Current())
	if err != nil {
		s.fail(fmt.Errorf("error encoding image: %w", err))
		return
	}

	if used != s.formats.Current() {
		s.log.Debugw("encoder fell back to the default format",
			"requested", s.formats.Current().Icon,
			"used", used.Icon,
		)
	}

	url, err := s.blobs.Create(ctx, data)
	if err != nil {
		s.fail(err)
		return
	}

	s.swapURL(url)
}

// swapURL starts loading url into the cropper, the mutex must be held
func (s *Session) swapURL(url string) {
	previous := s.url
	s.url = url

	s.cropper.Replace(s.ctx, url, func(err error) {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		// The newer load finishes the swap
		if errors.Is(err, cropper.ErrSuperseded) {
			return
		}

		if err != nil {
			s.fail(fmt.Errorf("error loading image: %w", err))
			return
		}

		if previous != "" {
			if err := s.blobs.Revoke(s.ctx, previous); err != nil {
				s.log.Errorw("error revoking blob", "url", previous, "error", err)
			}
		}

		s.busy = false
		close(s.idle)
	})
}

// fail records a swap error, the session stays busy. The mutex must be held.
func (s *Session) fail(err error) {
	if s.swapErr == nil {
		s.swapErr = err
		s.log.Errorw("error swapping image", "error", err)
	}
}

// Wait blocks until the session is idle, or returns the error that left it stuck
func (s *Session) Wait(ctx context.Context) error {
	for {
		s.mutex.Lock()
		err, busy, idle := s.swapErr, s.busy, s.idle
		s.mutex.Unlock()

		if err != nil {
			return err
		}

		if !busy {
			return nil
		}

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ApplyChange commits the current crop, optionally baking the pending filters into it
func (s *Session) ApplyChange(ctx context.Context, bakeFilters bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.applyChange(ctx, bakeFilters)
}

// applyChange commits the current crop, the mutex must be held
func (s *Session) applyChange(ctx context.Context, bakeFilters bool) error {
	if s.paintMode {
		return ErrPaintMode
	}

	if err := s.begin(); err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "editor.Session.ApplyChange")
	defer span.End()

	b, err := s.cropped(bakeFilters)
	if err != nil {
		s.abort()
		return err
	}

	s.history.Push(b)
	s.log.Infow("applied change",
		"history-length", s.history.Len(),
		"filters", bakeFilters,
		"width", b.Width(),
		"height", b.Height(),
	)

	s.swap(ctx, b)
	return nil
}

// cropped reads the crop box out of the cropper, synthesizing a full box when none is set
func (s *Session) cropped(bakeFilters bool) (*history.Bitmap, error) {
	if !s.cropper.HasCropBox() {
		width, height, err := s.cropper.ImageSize()
		if err != nil {
			return nil, err
		}

		if err := s.cropper.SetCropBox(cropper.Box{Width: float64(width), Height: float64(height)}); err != nil {
			return nil, err
		}
	}

	img, err := s.cropper.CroppedCanvas(cropper.DefaultBounds)
	if err != nil {
		return nil, err
	}

	if bakeFilters {
		if err := filter.Bake(img, s.filters); err != nil {
			return nil, err
		}
		s.filters.Reset()
	}

	return history.NewBitmap(img)
}

// UndoChange removes the latest commit and shows the one before it
func (s *Session) UndoChange(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.paintMode {
		return ErrPaintMode
	}

	if err := s.begin(); err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "editor.Session.UndoChange")
	defer span.End()

	b := s.history.Undo()
	s.filters.Reset()

	s.log.Infow("undid change", "history-length", s.history.Len())

	s.swap(ctx, b)
	return nil
}

// Rotate rotates the image clockwise by deg degrees and commits it
func (s *Session) Rotate(ctx context.Context, deg float64) error {
	return s.transform(ctx, func() error {
		return s.cropper.Rotate(deg)
	})
}

// RotateTo rotates the image to an absolute angle and commits it
func (s *Session) RotateTo(ctx context.Context, deg float64) error {
	return s.transform(ctx, func() error {
		return s.cropper.RotateTo(deg)
	})
}

// Reflect mirrors the image along an axis and commits it
func (s *Session) Reflect(ctx context.Context, axis Axis) error {
	return s.transform(ctx, func() error {
		data := s.cropper.Data()

		switch axis {
		case Horizontal:
			return s.cropper.Scale(-data.ScaleX, data.ScaleY)
		case Vertical:
			return s.cropper.Scale(data.ScaleX, -data.ScaleY)
		}

		return fmt.Errorf("invalid axis %q", axis)
	})
}

func (s *Session) transform(ctx context.Context, apply func() error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.guard(); err != nil {
		return err
	}

	if s.paintMode {
		return ErrPaintMode
	}

	if err := apply(); err != nil {
		return err
	}

	return s.applyChange(ctx, false)
}

// Zoom zooms the on-screen image by a relative delta
func (s *Session) Zoom(delta float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.guard(); err != nil {
		return err
	}

	return s.cropper.Zoom(delta)
}

// SetCrop sets the crop box in pixels of the displayed image
func (s *Session) SetCrop(box cropper.Box) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.guard(); err != nil {
		return err
	}

	return s.cropper.SetCropBox(box)
}

// ClearCrop removes the crop box
func (s *Session) ClearCrop() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.guard(); err != nil {
		return err
	}

	return s.cropper.ClearCropBox()
}

// SetDragMode sets what dragging on the image does
func (s *Session) SetDragMode(mode cropper.DragMode) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.guard(); err != nil {
		return err
	}

	return s.cropper.SetDragMode(mode)
}

// SetFilter sets a pending filter value, clamped to its range
func (s *Session) SetFilter(name filter.Name, value float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.guard(); err != nil {
		return err
	}

	return s.filters.Set(name, value)
}

// ResetFilters sets every pending filter back to its default
func (s *Session) ResetFilters() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.guard(); err != nil {
		return err
	}

	s.filters.Reset()
	return nil
}

// Filters returns the pending filter values
func (s *Session) Filters() filter.State {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.filters
}

// CycleFormat selects the next output format
func (s *Session) CycleFormat() (format.Setting, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.guard(); err != nil {
		return format.Setting{}, err
	}

	return s.formats.Cycle(), nil
}

// Displayed returns the bitmap at the top of the history
func (s *Session) Displayed() *image.NRGBA {
	return s.history.Top().Image()
}

// Preview returns the displayed image with the pending filters applied, or the paint view in paint mode
func (s *Session) Preview(ctx context.Context) (*image.NRGBA, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, span := s.tracer.Start(ctx, "editor.Session.Preview")
	defer span.End()

	if s.paintMode {
		return s.compositor.View(), nil
	}

	img, err := s.cropper.FullCanvas()
	if err != nil {
		return nil, err
	}

	if err := filter.Bake(img, s.filters); err != nil {
		return nil, err
	}

	return img, nil
}

// Export encodes the full image with the pending filters and hands it to the downloader
func (s *Session) Export(ctx context.Context, d Downloader) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.guard(); err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "editor.Session.Export")
	defer span.End()

	img, err := s.cropper.FullCanvas()
	if err != nil {
		return err
	}

	if err := filter.Bake(img, s.filters); err != nil {
		return err
	}

	data, used, err := format.EncodeWithFallback(img, s.formats.Current())
	if err != nil {
		return err
	}

	filename := format.Filename(s.name, used)
	s.log.Infow("exporting image", "filename", filename, "mime", used.MIME, "size", len(data))

	return d.Download(ctx, filename, used.MIME, data)
}

// EnterPaintMode creates a paint layer over the displayed image
func (s *Session) EnterPaintMode() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.guard(); err != nil {
		return err
	}

	if s.paintMode {
		return nil
	}

	if err := s.cropper.ClearCropBox(); err != nil {
		return err
	}

	if err := s.cropper.SetDragMode(cropper.DragNone); err != nil {
		return err
	}

	base, err := s.cropper.FullCanvas()
	if err != nil {
		return err
	}

	placement := s.cropper.CanvasData()
	if err := s.compositor.Start(base, placement.Left, placement.Top, placement.Width, placement.Height); err != nil {
		return err
	}

	s.cropper.Disable()
	s.setPaintMode(true)

	s.log.Debugw("entered paint mode", "width", base.Rect.Dx(), "height", base.Rect.Dy())
	return nil
}

// ExitPaintMode discards the paint layer
func (s *Session) ExitPaintMode() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.guard(); err != nil {
		return err
	}

	if !s.paintMode {
		return ErrNotPainting
	}

	s.compositor.Discard()
	s.cropper.Enable()
	s.setPaintMode(false)

	return s.cropper.SetDragMode(cropper.DragCrop)
}

func (s *Session) setPaintMode(paintMode bool) {
	s.paintMode = paintMode
	s.undoEnabled = s.history.UndoEnabled(paintMode)
}

// ApplyPaintingCanvas merges the paint layer into the displayed image and commits it
func (s *Session) ApplyPaintingCanvas(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.paintMode {
		if err := s.guard(); err != nil {
			return err
		}
		return ErrNotPainting
	}

	if err := s.begin(); err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "editor.Session.ApplyPaintingCanvas")
	defer span.End()

	layer, err := s.compositor.Finish()
	if err != nil {
		s.abort()
		return err
	}

	s.cropper.Enable()
	s.setPaintMode(false)
	if err := s.cropper.SetDragMode(cropper.DragCrop); err != nil {
		s.abort()
		return err
	}

	base, err := s.cropper.FullCanvas()
	if err != nil {
		s.abort()
		return err
	}

	merged := canvas.FromImage(base)
	merged.DrawImageScaled(layer.Image(), merged.Bounds())

	b, err := history.NewBitmap(merged.Image())
	if err != nil {
		s.abort()
		return err
	}

	s.history.Push(b)
	s.filters.Reset()

	s.log.Infow("applied painting", "history-length", s.history.Len())

	s.swap(ctx, b)
	return nil
}

// SetTool switches the paint tool
func (s *Session) SetTool(tool paint.Tool) error {
	return s.painting(func() error {
		return s.compositor.SetTool(tool)
	})
}

// SetBrush sets the brush color and radius. A nil color or zero size keeps the current one.
func (s *Session) SetBrush(col color.Color, size float64) error {
	return s.painting(func() error {
		if col != nil {
			s.compositor.SetColor(col)
		}
		s.compositor.SetSize(size)
		return nil
	})
}

// Stroke draws a stroke through points given in page coordinates
func (s *Session) Stroke(points []paint.Point) error {
	return s.painting(func() error {
		return s.compositor.Stroke(points)
	})
}

// PointerDown starts a stroke
func (s *Session) PointerDown(x, y float64) error {
	return s.painting(func() error {
		return s.compositor.PointerDown(x, y)
	})
}

// PointerMove continues a stroke
func (s *Session) PointerMove(x, y float64) error {
	return s.painting(func() error {
		return s.compositor.PointerMove(x, y)
	})
}

// PointerUp ends a stroke
func (s *Session) PointerUp() error {
	return s.painting(func() error {
		return s.compositor.PointerUp()
	})
}

func (s *Session) painting(f func() error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.guard(); err != nil {
		return err
	}

	if !s.paintMode {
		return ErrNotPainting
	}

	return f()
}

// HasPaintLayer reports whether a paint layer exists
func (s *Session) HasPaintLayer() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.compositor.Layer() != nil
}

// HistoryLen returns the number of history entries
func (s *Session) HistoryLen() int {
	return s.history.Len()
}

// UndoEnabled reports whether undo is offered
func (s *Session) UndoEnabled() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.undoEnabled
}

// Busy reports whether a commit is being swapped in
func (s *Session) Busy() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.busy
}

// URL returns the blob url of the image shown by the cropper
func (s *Session) URL() string {
	return s.cropper.URL()
}

// Status returns a snapshot of the session state
func (s *Session) Status() Status {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	status := Status{
		ID:            s.ID,
		Name:          s.name,
		Busy:          s.busy,
		PaintMode:     s.paintMode,
		UndoEnabled:   s.undoEnabled,
		HistoryLength: s.history.Len(),
		Filters:       s.filters,
		PreviewChain:  filter.PreviewChain(s.filters),
		Format:        s.formats.Current(),
		FormatIndex:   s.formats.Index(),
		Cropper:       s.cropper.Data(),
		Canvas:        s.cropper.CanvasData(),
		URL:           s.cropper.URL(),
	}

	if s.swapErr != nil {
		status.Error = s.swapErr.Error()
	}

	if s.paintMode {
		status.Tool = s.compositor.Tool().String()
		status.PaintState = s.compositor.Mode().String()
	}

	return status
}

// Dispose releases the session, in-flight loads are cancelled
func (s *Session) Dispose(ctx context.Context) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.disposed {
		return
	}

	s.disposed = true
	s.cancel()
	s.compositor.Discard()

	if s.url != "" {
		if err := s.blobs.Revoke(ctx, s.url); err != nil {
			s.log.Errorw("error revoking blob", "url", s.url, "error", err)
		}
	}

	s.log.Infow("disposed session")
}
