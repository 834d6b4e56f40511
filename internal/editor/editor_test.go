package editor_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DMarby/picsum-editor/internal/blob"
	"github.com/DMarby/picsum-editor/internal/cache/memory"
	"github.com/DMarby/picsum-editor/internal/cropper"
	"github.com/DMarby/picsum-editor/internal/download"
	"github.com/DMarby/picsum-editor/internal/editor"
	"github.com/DMarby/picsum-editor/internal/filter"
	"github.com/DMarby/picsum-editor/internal/logger"
	"github.com/DMarby/picsum-editor/internal/paint"
	"github.com/DMarby/picsum-editor/internal/tracing/test"
	"go.uber.org/zap"
)

var red = color.NRGBA{255, 0, 0, 255}

// gatedProvider is a memory cache whose reads wait for the gate to open
type gatedProvider struct {
	*memory.Provider
	gate chan struct{}
}

func (p *gatedProvider) Get(ctx context.Context, key string) ([]byte, error) {
	<-p.gate
	return p.Provider.Get(ctx, key)
}

func openGate() chan struct{} {
	gate := make(chan struct{})
	close(gate)
	return gate
}

func deps(t *testing.T, ctx context.Context, gate chan struct{}, containerWidth, containerHeight float64) editor.Deps {
	t.Helper()

	log := logger.New(zap.FatalLevel)
	tracer := test.Tracer(log)

	return editor.Deps{
		Log:             log,
		Tracer:          tracer,
		Blobs:           blob.New(tracer, &gatedProvider{memory.New(), gate}, nil),
		Decoder:         cropper.NewDecoder(ctx, log, tracer, 2),
		ContainerWidth:  containerWidth,
		ContainerHeight: containerHeight,
	}
}

func pattern(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), uint8(x + y), 255})
		}
	}
	return img
}

func upload(t *testing.T, name string, img *image.NRGBA) editor.Upload {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	return editor.Upload{
		Name: name,
		MIME: "image/png",
		Data: buf.Bytes(),
	}
}

func wait(t *testing.T, s *editor.Session) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Wait(ctx); err != nil {
		t.Fatal(err)
	}
}

func open(t *testing.T, ctx context.Context, d editor.Deps, u editor.Upload) *editor.Session {
	t.Helper()

	s, err := editor.Open(ctx, "test", d, u)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		s.Dispose(context.Background())
	})

	wait(t, s)
	return s
}

func TestCropAndUndo(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initial := pattern(1000, 800)
	s := open(t, ctx, deps(t, ctx, openGate(), 0, 0), upload(t, "photo.png", initial))

	if s.HistoryLen() != 1 || s.UndoEnabled() {
		t.Fatalf("wrong initial history %d %v", s.HistoryLen(), s.UndoEnabled())
	}

	if err := s.SetCrop(cropper.Box{X: 100, Y: 0, Width: 800, Height: 800}); err != nil {
		t.Fatal(err)
	}

	if err := s.ApplyChange(ctx, false); err != nil {
		t.Fatal(err)
	}
	wait(t, s)

	if s.HistoryLen() != 2 || !s.UndoEnabled() {
		t.Fatalf("wrong history after commit %d %v", s.HistoryLen(), s.UndoEnabled())
	}

	cropped := s.Displayed()
	if cropped.Rect.Dx() != 800 || cropped.Rect.Dy() != 800 {
		t.Fatalf("wrong cropped size %v", cropped.Rect)
	}

	if cropped.NRGBAAt(0, 0) != initial.NRGBAAt(100, 0) {
		t.Errorf("crop is not aligned, got %v", cropped.NRGBAAt(0, 0))
	}

	if err := s.UndoChange(ctx); err != nil {
		t.Fatal(err)
	}
	wait(t, s)

	if s.HistoryLen() != 1 || s.UndoEnabled() {
		t.Fatalf("wrong history after undo %d %v", s.HistoryLen(), s.UndoEnabled())
	}

	if !bytes.Equal(s.Displayed().Pix, initial.Pix) {
		t.Error("undo should restore the initial image")
	}

	preview, err := s.Preview(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(preview.Pix, initial.Pix) {
		t.Error("cropper should show the initial image again")
	}
}

func TestHistorySentinel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initial := pattern(300, 300)
	s := open(t, ctx, deps(t, ctx, openGate(), 0, 0), upload(t, "photo.png", initial))

	for _, commits := range []int{0, 1, 3} {
		for i := 0; i < commits; i++ {
			if err := s.SetFilter(filter.Inversion, 100); err != nil {
				t.Fatal(err)
			}

			if err := s.ApplyChange(ctx, true); err != nil {
				t.Fatal(err)
			}
			wait(t, s)
		}

		for i := 0; i < commits+5; i++ {
			if err := s.UndoChange(ctx); err != nil {
				t.Fatal(err)
			}
			wait(t, s)

			if s.HistoryLen() < 1 {
				t.Fatal("history dropped below the sentinel")
			}
		}

		if s.HistoryLen() != 1 {
			t.Errorf("%d commits: wrong history length %d", commits, s.HistoryLen())
		}

		if !bytes.Equal(s.Displayed().Pix, initial.Pix) {
			t.Errorf("%d commits: displayed image is not the initial image", commits)
		}
	}
}

func TestFiltersResetOnCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := open(t, ctx, deps(t, ctx, openGate(), 0, 0), upload(t, "photo.png", pattern(300, 300)))

	values := map[filter.Name]float64{
		filter.Brightness: 150,
		filter.Contrast:   20,
		filter.Saturation: 0,
		filter.Inversion:  100,
		filter.Blur:       2,
		filter.Hue:        90,
	}

	for name, value := range values {
		if err := s.SetFilter(name, value); err != nil {
			t.Fatal(err)
		}
	}

	if s.Status().PreviewChain == filter.PreviewChain(filter.Defaults()) {
		t.Error("preview chain should reflect the pending filters")
	}

	if err := s.ApplyChange(ctx, true); err != nil {
		t.Fatal(err)
	}
	wait(t, s)

	if s.Filters() != filter.Defaults() {
		t.Errorf("filters were not reset %+v", s.Filters())
	}

	if s.Displayed().NRGBAAt(150, 150) == pattern(300, 300).NRGBAAt(150, 150) {
		t.Error("filters were not baked into the commit")
	}
}

func TestBusy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate := make(chan struct{})
	s, err := editor.Open(ctx, "test", deps(t, ctx, gate, 0, 0), upload(t, "photo.png", pattern(300, 300)))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Dispose(context.Background())

	if !s.Status().Busy {
		t.Fatal("session should be busy while loading")
	}

	if err := s.SetFilter(filter.Hue, 10); err != editor.ErrBusy {
		t.Errorf("wrong error %v", err)
	}

	if err := s.ApplyChange(ctx, true); err != editor.ErrBusy {
		t.Errorf("wrong error %v", err)
	}

	if err := s.EnterPaintMode(); err != editor.ErrBusy {
		t.Errorf("wrong error %v", err)
	}

	close(gate)
	wait(t, s)

	if err := s.SetFilter(filter.Hue, 10); err != nil {
		t.Errorf("wrong error %v", err)
	}
}

func TestPaintThenApply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	white := image.NewNRGBA(image.Rect(0, 0, 300, 300))
	for i := range white.Pix {
		white.Pix[i] = 255
	}

	s := open(t, ctx, deps(t, ctx, openGate(), 300, 300), upload(t, "photo.png", white))

	if err := s.ApplyChange(ctx, false); err != nil {
		t.Fatal(err)
	}
	wait(t, s)

	if err := s.EnterPaintMode(); err != nil {
		t.Fatal(err)
	}

	if s.UndoEnabled() {
		t.Error("undo should be disabled in paint mode")
	}

	if err := s.UndoChange(ctx); err != editor.ErrPaintMode {
		t.Errorf("wrong error %v", err)
	}

	if err := s.SetBrush(red, 10); err != nil {
		t.Fatal(err)
	}

	if err := s.Stroke([]paint.Point{{X: 10, Y: 10}, {X: 50, Y: 50}}); err != nil {
		t.Fatal(err)
	}

	if err := s.SetFilter(filter.Brightness, 50); err != nil {
		t.Fatal(err)
	}

	if err := s.ApplyPaintingCanvas(ctx); err != nil {
		t.Fatal(err)
	}
	wait(t, s)

	if s.HasPaintLayer() {
		t.Error("paint layer should be destroyed")
	}

	if s.HistoryLen() != 3 || !s.UndoEnabled() {
		t.Errorf("wrong history %d %v", s.HistoryLen(), s.UndoEnabled())
	}

	if s.Filters() != filter.Defaults() {
		t.Errorf("filters were not reset %+v", s.Filters())
	}

	img := s.Displayed()
	for _, p := range []image.Point{{10, 10}, {30, 30}, {50, 50}} {
		if img.NRGBAAt(p.X, p.Y) != red {
			t.Errorf("expected red at %v, got %v", p, img.NRGBAAt(p.X, p.Y))
		}
	}

	if img.NRGBAAt(200, 200) != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("pixels away from the stroke should be untouched, got %v", img.NRGBAAt(200, 200))
	}
}

func TestExitPaintModeDiscards(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initial := pattern(300, 300)
	s := open(t, ctx, deps(t, ctx, openGate(), 300, 300), upload(t, "photo.png", initial))

	if err := s.ExitPaintMode(); err != editor.ErrNotPainting {
		t.Errorf("wrong error %v", err)
	}

	if err := s.EnterPaintMode(); err != nil {
		t.Fatal(err)
	}

	if err := s.SetTool(paint.BlurBrush); err != nil {
		t.Fatal(err)
	}

	if err := s.Stroke([]paint.Point{{X: 100, Y: 100}, {X: 200, Y: 200}}); err != nil {
		t.Fatal(err)
	}

	if err := s.ExitPaintMode(); err != nil {
		t.Fatal(err)
	}

	if s.HasPaintLayer() || s.HistoryLen() != 1 {
		t.Error("exiting paint mode should discard the layers")
	}

	if err := s.Stroke([]paint.Point{{X: 1, Y: 1}}); err != editor.ErrNotPainting {
		t.Errorf("wrong error %v", err)
	}
}

func TestRotateAndReflect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initial := pattern(400, 300)
	s := open(t, ctx, deps(t, ctx, openGate(), 0, 0), upload(t, "photo.png", initial))

	if err := s.Rotate(ctx, 90); err != nil {
		t.Fatal(err)
	}
	wait(t, s)

	img := s.Displayed()
	if img.Rect.Dx() != 300 || img.Rect.Dy() != 400 {
		t.Fatalf("wrong rotated size %v", img.Rect)
	}

	if img.NRGBAAt(299, 0) != initial.NRGBAAt(0, 0) {
		t.Errorf("top left pixel should move to the top right, got %v", img.NRGBAAt(299, 0))
	}

	if s.Status().Cropper.Rotate != 0 {
		t.Error("rotation should be reset once committed")
	}

	if err := s.Reflect(ctx, editor.Vertical); err != nil {
		t.Fatal(err)
	}
	wait(t, s)

	img = s.Displayed()
	if img.NRGBAAt(299, 399) != initial.NRGBAAt(0, 0) {
		t.Errorf("top right pixel should move to the bottom right, got %v", img.NRGBAAt(299, 399))
	}

	if s.HistoryLen() != 3 {
		t.Errorf("wrong history length %d", s.HistoryLen())
	}
}

func TestExport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := open(t, ctx, deps(t, ctx, openGate(), 0, 0), upload(t, "photo.final.png", pattern(300, 300)))
	dir := t.TempDir()

	tests := []struct {
		Name     string
		Filename string
		MIME     string
	}{
		{"Exports with the detected format", "photo.final.png", "image/png"},
		{"Falls back to the default format", "photo.final.jpg", "image/jpeg"},
		{"Exports bitmaps", "photo.final.bmp", "image/bmp"},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			d := &download.File{Dir: dir}
			if err := s.Export(ctx, d); err != nil {
				t.Fatal(err)
			}

			if d.Path != filepath.Join(dir, test.Filename) {
				t.Errorf("wrong path %s", d.Path)
			}

			data, err := os.ReadFile(d.Path)
			if err != nil {
				t.Fatal(err)
			}

			img, _, err := image.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				t.Fatal(err)
			}

			if img.Width != 300 || img.Height != 300 {
				t.Errorf("wrong size %dx%d", img.Width, img.Height)
			}

			if _, err := s.CycleFormat(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestExportAfterOpen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate := make(chan struct{})
	r := editor.NewRegistry(deps(t, ctx, gate, 0, 0))
	defer r.Shutdown(context.Background())

	s, err := r.Create(ctx, upload(t, "", pattern(300, 300)))
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	if err := s.Export(ctx, &download.File{Dir: dir}); err != editor.ErrBusy {
		t.Fatalf("export while loading: wrong error %v", err)
	}

	close(gate)
	wait(t, s)

	d := &download.File{Dir: dir}
	if err := s.Export(ctx, d); err != nil {
		t.Fatal(err)
	}

	if d.Path != filepath.Join(dir, "image.png") {
		t.Errorf("wrong path %s", d.Path)
	}
}

func TestOpenRejectsNonImages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := editor.Open(ctx, "test", deps(t, ctx, openGate(), 0, 0), editor.Upload{
		Name: "notes.txt",
		MIME: "text/plain",
		Data: []byte("hello"),
	})

	if err != editor.ErrNotImage {
		t.Errorf("wrong error %v", err)
	}
}

func TestRegistry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := editor.NewRegistry(deps(t, ctx, openGate(), 0, 0))
	defer r.Shutdown(context.Background())

	s, err := r.Create(ctx, upload(t, "photo.png", pattern(300, 300)))
	if err != nil {
		t.Fatal(err)
	}
	wait(t, s)

	if got, err := r.Get(s.ID); err != nil || got != s {
		t.Fatalf("wrong session %v", err)
	}

	if _, err := r.Replace(ctx, s.ID, editor.Upload{MIME: "text/plain"}); err != editor.ErrNotImage {
		t.Errorf("wrong error %v", err)
	}

	if got, _ := r.Get(s.ID); got != s {
		t.Error("refused upload should keep the session")
	}

	replacement, err := r.Replace(ctx, s.ID, upload(t, "other.png", pattern(300, 300)))
	if err != nil {
		t.Fatal(err)
	}
	wait(t, replacement)

	if err := s.SetFilter(filter.Hue, 10); err != editor.ErrDisposed {
		t.Errorf("replaced session should be disposed, got %v", err)
	}

	if r.Len() != 1 {
		t.Errorf("wrong session count %d", r.Len())
	}

	if err := r.Dispose(ctx, s.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Get(s.ID); err != editor.ErrNotFound {
		t.Errorf("wrong error %v", err)
	}

	if err := r.Dispose(ctx, s.ID); err != editor.ErrNotFound {
		t.Errorf("wrong error %v", err)
	}
}
