package cropper

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/disintegration/gift"
	xdraw "golang.org/x/image/draw"
)

// Errors
var (
	ErrNotReady    = errors.New("no image loaded")
	ErrDisabled    = errors.New("cropper is disabled")
	ErrNoCropBox   = errors.New("no crop box")
	ErrSuperseded  = errors.New("image load superseded by a newer one")
	ErrInvalidSize = errors.New("invalid crop box size")
)

// DragMode is what dragging on the image does
type DragMode string

// Drag modes
const (
	DragCrop DragMode = "crop"
	DragMove DragMode = "move"
	DragNone DragMode = "none"
)

// Box is a crop box in pixels of the transformed image
type Box struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Bounds limits the size of a cropped canvas
type Bounds struct {
	MinWidth  int
	MinHeight int
	MaxWidth  int
	MaxHeight int
}

// DefaultBounds are the bounds used when committing
var DefaultBounds = Bounds{
	MinWidth:  256,
	MinHeight: 256,
	MaxWidth:  8192,
	MaxHeight: 8192,
}

// CanvasData is the on-screen placement of the image within the container
type CanvasData struct {
	Left          float64 `json:"left"`
	Top           float64 `json:"top"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	NaturalWidth  int     `json:"naturalWidth"`
	NaturalHeight int     `json:"naturalHeight"`
}

// Data is the transform state of the cropper
type Data struct {
	Rotate   float64  `json:"rotate"`
	ScaleX   float64  `json:"scaleX"`
	ScaleY   float64  `json:"scaleY"`
	Zoom     float64  `json:"zoom"`
	DragMode DragMode `json:"dragMode"`
	Disabled bool     `json:"disabled"`
	CropBox  *Box     `json:"cropBox,omitempty"`
}

// Loader loads the encoded image behind a URL
type Loader interface {
	Load(ctx context.Context, url string) ([]byte, error)
}

// LoaderFunc is a function implementing Loader
type LoaderFunc func(ctx context.Context, url string) ([]byte, error)

// Load calls f
func (f LoaderFunc) Load(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// Cropper is a headless crop widget.
// Its source image can only be replaced by URL, the load completing asynchronously.
type Cropper struct {
	mutex   sync.Mutex
	decoder *Decoder
	loader  Loader

	containerWidth  float64
	containerHeight float64

	seq         uint64
	url         string
	source      *image.NRGBA
	transformed *image.NRGBA

	rotate   float64
	scaleX   float64
	scaleY   float64
	zoom     float64
	dragMode DragMode
	disabled bool
	cropBox  *Box
}

// New returns a cropper without an image, laid out in a container of the given size
func New(decoder *Decoder, loader Loader, containerWidth, containerHeight float64) *Cropper {
	return &Cropper{
		decoder:         decoder,
		loader:          loader,
		containerWidth:  containerWidth,
		containerHeight: containerHeight,
		scaleX:          1,
		scaleY:          1,
		zoom:            1,
		dragMode:        DragCrop,
	}
}

// Replace loads a new source image from url in the background.
// The transform and crop box are reset once it has loaded, then onLoad is called.
// A load that is replaced by a newer one before it completes reports ErrSuperseded.
func (c *Cropper) Replace(ctx context.Context, url string, onLoad func(err error)) {
	c.mutex.Lock()
	c.seq++
	seq := c.seq
	c.mutex.Unlock()

	go func() {
		img, err := c.load(ctx, url)

		c.mutex.Lock()
		switch {
		case seq != c.seq:
			err = ErrSuperseded
		case err == nil:
			c.url = url
			c.source = img
			c.transformed = nil
			c.rotate = 0
			c.scaleX, c.scaleY = 1, 1
			c.zoom = 1
			c.cropBox = nil
		}
		c.mutex.Unlock()

		if onLoad != nil {
			onLoad(err)
		}
	}()
}

func (c *Cropper) load(ctx context.Context, url string) (*image.NRGBA, error) {
	data, err := c.loader.Load(ctx, url)
	if err != nil {
		return nil, err
	}

	img, _, err := c.decoder.Decode(ctx, data)
	return img, err
}

// Ready reports whether an image has been loaded
func (c *Cropper) Ready() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.source != nil
}

// URL returns the URL of the loaded image
func (c *Cropper) URL() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.url
}

// Enable allows interaction and transforms
func (c *Cropper) Enable() {
	c.mutex.Lock()
	c.disabled = false
	c.mutex.Unlock()
}

// Disable freezes the cropper, transforms are rejected until it is enabled again
func (c *Cropper) Disable() {
	c.mutex.Lock()
	c.disabled = true
	c.mutex.Unlock()
}

// check returns an error if the cropper can not be modified, the mutex must be held
func (c *Cropper) check() error {
	if c.source == nil {
		return ErrNotReady
	}

	if c.disabled {
		return ErrDisabled
	}

	return nil
}

// SetDragMode sets what dragging on the image does
func (c *Cropper) SetDragMode(mode DragMode) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.check(); err != nil {
		return err
	}

	c.dragMode = mode
	return nil
}

// HasCropBox reports whether a crop box is defined
func (c *Cropper) HasCropBox() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.cropBox != nil
}

// SetCropBox defines the crop box, clamped to the transformed image
func (c *Cropper) SetCropBox(box Box) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.check(); err != nil {
		return err
	}

	img := c.transformedImage()
	width, height := float64(img.Rect.Dx()), float64(img.Rect.Dy())

	x0 := math.Max(0, math.Min(width, box.X))
	y0 := math.Max(0, math.Min(height, box.Y))
	x1 := math.Max(0, math.Min(width, box.X+box.Width))
	y1 := math.Max(0, math.Min(height, box.Y+box.Height))

	if x1-x0 < 1 || y1-y0 < 1 {
		return ErrInvalidSize
	}

	c.cropBox = &Box{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
	return nil
}

// ClearCropBox removes the crop box
func (c *Cropper) ClearCropBox() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.check(); err != nil {
		return err
	}

	c.cropBox = nil
	return nil
}

// Rotate rotates the image clockwise by deg degrees
func (c *Cropper) Rotate(deg float64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.rotateTo(c.rotate + deg)
}

// RotateTo rotates the image to an absolute angle, clockwise
func (c *Cropper) RotateTo(deg float64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.rotateTo(deg)
}

func (c *Cropper) rotateTo(deg float64) error {
	if err := c.check(); err != nil {
		return err
	}

	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}

	if deg != c.rotate {
		c.rotate = deg
		c.transformed = nil
		c.cropBox = nil
	}

	return nil
}

// Scale sets the horizontal and vertical scale factors, -1 reflects along an axis
func (c *Cropper) Scale(scaleX, scaleY float64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.check(); err != nil {
		return err
	}

	if scaleX == 0 || scaleY == 0 {
		return ErrInvalidSize
	}

	if scaleX != c.scaleX || scaleY != c.scaleY {
		c.scaleX, c.scaleY = scaleX, scaleY
		c.transformed = nil
	}

	return nil
}

// Zoom zooms the on-screen image by a relative ratio, negative values zoom out
func (c *Cropper) Zoom(ratio float64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.check(); err != nil {
		return err
	}

	if ratio < 0 {
		ratio = 1 / (1 - ratio)
	} else {
		ratio = 1 + ratio
	}

	c.zoom *= ratio
	return nil
}

// Data returns the transform state
func (c *Cropper) Data() Data {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	data := Data{
		Rotate:   c.rotate,
		ScaleX:   c.scaleX,
		ScaleY:   c.scaleY,
		Zoom:     c.zoom,
		DragMode: c.dragMode,
		Disabled: c.disabled,
	}

	if c.cropBox != nil {
		box := *c.cropBox
		data.CropBox = &box
	}

	return data
}

// CanvasData returns where the image is shown within the container
func (c *Cropper) CanvasData() CanvasData {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.source == nil {
		return CanvasData{}
	}

	img := c.transformedImage()
	naturalWidth, naturalHeight := img.Rect.Dx(), img.Rect.Dy()

	scale := math.Min(c.containerWidth/float64(naturalWidth), c.containerHeight/float64(naturalHeight)) * c.zoom
	width, height := float64(naturalWidth)*scale, float64(naturalHeight)*scale

	return CanvasData{
		Left:          (c.containerWidth - width) / 2,
		Top:           (c.containerHeight - height) / 2,
		Width:         width,
		Height:        height,
		NaturalWidth:  naturalWidth,
		NaturalHeight: naturalHeight,
	}
}

// ImageSize returns the pixel size of the transformed image
func (c *Cropper) ImageSize() (int, int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.source == nil {
		return 0, 0, ErrNotReady
	}

	img := c.transformedImage()
	return img.Rect.Dx(), img.Rect.Dy(), nil
}

// CroppedCanvas returns the pixels within the crop box, resized to fit the bounds.
// Smaller crops are scaled up to cover the minimum size, larger ones are capped at the maximum.
func (c *Cropper) CroppedCanvas(bounds Bounds) (*image.NRGBA, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.source == nil {
		return nil, ErrNotReady
	}

	if c.cropBox == nil {
		return nil, ErrNoCropBox
	}

	box := *c.cropBox
	img := c.transformedImage()

	rect := image.Rect(
		int(math.Round(box.X)),
		int(math.Round(box.Y)),
		int(math.Round(box.X+box.Width)),
		int(math.Round(box.Y+box.Height)),
	).Intersect(img.Rect)

	if rect.Empty() {
		return nil, ErrInvalidSize
	}

	width, height := OutputSize(float64(rect.Dx()), float64(rect.Dy()), bounds)
	out := image.NewNRGBA(image.Rect(0, 0, width, height))

	if width == rect.Dx() && height == rect.Dy() {
		copyPixels(out, img, rect.Min)
	} else {
		xdraw.CatmullRom.Scale(out, out.Bounds(), img, rect, xdraw.Src, nil)
	}

	return out, nil
}

// FullCanvas returns the whole transformed image, ignoring the crop box
func (c *Cropper) FullCanvas() (*image.NRGBA, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.source == nil {
		return nil, ErrNotReady
	}

	img := c.transformedImage()
	out := image.NewNRGBA(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
	copyPixels(out, img, img.Rect.Min)

	return out, nil
}

// transformedImage returns the source reflected then rotated, the mutex must be held
func (c *Cropper) transformedImage() *image.NRGBA {
	if c.transformed != nil {
		return c.transformed
	}

	var filters []gift.Filter
	if c.scaleX < 0 {
		filters = append(filters, gift.FlipHorizontal())
	}
	if c.scaleY < 0 {
		filters = append(filters, gift.FlipVertical())
	}

	// gift rotates counter-clockwise
	switch c.rotate {
	case 0:
	case 90:
		filters = append(filters, gift.Rotate270())
	case 180:
		filters = append(filters, gift.Rotate180())
	case 270:
		filters = append(filters, gift.Rotate90())
	default:
		filters = append(filters, gift.Rotate(float32(-c.rotate), color.Transparent, gift.CubicInterpolation))
	}

	if len(filters) == 0 {
		c.transformed = c.source
		return c.transformed
	}

	g := gift.New(filters...)
	dst := image.NewNRGBA(g.Bounds(c.source.Bounds()))
	g.Draw(dst, c.source)

	c.transformed = dst
	return dst
}

// OutputSize returns the size of a cropped canvas for a crop of width by height pixels
func OutputSize(width, height float64, bounds Bounds) (int, int) {
	ratio := width / height

	maxWidth, maxHeight := contain(ratio, float64(bounds.MaxWidth), float64(bounds.MaxHeight))
	minWidth, minHeight := cover(ratio, float64(bounds.MinWidth), float64(bounds.MinHeight))

	width = math.Min(maxWidth, math.Max(minWidth, width))
	height = math.Min(maxHeight, math.Max(minHeight, height))

	return int(math.Max(1, math.Round(width))), int(math.Max(1, math.Round(height)))
}

// contain returns the largest size with the aspect ratio that fits within width by height
func contain(ratio, width, height float64) (float64, float64) {
	if height*ratio > width {
		return width, width / ratio
	}

	return height * ratio, height
}

// cover returns the smallest size with the aspect ratio that covers width by height
func cover(ratio, width, height float64) (float64, float64) {
	if height*ratio > width {
		return height * ratio, height
	}

	return width, width / ratio
}

// copyPixels copies the pixels of src starting at sp into dst
func copyPixels(dst, src *image.NRGBA, sp image.Point) {
	rowLength := dst.Rect.Dx() * 4
	for y := 0; y < dst.Rect.Dy(); y++ {
		srcOffset := src.PixOffset(sp.X, sp.Y+y)
		dstOffset := dst.PixOffset(dst.Rect.Min.X, dst.Rect.Min.Y+y)
		copy(dst.Pix[dstOffset:dstOffset+rowLength], src.Pix[srcOffset:srcOffset+rowLength])
	}
}
