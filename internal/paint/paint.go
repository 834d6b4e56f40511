package paint

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/DMarby/picsum-editor/internal/canvas"
	"github.com/disintegration/gift"
)

// BrushBlurRadius is the fixed blur radius of the blur brush, in pixels
const BrushBlurRadius = 12

// DefaultSize is the default brush radius, in pixels
const DefaultSize = 10

// Errors
var (
	ErrIdle        = errors.New("not painting")
	ErrPainting    = errors.New("already painting")
	ErrUnknownTool = errors.New("unknown tool")
)

// Tool is a paint tool
type Tool int

// Tools
const (
	Brush Tool = iota
	Eraser
	BlurBrush
)

func (t Tool) String() string {
	switch t {
	case Brush:
		return "brush"
	case Eraser:
		return "eraser"
	case BlurBrush:
		return "blur"
	}

	return "unknown"
}

// ParseTool returns the tool for a name
func ParseTool(name string) (Tool, error) {
	switch name {
	case "brush":
		return Brush, nil
	case "eraser":
		return Eraser, nil
	case "blur":
		return BlurBrush, nil
	}

	return Brush, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

// Mode is the state of the compositor
type Mode int

// Modes
const (
	Idle Mode = iota
	Painting
	BlurAuthoring
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Painting:
		return "painting"
	case BlurAuthoring:
		return "blur-authoring"
	}

	return "unknown"
}

// blurLayer holds the canvases of a blur authoring session.
// They are created and destroyed together.
type blurLayer struct {
	blurred  *image.NRGBA   // Frozen backdrop, blurred
	drawBack *canvas.Canvas // Paint layer pixels from before blur authoring started
	preview  *canvas.Canvas // Visible accumulated blur
	mask     *canvas.Canvas // Where the user has stroked
	stroke   StrokeState
}

// Compositor owns the paint layer of a session and the canvases used for blur authoring
type Compositor struct {
	mode  Mode
	tool  Tool
	color color.NRGBA
	size  float64

	base   *image.NRGBA
	layer  *canvas.Canvas
	stroke StrokeState
	blur   *blurLayer
}

// New returns an idle compositor
func New() *Compositor {
	return &Compositor{
		color: color.NRGBA{0, 0, 0, 255},
		size:  DefaultSize,
	}
}

// Mode returns the current mode
func (c *Compositor) Mode() Mode {
	return c.mode
}

// Tool returns the current tool
func (c *Compositor) Tool() Tool {
	return c.tool
}

// Color returns the brush color
func (c *Compositor) Color() color.NRGBA {
	return c.color
}

// Size returns the brush radius
func (c *Compositor) Size() float64 {
	return c.size
}

// SetColor sets the brush color
func (c *Compositor) SetColor(col color.Color) {
	c.color = color.NRGBAModel.Convert(col).(color.NRGBA)
}

// SetSize sets the brush radius
func (c *Compositor) SetSize(size float64) {
	if size > 0 {
		c.size = size
	}
}

// Start creates a paint layer over base, placed like the image it overlays.
// The layer has the pixel dimensions of base.
func (c *Compositor) Start(base *image.NRGBA, left, top, cssWidth, cssHeight float64) error {
	if c.mode != Idle {
		return ErrPainting
	}

	c.base = base
	c.layer = canvas.New(base.Rect.Dx(), base.Rect.Dy())
	c.layer.Place(left, top, cssWidth, cssHeight)
	c.tool = Brush
	c.mode = Painting

	return nil
}

// Layer returns the paint layer, or nil when idle
func (c *Compositor) Layer() *canvas.Canvas {
	return c.layer
}

// Backup returns the paint layer pixels saved when blur authoring started, or nil
func (c *Compositor) Backup() *image.NRGBA {
	if c.blur == nil {
		return nil
	}

	return c.blur.drawBack.Image()
}

// SetTool switches tool. Switching to the blur brush starts blur authoring,
// switching away from it merges the blurred strokes into the paint layer.
func (c *Compositor) SetTool(t Tool) error {
	if c.mode == Idle {
		return ErrIdle
	}

	if t == c.tool {
		return nil
	}

	if c.mode == BlurAuthoring {
		c.mergeBlur()
	}

	c.stroke.End()
	c.layer.Operation = canvas.SourceOver
	c.tool = t

	if t == BlurBrush {
		c.startBlur()
	}

	return nil
}

// PointerDown starts a stroke at the page coordinates x, y
func (c *Compositor) PointerDown(x, y float64) error {
	lx, ly := c.local(x, y)

	switch c.mode {
	case Painting:
		if c.tool == Eraser {
			c.layer.Operation = canvas.DestinationOut
		}
		c.layer.DrawCircle(c.color, c.size, lx, ly)
		c.stroke.Begin(lx, ly)
	case BlurAuthoring:
		c.blur.mask.DrawCircle(nil, c.size, lx, ly)
		c.blur.stroke.Begin(lx, ly)
	default:
		return ErrIdle
	}

	return nil
}

// PointerMove continues the active stroke to the page coordinates x, y
func (c *Compositor) PointerMove(x, y float64) error {
	lx, ly := c.local(x, y)

	switch c.mode {
	case Painting:
		if px, py, ok := c.stroke.Move(lx, ly); ok {
			c.layer.DrawCircle(c.color, c.size, lx, ly)
			c.layer.DrawLine(c.color, c.size, px, py, lx, ly)
		}
	case BlurAuthoring:
		if px, py, ok := c.blur.stroke.Move(lx, ly); ok {
			c.blur.mask.DrawCircle(nil, c.size, lx, ly)
			c.blur.mask.DrawLine(nil, c.size, px, py, lx, ly)
		}
	default:
		return ErrIdle
	}

	return nil
}

// PointerUp ends the active stroke
func (c *Compositor) PointerUp() error {
	switch c.mode {
	case Painting:
		c.stroke.End()
		c.layer.Operation = canvas.SourceOver
	case BlurAuthoring:
		if c.blur.stroke.Active {
			c.commitBlurStroke()
		}
		c.blur.stroke.End()
	default:
		return ErrIdle
	}

	return nil
}

// Point is a pointer position in page coordinates
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Stroke draws a whole stroke through the given points
func (c *Compositor) Stroke(points []Point) error {
	if len(points) == 0 {
		return nil
	}

	if err := c.PointerDown(points[0].X, points[0].Y); err != nil {
		return err
	}

	for _, p := range points[1:] {
		if err := c.PointerMove(p.X, p.Y); err != nil {
			return err
		}
	}

	return c.PointerUp()
}

// View returns the base with the visible paint and blur preview on top
func (c *Compositor) View() *image.NRGBA {
	if c.mode == Idle {
		return nil
	}

	view := canvas.FromImage(c.base)
	view.DrawImage(c.layer.Image(), 0, 0)
	if c.blur != nil {
		view.DrawImage(c.blur.preview.Image(), 0, 0)
	}

	return view.Image()
}

// Finish merges any blur authoring into the paint layer and returns it.
// The compositor is idle afterwards.
func (c *Compositor) Finish() (*canvas.Canvas, error) {
	if c.mode == Idle {
		return nil, ErrIdle
	}

	if c.mode == BlurAuthoring {
		c.mergeBlur()
	}

	layer := c.layer
	c.Discard()

	return layer, nil
}

// Discard destroys every layer without merging
func (c *Compositor) Discard() {
	c.mode = Idle
	c.tool = Brush
	c.base = nil
	c.layer = nil
	c.blur = nil
	c.stroke.End()
}

func (c *Compositor) local(x, y float64) (float64, float64) {
	if c.layer == nil {
		return x, y
	}

	return c.layer.ToLocal(x, y)
}

// startBlur freezes the current view as the blur backdrop and clears the visible strokes
func (c *Compositor) startBlur() {
	backdrop := canvas.FromImage(c.base)
	backdrop.DrawImage(c.layer.Image(), 0, 0)

	blurred := image.NewNRGBA(backdrop.Bounds())
	gift.New(gift.GaussianBlur(BrushBlurRadius)).Draw(blurred, backdrop.Image())

	width, height := c.layer.Width(), c.layer.Height()

	preview := canvas.New(width, height)
	preview.Place(c.layer.Left, c.layer.Top, c.layer.CSSWidth, c.layer.CSSHeight)

	mask := canvas.New(width, height)
	mask.Fill = color.NRGBA{0, 0, 0, 255}

	c.blur = &blurLayer{
		blurred:  blurred,
		drawBack: c.layer.Clone(),
		preview:  preview,
		mask:     mask,
	}

	c.layer.Clear()
	c.mode = BlurAuthoring
}

// commitBlurStroke fills the stroked mask with the blurred backdrop, under the existing preview
func (c *Compositor) commitBlurStroke() {
	snapshot := c.blur.mask.Clone()
	snapshot.Operation = canvas.SourceIn
	snapshot.DrawImage(c.blur.blurred, 0, 0)

	c.blur.preview.Operation = canvas.DestinationOver
	c.blur.preview.DrawImage(snapshot.Image(), 0, 0)
	c.blur.preview.Operation = canvas.SourceOver
}

// mergeBlur restores the backed up strokes and draws the blur preview on top
func (c *Compositor) mergeBlur() {
	c.layer.Clear()
	c.layer.Operation = canvas.SourceOver
	c.layer.DrawImage(c.blur.drawBack.Image(), 0, 0)
	c.layer.DrawImage(c.blur.preview.Image(), 0, 0)

	c.blur = nil
	c.mode = Painting
}
