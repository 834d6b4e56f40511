package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// Magic number for approximating circular arcs with cubic beziers
// k = 4 * (sqrt(2) - 1) / 3
const kappa = 0.5522847498

// Canvas is a straight alpha pixel buffer together with its on-screen placement,
// the composite operation used for drawing and the current fill color
type Canvas struct {
	pix *image.NRGBA

	Left      float64
	Top       float64
	CSSWidth  float64
	CSSHeight float64

	Operation Operation
	Fill      color.NRGBA
}

// New returns a transparent canvas whose CSS size matches its pixel size
func New(width, height int) *Canvas {
	return &Canvas{
		pix:       image.NewNRGBA(image.Rect(0, 0, width, height)),
		CSSWidth:  float64(width),
		CSSHeight: float64(height),
		Operation: SourceOver,
		Fill:      color.NRGBA{0, 0, 0, 255},
	}
}

// FromImage returns a canvas holding a copy of img, with its origin moved to 0,0
func FromImage(img image.Image) *Canvas {
	b := img.Bounds()
	c := New(b.Dx(), b.Dy())
	draw.Draw(c.pix, c.pix.Bounds(), img, b.Min, draw.Src)
	return c
}

// Width returns the width of the pixel buffer
func (c *Canvas) Width() int {
	return c.pix.Rect.Dx()
}

// Height returns the height of the pixel buffer
func (c *Canvas) Height() int {
	return c.pix.Rect.Dy()
}

// Bounds returns the bounds of the pixel buffer
func (c *Canvas) Bounds() image.Rectangle {
	return c.pix.Rect
}

// Image returns the pixel buffer of the canvas, it is not copied
func (c *Canvas) Image() *image.NRGBA {
	return c.pix
}

// Snapshot returns a copy of the pixel buffer
func (c *Canvas) Snapshot() *image.NRGBA {
	img := image.NewNRGBA(c.pix.Rect)
	copy(img.Pix, c.pix.Pix)
	return img
}

// Clone returns a deep copy of the canvas, placement and drawing state included
func (c *Canvas) Clone() *Canvas {
	clone := *c
	clone.pix = c.Snapshot()
	return &clone
}

// Place sets the on-screen position and CSS size of the canvas
func (c *Canvas) Place(left, top, cssWidth, cssHeight float64) {
	c.Left, c.Top = left, top
	c.CSSWidth, c.CSSHeight = cssWidth, cssHeight
}

// ToLocal maps a point in page coordinates to pixel coordinates of the canvas
func (c *Canvas) ToLocal(x, y float64) (float64, float64) {
	scaleX, scaleY := 1.0, 1.0
	if c.CSSWidth > 0 {
		scaleX = float64(c.Width()) / c.CSSWidth
	}
	if c.CSSHeight > 0 {
		scaleY = float64(c.Height()) / c.CSSHeight
	}

	return (x - c.Left) * scaleX, (y - c.Top) * scaleY
}

// Clear makes every pixel transparent
func (c *Canvas) Clear() {
	for i := range c.pix.Pix {
		c.pix.Pix[i] = 0
	}
}

// DrawCircle fills a circle of radius r centered on x, y.
// A nil color draws with the current fill, any other color becomes the new fill.
func (c *Canvas) DrawCircle(col color.Color, r, x, y float64) {
	c.setFill(col)
	if r <= 0 {
		return
	}

	area := image.Rect(int(math.Floor(x-r)), int(math.Floor(y-r)), int(math.Ceil(x+r)), int(math.Ceil(y+r)))
	mask := c.rasterize(area, func(p pen) {
		p.circle(x, y, r)
	})

	c.fillMask(mask)
}

// DrawLine strokes a line from x1, y1 to x2, y2 with a width of 2r and round caps.
// A nil color draws with the current fill, any other color becomes the new fill.
func (c *Canvas) DrawLine(col color.Color, r, x1, y1, x2, y2 float64) {
	c.setFill(col)
	if r <= 0 {
		return
	}

	area := image.Rect(
		int(math.Floor(math.Min(x1, x2)-r)),
		int(math.Floor(math.Min(y1, y2)-r)),
		int(math.Ceil(math.Max(x1, x2)+r)),
		int(math.Ceil(math.Max(y1, y2)+r)),
	)

	paths := []func(p pen){
		func(p pen) { p.circle(x1, y1, r) },
		func(p pen) { p.circle(x2, y2, r) },
	}

	dx, dy := x2-x1, y2-y1
	if length := math.Hypot(dx, dy); length > 0 {
		// Normal of the segment scaled to the half width
		nx, ny := -dy/length*r, dx/length*r

		paths = append(paths, func(p pen) {
			p.moveTo(x1+nx, y1+ny)
			p.lineTo(x2+nx, y2+ny)
			p.lineTo(x2-nx, y2-ny)
			p.lineTo(x1-nx, y1-ny)
			p.z.ClosePath()
		})
	}

	c.fillMask(c.rasterize(area, paths...))
}

// DrawImage composites src onto the canvas with its bounds minimum placed at dx, dy
func (c *Canvas) DrawImage(src image.Image, dx, dy int) {
	sb := src.Bounds()
	target := sb.Add(image.Pt(dx, dy).Sub(sb.Min))

	area := target
	if c.Operation == SourceIn {
		area = c.pix.Rect
	}
	area = area.Intersect(c.pix.Rect)

	nrgba, isNRGBA := src.(*image.NRGBA)

	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			var s color.NRGBA
			if (image.Point{x, y}).In(target) {
				sx, sy := x-target.Min.X+sb.Min.X, y-target.Min.Y+sb.Min.Y
				if isNRGBA {
					s = nrgba.NRGBAAt(sx, sy)
				} else {
					s = color.NRGBAModel.Convert(src.At(sx, sy)).(color.NRGBA)
				}
			}

			offset := c.pix.PixOffset(x, y)
			c.setPixel(offset, compositePixel(c.Operation, c.pixel(offset), s, 255))
		}
	}
}

// DrawImageScaled composites src onto the canvas, stretched to fill r
func (c *Canvas) DrawImageScaled(src image.Image, r image.Rectangle) {
	if r.Empty() {
		return
	}

	if r.Size() == src.Bounds().Size() {
		c.DrawImage(src, r.Min.X, r.Min.Y)
		return
	}

	scaled := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.BiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	c.DrawImage(scaled, r.Min.X, r.Min.Y)
}

func (c *Canvas) setFill(col color.Color) {
	if col != nil {
		c.Fill = color.NRGBAModel.Convert(col).(color.NRGBA)
	}
}

// rasterize draws the paths into a coverage mask covering area.
// Every path is rasterized on its own and merged with Over.
func (c *Canvas) rasterize(area image.Rectangle, paths ...func(p pen)) *image.Alpha {
	area = area.Intersect(c.pix.Rect)
	mask := image.NewAlpha(area)
	if area.Empty() {
		return mask
	}

	for _, path := range paths {
		z := vector.NewRasterizer(area.Dx(), area.Dy())
		z.DrawOp = draw.Over
		path(pen{z, float64(area.Min.X), float64(area.Min.Y)})
		z.Draw(mask, area, image.Opaque, image.Point{})
	}

	return mask
}

// fillMask composites the fill color through the coverage mask
func (c *Canvas) fillMask(mask *image.Alpha) {
	area := mask.Rect
	if c.Operation == SourceIn {
		area = c.pix.Rect
	}

	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			coverage := mask.AlphaAt(x, y).A
			if coverage == 0 && c.Operation != SourceIn {
				continue
			}

			offset := c.pix.PixOffset(x, y)
			c.setPixel(offset, compositePixel(c.Operation, c.pixel(offset), c.Fill, coverage))
		}
	}
}

func (c *Canvas) pixel(offset int) color.NRGBA {
	p := c.pix.Pix[offset : offset+4 : offset+4]
	return color.NRGBA{p[0], p[1], p[2], p[3]}
}

func (c *Canvas) setPixel(offset int, col color.NRGBA) {
	p := c.pix.Pix[offset : offset+4 : offset+4]
	p[0], p[1], p[2], p[3] = col.R, col.G, col.B, col.A
}

// pen draws paths in canvas coordinates onto a rasterizer covering a sub area
type pen struct {
	z      *vector.Rasterizer
	ox, oy float64
}

func (p pen) moveTo(x, y float64) {
	p.z.MoveTo(float32(x-p.ox), float32(y-p.oy))
}

func (p pen) lineTo(x, y float64) {
	p.z.LineTo(float32(x-p.ox), float32(y-p.oy))
}

func (p pen) cubeTo(bx, by, cx, cy, dx, dy float64) {
	p.z.CubeTo(
		float32(bx-p.ox), float32(by-p.oy),
		float32(cx-p.ox), float32(cy-p.oy),
		float32(dx-p.ox), float32(dy-p.oy),
	)
}

// circle adds four quarter arcs approximating a circle
func (p pen) circle(cx, cy, r float64) {
	k := kappa * r

	p.moveTo(cx+r, cy)
	p.cubeTo(cx+r, cy+k, cx+k, cy+r, cx, cy+r)
	p.cubeTo(cx-k, cy+r, cx-r, cy+k, cx-r, cy)
	p.cubeTo(cx-r, cy-k, cx-k, cy-r, cx, cy-r)
	p.cubeTo(cx+k, cy-r, cx+r, cy-k, cx+r, cy)
	p.z.ClosePath()
}
