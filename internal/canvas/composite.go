package canvas

import (
	"image/color"
	"math"
)

// Operation is a Porter-Duff composite operation used when drawing onto a canvas
type Operation int

// Composite operations
const (
	SourceOver      Operation = iota // Draw over the existing pixels
	DestinationOut                   // Remove the existing pixels where drawn, used by the eraser
	SourceIn                         // Keep the drawn pixels only where pixels already exist, clear everything else
	DestinationOver                  // Draw behind the existing pixels
)

func (o Operation) String() string {
	switch o {
	case SourceOver:
		return "source-over"
	case DestinationOut:
		return "destination-out"
	case SourceIn:
		return "source-in"
	case DestinationOver:
		return "destination-over"
	}

	return "unknown"
}

func toByte(v float64) uint8 {
	v = math.Round(v * 255)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// compositePixel composites s over d with op. Colors are straight alpha and
// coverage scales the alpha of s, 255 being fully covered.
func compositePixel(op Operation, d, s color.NRGBA, coverage uint8) color.NRGBA {
	as := float64(s.A) / 255 * float64(coverage) / 255
	ad := float64(d.A) / 255

	switch op {
	case SourceOver:
		if as == 0 {
			return d
		}
		if as == 1 {
			return s
		}

		ao := as + ad*(1-as)
		blend := func(cs, cd uint8) uint8 {
			return toByte((float64(cs)/255*as + float64(cd)/255*ad*(1-as)) / ao)
		}
		return color.NRGBA{blend(s.R, d.R), blend(s.G, d.G), blend(s.B, d.B), toByte(ao)}

	case DestinationOut:
		if as == 0 {
			return d
		}

		a := toByte(ad * (1 - as))
		if a == 0 {
			return color.NRGBA{}
		}
		return color.NRGBA{d.R, d.G, d.B, a}

	case SourceIn:
		a := toByte(as * ad)
		if a == 0 {
			return color.NRGBA{}
		}
		return color.NRGBA{s.R, s.G, s.B, a}

	case DestinationOver:
		if as == 0 || d.A == 255 {
			return d
		}

		ao := ad + as*(1-ad)
		blend := func(cs, cd uint8) uint8 {
			return toByte((float64(cd)/255*ad + float64(cs)/255*as*(1-ad)) / ao)
		}
		return color.NRGBA{blend(s.R, d.R), blend(s.G, d.G), blend(s.B, d.B), toByte(ao)}
	}

	return d
}
