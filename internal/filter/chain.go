package filter

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/gift"
)

// Errors
var (
	ErrInvalidChain = errors.New("invalid filter chain")
	ErrBlurInChain  = errors.New("blur can not be drawn through a filter chain")
)

// Function is a single filter function of a chain, e.g. saturate(150%)
type Function struct {
	Name   string
	Amount float64 // Fraction for percentages, pixels for blur, degrees for hue-rotate
}

// Chain is an ordered list of filter functions
type Chain []Function

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// PreviewChain formats the state as a filter chain for live preview, blur included
func PreviewChain(s State) string {
	return buildChain(s, true)
}

// CommitChain formats the state as a filter chain for rasterization.
// Blur is left out, it is rasterized separately by RasterizeLocalBlur.
func CommitChain(s State) string {
	return buildChain(s, false)
}

func buildChain(s State, withBlur bool) string {
	parts := []string{
		fmt.Sprintf("brightness(%s%%)", formatNumber(s.Brightness)),
		fmt.Sprintf("contrast(%s%%)", formatNumber(s.Contrast)),
		fmt.Sprintf("saturate(%s%%)", formatNumber(s.Saturation)),
		fmt.Sprintf("invert(%s%%)", formatNumber(s.Inversion)),
	}

	if withBlur {
		parts = append(parts, fmt.Sprintf("blur(%spx)", formatNumber(s.Blur)))
	}

	parts = append(parts, fmt.Sprintf("hue-rotate(%sdeg)", formatNumber(s.Hue)))

	return strings.Join(parts, " ")
}

// ParseChain parses a chain built by PreviewChain or CommitChain
func ParseChain(chain string) (Chain, error) {
	var c Chain

	for _, token := range strings.Fields(chain) {
		open := strings.IndexByte(token, '(')
		if open <= 0 || !strings.HasSuffix(token, ")") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidChain, token)
		}

		name := token[:open]
		arg := token[open+1 : len(token)-1]

		var unit string
		switch name {
		case "brightness", "contrast", "saturate", "invert":
			unit = "%"
		case "blur":
			unit = "px"
		case "hue-rotate":
			unit = "deg"
		default:
			return nil, fmt.Errorf("%w: unknown function %q", ErrInvalidChain, name)
		}

		if !strings.HasSuffix(arg, unit) {
			return nil, fmt.Errorf("%w: %q should be in %s", ErrInvalidChain, token, unit)
		}

		amount, err := strconv.ParseFloat(strings.TrimSuffix(arg, unit), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %s", ErrInvalidChain, token, err)
		}

		if unit == "%" {
			amount /= 100
		}

		c = append(c, Function{Name: name, Amount: amount})
	}

	return c, nil
}

// String formats the chain back into its textual form
func (c Chain) String() string {
	parts := make([]string, 0, len(c))
	for _, f := range c {
		switch f.Name {
		case "blur":
			parts = append(parts, fmt.Sprintf("blur(%spx)", formatNumber(f.Amount)))
		case "hue-rotate":
			parts = append(parts, fmt.Sprintf("hue-rotate(%sdeg)", formatNumber(f.Amount)))
		default:
			parts = append(parts, fmt.Sprintf("%s(%s%%)", f.Name, formatNumber(f.Amount*100)))
		}
	}

	return strings.Join(parts, " ")
}

// IsIdentity reports whether drawing through the chain leaves pixels untouched
func (c Chain) IsIdentity() bool {
	for _, f := range c {
		switch f.Name {
		case "brightness", "contrast", "saturate":
			if f.Amount != 1 {
				return false
			}
		case "invert", "blur":
			if f.Amount != 0 {
				return false
			}
		case "hue-rotate":
			if math.Mod(f.Amount, 360) != 0 {
				return false
			}
		}
	}

	return true
}

// matrix is a 3x4 color matrix, the last column being the offset
type matrix [3][4]float64

func (m matrix) apply(r, g, b float64) (float64, float64, float64) {
	return clamp01(m[0][0]*r + m[0][1]*g + m[0][2]*b + m[0][3]),
		clamp01(m[1][0]*r + m[1][1]*g + m[1][2]*b + m[1][3]),
		clamp01(m[2][0]*r + m[2][1]*g + m[2][2]*b + m[2][3])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Matrices follow the CSS filter effects definitions
func (f Function) matrix() matrix {
	a := f.Amount

	switch f.Name {
	case "brightness":
		return matrix{
			{a, 0, 0, 0},
			{0, a, 0, 0},
			{0, 0, a, 0},
		}
	case "contrast":
		o := 0.5 - 0.5*a
		return matrix{
			{a, 0, 0, o},
			{0, a, 0, o},
			{0, 0, a, o},
		}
	case "saturate":
		return matrix{
			{0.213 + 0.787*a, 0.715 - 0.715*a, 0.072 - 0.072*a, 0},
			{0.213 - 0.213*a, 0.715 + 0.285*a, 0.072 - 0.072*a, 0},
			{0.213 - 0.213*a, 0.715 - 0.715*a, 0.072 + 0.928*a, 0},
		}
	case "invert":
		a = clamp01(a)
		s := 1 - 2*a
		return matrix{
			{s, 0, 0, a},
			{0, s, 0, a},
			{0, 0, s, a},
		}
	case "hue-rotate":
		rad := a * math.Pi / 180
		cos, sin := math.Cos(rad), math.Sin(rad)
		return matrix{
			{0.213 + cos*0.787 - sin*0.213, 0.715 - cos*0.715 - sin*0.715, 0.072 - cos*0.072 + sin*0.928, 0},
			{0.213 - cos*0.213 + sin*0.143, 0.715 + cos*0.285 + sin*0.140, 0.072 - cos*0.072 - sin*0.283, 0},
			{0.213 - cos*0.213 - sin*0.787, 0.715 - cos*0.715 + sin*0.715, 0.072 + cos*0.928 + sin*0.072, 0},
		}
	}

	return matrix{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
}

// Draw draws src into dst through the chain.
// Colors are processed with straight alpha and clamped after every function.
func (c Chain) Draw(dst draw.Image, src image.Image) error {
	matrices := make([]matrix, 0, len(c))
	for _, f := range c {
		if f.Name == "blur" {
			if f.Amount != 0 {
				return ErrBlurInChain
			}
			continue
		}
		matrices = append(matrices, f.matrix())
	}

	g := gift.New(gift.ColorFunc(func(r0, g0, b0, a0 float32) (float32, float32, float32, float32) {
		r, g, b := float64(r0), float64(g0), float64(b0)
		for _, m := range matrices {
			r, g, b = m.apply(r, g, b)
		}
		return float32(r), float32(g), float32(b), a0
	}))

	g.Draw(dst, src)
	return nil
}
