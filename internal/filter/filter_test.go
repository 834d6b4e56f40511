package filter_test

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/DMarby/picsum-editor/internal/filter"
)

func solid(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func closeTo(a, b uint8) bool {
	d := int(a) - int(b)
	return d >= -1 && d <= 1
}

func TestChains(t *testing.T) {
	tests := []struct {
		Name            string
		State           func() filter.State
		ExpectedPreview string
		ExpectedCommit  string
	}{
		{
			"defaults",
			filter.Defaults,
			"brightness(100%) contrast(100%) saturate(100%) invert(0%) blur(0px) hue-rotate(0deg)",
			"brightness(100%) contrast(100%) saturate(100%) invert(0%) hue-rotate(0deg)",
		},
		{
			"adjusted",
			func() filter.State {
				s := filter.Defaults()
				s.Set(filter.Brightness, 150)
				s.Set(filter.Blur, 4)
				s.Set(filter.Hue, 90)
				s.Set(filter.Inversion, 12.5)
				return s
			},
			"brightness(150%) contrast(100%) saturate(100%) invert(12.5%) blur(4px) hue-rotate(90deg)",
			"brightness(150%) contrast(100%) saturate(100%) invert(12.5%) hue-rotate(90deg)",
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			s := test.State()

			if preview := filter.PreviewChain(s); preview != test.ExpectedPreview {
				t.Errorf("wrong preview chain %q", preview)
			}

			if commit := filter.CommitChain(s); commit != test.ExpectedCommit {
				t.Errorf("wrong commit chain %q", commit)
			}

			if filter.PreviewChain(s) != filter.PreviewChain(s) {
				t.Error("preview chain is not deterministic")
			}
		})
	}
}

func TestSetClamps(t *testing.T) {
	tests := []struct {
		Name     filter.Name
		Value    float64
		Expected float64
	}{
		{filter.Brightness, 250, 200},
		{filter.Contrast, -10, 0},
		{filter.Saturation, 120, 120},
		{filter.Inversion, 101, 100},
		{filter.Blur, 21, 20},
		{filter.Hue, 361, 360},
		{filter.Hue, math.NaN(), 0},
	}

	for _, test := range tests {
		s := filter.Defaults()
		if err := s.Set(test.Name, test.Value); err != nil {
			t.Fatal(err)
		}

		v, err := s.Get(test.Name)
		if err != nil {
			t.Fatal(err)
		}

		if v != test.Expected {
			t.Errorf("%s: expected %v, got %v", test.Name, test.Expected, v)
		}
	}

	s := filter.Defaults()
	if err := s.Set("sharpness", 1); !errors.Is(err, filter.ErrUnknownFilter) {
		t.Errorf("wrong error %v", err)
	}
}

func TestReset(t *testing.T) {
	s := filter.Defaults()
	s.Set(filter.Contrast, 40)
	if s.IsDefault() {
		t.Fatal("state should not be default")
	}

	s.Reset()
	if !s.IsDefault() {
		t.Error("state should be default after reset")
	}
}

func TestParseChain(t *testing.T) {
	s := filter.Defaults()
	s.Set(filter.Saturation, 50)
	s.Set(filter.Blur, 2.5)

	preview := filter.PreviewChain(s)
	chain, err := filter.ParseChain(preview)
	if err != nil {
		t.Fatal(err)
	}

	if len(chain) != 6 {
		t.Fatalf("wrong number of functions %d", len(chain))
	}

	if chain[2].Name != "saturate" || chain[2].Amount != 0.5 {
		t.Errorf("wrong saturate function %+v", chain[2])
	}

	if chain.String() != preview {
		t.Errorf("chain does not format back, got %q", chain.String())
	}

	for _, invalid := range []string{"sepia(10%)", "brightness(10px)", "brightness", "blur(abcpx)"} {
		if _, err := filter.ParseChain(invalid); !errors.Is(err, filter.ErrInvalidChain) {
			t.Errorf("%s: wrong error %v", invalid, err)
		}
	}
}

func TestChainDrawRejectsBlur(t *testing.T) {
	chain, err := filter.ParseChain("brightness(100%) blur(2px)")
	if err != nil {
		t.Fatal(err)
	}

	src := solid(2, 2, color.NRGBA{10, 20, 30, 255})
	if err := chain.Draw(image.NewNRGBA(src.Bounds()), src); err != filter.ErrBlurInChain {
		t.Errorf("wrong error %v", err)
	}
}

func TestRasterizeLocalBlur(t *testing.T) {
	t.Run("zero radius is a no-op", func(t *testing.T) {
		img := solid(5, 5, color.NRGBA{0, 0, 0, 0})
		img.SetNRGBA(2, 2, color.NRGBA{255, 255, 255, 255})

		filter.RasterizeLocalBlur(img, 0)

		if img.NRGBAAt(2, 2) != (color.NRGBA{255, 255, 255, 255}) || img.NRGBAAt(1, 2) != (color.NRGBA{}) {
			t.Error("image was modified")
		}
	})

	t.Run("uniform image stays uniform", func(t *testing.T) {
		c := color.NRGBA{40, 80, 120, 200}
		img := solid(16, 9, c)

		filter.RasterizeLocalBlur(img, 6)

		for y := 0; y < 9; y++ {
			for x := 0; x < 16; x++ {
				if img.NRGBAAt(x, y) != c {
					t.Fatalf("pixel %d,%d changed to %v", x, y, img.NRGBAAt(x, y))
				}
			}
		}
	})

	t.Run("spreads pixels including alpha", func(t *testing.T) {
		img := solid(21, 21, color.NRGBA{0, 0, 0, 0})
		img.SetNRGBA(10, 10, color.NRGBA{255, 255, 255, 255})

		filter.RasterizeLocalBlur(img, 3)

		center := img.NRGBAAt(10, 10)
		neighbour := img.NRGBAAt(11, 10)
		if center.A == 255 || center.A == 0 {
			t.Errorf("center alpha was not blurred: %v", center)
		}
		if neighbour.A == 0 {
			t.Errorf("neighbour alpha was not blurred: %v", neighbour)
		}
	})
}

func TestBake(t *testing.T) {
	tests := []struct {
		Name     string
		Filter   filter.Name
		Value    float64
		Input    color.NRGBA
		Expected color.NRGBA
	}{
		{"defaults", filter.Brightness, 100, color.NRGBA{10, 20, 30, 255}, color.NRGBA{10, 20, 30, 255}},
		{"invert", filter.Inversion, 100, color.NRGBA{10, 20, 30, 255}, color.NRGBA{245, 235, 225, 255}},
		{"brightness", filter.Brightness, 200, color.NRGBA{100, 50, 200, 128}, color.NRGBA{200, 100, 255, 128}},
		{"brightness zero", filter.Brightness, 0, color.NRGBA{100, 50, 200, 255}, color.NRGBA{0, 0, 0, 255}},
		{"saturation zero keeps grays", filter.Saturation, 0, color.NRGBA{90, 90, 90, 255}, color.NRGBA{90, 90, 90, 255}},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			s := filter.Defaults()
			s.Set(test.Filter, test.Value)

			img := solid(3, 3, test.Input)
			if err := filter.Bake(img, s); err != nil {
				t.Fatal(err)
			}

			got := img.NRGBAAt(1, 1)
			if !closeTo(got.R, test.Expected.R) || !closeTo(got.G, test.Expected.G) || !closeTo(got.B, test.Expected.B) || got.A != test.Expected.A {
				t.Errorf("expected %v, got %v", test.Expected, got)
			}
		})
	}
}
