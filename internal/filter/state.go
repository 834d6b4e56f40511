package filter

import (
	"errors"
	"fmt"
	"math"
)

// Name identifies one of the adjustable filters
type Name string

// Filter names, in chain order
const (
	Brightness Name = "brightness"
	Contrast   Name = "contrast"
	Saturation Name = "saturation"
	Inversion  Name = "inversion"
	Blur       Name = "blur"
	Hue        Name = "hue"
)

// Errors
var (
	ErrUnknownFilter = errors.New("unknown filter")
)

type limits struct {
	min, max, def float64
}

var ranges = map[Name]limits{
	Brightness: {0, 200, 100},
	Contrast:   {0, 200, 100},
	Saturation: {0, 200, 100},
	Inversion:  {0, 100, 0},
	Blur:       {0, 20, 0},
	Hue:        {0, 360, 0},
}

var names = []Name{Brightness, Contrast, Saturation, Inversion, Blur, Hue}

// Names returns the filter names in chain order
func Names() []Name {
	return append([]Name(nil), names...)
}

// Range returns the allowed range and the default value of a filter
func Range(name Name) (min, max, def float64, err error) {
	l, ok := ranges[name]
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: %s", ErrUnknownFilter, name)
	}

	return l.min, l.max, l.def, nil
}

// State holds the pending filter values of a session.
// It is only a preview until it gets baked into a bitmap.
type State struct {
	Brightness float64 `json:"brightness" yaml:"brightness"`
	Contrast   float64 `json:"contrast" yaml:"contrast"`
	Saturation float64 `json:"saturation" yaml:"saturation"`
	Inversion  float64 `json:"inversion" yaml:"inversion"`
	Blur       float64 `json:"blur" yaml:"blur"`
	Hue        float64 `json:"hue" yaml:"hue"`
}

// Defaults returns a state with every filter at its neutral value
func Defaults() State {
	return State{
		Brightness: ranges[Brightness].def,
		Contrast:   ranges[Contrast].def,
		Saturation: ranges[Saturation].def,
		Inversion:  ranges[Inversion].def,
		Blur:       ranges[Blur].def,
		Hue:        ranges[Hue].def,
	}
}

// Reset puts every filter back to its default
func (s *State) Reset() {
	*s = Defaults()
}

// IsDefault reports whether the state would leave an image untouched
func (s State) IsDefault() bool {
	return s == Defaults()
}

// Set updates a single filter, clamping the value to its range
func (s *State) Set(name Name, value float64) error {
	l, ok := ranges[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFilter, name)
	}

	if math.IsNaN(value) {
		value = l.def
	}
	value = math.Max(l.min, math.Min(l.max, value))

	switch name {
	case Brightness:
		s.Brightness = value
	case Contrast:
		s.Contrast = value
	case Saturation:
		s.Saturation = value
	case Inversion:
		s.Inversion = value
	case Blur:
		s.Blur = value
	case Hue:
		s.Hue = value
	}

	return nil
}

// Get returns the value of a single filter
func (s State) Get(name Name) (float64, error) {
	switch name {
	case Brightness:
		return s.Brightness, nil
	case Contrast:
		return s.Contrast, nil
	case Saturation:
		return s.Saturation, nil
	case Inversion:
		return s.Inversion, nil
	case Blur:
		return s.Blur, nil
	case Hue:
		return s.Hue, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrUnknownFilter, name)
}
