package params

import (
	"fmt"
	"image/color"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// Errors
var (
	ErrMissingParam  = fmt.Errorf("Missing parameter")
	ErrInvalidNumber = fmt.Errorf("Invalid number")
	ErrInvalidColor  = fmt.Errorf("Invalid color")
)

// Float gets a number from the path params, falling back to the query params
func Float(r *http.Request, name string) (float64, error) {
	val, ok := param(r, name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingParam, name)
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidNumber, name)
	}

	return f, nil
}

// Bool returns whether a query param is set, "?name" and "?name=true" are true, "?name=false" is false.
// A missing param returns def.
func Bool(r *http.Request, name string, def bool) bool {
	values, ok := r.URL.Query()[name]
	if !ok {
		return def
	}

	if len(values) == 0 || values[0] == "" {
		return true
	}

	b, err := strconv.ParseBool(values[0])
	if err != nil {
		return def
	}

	return b
}

// String gets a string from the path params, falling back to the query params
func String(r *http.Request, name string) (string, bool) {
	return param(r, name)
}

func param(r *http.Request, name string) (string, bool) {
	if val, ok := mux.Vars(r)[name]; ok && val != "" {
		return val, true
	}

	val := r.URL.Query().Get(name)
	return val, val != ""
}

// Color parses a hex color in the #rgb or #rrggbb form
func Color(value string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(value, "#")

	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}

	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("%w: %s", ErrInvalidColor, value)
	}

	rgb, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %s", ErrInvalidColor, value)
	}

	return color.NRGBA{uint8(rgb >> 16), uint8(rgb >> 8), uint8(rgb), 255}, nil
}
