package format

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"sync"

	// Decoders
	_ "image/gif"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Errors
var (
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrUnknownImage      = errors.New("unknown image format")
)

// Setting is an output format and quality
type Setting struct {
	MIME      string  `json:"mime" yaml:"mime"`
	Quality   float64 `json:"quality" yaml:"quality"`
	Icon      string  `json:"icon" yaml:"icon"`
	Extension string  `json:"extension" yaml:"extension"`
}

// Settings is the fixed ordered list of output formats
var Settings = []Setting{
	{MIME: "image/png", Quality: 1, Icon: "png", Extension: ".png"},
	{MIME: "image/webp", Quality: 1, Icon: "webp", Extension: ".webp"},
	{MIME: "image/bmp", Quality: 1, Icon: "bmp", Extension: ".bmp"},
	{MIME: "image/jpeg", Quality: 1, Icon: "jpg", Extension: ".jpg"},
	{MIME: "image/jpeg", Quality: 0.8, Icon: "jpg-compressed", Extension: ".jpg"},
	{MIME: "image/tiff", Quality: 1, Icon: "tiff", Extension: ".tiff"},
}

// DefaultIndex is the index of the full quality JPEG setting
const DefaultIndex = 3

// Default returns the setting used when nothing else matches
func Default() Setting {
	return Settings[DefaultIndex]
}

// IsImage reports whether a MIME type belongs to the image family
func IsImage(mime string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mime)), "image/")
}

// Manager tracks the selected output format of a session
type Manager struct {
	mutex sync.RWMutex
	index int
}

// NewManager returns a manager with the default format selected
func NewManager() *Manager {
	return &Manager{
		index: DefaultIndex,
	}
}

// Detect selects the first format matching a MIME type, falling back to the default
func (m *Manager) Detect(mime string) int {
	mime = strings.ToLower(strings.TrimSpace(mime))

	index := DefaultIndex
	for i, s := range Settings {
		if s.MIME == mime {
			index = i
			break
		}
	}

	m.mutex.Lock()
	m.index = index
	m.mutex.Unlock()

	return index
}

// Cycle advances to the next format, wrapping around at the end of the list
func (m *Manager) Cycle() Setting {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.index = (m.index + 1) % len(Settings)
	return Settings[m.index]
}

// Select selects a format by index
func (m *Manager) Select(index int) error {
	if index < 0 || index >= len(Settings) {
		return fmt.Errorf("%w: index %d", ErrUnsupportedFormat, index)
	}

	m.mutex.Lock()
	m.index = index
	m.mutex.Unlock()

	return nil
}

// Index returns the index of the selected format
func (m *Manager) Index() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.index
}

// Current returns the selected format
func (m *Manager) Current() Setting {
	return Settings[m.Index()]
}

// Encode encodes img with the given setting
func Encode(w io.Writer, img image.Image, s Setting) error {
	switch s.MIME {
	case "image/png":
		return png.Encode(w, img)
	case "image/jpeg":
		quality := int(s.Quality * 100)
		if quality < 1 {
			quality = 1
		}
		if quality > 100 {
			quality = 100
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "image/bmp":
		return bmp.Encode(w, img)
	case "image/tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}

	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, s.MIME)
}

// EncodeWithFallback encodes img with the given setting, falling back to the default
// setting when the encoder does not support it. It returns the setting that was used.
func EncodeWithFallback(img image.Image, s Setting) ([]byte, Setting, error) {
	var buf bytes.Buffer

	err := Encode(&buf, img, s)
	if errors.Is(err, ErrUnsupportedFormat) {
		s = Default()
		buf.Reset()
		err = Encode(&buf, img, s)
	}

	if err != nil {
		return nil, s, err
	}

	if buf.Len() == 0 {
		return nil, s, fmt.Errorf("encoding %s produced no data", s.MIME)
	}

	return buf.Bytes(), s, nil
}

// Decode decodes an image and returns it together with its MIME type
func Decode(data []byte) (*image.NRGBA, string, error) {
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnknownImage
		}
		return nil, "", err
	}

	return ToNRGBA(img), "image/" + name, nil
}

// Sniff returns the MIME type of an encoded image without decoding its pixels
func Sniff(data []byte) (string, error) {
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return "", ErrUnknownImage
		}
		return "", err
	}

	return "image/" + name, nil
}

// ToNRGBA converts any image to a straight alpha image with its origin at 0,0
func ToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba
	}

	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}

	return out
}

// DefaultName is the base name of exports whose upload had no name
const DefaultName = "image"

// Filename returns the export filename for an upload name in format f.
// Exports are never hidden files, unnamed uploads are called DefaultName.
func Filename(name string, f Setting) string {
	base := strings.TrimLeft(TrimExtension(name), ".")
	if base == "" {
		base = DefaultName
	}

	return base + f.Extension
}

// TrimExtension removes the extension from a filename
func TrimExtension(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i > 0 {
		return filename[:i]
	}

	return filename
}
