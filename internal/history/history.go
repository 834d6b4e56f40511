package history

import (
	"bytes"
	"errors"
	"image"
	"sync"
)

// Errors
var (
	ErrEmptyBitmap = errors.New("bitmap has no pixels")
)

// Bitmap is an immutable committed raster snapshot
type Bitmap struct {
	width  int
	height int
	pix    []uint8
}

// NewBitmap returns a bitmap holding a copy of the pixels of img
func NewBitmap(img *image.NRGBA) (*Bitmap, error) {
	if img == nil || img.Rect.Empty() {
		return nil, ErrEmptyBitmap
	}

	width, height := img.Rect.Dx(), img.Rect.Dy()
	rowLength := width * 4
	pix := make([]uint8, rowLength*height)
	for y := 0; y < height; y++ {
		offset := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(pix[y*rowLength:(y+1)*rowLength], img.Pix[offset:offset+rowLength])
	}

	return &Bitmap{
		width:  width,
		height: height,
		pix:    pix,
	}, nil
}

// Width returns the width in pixels
func (b *Bitmap) Width() int {
	return b.width
}

// Height returns the height in pixels
func (b *Bitmap) Height() int {
	return b.height
}

// Image returns a copy of the bitmap as an image, safe to modify
func (b *Bitmap) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.width, b.height))
	copy(img.Pix, b.pix)
	return img
}

// Equal reports whether two bitmaps hold identical pixels
func (b *Bitmap) Equal(other *Bitmap) bool {
	if b == nil || other == nil {
		return b == other
	}

	return b.width == other.width && b.height == other.height && bytes.Equal(b.pix, other.pix)
}

// Stack is the edit history of a session.
// Entry 0 is the image as it was loaded and is never removed by Undo.
type Stack struct {
	mutex    sync.RWMutex
	entries  []*Bitmap
	onChange func(length int)
}

// New returns a stack holding the initial bitmap as its sentinel entry
func New(initial *Bitmap) *Stack {
	return &Stack{
		entries: []*Bitmap{initial},
	}
}

// OnChange registers a function called with the new length after every push or pop
func (s *Stack) OnChange(f func(length int)) {
	s.mutex.Lock()
	s.onChange = f
	s.mutex.Unlock()
}

func (s *Stack) notify(length int) {
	s.mutex.RLock()
	f := s.onChange
	s.mutex.RUnlock()

	if f != nil {
		f(length)
	}
}

// Reset discards every entry and starts over from a new sentinel
func (s *Stack) Reset(initial *Bitmap) {
	s.mutex.Lock()
	s.entries = []*Bitmap{initial}
	s.mutex.Unlock()

	s.notify(1)
}

// Push appends a committed bitmap
func (s *Stack) Push(b *Bitmap) {
	s.mutex.Lock()
	s.entries = append(s.entries, b)
	length := len(s.entries)
	s.mutex.Unlock()

	s.notify(length)
}

// Undo removes the most recent entry, if it is not the sentinel, and returns the bitmap to show
func (s *Stack) Undo() *Bitmap {
	s.mutex.Lock()

	var top *Bitmap
	switch length := len(s.entries); {
	case length == 1:
		// Nothing to remove, show the sentinel again
		top = s.entries[0]
	case length == 2:
		s.entries = s.entries[:1]
		top = s.entries[0]
	default:
		s.entries[length-1] = nil
		s.entries = s.entries[:length-1]
		top = s.entries[length-2]
	}

	length := len(s.entries)
	s.mutex.Unlock()

	s.notify(length)
	return top
}

// Top returns the most recent entry
func (s *Stack) Top() *Bitmap {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.entries[len(s.entries)-1]
}

// Len returns the number of entries, the sentinel included
func (s *Stack) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.entries)
}

// At returns the entry at index i, or nil if it does not exist
func (s *Stack) At(i int) *Bitmap {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if i < 0 || i >= len(s.entries) {
		return nil
	}

	return s.entries[i]
}

// UndoEnabled reports whether undo should be offered for a history length
func UndoEnabled(length int, paintMode bool) bool {
	return length > 1 && !paintMode
}

// UndoEnabled reports whether undo should be offered for the stack
func (s *Stack) UndoEnabled(paintMode bool) bool {
	return UndoEnabled(s.Len(), paintMode)
}
