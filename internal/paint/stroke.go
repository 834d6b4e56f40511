package paint

// StrokeState remembers the last pointer position of a stroke on a layer.
// An inactive stroke has no last position, so a new stroke never connects to the previous one.
type StrokeState struct {
	LastX  float64
	LastY  float64
	Active bool
}

// Begin starts a stroke at x, y
func (s *StrokeState) Begin(x, y float64) {
	s.LastX, s.LastY = x, y
	s.Active = true
}

// Move records x, y as the last position and returns the previous one.
// ok is false when no stroke is active.
func (s *StrokeState) Move(x, y float64) (prevX, prevY float64, ok bool) {
	if !s.Active {
		return 0, 0, false
	}

	prevX, prevY = s.LastX, s.LastY
	s.LastX, s.LastY = x, y
	return prevX, prevY, true
}

// End ends the stroke and forgets its last position
func (s *StrokeState) End() {
	*s = StrokeState{}
}
