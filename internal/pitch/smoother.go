package pitch

import "sort"

const DefaultSmoothingWindow = 5

// Smoother is a rolling median over the last few voiced estimates. It
// removes single-frame octave jumps without the lag of a mean filter.
// Callers feed only voiced, in-band values.
type Smoother struct {
	size    int
	window  []float64
	scratch []float64
}

func NewSmoother(size int) *Smoother {
	if size <= 0 {
		size = DefaultSmoothingWindow
	}
	return &Smoother{
		size:    size,
		window:  make([]float64, 0, size),
		scratch: make([]float64, 0, size),
	}
}

// Add pushes hz and returns the median of the window. With fewer than three
// values the input is returned unchanged. Even-length windows return the
// upper median.
func (s *Smoother) Add(hz float64) float64 {
	if len(s.window) == s.size {
		copy(s.window, s.window[1:])
		s.window = s.window[:s.size-1]
	}
	s.window = append(s.window, hz)
	if len(s.window) < 3 {
		return hz
	}
	s.scratch = append(s.scratch[:0], s.window...)
	sort.Float64s(s.scratch)
	return s.scratch[len(s.scratch)/2]
}

func (s *Smoother) Len() int { return len(s.window) }

func (s *Smoother) Reset() {
	s.window = s.window[:0]
}
