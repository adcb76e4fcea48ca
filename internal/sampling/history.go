package sampling

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Entry is one history point. A gap (Voiced false) breaks the trace; it is
// never interpolated across.
type Entry struct {
	Voiced bool
	Cents  float64
	Hz     float64
}

func Gap() Entry { return Entry{} }

// History is a fixed-capacity ring of entries, oldest evicted first.
type History struct {
	buf   []Entry
	start int
	n     int
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]Entry, capacity)}
}

func (h *History) Cap() int { return len(h.buf) }
func (h *History) Len() int { return h.n }

func (h *History) Push(e Entry) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = e
		h.n++
		return
	}
	h.buf[h.start] = e
	h.start = (h.start + 1) % len(h.buf)
}

// PushReading appends a reading, recording a gap when it is unvoiced.
func (h *History) PushReading(r Reading) {
	if !r.Voiced {
		h.Push(Gap())
		return
	}
	h.Push(Entry{Voiced: true, Cents: r.Cents, Hz: r.Hz})
}

// Snapshot returns the entries oldest to newest.
func (h *History) Snapshot() []Entry {
	out := make([]Entry, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

func (h *History) Reset() {
	h.start, h.n = 0, 0
}

type Stats struct {
	Samples      int
	Voiced       int
	VoicedRatio  float64
	MeanAbsCents float64
	InTune       int // voiced entries within the given tolerance
}

// Stats summarizes the window. tolerance is in cents.
func (h *History) Stats(tolerance float64) Stats {
	st := Stats{Samples: h.n}
	abs := make([]float64, 0, h.n)
	for _, e := range h.Snapshot() {
		if !e.Voiced {
			continue
		}
		a := math.Abs(e.Cents)
		abs = append(abs, a)
		if a <= tolerance {
			st.InTune++
		}
	}
	st.Voiced = len(abs)
	if h.n > 0 {
		st.VoicedRatio = float64(st.Voiced) / float64(h.n)
	}
	if len(abs) > 0 {
		st.MeanAbsCents = stat.Mean(abs, nil)
	}
	return st
}
