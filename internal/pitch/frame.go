package pitch

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Frame is one block of normalized mono samples (≈[-1, 1]) captured at
// SampleRate. Frames are read once per sampling tick and never mutated.
type Frame struct {
	Samples    []float64
	SampleRate int
}

func (f Frame) Len() int { return len(f.Samples) }

// RMS returns the root mean square level of the frame.
func (f Frame) RMS() float64 {
	if len(f.Samples) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(f.Samples, f.Samples) / float64(len(f.Samples)))
}

// FrameFromFloat32 converts captured float32 samples into a Frame.
func FrameFromFloat32(samples []float32, sampleRate int) Frame {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s)
	}
	return Frame{Samples: out, SampleRate: sampleRate}
}

// Band is the plausible voice range. Estimates outside it are treated as
// unvoiced.
type Band struct {
	Min float64
	Max float64
}

// VoiceBand is the default 80–1000 Hz gate.
var VoiceBand = Band{Min: 80, Max: 1000}

func (b Band) Contains(hz float64) bool {
	return hz >= b.Min && hz <= b.Max
}

// FrameReader yields the most recent audio of an acquired input as frames.
// Close releases the underlying stream.
type FrameReader interface {
	ReadFrame(size int) (Frame, error)
	Close() error
}
