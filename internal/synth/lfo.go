package synth

import "math"

// lfo is the vibrato oscillator shared by all voices. Its output is in cents.
type lfo struct {
	depth  float64
	rateHz float64
	phase  float64 // [0, 1)
}

func (l *lfo) set(depth, rateHz float64) {
	l.depth = depth
	l.rateHz = rateHz
}

// sample advances one sample and returns a value in [-depth, +depth].
// Returns 0 if depth or rate is zero.
func (l *lfo) sample(sampleRate float64) float64 {
	if !l.active() || sampleRate == 0 {
		return 0
	}
	v := math.Sin(twoPi * l.phase)
	l.phase += l.rateHz / sampleRate
	for l.phase >= 1 {
		l.phase--
	}
	return v * l.depth
}

func (l *lfo) active() bool {
	return l.depth != 0 && l.rateHz != 0
}

func (l *lfo) reset() {
	l.phase = 0
}
