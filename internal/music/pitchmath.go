package music

import "math"

const (
	ReferenceHz   = 440.0
	ReferenceMIDI = 69
)

// Frequency returns the equal-tempered frequency of n.
func (n Note) Frequency() float64 {
	return MIDIFrequency(n.MIDI())
}

func MIDIFrequency(m int) float64 {
	return ReferenceHz * math.Pow(2, float64(m-ReferenceMIDI)/12)
}

// Cents returns 1200*log2(detected/target). Positive means sharp.
func Cents(detected, target float64) float64 {
	return 1200 * math.Log2(detected/target)
}

// NearestNote returns the equal-tempered note closest to freq. ok is false
// for non-positive frequencies.
func NearestNote(freq float64) (Note, bool) {
	if freq <= 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return Note{}, false
	}
	return FromMIDI(roundMIDI(12*math.Log2(freq/ReferenceHz) + ReferenceMIDI)), true
}

// roundMIDI rounds half away from zero (x.5 goes up for positive pitches).
func roundMIDI(x float64) int {
	return int(math.Round(x))
}

// ClampCents limits c to ±limit for display. Scoring uses the raw value.
func ClampCents(c, limit float64) float64 {
	if c > limit {
		return limit
	}
	if c < -limit {
		return -limit
	}
	return c
}
