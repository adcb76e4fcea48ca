package sequence

import (
	"math"
	"time"

	"github.com/butaud/voice-trainer/internal/music"
)

type NoteType int

const (
	Whole NoteType = iota
	Half
	Quarter
	Eighth
	Sixteenth
)

var noteTypeNames = [...]string{"whole", "half", "quarter", "eighth", "sixteenth"}

func (t NoteType) String() string {
	if t < Whole || t > Sixteenth {
		return "unknown"
	}
	return noteTypeNames[t]
}

// Beats is the undotted length in quarter-note beats.
func (t NoteType) Beats() float64 {
	switch t {
	case Whole:
		return 4
	case Half:
		return 2
	case Eighth:
		return 0.5
	case Sixteenth:
		return 0.25
	default:
		return 1
	}
}

// Note is one step of a sequence. Duration is the length at 100% tempo; Type
// and Dotted are notation hints used for display and beat inference only.
type Note struct {
	Pitch    music.Note
	Duration time.Duration
	Type     NoteType
	Dotted   bool
}

// N builds a note from a name like "C#4".
func N(name string, d time.Duration, typ NoteType, dotted bool) (Note, error) {
	p, err := music.ParseNote(name)
	if err != nil {
		return Note{}, err
	}
	return Note{Pitch: p, Duration: d, Type: typ, Dotted: dotted}, nil
}

func (n Note) Label() string        { return n.Pitch.String() }
func (n Note) Frequency() float64   { return n.Pitch.Frequency() }
func (n Note) Transpose(k int) Note { n.Pitch = n.Pitch.Transpose(k); return n }

// Scaled returns the note length at the given tempo percentage.
func (n Note) Scaled(tempoPercent float64) time.Duration {
	return ScaleDuration(n.Duration, tempoPercent)
}

// BeatInterval infers the length of one quarter-note beat from this note's
// notated type, with any dot removed first.
func (n Note) BeatInterval(tempoPercent float64) time.Duration {
	d := float64(n.Scaled(tempoPercent))
	if n.Dotted {
		d /= 1.5
	}
	return time.Duration(math.Round(d / n.Type.Beats()))
}

// ScaleDuration applies duration*(100/tempoPercent). Non-positive tempos are
// treated as 100%.
func ScaleDuration(d time.Duration, tempoPercent float64) time.Duration {
	if tempoPercent <= 0 {
		tempoPercent = 100
	}
	return time.Duration(math.Round(float64(d) * 100 / tempoPercent))
}

// classify maps a length in quarter-note beats to the closest notated type,
// preferring a plain value over a dotted one on ties.
func classify(beats float64) (NoteType, bool) {
	best, dotted := Quarter, false
	bestErr := math.Inf(1)
	for t := Whole; t <= Sixteenth; t++ {
		for _, dot := range []bool{false, true} {
			want := t.Beats()
			if dot {
				want *= 1.5
			}
			e := math.Abs(math.Log(beats / want))
			if e < bestErr-1e-9 {
				best, dotted, bestErr = t, dot, e
			}
		}
	}
	return best, dotted
}
