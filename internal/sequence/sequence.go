package sequence

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptySequence   = errors.New("sequence has no notes")
	ErrPartMissing     = errors.New("referenced part missing")
	ErrUnknownSequence = errors.New("unknown sequence")
)

type Sequence struct {
	Name  string
	Notes []Note
}

// Validate rejects sequences that cannot be played.
func (s Sequence) Validate() error {
	if len(s.Notes) == 0 {
		return ErrEmptySequence
	}
	for i, n := range s.Notes {
		if n.Duration <= 0 {
			return fmt.Errorf("note %d (%s): non-positive duration %v", i+1, n.Label(), n.Duration)
		}
	}
	return nil
}

func (s Sequence) Len() int { return len(s.Notes) }

// Transpose returns a copy with every note shifted by k semitones.
func (s Sequence) Transpose(k int) Sequence {
	out := Sequence{Name: s.Name, Notes: make([]Note, len(s.Notes))}
	for i, n := range s.Notes {
		out.Notes[i] = n.Transpose(k)
	}
	return out
}

// Duration is the total tempo-adjusted length.
func (s Sequence) Duration(tempoPercent float64) time.Duration {
	var total time.Duration
	for _, n := range s.Notes {
		total += n.Scaled(tempoPercent)
	}
	return total
}

func (s Sequence) Labels() []string {
	out := make([]string, len(s.Notes))
	for i, n := range s.Notes {
		out[i] = n.Label()
	}
	return out
}
