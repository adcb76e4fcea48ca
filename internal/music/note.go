package music

import (
	"fmt"
	"strconv"
	"strings"
)

// Letter is a chromatic pitch class spelled with sharps.
type Letter int

const (
	C Letter = iota
	CSharp
	D
	DSharp
	E
	F
	FSharp
	G
	GSharp
	A
	ASharp
	B
)

var letterNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func (l Letter) String() string {
	if !l.Valid() {
		return "?"
	}
	return letterNames[l]
}

func (l Letter) Valid() bool {
	return l >= C && l <= B
}

// Note is a pitch class plus octave in scientific pitch notation (A4 = 440 Hz).
type Note struct {
	Letter Letter
	Octave int
}

// Semitone returns the absolute semitone index octave*12 + chromatic index.
func (n Note) Semitone() int {
	return n.Octave*12 + int(n.Letter)
}

// FromSemitone is the inverse of Note.Semitone. Negative indexes are
// handled with floor division so the letter is always in range.
func FromSemitone(s int) Note {
	return Note{Letter: Letter(mod(s, 12)), Octave: floorDiv(s, 12)}
}

func (n Note) MIDI() int {
	return (n.Octave+1)*12 + int(n.Letter)
}

func FromMIDI(m int) Note {
	return FromSemitone(m - 12)
}

// Transpose shifts the note by k semitones.
func (n Note) Transpose(k int) Note {
	return FromSemitone(n.Semitone() + k)
}

func (n Note) String() string {
	return n.Letter.String() + strconv.Itoa(n.Octave)
}

type spelling struct {
	letter Letter
	shift  int // octave adjustment when the spelling crosses B/C
}

// spellings is the closed set of accepted note names. Flats and the
// enharmonic edge cases are folded onto the sharp spelling here.
var spellings = map[string]spelling{
	"C": {C, 0}, "C#": {CSharp, 0}, "Db": {CSharp, 0},
	"D": {D, 0}, "D#": {DSharp, 0}, "Eb": {DSharp, 0},
	"E": {E, 0}, "Fb": {E, 0}, "E#": {F, 0},
	"F": {F, 0}, "F#": {FSharp, 0}, "Gb": {FSharp, 0},
	"G": {G, 0}, "G#": {GSharp, 0}, "Ab": {GSharp, 0},
	"A": {A, 0}, "A#": {ASharp, 0}, "Bb": {ASharp, 0},
	"B": {B, 0}, "Cb": {B, -1}, "B#": {C, 1},
}

// Spell maps a note name (e.g. "Bb", "C#", "Cb") and octave to its
// canonical sharp spelling.
func Spell(name string, octave int) (Note, error) {
	sp, ok := spellings[normalizeName(name)]
	if !ok {
		return Note{}, fmt.Errorf("unknown note name %q", name)
	}
	return Note{Letter: sp.letter, Octave: octave + sp.shift}, nil
}

// ParseNote parses names like "A3", "C#4", "Eb2", "Cb4" or "G-1".
func ParseNote(s string) (Note, error) {
	s = strings.TrimSpace(s)
	split := len(s)
	for i := 1; i < len(s); i++ {
		if s[i] == '-' || (s[i] >= '0' && s[i] <= '9') {
			split = i
			break
		}
	}
	if split == 0 || split == len(s) {
		return Note{}, fmt.Errorf("invalid note %q", s)
	}
	octave, err := strconv.Atoi(s[split:])
	if err != nil {
		return Note{}, fmt.Errorf("invalid octave in %q: %w", s, err)
	}
	return Spell(s[:split], octave)
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "♯", "#")
	name = strings.ReplaceAll(name, "♭", "b")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}

func floorDiv(a, n int) int {
	q := a / n
	if a%n != 0 && (a < 0) != (n < 0) {
		q--
	}
	return q
}
