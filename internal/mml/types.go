package mml

type EventType int

const (
	EventNote EventType = iota + 1
	EventRest
	EventTempo
)

// Event is one parsed command on a track timeline. Tick and Duration are in
// parser resolution units, where Resolution ticks make a whole note.
type Event struct {
	Type     EventType
	Tick     int
	Duration int
	Note     int // MIDI note number, EventNote only
	Value    int // BPM, EventTempo only
}

type Track struct {
	Events  []Event
	EndTick int
}

// Notes returns the note events of the track in order.
func (t Track) Notes() []Event {
	out := make([]Event, 0, len(t.Events))
	for _, e := range t.Events {
		if e.Type == EventNote {
			out = append(out, e)
		}
	}
	return out
}

type Score struct {
	Resolution int
	InitialBPM float64
	Tracks     []Track
}

type ParserConfig struct {
	Resolution     int
	DefaultBPM     float64
	DefaultLValue  int
	DefaultOctave  int
	MinOctave      int
	MaxOctave      int
	OctavePolarize int // +1: '>' raises the octave, -1: '<' raises it
}

// DefaultParserConfig uses scientific octave numbering, so "o4 a" is A4 (MIDI 69).
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		Resolution:     1920,
		DefaultBPM:     120,
		DefaultLValue:  4,
		DefaultOctave:  4,
		MinOctave:      0,
		MaxOctave:      8,
		OctavePolarize: 1,
	}
}
