package mml

import (
	"math"
	"testing"
)

func noteNumbers(tr Track) []int {
	notes := []int{}
	for _, e := range tr.Notes() {
		notes = append(notes, e.Note)
	}
	return notes
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParseNoteByNumber(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	score, err := p.Parse("o5 l4 n60n64n67")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	notes := noteNumbers(score.Tracks[0])
	if !equalInts(notes, []int{60, 64, 67}) {
		t.Fatalf("expected MIDI notes 60,64,67, got %v", notes)
	}
}

func TestParseBasicMelody(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	score, err := p.Parse("t120 o4 l4 cdefgab>c;")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(score.Tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(score.Tracks))
	}
	notes := noteNumbers(score.Tracks[0])
	want := []int{60, 62, 64, 65, 67, 69, 71, 72}
	if !equalInts(notes, want) {
		t.Fatalf("expected %v, got %v", want, notes)
	}
	if score.Tracks[0].EndTick != 8*480 {
		t.Fatalf("expected end tick %d, got %d", 8*480, score.Tracks[0].EndTick)
	}
	if score.InitialBPM != 120 {
		t.Fatalf("expected initial bpm 120, got %v", score.InitialBPM)
	}
}

func TestParseAccidentals(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	score, err := p.Parse("o4 c# d+ e- b-")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	notes := noteNumbers(score.Tracks[0])
	if !equalInts(notes, []int{61, 63, 63, 70}) {
		t.Fatalf("unexpected accidentals: %v", notes)
	}
}

func TestParseLengthsDotsAndTies(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	score, err := p.Parse("c2 c8 c4. c4^8 l16 c")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	want := []int{960, 240, 720, 720, 120}
	notes := score.Tracks[0].Notes()
	if len(notes) != len(want) {
		t.Fatalf("expected %d notes, got %d", len(want), len(notes))
	}
	tick := 0
	for i, n := range notes {
		if n.Duration != want[i] {
			t.Fatalf("note %d: expected duration %d, got %d", i, want[i], n.Duration)
		}
		if n.Tick != tick {
			t.Fatalf("note %d: expected tick %d, got %d", i, tick, n.Tick)
		}
		tick += n.Duration
	}
}

func TestParseAmpersandJoinsSamePitch(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	score, err := p.Parse("c4&c4 d4&e4")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	notes := score.Tracks[0].Notes()
	if len(notes) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(notes))
	}
	if notes[0].Duration != 960 {
		t.Fatalf("expected tied note of 960 ticks, got %d", notes[0].Duration)
	}
}

func TestParseRestsAdvanceTime(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	score, err := p.Parse("c r2 d")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	notes := score.Tracks[0].Notes()
	if len(notes) != 2 || notes[1].Tick != 480+960 {
		t.Fatalf("expected second note after rest at tick %d, got %+v", 480+960, notes)
	}
}

func TestParseLoopAlternate(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	score, err := p.Parse("o4 l8 [cdef|gab]2")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if n := len(score.Tracks[0].Notes()); n != 11 {
		t.Fatalf("expected 11 notes from alternate loop, got %d", n)
	}
}

func TestParseNestedLoop(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	score, err := p.Parse("[c[d]3]2")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if n := len(score.Tracks[0].Notes()); n != 8 {
		t.Fatalf("expected 8 notes, got %d", n)
	}
}

func TestParseOctaveShiftClampedToParserRange(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	score, err := p.Parse("o8 >>c o0 <<c")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	notes := noteNumbers(score.Tracks[0])
	if !equalInts(notes, []int{108, 12}) {
		t.Fatalf("expected clamped octaves, got %v", notes)
	}
}

func TestParseReversedOctavePolarity(t *testing.T) {
	cfg := DefaultParserConfig()
	cfg.OctavePolarize = -1
	score, err := NewParser(cfg).Parse("o4 <c")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if notes := noteNumbers(score.Tracks[0]); notes[0] != 72 {
		t.Fatalf("expected '<' to raise octave, got %v", notes)
	}
}

func TestParseMultitrackAndTempo(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	score, err := p.Parse("t90 cde; t140 o3 g")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(score.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(score.Tracks))
	}
	if score.InitialBPM != 90 {
		t.Fatalf("expected initial bpm from first track, got %v", score.InitialBPM)
	}
	if notes := noteNumbers(score.Tracks[1]); !equalInts(notes, []int{55}) {
		t.Fatalf("unexpected second track: %v", notes)
	}
}

func TestParseWithLineAndBlockComments(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	score, err := p.Parse("c /* d e */ f // g\na")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if notes := noteNumbers(score.Tracks[0]); !equalInts(notes, []int{60, 65, 69}) {
		t.Fatalf("comments not stripped: %v", notes)
	}
}

func TestParseSkipsUnknownCommands(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	score, err := p.Parse("@3 v12 q6 c")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if notes := noteNumbers(score.Tracks[0]); !equalInts(notes, []int{60}) {
		t.Fatalf("expected single note, got %v", notes)
	}
}

func TestParseErrors(t *testing.T) {
	p := NewParser(DefaultParserConfig())
	for _, src := range []string{"o9 c", "[cd", "cd]", "c0", "t0 c"} {
		if _, err := p.Parse(src); err == nil {
			t.Fatalf("expected error for %q", src)
		}
	}
}

func TestTicksToDuration(t *testing.T) {
	if got := TicksToDuration(480, 1920, 60); math.Abs(got-1) > 1e-12 {
		t.Fatalf("quarter at 60 bpm: expected 1s, got %v", got)
	}
	if got := TicksToDuration(1920, 1920, 120); math.Abs(got-2) > 1e-12 {
		t.Fatalf("whole at 120 bpm: expected 2s, got %v", got)
	}
	if got := TicksToDuration(480, 1920, 0); got != 0 {
		t.Fatalf("expected 0 for invalid tempo, got %v", got)
	}
}
