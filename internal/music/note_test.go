package music

import "testing"

func TestParseNoteNormalizesFlats(t *testing.T) {
	cases := []struct {
		in   string
		want Note
	}{
		{"A3", Note{A, 3}},
		{"C#4", Note{CSharp, 4}},
		{"Db4", Note{CSharp, 4}},
		{"Eb2", Note{DSharp, 2}},
		{"Bb3", Note{ASharp, 3}},
		{"Cb4", Note{B, 3}},
		{"B#3", Note{C, 4}},
		{"Fb4", Note{E, 4}},
		{"E#4", Note{F, 4}},
		{"G♭5", Note{FSharp, 5}},
		{"g-1", Note{G, -1}},
	}
	for _, tc := range cases {
		got, err := ParseNote(tc.in)
		if err != nil {
			t.Fatalf("ParseNote(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseNote(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseNoteRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "H4", "C", "4", "C#x", "Cbb4"} {
		if _, err := ParseNote(in); err == nil {
			t.Fatalf("ParseNote(%q) should fail", in)
		}
	}
}

func TestSemitoneRoundTripNegative(t *testing.T) {
	for s := -30; s <= 120; s++ {
		n := FromSemitone(s)
		if !n.Letter.Valid() {
			t.Fatalf("semitone %d produced invalid letter %d", s, n.Letter)
		}
		if n.Semitone() != s {
			t.Fatalf("semitone %d round-tripped to %d (%v)", s, n.Semitone(), n)
		}
	}
	if got := FromSemitone(-1); got != (Note{B, -1}) {
		t.Fatalf("FromSemitone(-1) = %v, want B-1", got)
	}
}

func TestTransposeIsInvertible(t *testing.T) {
	start := Note{C, 3}
	for k := -40; k <= 40; k++ {
		if got := start.Transpose(k).Transpose(-k); got != start {
			t.Fatalf("transpose %+d and back gave %v", k, got)
		}
	}
	if got := (Note{B, 3}).Transpose(1); got != (Note{C, 4}) {
		t.Fatalf("B3+1 = %v, want C4", got)
	}
	if got := (Note{C, 0}).Transpose(-1); got != (Note{B, -1}) {
		t.Fatalf("C0-1 = %v, want B-1", got)
	}
}

func TestNoteString(t *testing.T) {
	if s := (Note{FSharp, 2}).String(); s != "F#2" {
		t.Fatalf("got %q", s)
	}
	if s := (Note{A, -1}).String(); s != "A-1" {
		t.Fatalf("got %q", s)
	}
}
