package music

import (
	"math"
	"testing"
)

func TestFrequencyReferencePoints(t *testing.T) {
	cases := []struct {
		note Note
		want float64
	}{
		{Note{A, 4}, 440},
		{Note{A, 3}, 220},
		{Note{C, 4}, 261.6255653005986},
		{Note{C, 3}, 130.8127826502993},
	}
	for _, tc := range cases {
		if got := tc.note.Frequency(); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%v frequency = %.12f, want %.12f", tc.note, got, tc.want)
		}
	}
}

func TestNearestNoteInvertsFrequency(t *testing.T) {
	for s := (Note{C, 1}).Semitone(); s <= (Note{C, 7}).Semitone(); s++ {
		n := FromSemitone(s)
		got, ok := NearestNote(n.Frequency())
		if !ok || got != n {
			t.Fatalf("NearestNote(%v) = %v (ok=%v)", n, got, ok)
		}
	}
}

func TestNearestNoteRejectsNonPositive(t *testing.T) {
	for _, f := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		if _, ok := NearestNote(f); ok {
			t.Fatalf("NearestNote(%v) should not be ok", f)
		}
	}
}

func TestRoundMIDIHalfAwayFromZero(t *testing.T) {
	cases := map[float64]int{
		60.5:   61,
		60.49:  60,
		69.5:   70,
		-0.5:   -1,
		59.501: 60,
	}
	for in, want := range cases {
		if got := roundMIDI(in); got != want {
			t.Fatalf("roundMIDI(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestNearestNoteQuarterToneBoundary(t *testing.T) {
	// 45 cents sharp of A4 still names A4; 55 cents sharp names A#4.
	a4 := Note{A, 4}.Frequency()
	if got, _ := NearestNote(a4 * math.Pow(2, 45.0/1200)); got != (Note{A, 4}) {
		t.Fatalf("45c sharp: got %v", got)
	}
	if got, _ := NearestNote(a4 * math.Pow(2, 55.0/1200)); got != (Note{ASharp, 4}) {
		t.Fatalf("55c sharp: got %v", got)
	}
}

func TestCents(t *testing.T) {
	for _, f := range []float64{80, 220, 440.5, 999} {
		if c := Cents(f, f); c != 0 {
			t.Fatalf("Cents(%v,%v) = %v", f, f, c)
		}
	}
	if c := Cents(880, 440); math.Abs(c-1200) > 1e-9 {
		t.Fatalf("octave = %v cents", c)
	}
	if c := Cents(220, 440); math.Abs(c+1200) > 1e-9 {
		t.Fatalf("octave down = %v cents", c)
	}
	prev := math.Inf(-1)
	for f := 200.0; f <= 300; f += 0.5 {
		c := Cents(f, 250)
		if c <= prev {
			t.Fatalf("cents not increasing at %v", f)
		}
		prev = c
	}
}

func TestClampCents(t *testing.T) {
	if ClampCents(250, 100) != 100 || ClampCents(-250, 100) != -100 || ClampCents(12.5, 100) != 12.5 {
		t.Fatalf("clamp mismatch")
	}
}
