package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

type rampSource struct{ next float32 }

func (s *rampSource) Process(dst []float32) {
	for i := range dst {
		dst[i] = s.next
		s.next += 0.25
	}
}

func TestStreamReaderEncodesFloat32LE(t *testing.T) {
	r := NewStreamReader(&rampSource{})
	p := make([]byte, 8*2+3) // two stereo frames plus a partial
	n, err := r.Read(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 16 {
		t.Fatalf("expected 16 bytes, got %d", n)
	}
	for i, want := range []float32{0, 0.25, 0.5, 0.75} {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if got != want {
			t.Fatalf("sample %d: expected %v, got %v", i, want, got)
		}
	}
	if n, _ := r.Read(make([]byte, 7)); n != 0 {
		t.Fatalf("expected no bytes for a partial frame, got %d", n)
	}
}

func TestRingLatest(t *testing.T) {
	r := NewRing(4)
	dst := make([]float32, 3)
	if n := r.Latest(dst); n != 0 || dst[0] != 0 {
		t.Fatalf("expected empty ring, got %d %v", n, dst)
	}
	r.Write([]float32{1, 2})
	if n := r.Latest(dst); n != 2 || dst[0] != 0 || dst[1] != 1 || dst[2] != 2 {
		t.Fatalf("expected zero-padded front, got %d %v", n, dst)
	}
	r.Write([]float32{3, 4, 5})
	r.Latest(dst)
	if dst[0] != 3 || dst[1] != 4 || dst[2] != 5 {
		t.Fatalf("expected newest samples, got %v", dst)
	}
	r.Write([]float32{6, 7, 8, 9, 10, 11})
	big := make([]float32, 6)
	if n := r.Latest(big); n != 4 || big[2] != 8 || big[5] != 11 {
		t.Fatalf("expected capacity-limited copy, got %d %v", n, big)
	}
}
