package sequencer

import (
	"testing"
	"time"

	"github.com/butaud/voice-trainer/internal/sequence"
)

func BenchmarkSchedulerRun(b *testing.B) {
	seq, err := sequence.NewLibrary().Get("twinkle", 0)
	if err != nil {
		b.Fatalf("library: %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s, _ := New(seq)
		now := time.Unix(0, 0)
		_ = s.Start(now)
		for s.State().Active() {
			now = now.Add(frame)
			s.Tick(now)
			s.Observe(3, true, frame)
		}
	}
}
