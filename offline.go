package voicetrainer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/butaud/voice-trainer/internal/clip"
	intcfg "github.com/butaud/voice-trainer/internal/config"
	"github.com/butaud/voice-trainer/internal/score"
	"github.com/butaud/voice-trainer/internal/sequence"
	"github.com/butaud/voice-trainer/internal/synth"
)

// RenderSequence synthesizes seq at tempoPercent as mono samples, each note
// occupying exactly its scaled duration.
func RenderSequence(seq sequence.Sequence, tempoPercent float64, sampleRate int, params synth.Params) []float64 {
	tones := synth.NewTones(sampleRate, params)
	tones.SetDispatch(func(fn func()) { fn() })
	var out []float64
	for _, n := range seq.Notes {
		frames := int(n.Scaled(tempoPercent).Seconds() * float64(sampleRate))
		if frames < 1 {
			continue
		}
		tones.PlayTone(n.Frequency(), n.Scaled(tempoPercent), nil)
		buf := make([]float32, frames*2)
		tones.Process(buf)
		for i := 0; i < len(buf); i += 2 {
			out = append(out, float64(buf[i]))
		}
	}
	return out
}

// ScoreRecording runs a challenge over a recorded take on a virtual clock, as
// if it had been sung live with no lead-in. The take is aligned so that its
// first sample is the start of the first note.
func ScoreRecording(ctx context.Context, take *clip.Clip, seq sequence.Sequence, cfg intcfg.Config, opts ...Option) (score.Result, error) {
	if take.SampleRate != cfg.SampleRate {
		cfg.SampleRate = take.SampleRate
	}
	cfg.CountdownBeats = 0
	cfg.GuideTones = false
	reader := take.Reader()
	s, err := NewSession(reader, append(opts, WithConfig(cfg))...)
	if err != nil {
		return score.Result{}, err
	}
	defer s.Close()
	if err := s.SetSequence(seq); err != nil {
		return score.Result{}, err
	}

	interval := cfg.SampleInterval()
	frameDur := time.Duration(float64(cfg.FrameSize) / float64(take.SampleRate) * float64(time.Second))
	t0 := time.Unix(0, 0)
	if err := s.StartChallenge(ctx, t0); err != nil {
		return score.Result{}, err
	}
	limit := int(seq.Duration(s.Tempo())/interval)*2 + 100
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return score.Result{}, err
		}
		elapsed := time.Duration(i) * interval
		reader.SetPosition(elapsed + frameDur)
		res := s.Tick(t0.Add(elapsed))
		if res.Result != nil {
			return *res.Result, nil
		}
		if res.Mode == ModeIdle {
			return score.Result{}, errors.New("recording run ended without a result")
		}
	}
	return score.Result{}, fmt.Errorf("recording run did not finish after %d ticks", limit)
}
