package voicetrainer

import (
	"context"
	"time"

	"github.com/butaud/voice-trainer/internal/music"
	"github.com/butaud/voice-trainer/internal/pitch"
	intsamp "github.com/butaud/voice-trainer/internal/sampling"
	"github.com/butaud/voice-trainer/internal/score"
	intseq "github.com/butaud/voice-trainer/internal/sequencer"
)

const (
	// InTuneCents is the live "in tune" zone of the meter. Scoring uses the
	// wider score.OnPitchTolerance.
	InTuneCents = 10.0
	// DisplayRangeCents bounds the meter needle.
	DisplayRangeCents = 100.0
)

// TickResult is everything a front end needs to draw one frame.
type TickResult struct {
	Time  time.Time
	Mode  Mode
	State intseq.State

	Sampled      bool
	Voiced       bool
	RawHz        float64
	Hz           float64
	Cents        float64
	DisplayCents float64
	InTune       bool

	Target   string
	TargetHz float64

	NoteIndex      int
	NoteCount      int
	Elapsed        time.Duration
	Total          time.Duration
	CountdownBeats int

	Scores []score.NoteScore
	Result *score.Result

	Spectrum []float64
}

type silencer interface{ Silence() }

// Tick drives the session at now: a pending stop is applied first, then the
// scheduler advances, then at most one pitch sample is taken if one is due.
// The result is also passed to the render sink.
func (s *Session) Tick(now time.Time) TickResult {
	res := TickResult{Time: now}
	switch {
	case s.mode != ModeIdle && s.stop.Load():
		s.stopRun()
	case s.mode == ModePractice:
		s.tickPractice(now, &res)
	case s.mode == ModeChallenge:
		s.tickChallenge(now, &res)
	}
	res.Mode = s.mode
	res.State = s.State()
	if s.sched != nil {
		res.Scores = s.sched.Scores()
		res.NoteCount = s.sched.Sequence().Len()
		res.NoteIndex = s.sched.Index()
	}
	if s.result != nil {
		r := *s.result
		res.Result = &r
	}
	if s.sink != nil {
		s.sink.Render(res)
	}
	return res
}

func (s *Session) tickPractice(now time.Time, res *TickResult) {
	res.Target = s.target.String()
	res.TargetHz = s.target.Frequency()
	if !s.sampler.Due(now) {
		s.fillReading(res, s.last, false)
		return
	}
	r := s.sample(now, res.TargetHz, res)
	s.history.PushReading(r)
	s.fillReading(res, r, true)
}

func (s *Session) tickChallenge(now time.Time, res *TickResult) {
	state := s.sched.Tick(now)
	switch state {
	case intseq.CountingDown:
		res.CountdownBeats = s.sched.CountdownRemaining(now)
		return
	case intseq.Finished:
		s.mode = ModeIdle
		s.release()
		return
	}
	n, _ := s.sched.CurrentNote()
	res.Target = n.Label()
	res.TargetHz = n.Frequency()
	res.Elapsed, res.Total = s.sched.NoteProgress(now)
	if !s.sampler.Due(now) {
		s.fillReading(res, s.last, false)
		return
	}
	r := s.sample(now, res.TargetHz, res)
	s.sched.Observe(r.Cents, r.Voiced, s.sampler.Interval())
	s.fillReading(res, r, true)
}

func (s *Session) sample(now time.Time, targetHz float64, res *TickResult) intsamp.Reading {
	frame, err := s.reader.ReadFrame(s.cfg.FrameSize)
	if err != nil {
		s.logger.Warn("read frame", "err", err)
		frame = pitch.Frame{}
	}
	r := s.sampler.Sample(now, frame, targetHz)
	s.last = r
	if s.spectrum && frame.Len() > 0 {
		res.Spectrum = pitch.Spectrum(frame)
	}
	return r
}

func (s *Session) fillReading(res *TickResult, r intsamp.Reading, sampled bool) {
	res.Sampled = sampled
	res.Voiced = r.Voiced
	if !r.Voiced {
		return
	}
	res.RawHz = r.RawHz
	res.Hz = r.Hz
	res.Cents = r.Cents
	res.DisplayCents = music.ClampCents(r.Cents, DisplayRangeCents)
	res.InTune = r.Cents >= -InTuneCents && r.Cents <= InTuneCents
}

func (s *Session) stopRun() {
	if s.mode == ModeChallenge && s.sched != nil {
		s.sched.Stop()
	}
	if sil, ok := s.tones.(silencer); ok {
		sil.Silence()
	}
	s.logger.Info("session stopped", "mode", s.mode.String())
	s.mode = ModeIdle
	s.stop.Store(false)
	s.release()
}

// Run ticks the session every interval until the current run ends or ctx is
// done. A cancelled context stops the run.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for s.mode != ModeIdle {
		select {
		case <-ctx.Done():
			s.Stop()
			s.Tick(time.Now())
			return ctx.Err()
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
	return nil
}
