// Package sampling turns audio frames into smoothed pitch readings at a fixed
// rate and keeps the rolling free-practice history.
package sampling

import (
	"time"

	"github.com/butaud/voice-trainer/internal/music"
	"github.com/butaud/voice-trainer/internal/pitch"
)

// Reading is the outcome of one sample. When Voiced is false the frame was
// silent, ambiguous or outside the band, and the remaining fields are zero.
type Reading struct {
	Voiced bool
	RawHz  float64
	Hz     float64
	Cents  float64
}

type Sampler struct {
	interval time.Duration
	est      *pitch.Estimator
	smoother *pitch.Smoother
	band     pitch.Band
	next     time.Time
}

func NewSampler(interval time.Duration, est *pitch.Estimator, smoother *pitch.Smoother, band pitch.Band) *Sampler {
	return &Sampler{interval: interval, est: est, smoother: smoother, band: band}
}

func (s *Sampler) Interval() time.Duration { return s.interval }

// Due reports whether a sample should be taken at now. Sample slots are
// phase-locked to the first sample after a reset, so the rate holds at
// interval whatever period the caller ticks at.
func (s *Sampler) Due(now time.Time) bool {
	return s.next.IsZero() || !now.Before(s.next)
}

// advance moves the next slot one interval on, skipping the slots a slow
// caller missed entirely.
func (s *Sampler) advance(now time.Time) {
	if s.next.IsZero() {
		s.next = now
	}
	s.next = s.next.Add(s.interval)
	if !now.Before(s.next) {
		missed := now.Sub(s.next)/s.interval + 1
		s.next = s.next.Add(missed * s.interval)
	}
}

// Sample estimates the frame's pitch and compares the smoothed value against
// targetHz. Only in-band estimates reach the smoother.
func (s *Sampler) Sample(now time.Time, f pitch.Frame, targetHz float64) Reading {
	s.advance(now)
	hz, ok := s.est.Estimate(f)
	if !ok || !s.band.Contains(hz) {
		return Reading{}
	}
	smoothed := s.smoother.Add(hz)
	r := Reading{Voiced: true, RawHz: hz, Hz: smoothed}
	if targetHz > 0 {
		r.Cents = music.Cents(smoothed, targetHz)
	}
	return r
}

// ResetSmoother drops the smoothing window, e.g. when the target note changes.
func (s *Sampler) ResetSmoother() { s.smoother.Reset() }

// Reset clears the smoothing window and the sample clock.
func (s *Sampler) Reset() {
	s.smoother.Reset()
	s.next = time.Time{}
}
