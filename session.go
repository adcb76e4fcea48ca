// Package voicetrainer is a vocal pitch trainer: free practice against a
// target note and scored sequence challenges.
package voicetrainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	intcfg "github.com/butaud/voice-trainer/internal/config"
	"github.com/butaud/voice-trainer/internal/music"
	"github.com/butaud/voice-trainer/internal/pitch"
	intsamp "github.com/butaud/voice-trainer/internal/sampling"
	"github.com/butaud/voice-trainer/internal/score"
	"github.com/butaud/voice-trainer/internal/sequence"
	intseq "github.com/butaud/voice-trainer/internal/sequencer"
)

// AudioInput opens the capture stream. Acquire may fail, e.g. when no device
// is present or permission is denied.
type AudioInput interface {
	Acquire(ctx context.Context) (pitch.FrameReader, error)
}

// ToneOutput plays reference tones. PlayTone must not block; onComplete, if
// set, fires once after the tone ends.
type ToneOutput interface {
	PlayTone(freq float64, dur time.Duration, onComplete func())
	Click()
}

// RenderSink receives every tick result.
type RenderSink interface {
	Render(TickResult)
}

// RenderFunc adapts a function to RenderSink.
type RenderFunc func(TickResult)

func (f RenderFunc) Render(r TickResult) { f(r) }

type Mode int

const (
	ModeIdle Mode = iota
	ModePractice
	ModeChallenge
)

func (m Mode) String() string {
	switch m {
	case ModePractice:
		return "practice"
	case ModeChallenge:
		return "challenge"
	default:
		return "idle"
	}
}

type Option func(*sessionConfig)

type sessionConfig struct {
	cfg      intcfg.Config
	logger   *slog.Logger
	tones    ToneOutput
	sink     RenderSink
	spectrum bool
	library  *sequence.Library
}

func WithConfig(cfg intcfg.Config) Option {
	return func(c *sessionConfig) { c.cfg = cfg }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *sessionConfig) { c.logger = l }
}

// WithToneOutput enables reference tones, countdown clicks and guide tones.
func WithToneOutput(t ToneOutput) Option {
	return func(c *sessionConfig) { c.tones = t }
}

func WithRenderSink(s RenderSink) Option {
	return func(c *sessionConfig) { c.sink = s }
}

// WithLibrary shares a sequence library with the session. By default each
// session gets its own.
func WithLibrary(lib *sequence.Library) Option {
	return func(c *sessionConfig) { c.library = lib }
}

// WithSpectrum attaches a magnitude spectrum of each sampled frame to the
// tick result.
func WithSpectrum(enabled bool) Option {
	return func(c *sessionConfig) { c.spectrum = enabled }
}

// Session owns one trainer: its input, sequence, sampler and scheduler.
// Every method except Stop must be called from the goroutine that drives
// Tick.
type Session struct {
	cfg      intcfg.Config
	logger   *slog.Logger
	input    AudioInput
	tones    ToneOutput
	sink     RenderSink
	spectrum bool

	library *sequence.Library
	reader  pitch.FrameReader
	sampler *intsamp.Sampler
	history *intsamp.History
	last    intsamp.Reading

	target      music.Note
	template    sequence.Sequence
	hasSequence bool
	transpose   int
	tempo       float64

	mode   Mode
	sched  *intseq.Scheduler
	result *score.Result
	stop   atomic.Bool
}

func NewSession(input AudioInput, opts ...Option) (*Session, error) {
	if input == nil {
		return nil, errors.New("audio input is required")
	}
	sc := sessionConfig{cfg: intcfg.Default(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&sc)
	}
	if sc.library == nil {
		sc.library = sequence.NewLibrary()
	}
	if err := sc.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	target, err := music.ParseNote(sc.cfg.TargetNote)
	if err != nil {
		return nil, err
	}
	cfg := sc.cfg
	est := pitch.NewEstimator(pitch.Params{Threshold: cfg.YINThreshold, SilenceRMS: cfg.SilenceRMS})
	band := pitch.Band{Min: cfg.MinHz, Max: cfg.MaxHz}
	return &Session{
		cfg:       cfg,
		logger:    sc.logger,
		input:     input,
		tones:     sc.tones,
		sink:      sc.sink,
		spectrum:  sc.spectrum,
		library:   sc.library,
		sampler:   intsamp.NewSampler(cfg.SampleInterval(), est, pitch.NewSmoother(cfg.SmoothingWindow), band),
		history:   intsamp.NewHistory(cfg.HistorySize),
		target:    target,
		transpose: cfg.Transpose,
		tempo:     intcfg.ClampTempo(cfg.TempoPercent),
	}, nil
}

func (s *Session) Config() intcfg.Config { return s.cfg }
func (s *Session) Mode() Mode            { return s.mode }
func (s *Session) Target() music.Note    { return s.target }
func (s *Session) Transpose() int        { return s.transpose }
func (s *Session) Tempo() float64        { return s.tempo }

// Library holds the built-in sequences and the last successful import.
func (s *Session) Library() *sequence.Library { return s.library }

// State is the scheduler state of the current or last challenge.
func (s *Session) State() intseq.State {
	if s.sched == nil {
		return intseq.Idle
	}
	return s.sched.State()
}

// SetTarget changes the free-practice target note.
func (s *Session) SetTarget(n music.Note) {
	s.target = n
	s.sampler.ResetSmoother()
}

// SetSequence replaces the sequence template. An invalid sequence is rejected
// and the previous one stays.
func (s *Session) SetSequence(seq sequence.Sequence) error {
	if s.mode == ModeChallenge {
		return ErrChallengeActive
	}
	if err := seq.Validate(); err != nil {
		return err
	}
	s.template = seq
	s.hasSequence = true
	return nil
}

// SelectSequence makes the named library sequence active; ImportedName
// selects the last import.
func (s *Session) SelectSequence(name string) error {
	if s.mode == ModeChallenge {
		return ErrChallengeActive
	}
	seq, err := s.library.Get(name, 0)
	if err != nil {
		return err
	}
	s.template = seq
	s.hasSequence = true
	return nil
}

// ImportSequence runs an external parser, stores its result in the library's
// imported slot and makes it active. Any failure is reported as
// ErrImportFailed; the previous import and active sequence stay.
func (s *Session) ImportSequence(load func() (sequence.Sequence, error)) error {
	if s.mode == ModeChallenge {
		return ErrChallengeActive
	}
	seq, err := load()
	if err == nil {
		err = s.library.SetImported(seq)
	}
	if err != nil {
		s.logger.Warn("sequence import failed", "err", err)
		return fmt.Errorf("%w: %w", ErrImportFailed, err)
	}
	seq, _ = s.library.Imported()
	s.template = seq
	s.hasSequence = true
	s.logger.Info("sequence imported", "name", seq.Name, "notes", seq.Len())
	return nil
}

// Sequence returns the active sequence with the transposition applied.
func (s *Session) Sequence() (sequence.Sequence, bool) {
	if !s.hasSequence {
		return sequence.Sequence{}, false
	}
	return s.template.Transpose(s.transpose), true
}

func (s *Session) SetTranspose(semitones int) error {
	if s.mode == ModeChallenge {
		return ErrChallengeActive
	}
	s.transpose = semitones
	return nil
}

// SetTempo sets the tempo percentage, clamped to the supported range, and
// returns the value applied.
func (s *Session) SetTempo(percent float64) (float64, error) {
	if s.mode == ModeChallenge {
		return s.tempo, ErrChallengeActive
	}
	s.tempo = intcfg.ClampTempo(percent)
	return s.tempo, nil
}

func (s *Session) acquire(ctx context.Context) error {
	reader, err := s.input.Acquire(ctx)
	if err != nil {
		s.logger.Error("audio capture unavailable", "err", err)
		return fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}
	s.reader = reader
	return nil
}

// StartPractice acquires the input and starts free practice.
func (s *Session) StartPractice(ctx context.Context) error {
	if s.mode != ModeIdle {
		return ErrChallengeActive
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	s.stop.Store(false)
	s.sampler.Reset()
	s.history.Reset()
	s.last = intsamp.Reading{}
	s.mode = ModePractice
	s.logger.Info("practice started", "target", s.target.String())
	return nil
}

// StartChallenge acquires the input and begins the lead-in count of the
// active sequence at now. On capture failure nothing changes.
func (s *Session) StartChallenge(ctx context.Context, now time.Time) error {
	if s.mode != ModeIdle {
		return ErrChallengeActive
	}
	seq, ok := s.Sequence()
	if !ok {
		return ErrNoSequence
	}
	beats := s.cfg.CountdownBeats
	if beats == 0 {
		beats = -1
	}
	sched, err := intseq.NewWithOptions(seq, intseq.Options{
		OnEvent:        s.onSchedulerEvent,
		CountdownBeats: beats,
		TempoPercent:   s.tempo,
	})
	if err != nil {
		return err
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	s.stop.Store(false)
	s.sampler.Reset()
	s.last = intsamp.Reading{}
	s.result = nil
	s.sched = sched
	s.mode = ModeChallenge
	s.logger.Info("challenge started",
		"sequence", seq.Name, "notes", seq.Len(), "tempo", s.tempo, "transpose", s.transpose)
	return sched.Start(now)
}

// Stop asks the running practice or challenge to end. It is safe to call from
// any goroutine; the next Tick stops the run and releases the input.
func (s *Session) Stop() { s.stop.Store(true) }

// Result is the aggregate of the last finished challenge.
func (s *Session) Result() (score.Result, bool) {
	if s.result == nil {
		return score.Result{}, false
	}
	return *s.result, true
}

// History returns the free-practice trace, oldest first.
func (s *Session) History() []intsamp.Entry { return s.history.Snapshot() }

// HistoryStats summarizes the free-practice trace against the in-tune zone.
func (s *Session) HistoryStats() intsamp.Stats { return s.history.Stats(InTuneCents) }

// PlayReference sounds the practice target for one second.
func (s *Session) PlayReference() {
	if s.tones == nil {
		return
	}
	s.tones.PlayTone(s.target.Frequency(), time.Second, nil)
}

// Close ends any run and releases the input.
func (s *Session) Close() error {
	if s.sched != nil {
		s.sched.Stop()
	}
	s.mode = ModeIdle
	return s.release()
}

func (s *Session) release() error {
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	if err != nil {
		s.logger.Warn("release input", "err", err)
	}
	return err
}

func (s *Session) onSchedulerEvent(ev intseq.Event) {
	switch ev.Kind {
	case intseq.EventCountdownBeat:
		s.logger.Debug("countdown", "beat", ev.Beat)
		if s.tones != nil {
			s.tones.Click()
		}
	case intseq.EventNoteStarted:
		s.sampler.ResetSmoother()
		s.logger.Debug("note started", "index", ev.Index, "note", ev.Note.Label())
		if s.tones != nil && s.cfg.GuideTones {
			s.tones.PlayTone(ev.Note.Frequency(), ev.Note.Scaled(s.tempo), nil)
		}
	case intseq.EventNoteScored:
		s.logger.Info("note scored",
			"index", ev.Index, "note", ev.Score.Note, "score", ev.Score.Score,
			"avg_cents", ev.Score.AvgAbsCents, "samples", ev.Score.Samples)
	case intseq.EventFinished:
		res := ev.Result
		s.result = &res
		s.logger.Info("challenge finished", "percentage", res.Percentage, "grade", res.Grade)
	case intseq.EventStopped:
		s.logger.Info("challenge stopped", "index", ev.Index)
	}
}
