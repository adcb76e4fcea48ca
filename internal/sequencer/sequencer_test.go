package sequencer

import (
	"errors"
	"testing"
	"time"

	"github.com/butaud/voice-trainer/internal/score"
	"github.com/butaud/voice-trainer/internal/sequence"
)

const frame = time.Second / 30

type recorder struct {
	events []Event
}

func (r *recorder) record(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func threeNotes(t *testing.T) sequence.Sequence {
	t.Helper()
	seq, err := sequence.NewLibrary().Get("three-notes", 0)
	if err != nil {
		t.Fatalf("library: %v", err)
	}
	return seq
}

// run ticks at a fixed frame interval until the scheduler leaves the active
// states or maxTicks is reached. observe is called on every Playing tick.
func run(s *Scheduler, start time.Time, maxTicks int, observe func(*Scheduler)) time.Time {
	now := start
	for i := 0; i < maxTicks; i++ {
		now = now.Add(frame)
		if st := s.Tick(now); !st.Active() {
			return now
		}
		if observe != nil && s.State() == Playing {
			observe(s)
		}
	}
	return now
}

func TestNewRejectsEmptySequence(t *testing.T) {
	if _, err := New(sequence.Sequence{}); !errors.Is(err, sequence.ErrEmptySequence) {
		t.Fatalf("expected ErrEmptySequence, got %v", err)
	}
}

func TestCountdownBeatsAndTransition(t *testing.T) {
	rec := &recorder{}
	s, err := NewWithOptions(threeNotes(t), Options{OnEvent: rec.record})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t0 := time.Unix(1000, 0)
	if err := s.Start(t0); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.State() != CountingDown || s.Beat() != time.Second {
		t.Fatalf("expected counting down with 1s beat, got %v %v", s.State(), s.Beat())
	}
	if rec.count(EventCountdownBeat) != 1 || s.CountdownRemaining(t0) != 3 {
		t.Fatalf("expected first beat at start, events=%d remaining=%d", rec.count(EventCountdownBeat), s.CountdownRemaining(t0))
	}
	s.Tick(t0.Add(1500 * time.Millisecond))
	if rec.count(EventCountdownBeat) != 2 {
		t.Fatalf("expected 2 beats after 1.5s, got %d", rec.count(EventCountdownBeat))
	}
	s.Tick(t0.Add(2 * time.Second))
	if rec.count(EventCountdownBeat) != 3 || s.State() != CountingDown {
		t.Fatalf("expected third beat still counting, got %d %v", rec.count(EventCountdownBeat), s.State())
	}
	if err := s.Start(t0); !errors.Is(err, ErrRunActive) {
		t.Fatalf("expected ErrRunActive, got %v", err)
	}
	s.Tick(t0.Add(3 * time.Second))
	if s.State() != Playing || s.Index() != 0 {
		t.Fatalf("expected playing note 0, got %v %d", s.State(), s.Index())
	}
	if n, ok := s.CurrentNote(); !ok || n.Label() != "C3" {
		t.Fatalf("expected C3, got %v %v", n.Label(), ok)
	}
	if rec.count(EventCountdownBeat) != 3 {
		t.Fatalf("expected exactly 3 beats, got %d", rec.count(EventCountdownBeat))
	}
}

func TestBeatFollowsFirstNoteType(t *testing.T) {
	cases := []struct {
		typ    sequence.NoteType
		dotted bool
		dur    time.Duration
		tempo  float64
		want   time.Duration
	}{
		{sequence.Eighth, false, 400 * time.Millisecond, 100, 800 * time.Millisecond},
		{sequence.Whole, false, 4 * time.Second, 100, time.Second},
		{sequence.Half, true, 3 * time.Second, 100, time.Second},
		{sequence.Quarter, false, time.Second, 200, 500 * time.Millisecond},
	}
	for _, tc := range cases {
		n, err := sequence.N("A3", tc.dur, tc.typ, tc.dotted)
		if err != nil {
			t.Fatalf("note: %v", err)
		}
		s, err := NewWithOptions(sequence.Sequence{Notes: []sequence.Note{n}}, Options{TempoPercent: tc.tempo})
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if err := s.Start(time.Unix(0, 0)); err != nil {
			t.Fatalf("start: %v", err)
		}
		if s.Beat() != tc.want {
			t.Fatalf("%v dotted=%v tempo=%v: expected beat %v, got %v", tc.typ, tc.dotted, tc.tempo, tc.want, s.Beat())
		}
	}
}

func TestRunToCompletionOnPitch(t *testing.T) {
	rec := &recorder{}
	s, _ := NewWithOptions(threeNotes(t), Options{OnEvent: rec.record})
	t0 := time.Unix(0, 0)
	if err := s.Start(t0); err != nil {
		t.Fatalf("start: %v", err)
	}
	run(s, t0, 1000, func(s *Scheduler) { s.Observe(0, true, frame) })
	if s.State() != Finished {
		t.Fatalf("expected finished, got %v", s.State())
	}
	scores := s.Scores()
	if len(scores) != 3 {
		t.Fatalf("expected 3 note scores, got %d", len(scores))
	}
	for i, ns := range scores {
		if ns.Score != 100 {
			t.Fatalf("note %d: expected 100, got %+v", i, ns)
		}
	}
	res, ok := s.Result()
	if !ok || res.Percentage != 100 || res.Grade != score.GradeA {
		t.Fatalf("unexpected result %+v ok=%v", res, ok)
	}
	if rec.count(EventFinished) != 1 || rec.count(EventNoteScored) != 3 || rec.count(EventNoteStarted) != 3 {
		t.Fatalf("unexpected event counts: finished=%d scored=%d started=%d",
			rec.count(EventFinished), rec.count(EventNoteScored), rec.count(EventNoteStarted))
	}
	// Further ticks do nothing.
	s.Tick(time.Unix(100, 0))
	if rec.count(EventFinished) != 1 || len(s.Scores()) != 3 {
		t.Fatalf("finished run changed after extra tick")
	}
}

func TestRunSilentScoresZero(t *testing.T) {
	s, _ := New(threeNotes(t))
	t0 := time.Unix(0, 0)
	_ = s.Start(t0)
	run(s, t0, 1000, func(s *Scheduler) { s.Observe(0, false, frame) })
	res, ok := s.Result()
	if !ok || res.Percentage != 0 || res.Grade != score.GradeF {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, ns := range res.Scores {
		if ns.Score != 0 || ns.Samples != 0 {
			t.Fatalf("expected zero score, got %+v", ns)
		}
	}
}

func TestStopMidNoteDiscardsPartialNote(t *testing.T) {
	rec := &recorder{}
	s, _ := NewWithOptions(threeNotes(t), Options{OnEvent: rec.record})
	t0 := time.Unix(0, 0)
	_ = s.Start(t0)
	// Countdown (3s) plus first note (1s) plus half of the second.
	now := t0
	for now.Before(t0.Add(4500 * time.Millisecond)) {
		now = now.Add(frame)
		s.Tick(now)
		s.Observe(0, true, frame)
	}
	if s.Index() != 1 {
		t.Fatalf("expected to be on note 1, got %d", s.Index())
	}
	if !s.Stop() {
		t.Fatalf("expected stop to succeed")
	}
	if s.State() != Stopped || len(s.Scores()) != 1 {
		t.Fatalf("expected stopped with 1 score, got %v %d", s.State(), len(s.Scores()))
	}
	if _, ok := s.Result(); ok {
		t.Fatalf("stopped run must not report a result")
	}
	s.Tick(now.Add(10 * time.Second))
	if len(s.Scores()) != 1 || rec.count(EventStopped) != 1 {
		t.Fatalf("stopped scheduler kept running")
	}
	if s.Stop() {
		t.Fatalf("second stop should be a no-op")
	}
}

func TestStopDuringCountdown(t *testing.T) {
	s, _ := New(threeNotes(t))
	_ = s.Start(time.Unix(0, 0))
	if !s.Stop() || s.State() != Stopped {
		t.Fatalf("expected stop from countdown")
	}
	if err := s.Start(time.Unix(1, 0)); err != nil || s.State() != CountingDown {
		t.Fatalf("expected a stopped scheduler to start again, got %v %v", s.State(), err)
	}
}

func TestRestartAfterFinish(t *testing.T) {
	s, _ := New(threeNotes(t))
	t0 := time.Unix(0, 0)
	_ = s.Start(t0)
	end := run(s, t0, 1000, nil)
	if err := s.Start(end); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if s.State() != CountingDown || len(s.Scores()) != 0 {
		t.Fatalf("expected fresh run, got %v with %d scores", s.State(), len(s.Scores()))
	}
}

func TestTempoScalesAdvanceBoundary(t *testing.T) {
	for _, tc := range []struct {
		tempo float64
		want  time.Duration
	}{
		{100, time.Second},
		{200, 500 * time.Millisecond},
		{50, 2 * time.Second},
	} {
		s, _ := NewWithOptions(threeNotes(t), Options{TempoPercent: tc.tempo, CountdownBeats: -1})
		t0 := time.Unix(0, 0)
		_ = s.Start(t0)
		s.Tick(t0)
		if s.State() != Playing {
			t.Fatalf("expected immediate play without countdown, got %v", s.State())
		}
		s.Tick(t0.Add(tc.want - time.Millisecond))
		if s.Index() != 0 {
			t.Fatalf("tempo %v: advanced early", tc.tempo)
		}
		s.Tick(t0.Add(tc.want))
		if s.Index() != 1 {
			t.Fatalf("tempo %v: expected advance at %v", tc.tempo, tc.want)
		}
		if _, total := s.NoteProgress(t0.Add(tc.want)); total != tc.want {
			t.Fatalf("tempo %v: expected note total %v, got %v", tc.tempo, tc.want, total)
		}
	}
}

func TestOneAdvancePerTick(t *testing.T) {
	s, _ := NewWithOptions(threeNotes(t), Options{CountdownBeats: -1})
	t0 := time.Unix(0, 0)
	_ = s.Start(t0)
	s.Tick(t0)
	s.Tick(t0.Add(10 * time.Second))
	if s.Index() != 1 || s.State() != Playing {
		t.Fatalf("expected a single advance, got index %d state %v", s.Index(), s.State())
	}
}

func TestObserveAccumulatesOnlyWhilePlaying(t *testing.T) {
	s, _ := NewWithOptions(threeNotes(t), Options{CountdownBeats: -1})
	s.Observe(0, true, frame)
	t0 := time.Unix(0, 0)
	_ = s.Start(t0)
	s.Observe(0, true, frame)
	s.Tick(t0)
	s.Observe(30, true, 500*time.Millisecond)
	s.Observe(80, true, 500*time.Millisecond)
	s.Tick(t0.Add(time.Second))
	ns := s.Scores()[0]
	if ns.Samples != 2 || ns.TimeOnPitch != 500*time.Millisecond {
		t.Fatalf("unexpected accumulation %+v", ns)
	}
	// avg 55 cents => 50 accuracy points, half the time on pitch => 20.
	if ns.Score != 70 {
		t.Fatalf("expected 70, got %d", ns.Score)
	}
}

func TestStateString(t *testing.T) {
	if Playing.String() != "playing" || State(42).String() != "unknown" {
		t.Fatalf("unexpected state names")
	}
}
