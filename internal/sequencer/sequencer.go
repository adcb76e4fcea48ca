// Package sequencer walks a note sequence against the clock: a lead-in count,
// then one note at a time, scoring each note as it ends.
package sequencer

import (
	"errors"
	"math"
	"time"

	"github.com/butaud/voice-trainer/internal/score"
	"github.com/butaud/voice-trainer/internal/sequence"
)

type State int

const (
	Idle State = iota
	CountingDown
	Playing
	Finished
	Stopped
)

var stateNames = [...]string{"idle", "counting-down", "playing", "finished", "stopped"}

func (s State) String() string {
	if s < Idle || s > Stopped {
		return "unknown"
	}
	return stateNames[s]
}

// Active reports whether a run is in progress.
func (s State) Active() bool { return s == CountingDown || s == Playing }

// EventKind identifies scheduler lifecycle events.
type EventKind int

const (
	EventCountdownBeat EventKind = iota
	EventNoteStarted
	EventNoteScored
	EventFinished
	EventStopped
)

// Event is passed to Options.OnEvent. Beat is set for countdown beats (1-based),
// Index and Note for note events, Score for EventNoteScored and Result for
// EventFinished.
type Event struct {
	Kind   EventKind
	Beat   int
	Index  int
	Note   sequence.Note
	Score  score.NoteScore
	Result score.Result
}

type Options struct {
	OnEvent        func(Event)
	CountdownBeats int     // lead-in beats, 3 when zero; negative disables the count
	TempoPercent   float64 // 100 when zero
}

var ErrRunActive = errors.New("run already active")

type Scheduler struct {
	seq        sequence.Sequence
	onEvent    func(Event)
	countBeats int
	tempo      float64

	state      State
	beat       time.Duration
	countStart time.Time
	beatsFired int
	runStart   time.Time

	index     int
	noteStart time.Time
	cents     []float64
	onPitch   time.Duration
	scores    []score.NoteScore
	result    score.Result
}

func New(seq sequence.Sequence) (*Scheduler, error) {
	return NewWithOptions(seq, Options{})
}

func NewWithOptions(seq sequence.Sequence, opts Options) (*Scheduler, error) {
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	beats := opts.CountdownBeats
	switch {
	case beats == 0:
		beats = 3
	case beats < 0:
		beats = 0
	}
	tempo := opts.TempoPercent
	if tempo <= 0 {
		tempo = 100
	}
	return &Scheduler{
		seq:        seq,
		onEvent:    opts.OnEvent,
		countBeats: beats,
		tempo:      tempo,
	}, nil
}

func (s *Scheduler) emit(ev Event) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}

// Start begins the lead-in count at now and fires its first beat. A finished
// or stopped scheduler may be started again.
func (s *Scheduler) Start(now time.Time) error {
	if s.state.Active() {
		return ErrRunActive
	}
	s.index = 0
	s.cents = s.cents[:0]
	s.onPitch = 0
	s.scores = nil
	s.result = score.Result{}
	s.beat = s.seq.Notes[0].BeatInterval(s.tempo)
	s.countStart = now
	s.beatsFired = 0
	s.state = CountingDown
	s.fireBeats(0)
	return nil
}

// Tick advances timing. At most one note boundary is crossed per call.
func (s *Scheduler) Tick(now time.Time) State {
	switch s.state {
	case CountingDown:
		elapsed := now.Sub(s.countStart)
		lead := time.Duration(s.countBeats) * s.beat
		if elapsed >= lead {
			s.state = Playing
			s.runStart = now
			s.noteStart = now
			s.emit(Event{Kind: EventNoteStarted, Index: 0, Note: s.seq.Notes[0]})
			break
		}
		s.fireBeats(elapsed)
	case Playing:
		total := s.noteTotal()
		if now.Sub(s.noteStart) < total {
			break
		}
		n := s.seq.Notes[s.index]
		ns := score.Note(n.Label(), s.cents, s.onPitch, total)
		s.scores = append(s.scores, ns)
		s.emit(Event{Kind: EventNoteScored, Index: s.index, Note: n, Score: ns})
		s.cents = s.cents[:0]
		s.onPitch = 0
		s.index++
		s.noteStart = now
		if s.index == len(s.seq.Notes) {
			s.state = Finished
			s.result = score.Aggregate(s.scores)
			s.emit(Event{Kind: EventFinished, Result: s.result})
			break
		}
		s.emit(Event{Kind: EventNoteStarted, Index: s.index, Note: s.seq.Notes[s.index]})
	}
	return s.state
}

// fireBeats emits countdown beats due by elapsed; beat k sounds at (k-1)*beat.
func (s *Scheduler) fireBeats(elapsed time.Duration) {
	due := s.countBeats
	if s.beat > 0 {
		due = int(elapsed/s.beat) + 1
	}
	if due > s.countBeats {
		due = s.countBeats
	}
	for s.beatsFired < due {
		s.beatsFired++
		s.emit(Event{Kind: EventCountdownBeat, Beat: s.beatsFired})
	}
}

// Observe records one sample for the current note. Voiced samples contribute
// their deviation; those within the on-pitch tolerance also add interval to
// the on-pitch time. Outside Playing it does nothing.
func (s *Scheduler) Observe(cents float64, voiced bool, interval time.Duration) {
	if s.state != Playing || !voiced {
		return
	}
	s.cents = append(s.cents, cents)
	if score.OnPitch(cents) {
		s.onPitch += interval
	}
}

// Stop cancels an active run. The current note's samples are discarded.
func (s *Scheduler) Stop() bool {
	if !s.state.Active() {
		return false
	}
	s.state = Stopped
	s.cents = s.cents[:0]
	s.onPitch = 0
	s.emit(Event{Kind: EventStopped, Index: s.index})
	return true
}

func (s *Scheduler) State() State                { return s.state }
func (s *Scheduler) Sequence() sequence.Sequence { return s.seq }
func (s *Scheduler) TempoPercent() float64       { return s.tempo }
func (s *Scheduler) Beat() time.Duration         { return s.beat }
func (s *Scheduler) Index() int                  { return s.index }
func (s *Scheduler) RunStart() time.Time         { return s.runStart }

// CurrentNote is the note being sung while Playing.
func (s *Scheduler) CurrentNote() (sequence.Note, bool) {
	if s.state != Playing {
		return sequence.Note{}, false
	}
	return s.seq.Notes[s.index], true
}

func (s *Scheduler) noteTotal() time.Duration {
	return s.seq.Notes[s.index].Scaled(s.tempo)
}

// NoteProgress returns elapsed and total time of the current note.
func (s *Scheduler) NoteProgress(now time.Time) (elapsed, total time.Duration) {
	if s.state != Playing {
		return 0, 0
	}
	total = s.noteTotal()
	elapsed = now.Sub(s.noteStart)
	if elapsed > total {
		elapsed = total
	}
	return elapsed, total
}

// CountdownRemaining is the number of lead-in beats still to sound.
func (s *Scheduler) CountdownRemaining(now time.Time) int {
	if s.state != CountingDown {
		return 0
	}
	if s.beat <= 0 {
		return 0
	}
	left := float64(time.Duration(s.countBeats)*s.beat-now.Sub(s.countStart)) / float64(s.beat)
	return int(math.Max(0, math.Ceil(left)))
}

// Scores returns a copy of the completed note scores.
func (s *Scheduler) Scores() []score.NoteScore {
	return append([]score.NoteScore(nil), s.scores...)
}

// Result is the aggregate of a finished run.
func (s *Scheduler) Result() (score.Result, bool) {
	return s.result, s.state == Finished
}
