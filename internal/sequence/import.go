package sequence

import (
	"fmt"
	"io"
	"math"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/butaud/voice-trainer/internal/mml"
	"github.com/butaud/voice-trainer/internal/music"
)

const defaultSMFTempo = 120.0

// FromMML builds a sequence from the first MML track that contains notes.
// Rests are dropped; a note's length is taken at the tempo in effect where it
// starts.
func FromMML(name, text string) (Sequence, error) {
	score, err := mml.NewParser(mml.DefaultParserConfig()).Parse(text)
	if err != nil {
		return Sequence{}, fmt.Errorf("parse mml: %w", err)
	}
	for _, tr := range score.Tracks {
		if len(tr.Notes()) == 0 {
			continue
		}
		seq := Sequence{Name: name}
		bpm := score.InitialBPM
		for _, ev := range tr.Events {
			switch ev.Type {
			case mml.EventTempo:
				bpm = float64(ev.Value)
			case mml.EventNote:
				secs := mml.TicksToDuration(ev.Duration, score.Resolution, bpm)
				beats := float64(ev.Duration) / (float64(score.Resolution) / 4)
				seq.Notes = append(seq.Notes, newNote(music.FromMIDI(ev.Note), secs, beats))
			}
		}
		return seq, nil
	}
	return Sequence{}, ErrEmptySequence
}

// FromSMF reads a Standard MIDI File. A negative track selects the first track
// with notes; otherwise that track index must exist and contain notes. The
// file's first tempo applies to the whole sequence. Overlapping notes are
// reduced to a monophonic line by ending a note when the next one starts.
func FromSMF(name string, r io.Reader, track int) (Sequence, error) {
	sm, err := smf.ReadFrom(r)
	if err != nil {
		return Sequence{}, fmt.Errorf("read smf: %w", err)
	}
	mt, ok := sm.TimeFormat.(smf.MetricTicks)
	if !ok || mt.Ticks4th() == 0 {
		return Sequence{}, fmt.Errorf("read smf: unsupported time format %v", sm.TimeFormat)
	}
	tpq := float64(mt.Ticks4th())
	bpm := defaultSMFTempo
	if tc := sm.TempoChanges(); len(tc) > 0 && tc[0].BPM > 0 {
		bpm = tc[0].BPM
	}

	if track >= 0 {
		if track >= len(sm.Tracks) {
			return Sequence{}, fmt.Errorf("%w: track %d of %d", ErrPartMissing, track, len(sm.Tracks))
		}
		notes := trackNotes(sm.Tracks[track], tpq, bpm)
		if len(notes) == 0 {
			return Sequence{}, fmt.Errorf("%w: track %d has no notes", ErrPartMissing, track)
		}
		return Sequence{Name: name, Notes: notes}, nil
	}
	for _, tr := range sm.Tracks {
		if notes := trackNotes(tr, tpq, bpm); len(notes) > 0 {
			return Sequence{Name: name, Notes: notes}, nil
		}
	}
	return Sequence{}, ErrEmptySequence
}

func trackNotes(tr smf.Track, tpq, bpm float64) []Note {
	type open struct {
		key   uint8
		start int64
	}
	var (
		notes   []Note
		current *open
		abs     int64
	)
	emit := func(key uint8, start, end int64) {
		if end <= start {
			return
		}
		beats := float64(end-start) / tpq
		notes = append(notes, newNote(music.FromMIDI(int(key)), beats*60/bpm, beats))
	}
	for _, ev := range tr {
		abs += int64(ev.Delta)
		msg := midi.Message(ev.Message)
		var ch, key, vel uint8
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			if current != nil {
				emit(current.key, current.start, abs)
			}
			current = &open{key: key, start: abs}
		case msg.GetNoteEnd(&ch, &key):
			if current != nil && current.key == key {
				emit(current.key, current.start, abs)
				current = nil
			}
		}
	}
	return notes
}

func newNote(p music.Note, secs, beats float64) Note {
	typ, dotted := classify(beats)
	d := time.Duration(math.Round(secs*1000)) * time.Millisecond
	return Note{Pitch: p, Duration: d, Type: typ, Dotted: dotted}
}
