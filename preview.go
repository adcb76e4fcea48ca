package voicetrainer

import "errors"

// PreviewSequence plays the active sequence through the tone output at the
// current tempo, one note after another. onDone, if set, runs after the last
// note. Callbacks run on the tone output's goroutine.
func (s *Session) PreviewSequence(onDone func()) error {
	if s.tones == nil {
		return errors.New("no tone output configured")
	}
	if s.mode == ModeChallenge {
		return ErrChallengeActive
	}
	seq, ok := s.Sequence()
	if !ok {
		return ErrNoSequence
	}
	tones, tempo := s.tones, s.tempo
	var play func(i int)
	play = func(i int) {
		if i == len(seq.Notes) {
			if onDone != nil {
				onDone()
			}
			return
		}
		n := seq.Notes[i]
		tones.PlayTone(n.Frequency(), n.Scaled(tempo), func() { play(i + 1) })
	}
	s.logger.Info("preview", "sequence", seq.Name, "notes", seq.Len())
	play(0)
	return nil
}
