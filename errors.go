package voicetrainer

import "errors"

var (
	// ErrCaptureUnavailable wraps any failure to acquire the audio input.
	ErrCaptureUnavailable = errors.New("capture unavailable")
	// ErrImportFailed wraps a failed sequence import; the previous sequence
	// stays loaded.
	ErrImportFailed    = errors.New("import failed")
	ErrChallengeActive = errors.New("a session is already running")
	ErrNoSequence      = errors.New("no sequence loaded")
)
