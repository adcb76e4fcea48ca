package synth

import (
	"sync"
	"time"
)

const (
	clickDuration = 30 * time.Millisecond
	clickFreq     = 6000.0
)

type scheduled struct {
	id   int
	left int // frames until note-off
	done func()
}

// Tones schedules timed notes on an Engine and renders them as interleaved
// stereo float32. Process runs on the audio thread; the other methods may be
// called from any goroutine.
type Tones struct {
	mu         sync.Mutex
	engine     *Engine
	sampleRate int
	pending    []scheduled
	dispatch   func(func())
}

func NewTones(sampleRate int, params Params) *Tones {
	return &Tones{
		engine:     New(sampleRate, params),
		sampleRate: sampleRate,
		dispatch:   func(fn func()) { go fn() },
	}
}

// SetDispatch replaces how completion callbacks are run. By default each runs
// on its own goroutine, never on the caller of Process.
func (t *Tones) SetDispatch(fn func(func())) {
	t.mu.Lock()
	t.dispatch = fn
	t.mu.Unlock()
}

func (t *Tones) frames(d time.Duration) int {
	n := int(d.Seconds() * float64(t.sampleRate))
	if n < 1 {
		n = 1
	}
	return n
}

// PlayTone sounds freq for dur. onComplete, if set, runs once after the
// tone's last frame was rendered.
func (t *Tones) PlayTone(freq float64, dur time.Duration, onComplete func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.engine.NoteOn(freq, 1)
	t.pending = append(t.pending, scheduled{id: id, left: t.frames(dur), done: onComplete})
}

// Click sounds a short noise burst for countdown beats.
func (t *Tones) Click() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.engine.NoteOnWave(clickFreq, 0.6, Noise)
	t.pending = append(t.pending, scheduled{id: id, left: t.frames(clickDuration)})
}

// Stop releases all voices. Pending completion callbacks are dropped.
func (t *Tones) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = t.pending[:0]
	t.engine.Silence()
}

// Busy reports whether a tone is scheduled or still releasing.
func (t *Tones) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending) > 0 || t.engine.ActiveVoiceCount() > 0
}

func (t *Tones) SetVolume(gain float64) {
	t.engine.SetMasterGain(gain)
}

// Process fills dst with interleaved stereo frames.
func (t *Tones) Process(dst []float32) {
	var done []func()
	t.mu.Lock()
	for i := 0; i+1 < len(dst); i += 2 {
		if len(t.pending) > 0 {
			kept := t.pending[:0]
			for _, p := range t.pending {
				p.left--
				if p.left <= 0 {
					t.engine.NoteOff(p.id)
					if p.done != nil {
						done = append(done, p.done)
					}
					continue
				}
				kept = append(kept, p)
			}
			t.pending = kept
		}
		dst[i], dst[i+1] = t.engine.RenderFrame()
	}
	dispatch := t.dispatch
	t.mu.Unlock()
	for _, fn := range done {
		dispatch(fn)
	}
}
