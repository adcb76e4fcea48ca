package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/butaud/voice-trainer/internal/synth"
)

// SampleSource fills interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// StreamReader adapts a SampleSource to the little-endian float32 byte
// stream the audio player pulls from.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(r.buf[i]))
	}
	return frames * 8, nil
}

func (r *StreamReader) Close() error { return nil }

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// Output plays reference tones and countdown clicks on the default output
// device. The stream runs continuously and is silent between tones.
type Output struct {
	tones  *synth.Tones
	player *ebitaudio.Player
	reader io.ReadCloser
}

func NewOutput(sampleRate int, params synth.Params) (*Output, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	tones := synth.NewTones(sampleRate, params)
	reader := NewStreamReader(tones)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	pl.SetBufferSize(60 * time.Millisecond)
	pl.Play()
	return &Output{tones: tones, player: pl, reader: reader}, nil
}

// PlayTone is fire-and-forget; onComplete runs once after the tone ends.
func (o *Output) PlayTone(freq float64, dur time.Duration, onComplete func()) {
	o.tones.PlayTone(freq, dur, onComplete)
}

func (o *Output) Click() { o.tones.Click() }

// Silence cuts every sounding tone without firing completions.
func (o *Output) Silence() { o.tones.Stop() }

func (o *Output) Busy() bool { return o.tones.Busy() }

func (o *Output) Close() error {
	o.tones.Stop()
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		return err
	}
	return o.reader.Close()
}
