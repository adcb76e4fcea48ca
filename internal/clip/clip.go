// Package clip holds recorded audio in memory: WAV decoding, a seekable
// frame reader for offline runs, and WAV export.
package clip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/butaud/voice-trainer/internal/pitch"
)

var ErrInvalidWAV = errors.New("invalid wav file")

// Clip is mono audio normalized to [-1, 1].
type Clip struct {
	Samples    []float64
	SampleRate int
}

// LoadWAV decodes a PCM WAV stream, mixing all channels down to mono.
func LoadWAV(r io.ReadSeeker) (*Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	chans := int(dec.NumChans)
	if chans < 1 {
		chans = 1
	}
	scale := math.Exp2(float64(dec.BitDepth) - 1)
	if dec.BitDepth == 0 {
		scale = 1 << 15
	}
	frames := len(buf.Data) / chans
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < chans; c++ {
			sum += float64(buf.Data[i*chans+c])
		}
		samples[i] = sum / float64(chans) / scale
	}
	return &Clip{Samples: samples, SampleRate: int(dec.SampleRate)}, nil
}

func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// WriteWAV encodes mono samples as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, samples []float64, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(math.Max(-1, math.Min(1, s)) * 32767))
	}
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}

// Reader plays a clip back as an input. Its playhead is set explicitly, so an
// offline run can drive it from a virtual clock; ReadFrame returns the size
// samples ending at the playhead, zero-padded outside the clip.
type Reader struct {
	mu     sync.Mutex
	clip   *Clip
	pos    time.Duration
	closed bool
}

func (c *Clip) Reader() *Reader { return &Reader{clip: c} }

// Acquire reopens the reader. It satisfies the session's input contract.
func (r *Reader) Acquire(ctx context.Context) (pitch.FrameReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.closed = false
	r.mu.Unlock()
	return r, nil
}

func (r *Reader) SetPosition(d time.Duration) {
	r.mu.Lock()
	r.pos = d
	r.mu.Unlock()
}

func (r *Reader) Position() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

func (r *Reader) ReadFrame(size int) (pitch.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return pitch.Frame{}, io.ErrClosedPipe
	}
	out := make([]float64, size)
	end := int(r.pos.Seconds() * float64(r.clip.SampleRate))
	start := end - size
	for i := range out {
		j := start + i
		if j >= 0 && j < len(r.clip.Samples) {
			out[i] = r.clip.Samples[j]
		}
	}
	return pitch.Frame{Samples: out, SampleRate: r.clip.SampleRate}, nil
}

func (r *Reader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}
