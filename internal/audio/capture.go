package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/butaud/voice-trainer/internal/pitch"
)

var ErrStreamClosed = errors.New("capture stream closed")

// Ring keeps the most recent samples written to it.
type Ring struct {
	mu     sync.Mutex
	buf    []float32
	w      int
	filled int
}

func NewRing(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{buf: make([]float32, size)}
}

func (r *Ring) Write(p []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(p) > len(r.buf) {
		p = p[len(p)-len(r.buf):]
	}
	for _, s := range p {
		r.buf[r.w] = s
		r.w = (r.w + 1) % len(r.buf)
	}
	r.filled = min(r.filled+len(p), len(r.buf))
}

// Latest copies the newest len(dst) samples into dst, oldest first. When
// fewer are available the front of dst is zeroed. It returns how many real
// samples were copied.
func (r *Ring) Latest(dst []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := min(len(dst), r.filled)
	pad := len(dst) - n
	for i := 0; i < pad; i++ {
		dst[i] = 0
	}
	start := (r.w - n + len(r.buf)) % len(r.buf)
	for i := 0; i < n; i++ {
		dst[pad+i] = r.buf[(start+i)%len(r.buf)]
	}
	return n
}

// Microphone captures mono float32 audio from the default input device.
type Microphone struct {
	SampleRate int
	// BufferFrames is the ring size; it must cover the largest frame read.
	BufferFrames int
	Logger       *slog.Logger
}

func NewMicrophone(sampleRate, bufferFrames int) *Microphone {
	return &Microphone{SampleRate: sampleRate, BufferFrames: bufferFrames, Logger: slog.Default()}
}

// Acquire opens and starts the capture device.
func (m *Microphone) Acquire(ctx context.Context) (pitch.FrameReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "msg", message)
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	ring := NewRing(max(m.BufferFrames, 4096))

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.Capture.Format = malgo.FormatF32
	config.Capture.Channels = 1
	config.SampleRate = uint32(m.SampleRate)
	config.Alsa.NoMMap = 1

	var scratch []float32
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			n := len(input) / 4
			if cap(scratch) < n {
				scratch = make([]float32, n)
			}
			scratch = scratch[:n]
			for i := range scratch {
				scratch[i] = math.Float32frombits(binary.LittleEndian.Uint32(input[i*4:]))
			}
			ring.Write(scratch)
		},
	}
	dev, err := malgo.InitDevice(mctx.Context, config, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("start capture device: %w", err)
	}
	logger.Info("capture started", "sample_rate", m.SampleRate)
	return &captureStream{ctx: mctx, dev: dev, ring: ring, sampleRate: m.SampleRate}, nil
}

type captureStream struct {
	mu         sync.Mutex
	ctx        *malgo.AllocatedContext
	dev        *malgo.Device
	ring       *Ring
	sampleRate int
	closed     bool
	scratch    []float32
}

func (s *captureStream) ReadFrame(size int) (pitch.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return pitch.Frame{}, ErrStreamClosed
	}
	if cap(s.scratch) < size {
		s.scratch = make([]float32, size)
	}
	s.scratch = s.scratch[:size]
	s.ring.Latest(s.scratch)
	return pitch.FrameFromFloat32(s.scratch, s.sampleRate), nil
}

func (s *captureStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.dev.Stop()
	s.dev.Uninit()
	if uerr := s.ctx.Uninit(); err == nil {
		err = uerr
	}
	s.ctx.Free()
	return err
}
