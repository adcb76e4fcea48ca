// Package synth renders reference tones: a small voice pool with an ADSR
// envelope, a few simple waveforms and optional vibrato.
package synth

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
)

const twoPi = math.Pi * 2

type Waveform int

const (
	Sine Waveform = iota
	Triangle
	Pulse
	Noise
)

var waveformNames = [...]string{"sine", "triangle", "pulse", "noise"}

func (w Waveform) String() string {
	if w < Sine || w > Noise {
		return "unknown"
	}
	return waveformNames[w]
}

func ParseWaveform(s string) (Waveform, error) {
	for i, name := range waveformNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Waveform(i), nil
		}
	}
	return Sine, fmt.Errorf("unknown waveform %q", s)
}

type Params struct {
	Voices       int
	MasterGain   float64
	AttackSec    float64
	DecaySec     float64
	SustainLvl   float64
	ReleaseSec   float64
	PulseDuty    float64
	Waveform     Waveform
	VibratoCents float64
	VibratoHz    float64
}

func DefaultParams() Params {
	return Params{
		Voices:     8,
		MasterGain: 0.3,
		AttackSec:  0.01,
		DecaySec:   0.08,
		SustainLvl: 0.8,
		ReleaseSec: 0.08,
		PulseDuty:  0.25,
		Waveform:   Sine,
		VibratoHz:  5,
	}
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type voice struct {
	active    bool
	id        int
	age       int
	wave      Waveform
	freq      float64
	phase     float64
	velocity  float64
	env       float64
	envState  envState
	noiseLFSR uint16
}

// Engine is a mono voice pool rendered to a centered stereo pair. It is not
// safe for concurrent use; Tones serializes access.
type Engine struct {
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int
	masterGain uint64
	dcPrevIn   float64
	dcPrevOut  float64
	vibrato    lfo
}

func New(sampleRate int, params Params) *Engine {
	if params.Voices <= 0 {
		params.Voices = 8
	}
	if params.PulseDuty <= 0 || params.PulseDuty >= 1 {
		params.PulseDuty = 0.25
	}
	e := &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, params.Voices),
		masterGain: math.Float64bits(params.MasterGain),
	}
	for i := range e.voices {
		e.voices[i].noiseLFSR = uint16(0xACE1 + i*97)
	}
	e.vibrato.set(params.VibratoCents, params.VibratoHz)
	return e
}

// NoteOn starts a voice at freq with the engine's waveform and returns its id.
func (e *Engine) NoteOn(freq float64, velocity float64) int {
	return e.NoteOnWave(freq, velocity, e.params.Waveform)
}

func (e *Engine) NoteOnWave(freq float64, velocity float64, wave Waveform) int {
	slot := e.stealVoice()
	id := e.nextID
	e.nextID++
	v := &e.voices[slot]
	v.active = true
	v.id = id
	v.age = 0
	v.wave = wave
	v.freq = freq
	v.phase = 0
	v.velocity = clamp(velocity, 0, 1)
	v.env = 0
	v.envState = envAttack
	if v.noiseLFSR == 0 {
		v.noiseLFSR = 0xACE1
	}
	return id
}

func (e *Engine) NoteOff(id int) {
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.id == id && v.envState != envRelease {
			v.envState = envRelease
		}
	}
}

// Silence releases every sounding voice and restarts the vibrato cycle.
func (e *Engine) Silence() {
	for i := range e.voices {
		if e.voices[i].active {
			e.voices[i].envState = envRelease
		}
	}
	e.vibrato.reset()
}

func (e *Engine) RenderFrame() (float32, float32) {
	freqMul := 1.0
	if cents := e.vibrato.sample(e.sampleRate); cents != 0 {
		freqMul = math.Pow(2, cents/1200)
	}
	var out float64
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		v.age++
		env := e.advanceEnv(v)
		if !v.active {
			continue
		}
		mul := freqMul
		if v.wave == Noise {
			mul = 1
		}
		out += e.renderWave(v, mul) * env * v.velocity
	}
	out = e.dcBlock(out) * e.masterGainValue()
	s := float32(clamp(out, -1, 1))
	return s, s
}

func (e *Engine) dcBlock(x float64) float64 {
	const r = 0.995
	y := x - e.dcPrevIn + r*e.dcPrevOut
	e.dcPrevIn = x
	e.dcPrevOut = y
	return y
}

// polyBLEP reduces aliasing at waveform discontinuities.
// t is the phase position [0,1), dt is the phase increment per sample.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func (e *Engine) renderWave(v *voice, freqMul float64) float64 {
	dt := v.freq * freqMul / e.sampleRate
	v.phase += dt
	if v.phase >= 1 {
		v.phase -= 1
	}
	switch v.wave {
	case Sine:
		return math.Sin(twoPi * v.phase)
	case Triangle:
		return 2*math.Abs(2*v.phase-1) - 1
	case Pulse:
		duty := e.params.PulseDuty
		out := -1.0
		if v.phase < duty {
			out = 1
		}
		out += polyBLEP(v.phase, dt)
		out -= polyBLEP(math.Mod(v.phase-duty+1, 1), dt)
		return out
	case Noise:
		if v.phase < dt {
			bit := (v.noiseLFSR ^ (v.noiseLFSR >> 1)) & 1
			v.noiseLFSR = (v.noiseLFSR >> 1) | (bit << 15)
		}
		if v.noiseLFSR&1 == 1 {
			return 1
		}
		return -1
	default:
		return 0
	}
}

func (e *Engine) stealVoice() int {
	// Prefer an inactive slot.
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}
	// Steal the oldest releasing voice, or failing that the oldest active voice.
	oldestRelease := -1
	oldestReleaseAge := -1
	oldestActive := 0
	oldestActiveAge := -1
	for i := range e.voices {
		v := &e.voices[i]
		if v.envState == envRelease && v.age > oldestReleaseAge {
			oldestRelease = i
			oldestReleaseAge = v.age
		}
		if v.age > oldestActiveAge {
			oldestActive = i
			oldestActiveAge = v.age
		}
	}
	if oldestRelease >= 0 {
		return oldestRelease
	}
	return oldestActive
}

func (e *Engine) advanceEnv(v *voice) float64 {
	switch v.envState {
	case envAttack:
		v.env += rate(1, e.params.AttackSec, e.sampleRate)
		if v.env >= 1 {
			v.env = 1
			v.envState = envDecay
		}
	case envDecay:
		v.env -= rate(1-e.params.SustainLvl, e.params.DecaySec, e.sampleRate)
		if v.env <= e.params.SustainLvl {
			v.env = e.params.SustainLvl
			v.envState = envSustain
		}
	case envSustain:
	case envRelease:
		// Release from wherever the envelope is, including mid-attack.
		v.env -= rate(math.Max(e.params.SustainLvl, 0.1), e.params.ReleaseSec, e.sampleRate)
		if v.env <= 0.0001 {
			v.env = 0
			v.envState = envOff
			v.active = false
		}
	case envOff:
		v.active = false
		v.env = 0
	}
	return v.env
}

// rate is the per-sample step that covers span in sec seconds, or the whole
// span at once when sec is not positive.
func rate(span, sec, sampleRate float64) float64 {
	if sec <= 0 || sampleRate <= 0 {
		return math.Max(span, 1)
	}
	return span / (sec * sampleRate)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (e *Engine) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&e.masterGain, math.Float64bits(gain))
}

func (e *Engine) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&e.masterGain))
}

func (e *Engine) SetVibrato(cents, rateHz float64) {
	e.vibrato.set(cents, rateHz)
}

func (e *Engine) ActiveVoiceCount() int {
	n := 0
	for i := range e.voices {
		if e.voices[i].active {
			n++
		}
	}
	return n
}
