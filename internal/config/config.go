// Package config loads the trainer settings from YAML.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/butaud/voice-trainer/internal/music"
	"github.com/butaud/voice-trainer/internal/synth"
)

const (
	MinTempo = 25.0
	MaxTempo = 400.0
)

type Tone struct {
	Waveform     string  `yaml:"waveform"`
	Volume       float64 `yaml:"volume"`
	VibratoCents float64 `yaml:"vibrato_cents"`
	VibratoHz    float64 `yaml:"vibrato_hz"`
}

type Config struct {
	SampleRate      int     `yaml:"sample_rate"`
	FrameSize       int     `yaml:"frame_size"`
	SamplingHz      float64 `yaml:"sampling_hz"`
	YINThreshold    float64 `yaml:"yin_threshold"`
	SilenceRMS      float64 `yaml:"silence_rms"`
	MinHz           float64 `yaml:"min_hz"`
	MaxHz           float64 `yaml:"max_hz"`
	SmoothingWindow int     `yaml:"smoothing_window"`
	HistorySize     int     `yaml:"history_size"`
	TempoPercent    float64 `yaml:"tempo_percent"`
	Transpose       int     `yaml:"transpose"`
	CountdownBeats  int     `yaml:"countdown_beats"`
	GuideTones      bool    `yaml:"guide_tones"`
	Tone            Tone    `yaml:"tone"`
	Sequence        string  `yaml:"sequence"`
	SequenceFile    string  `yaml:"sequence_file"`
	TargetNote      string  `yaml:"target_note"`
}

func Default() Config {
	return Config{
		SampleRate:      48000,
		FrameSize:       2048,
		SamplingHz:      30,
		YINThreshold:    0.1,
		SilenceRMS:      0.005,
		MinHz:           80,
		MaxHz:           1000,
		SmoothingWindow: 5,
		HistorySize:     200,
		TempoPercent:    100,
		CountdownBeats:  3,
		GuideTones:      true,
		Tone: Tone{
			Waveform:  "sine",
			Volume:    0.3,
			VibratoHz: 5,
		},
		TargetNote: "A3",
	}
}

// Load reads a YAML file over the defaults; keys absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Marshal renders the config as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c Config) Validate() error {
	var errs []error
	if c.SampleRate < 8000 {
		errs = append(errs, fmt.Errorf("sample_rate %d below 8000", c.SampleRate))
	}
	if c.FrameSize < 256 || c.FrameSize > 8192 {
		errs = append(errs, fmt.Errorf("frame_size %d outside [256, 8192]", c.FrameSize))
	}
	if c.SampleRate > 0 && c.MinHz > 0 {
		// the estimator searches lags up to half the frame
		need := int(math.Ceil(2*float64(c.SampleRate)/c.MinHz)) + 2
		if c.FrameSize < need {
			errs = append(errs, fmt.Errorf("frame_size %d too short for min_hz %v at %d Hz (need %d)", c.FrameSize, c.MinHz, c.SampleRate, need))
		}
	}
	if c.SamplingHz <= 0 || c.SamplingHz > 120 {
		errs = append(errs, fmt.Errorf("sampling_hz %v outside (0, 120]", c.SamplingHz))
	}
	if c.YINThreshold <= 0 || c.YINThreshold >= 1 {
		errs = append(errs, fmt.Errorf("yin_threshold %v outside (0, 1)", c.YINThreshold))
	}
	if c.SilenceRMS < 0 {
		errs = append(errs, fmt.Errorf("silence_rms %v is negative", c.SilenceRMS))
	}
	if c.MinHz <= 0 || c.MaxHz <= c.MinHz {
		errs = append(errs, fmt.Errorf("band [%v, %v] is empty", c.MinHz, c.MaxHz))
	}
	if c.SmoothingWindow < 1 {
		errs = append(errs, fmt.Errorf("smoothing_window %d below 1", c.SmoothingWindow))
	}
	if c.HistorySize < 1 {
		errs = append(errs, fmt.Errorf("history_size %d below 1", c.HistorySize))
	}
	if c.TempoPercent < MinTempo || c.TempoPercent > MaxTempo {
		errs = append(errs, fmt.Errorf("tempo_percent %v outside [%v, %v]", c.TempoPercent, MinTempo, MaxTempo))
	}
	if c.CountdownBeats < 0 {
		errs = append(errs, fmt.Errorf("countdown_beats %d is negative", c.CountdownBeats))
	}
	if _, err := synth.ParseWaveform(c.Tone.Waveform); err != nil {
		errs = append(errs, err)
	}
	if c.Tone.Volume < 0 || c.Tone.Volume > 1 {
		errs = append(errs, fmt.Errorf("tone.volume %v outside [0, 1]", c.Tone.Volume))
	}
	if _, err := music.ParseNote(c.TargetNote); err != nil {
		errs = append(errs, fmt.Errorf("target_note: %w", err))
	}
	return errors.Join(errs...)
}

// SampleInterval is the time between pitch samples.
func (c Config) SampleInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.SamplingHz)
}

// SynthParams maps the tone section onto the voice engine parameters.
func (c Config) SynthParams() synth.Params {
	p := synth.DefaultParams()
	if w, err := synth.ParseWaveform(c.Tone.Waveform); err == nil {
		p.Waveform = w
	}
	p.MasterGain = c.Tone.Volume
	p.VibratoCents = c.Tone.VibratoCents
	p.VibratoHz = c.Tone.VibratoHz
	return p
}

// ClampTempo limits a tempo percentage to the supported range.
func ClampTempo(p float64) float64 {
	if p < MinTempo {
		return MinTempo
	}
	if p > MaxTempo {
		return MaxTempo
	}
	return p
}
