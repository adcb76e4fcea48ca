package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	voicetrainer "github.com/butaud/voice-trainer"
	"github.com/butaud/voice-trainer/internal/audio"
	"github.com/butaud/voice-trainer/internal/clip"
	"github.com/butaud/voice-trainer/internal/config"
	"github.com/butaud/voice-trainer/internal/music"
	"github.com/butaud/voice-trainer/internal/score"
	"github.com/butaud/voice-trainer/internal/sequence"
)

const usage = `usage: voicetrainer <command> [flags]

commands:
  list       list built-in sequences
  practice   sing against a target note on the microphone
  challenge  sing a sequence and get scored
  score      score a recorded WAV take against a sequence
  render     write a sequence's reference melody to a WAV file`

type options struct {
	configPath string
	debug      bool
	seqName    string
	seqFile    string
	track      int
	tempo      float64
	transpose  int
	note       string
	wavPath    string
	outPath    string
	asJSON     bool
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	var o options
	fs.StringVar(&o.configPath, "config", "", "path to a YAML config file")
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging")
	fs.StringVar(&o.seqName, "seq", "", "built-in sequence name")
	fs.StringVar(&o.seqFile, "file", "", "import a sequence from an .mml or .mid file")
	fs.IntVar(&o.track, "track", -1, "MIDI track to import (-1 = first track with notes)")
	fs.Float64Var(&o.tempo, "tempo", 0, "tempo percentage (25..400)")
	fs.IntVar(&o.transpose, "transpose", 0, "transpose by semitones")
	fs.StringVar(&o.note, "note", "", "practice target note, e.g. A3")
	fs.StringVar(&o.wavPath, "wav", "", "recorded take to score")
	fs.StringVar(&o.outPath, "o", "reference.wav", "output WAV path")
	fs.BoolVar(&o.asJSON, "json", false, "print results as JSON")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	logger := newLogger(o.debug)
	slog.SetDefault(logger)
	cfg, err := loadConfig(o)
	if err != nil {
		fatal(logger, "config", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd {
	case "list":
		err = runList(cfg, o, logger)
	case "practice":
		err = runPractice(ctx, cfg, logger)
	case "challenge":
		err = runChallenge(ctx, cfg, o, logger)
	case "score":
		err = runScore(ctx, cfg, o, logger)
	case "render":
		err = runRender(cfg, o, logger)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fatal(logger, cmd, err)
	}
}

func newLogger(debug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func fatal(logger *slog.Logger, what string, err error) {
	logger.Error(what+" failed", "err", err)
	os.Exit(1)
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(o options) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return cfg, err
		}
	}
	if o.tempo != 0 {
		cfg.TempoPercent = config.ClampTempo(o.tempo)
	}
	if o.transpose != 0 {
		cfg.Transpose = o.transpose
	}
	if o.note != "" {
		cfg.TargetNote = o.note
	}
	if o.seqName != "" {
		cfg.Sequence = o.seqName
	}
	if o.seqFile != "" {
		cfg.SequenceFile = o.seqFile
	}
	return cfg, cfg.Validate()
}

func sequenceName(cfg config.Config) string {
	if cfg.Sequence == "" {
		return "three-notes"
	}
	return cfg.Sequence
}

// loadSequence stores the configured file in lib's imported slot and returns
// it, or returns the named built-in sequence. Either is untransposed.
func loadSequence(lib *sequence.Library, cfg config.Config, track int) (sequence.Sequence, error) {
	if cfg.SequenceFile == "" {
		return lib.Get(sequenceName(cfg), 0)
	}
	seq, err := importFile(cfg.SequenceFile, track)
	if err != nil {
		return seq, err
	}
	if err := lib.SetImported(seq); err != nil {
		return seq, err
	}
	return lib.Get(sequence.ImportedName, 0)
}

func importFile(path string, track int) (sequence.Sequence, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi", ".smf":
		f, err := os.Open(path)
		if err != nil {
			return sequence.Sequence{}, err
		}
		defer f.Close()
		return sequence.FromSMF(name, f, track)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return sequence.Sequence{}, err
		}
		return sequence.FromMML(name, string(data))
	}
}

func runList(cfg config.Config, o options, logger *slog.Logger) error {
	lib := sequence.NewLibrary()
	if cfg.SequenceFile != "" {
		if _, err := loadSequence(lib, cfg, o.track); err != nil {
			logger.Warn("sequence import failed", "file", cfg.SequenceFile, "err", err)
		}
	}
	for _, name := range lib.Names() {
		seq, err := lib.Get(name, 0)
		if err != nil {
			return err
		}
		fmt.Printf("%-14s %5.1fs  %s\n", name, seq.Duration(100).Seconds(), strings.Join(seq.Labels(), " "))
	}
	return nil
}

func openDevices(cfg config.Config, logger *slog.Logger) (*audio.Microphone, *audio.Output, error) {
	mic := audio.NewMicrophone(cfg.SampleRate, cfg.FrameSize*2)
	mic.Logger = logger
	out, err := audio.NewOutput(cfg.SampleRate, cfg.SynthParams())
	if err != nil {
		return nil, nil, fmt.Errorf("open output: %w", err)
	}
	return mic, out, nil
}

func runPractice(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	mic, out, err := openDevices(cfg, logger)
	if err != nil {
		return err
	}
	defer out.Close()
	s, err := voicetrainer.NewSession(mic,
		voicetrainer.WithConfig(cfg),
		voicetrainer.WithLogger(logger),
		voicetrainer.WithToneOutput(out),
		voicetrainer.WithRenderSink(voicetrainer.RenderFunc(printPractice)),
	)
	if err != nil {
		return err
	}
	defer s.Close()
	s.PlayReference()
	if err := s.StartPractice(ctx); err != nil {
		return err
	}
	fmt.Printf("practice on %s (%.2f Hz), Ctrl-C to stop\n", s.Target(), s.Target().Frequency())
	err = s.Run(ctx, time.Second/120)
	st := s.HistoryStats()
	fmt.Printf("\nvoiced %.0f%%, mean deviation %.1f cents, %d in tune\n", st.VoicedRatio*100, st.MeanAbsCents, st.InTune)
	return err
}

func printPractice(r voicetrainer.TickResult) {
	if !r.Sampled {
		return
	}
	if !r.Voiced {
		fmt.Printf("\r%-4s  %8s  %s", r.Target, "--", meter(0, false))
		return
	}
	sung, _ := music.NearestNote(r.Hz)
	fmt.Printf("\r%-4s  %7.2fHz %-4s %+6.1f  %s", r.Target, r.Hz, sung, r.Cents, meter(r.DisplayCents, r.InTune))
}

// meter draws the needle on a 41-cell bar spanning ±100 cents.
func meter(cents float64, inTune bool) string {
	cells := []byte(strings.Repeat("-", 41))
	cells[20] = '|'
	pos := 20 + int(cents/5)
	if pos >= 0 && pos < len(cells) {
		cells[pos] = 'o'
		if inTune {
			cells[pos] = '*'
		}
	}
	return string(cells)
}

type challengePrinter struct {
	scored    int
	countdown int
}

func (p *challengePrinter) Render(r voicetrainer.TickResult) {
	if r.CountdownBeats > 0 && r.CountdownBeats != p.countdown {
		p.countdown = r.CountdownBeats
		fmt.Printf("%d...\n", r.CountdownBeats)
	}
	for ; p.scored < len(r.Scores); p.scored++ {
		ns := r.Scores[p.scored]
		fmt.Printf("%2d/%d %-4s %3d  (avg %.1f cents, %d samples)\n",
			p.scored+1, r.NoteCount, ns.Note, ns.Score, ns.AvgAbsCents, ns.Samples)
	}
}

func runChallenge(ctx context.Context, cfg config.Config, o options, logger *slog.Logger) error {
	mic, out, err := openDevices(cfg, logger)
	if err != nil {
		return err
	}
	defer out.Close()
	s, err := voicetrainer.NewSession(mic,
		voicetrainer.WithConfig(cfg),
		voicetrainer.WithLogger(logger),
		voicetrainer.WithToneOutput(out),
		voicetrainer.WithRenderSink(&challengePrinter{}),
	)
	if err != nil {
		return err
	}
	defer s.Close()
	if cfg.SequenceFile != "" {
		err = s.ImportSequence(func() (sequence.Sequence, error) { return importFile(cfg.SequenceFile, o.track) })
	} else {
		err = s.SelectSequence(sequenceName(cfg))
	}
	if err != nil {
		return err
	}
	seq, _ := s.Sequence()
	fmt.Printf("%s at %.0f%%: %s\n", seq.Name, s.Tempo(), strings.Join(seq.Labels(), " "))
	if err := s.StartChallenge(ctx, time.Now()); err != nil {
		return err
	}
	if err := s.Run(ctx, time.Second/120); err != nil {
		return err
	}
	res, ok := s.Result()
	if !ok {
		fmt.Println("stopped")
		return nil
	}
	return printResult(res, o.asJSON)
}

func printResult(res score.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Printf("score %d%%, grade %s\n", res.Percentage, res.Grade)
	return nil
}

func runScore(ctx context.Context, cfg config.Config, o options, logger *slog.Logger) error {
	if o.wavPath == "" {
		return errors.New("-wav is required")
	}
	f, err := os.Open(o.wavPath)
	if err != nil {
		return err
	}
	defer f.Close()
	take, err := clip.LoadWAV(f)
	if err != nil {
		return err
	}
	seq, err := loadSequence(sequence.NewLibrary(), cfg, o.track)
	if err != nil {
		return err
	}
	seq = seq.Transpose(cfg.Transpose)
	logger.Info("scoring take", "file", o.wavPath, "length", take.Duration(), "sequence", seq.Name)
	cfg.Transpose = 0
	res, err := voicetrainer.ScoreRecording(ctx, take, seq, cfg, voicetrainer.WithLogger(logger))
	if err != nil {
		return err
	}
	if !o.asJSON {
		for i, ns := range res.Scores {
			fmt.Printf("%2d %-4s %3d  (avg %.1f cents)\n", i+1, ns.Note, ns.Score, ns.AvgAbsCents)
		}
	}
	return printResult(res, o.asJSON)
}

func runRender(cfg config.Config, o options, logger *slog.Logger) error {
	seq, err := loadSequence(sequence.NewLibrary(), cfg, o.track)
	if err != nil {
		return err
	}
	seq = seq.Transpose(cfg.Transpose)
	samples := voicetrainer.RenderSequence(seq, cfg.TempoPercent, cfg.SampleRate, cfg.SynthParams())
	f, err := os.Create(o.outPath)
	if err != nil {
		return err
	}
	if err := clip.WriteWAV(f, samples, cfg.SampleRate); err != nil {
		f.Close()
		return err
	}
	logger.Info("rendered", "sequence", seq.Name, "file", o.outPath, "seconds", float64(len(samples))/float64(cfg.SampleRate))
	return f.Close()
}
