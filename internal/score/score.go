package score

import (
	"encoding/json"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// OnPitchTolerance is the |cents| window in which a sample counts toward
// time on pitch. It is deliberately wider than the live display's in-tune
// zone.
const OnPitchTolerance = 50.0

const (
	maxAccuracyPoints = 60.0
	maxTimePoints     = 40.0
)

// NoteScore is the frozen result for one note of a challenge run.
type NoteScore struct {
	Note        string        `json:"note"`
	Score       int           `json:"score"`
	AvgAbsCents float64       `json:"avg_abs_cents"`
	TimeOnPitch time.Duration `json:"-"`
	TotalTime   time.Duration `json:"-"`
	Samples     int           `json:"samples"`
}

// MarshalJSON writes the durations as whole milliseconds.
func (ns NoteScore) MarshalJSON() ([]byte, error) {
	type plain NoteScore
	return json.Marshal(struct {
		plain
		TimeOnPitchMS int64 `json:"time_on_pitch_ms"`
		TotalTimeMS   int64 `json:"total_time_ms"`
	}{
		plain:         plain(ns),
		TimeOnPitchMS: ns.TimeOnPitch.Round(time.Millisecond).Milliseconds(),
		TotalTimeMS:   ns.TotalTime.Round(time.Millisecond).Milliseconds(),
	})
}

// OnPitch reports whether a deviation counts toward time on pitch.
func OnPitch(cents float64) bool {
	return math.Abs(cents) <= OnPitchTolerance
}

// Accuracy maps the mean absolute deviation in cents to 0–60 points. The
// breakpoints are lenient on purpose and must not change.
func Accuracy(avgAbsCents float64) float64 {
	switch {
	case avgAbsCents <= 25:
		return 60
	case avgAbsCents <= 50:
		return 55
	case avgAbsCents <= 75:
		return 50
	case avgAbsCents <= 100:
		return 40
	case avgAbsCents <= 150:
		return 30
	default:
		return math.Max(10, 25-(avgAbsCents-150)/20)
	}
}

// TimePoints maps the on-pitch share of the note to 0–40 points.
func TimePoints(onPitch, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	ratio := float64(onPitch) / float64(total)
	return maxTimePoints * math.Min(1, math.Max(0, ratio))
}

// Note scores one note from its collected deviations (cents, unclamped).
// A note without any voiced sample scores 0.
func Note(label string, cents []float64, onPitch, total time.Duration) NoteScore {
	ns := NoteScore{
		Note:        label,
		TimeOnPitch: onPitch,
		TotalTime:   total,
		Samples:     len(cents),
	}
	if len(cents) == 0 {
		return ns
	}
	abs := make([]float64, len(cents))
	copy(abs, cents)
	for i, c := range abs {
		abs[i] = math.Abs(c)
	}
	ns.AvgAbsCents = stat.Mean(abs, nil)
	ns.Score = int(math.Round(Accuracy(ns.AvgAbsCents) + TimePoints(onPitch, total)))
	return ns
}

// Grade is the letter grade of a finished run.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

func GradeFor(percentage int) Grade {
	switch {
	case percentage >= 85:
		return GradeA
	case percentage >= 70:
		return GradeB
	case percentage >= 55:
		return GradeC
	case percentage >= 40:
		return GradeD
	default:
		return GradeF
	}
}

// Result aggregates a run's note scores.
type Result struct {
	Scores     []NoteScore `json:"scores"`
	Percentage int         `json:"percentage"`
	Grade      Grade       `json:"grade"`
}

func Aggregate(scores []NoteScore) Result {
	r := Result{Scores: scores, Grade: GradeF}
	if len(scores) == 0 {
		return r
	}
	points := make([]float64, len(scores))
	for i, s := range scores {
		points[i] = float64(s.Score)
	}
	r.Percentage = int(math.Round(100 * floats.Sum(points) / (100 * float64(len(scores)))))
	r.Grade = GradeFor(r.Percentage)
	return r
}
