package pitch

// Params configures the YIN estimator.
type Params struct {
	// Threshold on the cumulative-mean-normalized difference below which a
	// lag counts as periodic.
	Threshold float64
	// SilenceRMS short-circuits frames quieter than this level.
	SilenceRMS float64
}

func DefaultParams() Params {
	return Params{
		Threshold:  0.1,
		SilenceRMS: 0.005,
	}
}

// Estimator implements the YIN fundamental-frequency estimator.
//
// Reference: de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental
// frequency estimator for speech and music".
//
// The difference function is computed directly, so each call is O(M²) with
// M = len(frame)/2. Frame sizes are expected to stay around 2048–4096.
// An Estimator reuses its scratch buffer and is not safe for concurrent use.
type Estimator struct {
	params Params
	buf    []float64
}

func NewEstimator(params Params) *Estimator {
	if params.Threshold <= 0 {
		params.Threshold = DefaultParams().Threshold
	}
	if params.SilenceRMS < 0 {
		params.SilenceRMS = 0
	}
	return &Estimator{params: params}
}

func (e *Estimator) Params() Params { return e.params }

// Estimate returns the fundamental frequency of f in Hz. ok is false when
// the frame is silent or no periodic minimum was found.
func (e *Estimator) Estimate(f Frame) (hz float64, ok bool) {
	if f.SampleRate <= 0 || f.RMS() < e.params.SilenceRMS {
		return 0, false
	}
	half := len(f.Samples) / 2
	if half < 3 {
		return 0, false
	}
	if cap(e.buf) < half {
		e.buf = make([]float64, half)
	}
	yin := e.buf[:half]

	difference(f.Samples, yin)
	cumulativeMeanNormalize(yin)

	tau := absoluteThreshold(yin, e.params.Threshold)
	if tau < 0 {
		return 0, false
	}
	period := parabolicInterpolation(yin, tau)
	if period <= 0 {
		return 0, false
	}
	return float64(f.SampleRate) / period, true
}

// difference fills d[tau] = Σ (x[i] - x[i+tau])² for i in [0, len(d)).
func difference(x, d []float64) {
	m := len(d)
	for tau := 0; tau < m; tau++ {
		sum := 0.0
		for i := 0; i < m; i++ {
			delta := x[i] - x[i+tau]
			sum += delta * delta
		}
		d[tau] = sum
	}
}

// cumulativeMeanNormalize rewrites d in place as d'(tau) = d(tau) / mean(d(1..tau)),
// with d'(0) = 1.
func cumulativeMeanNormalize(d []float64) {
	d[0] = 1
	running := 0.0
	for tau := 1; tau < len(d); tau++ {
		running += d[tau]
		if running == 0 {
			d[tau] = 1
			continue
		}
		d[tau] *= float64(tau) / running
	}
}

// absoluteThreshold returns the first lag whose normalized difference dips
// below threshold, walked forward to the bottom of that dip. -1 if none.
func absoluteThreshold(d []float64, threshold float64) int {
	m := len(d)
	tau := 2
	for ; tau < m; tau++ {
		if d[tau] < threshold {
			for tau+1 < m && d[tau+1] < d[tau] {
				tau++
			}
			break
		}
	}
	if tau >= m-1 || d[tau] >= threshold {
		return -1
	}
	return tau
}

// parabolicInterpolation refines tau through the parabola fitted on
// (tau-1, tau, tau+1). Adjustments of a sample or more are rejected.
func parabolicInterpolation(d []float64, tau int) float64 {
	s0, s1, s2 := d[tau-1], d[tau], d[tau+1]
	denom := 2 * (2*s1 - s2 - s0)
	if denom == 0 {
		return float64(tau)
	}
	adj := (s2 - s0) / denom
	if adj > -1 && adj < 1 {
		return float64(tau) + adj
	}
	return float64(tau)
}
