package pitch

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Spectrum returns the magnitude spectrum (DC to Nyquist) of a
// Hann-windowed copy of f. It is display data for the render sink and
// plays no part in estimation.
func Spectrum(f Frame) []float64 {
	if len(f.Samples) == 0 {
		return nil
	}
	x := make([]float64, len(f.Samples))
	copy(x, f.Samples)
	window.Apply(x, window.Hann)
	bins := fft.FFTReal(x)
	mags := make([]float64, len(bins)/2+1)
	for i := range mags {
		mags[i] = cmplx.Abs(bins[i])
	}
	return mags
}

// BinFrequency converts a Spectrum bin index to Hz.
func BinFrequency(bin, frameLen, sampleRate int) float64 {
	if frameLen == 0 {
		return 0
	}
	return float64(bin) * float64(sampleRate) / float64(frameLen)
}
