package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps the real-input transform used by the estimator.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the FFT of a real signal. go-dsp handles non-power-of-two
// lengths, so FFT sizes scaled by the sample-rate multiplier need no padding.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	return fft.FFTReal(x)
}
