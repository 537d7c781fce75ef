package spectral

import (
	"fmt"
	"math/cmplx"
)

// Window interface for windowing functions
type Window interface {
	ApplyInPlace(signal []float64) error
}

// STFT computes magnitude spectra of uncentered frames.
type STFT struct {
	fft *FFT

	// reused between calls; an STFT belongs to a single compute goroutine
	frameBuffer []float64
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
	}
}

// ComputeSingleFrame windows signal[:windowSize] and returns the magnitude
// of the windowSize/2+1 non-negative frequency bins.
func (s *STFT) ComputeSingleFrame(signal []float64, windowSize int, window Window) ([]float64, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if len(signal) < windowSize {
		return nil, fmt.Errorf("signal length (%d) shorter than window size (%d)", len(signal), windowSize)
	}

	if cap(s.frameBuffer) < windowSize {
		s.frameBuffer = make([]float64, windowSize)
	}
	frame := s.frameBuffer[:windowSize]
	copy(frame, signal[:windowSize])

	if window != nil {
		if err := window.ApplyInPlace(frame); err != nil {
			return nil, fmt.Errorf("apply window: %w", err)
		}
	}

	spectrum := s.fft.Compute(frame)
	freqBins := windowSize/2 + 1

	magnitude := make([]float64, freqBins)
	for i := 0; i < freqBins; i++ {
		magnitude[i] = cmplx.Abs(spectrum[i])
	}

	return magnitude, nil
}

// ComputeMaxMagnitude slides uncentered frames over signal with hopSize and
// keeps, per bin, the largest magnitude seen. A signal exactly windowSize
// long yields the single-frame spectrum.
func (s *STFT) ComputeMaxMagnitude(signal []float64, windowSize, hopSize int, window Window) ([]float64, error) {
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	numFrames := (len(signal)-windowSize)/hopSize + 1
	if len(signal) < windowSize || numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	result, err := s.ComputeSingleFrame(signal, windowSize, window)
	if err != nil {
		return nil, err
	}

	for frameIdx := 1; frameIdx < numFrames; frameIdx++ {
		start := frameIdx * hopSize
		mag, err := s.ComputeSingleFrame(signal[start:], windowSize, window)
		if err != nil {
			return nil, err
		}
		for i, m := range mag {
			if m > result[i] {
				result[i] = m
			}
		}
	}

	return result, nil
}
