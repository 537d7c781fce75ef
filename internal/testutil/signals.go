// Package testutil holds deterministic signal generators and tolerance
// helpers shared by the package tests.
package testutil

import (
	"math"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// HarmonicTone sums sines at f0*(k+1) with the given per-partial amplitudes.
func HarmonicTone(f0, sampleRate float64, amplitudes []float64, length int) []float64 {
	out := make([]float64, length)
	for k, amp := range amplitudes {
		partial := DeterministicSine(f0*float64(k+1), sampleRate, amp, length)
		for i := range out {
			out[i] += partial[i]
		}
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}
