package spectral

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// FFTFrequencies returns the centre frequency of each of the nfft/2+1
// non-negative bins of a real FFT.
func FFTFrequencies(sampleRate, nfft int) []float64 {
	if sampleRate <= 0 || nfft <= 0 {
		return nil
	}

	bins := nfft/2 + 1
	step := float64(sampleRate) / float64(nfft)
	freqs := make([]float64, bins)
	for k := range freqs {
		freqs[k] = float64(k) * step
	}
	return freqs
}

// BandIndices returns [start, end) such that freqs[start:end] holds exactly
// the ascending frequencies inside [lo, hi].
func BandIndices(freqs []float64, lo, hi float64) (int, int) {
	start := len(freqs)
	for i, f := range freqs {
		if f >= lo {
			start = i
			break
		}
	}
	end := start
	for end < len(freqs) && freqs[end] <= hi {
		end++
	}
	return start, end
}

// LogSpace returns n points spaced evenly on a log scale from lo to hi
// inclusive.
func LogSpace(lo, hi float64, n int) ([]float64, error) {
	if lo <= 0 || hi <= lo {
		return nil, fmt.Errorf("log axis needs 0 < lo < hi, got [%v, %v]", lo, hi)
	}
	if n < 2 {
		return nil, fmt.Errorf("log axis needs at least 2 points, got %d", n)
	}
	return floats.LogSpan(make([]float64, n), lo, hi), nil
}
