package pitch

import (
	"math"
	"sort"
)

// maxHarmonic bounds the numerator and denominator of candidate ratios.
const maxHarmonic = 5

// harmonicCandidates holds the distinct values k1/k2 with 1 <= k2 <= k1 <= 5.
var harmonicCandidates = func() []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for k1 := 1; k1 <= maxHarmonic; k1++ {
		for k2 := 1; k2 <= k1; k2++ {
			r := float64(k1) / float64(k2)
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	sort.Float64s(out)
	return out
}()

// HarmonicRatios returns the candidate ratios HarmonicRatio matches against.
func HarmonicRatios() []float64 {
	out := make([]float64, len(harmonicCandidates))
	copy(out, harmonicCandidates)
	return out
}

// HarmonicRatio reports whether f1 and f2 lie in the same overtone series.
// It returns the closest simple ratio (>= 1) when it is within tolerance of
// max/min, positive when f1 is the larger frequency and negative otherwise.
// It returns 0 when either frequency is 0 or no candidate is close enough.
// Equal frequencies give -1.
func HarmonicRatio(f1, f2, tolerance float64) float64 {
	if f1 == 0 || f2 == 0 {
		return 0
	}

	larger, smaller := f2, f1
	if f1 > f2 {
		larger, smaller = f1, f2
	}
	ratio := larger / smaller

	closest := 0.0
	minDiff := math.Inf(1)
	for _, candidate := range harmonicCandidates {
		if d := math.Abs(ratio - candidate); d < minDiff {
			minDiff = d
			closest = candidate
		}
	}

	if minDiff > tolerance {
		return 0
	}
	if f1 > f2 {
		return closest
	}
	return -closest
}

// IsUnison reports whether a HarmonicRatio result is the trivial 1:1 ratio.
func IsUnison(ratio float64) bool {
	return math.Abs(ratio) == 1
}
