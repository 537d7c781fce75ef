package peaks

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidInput is returned by FindPeaks for curves or options it cannot
// work with.
var ErrInvalidInput = errors.New("invalid peak-finding input")

// FindOptions are the joint constraints every returned peak satisfies.
type FindOptions struct {
	Height     float64 // minimum sample value; -Inf disables
	Prominence float64 // minimum prominence; 0 disables
	Distance   float64 // minimum index spacing between peaks, >= 1
}

// DefaultFindOptions accepts every local maximum.
func DefaultFindOptions() FindOptions {
	return FindOptions{
		Height:     math.Inf(-1),
		Prominence: 0,
		Distance:   1,
	}
}

// FindResult holds the surviving peak indices in ascending order with their
// heights and prominences at the same positions.
type FindResult struct {
	Indices     []int
	Heights     []float64
	Prominences []float64
}

// Len returns the number of peaks found.
func (r FindResult) Len() int { return len(r.Indices) }

// FindPeaks locates local maxima of x. A flat-topped maximum is reported at
// the middle of its plateau (lower middle for even widths). Constraints are
// applied in order: height, distance (tallest peaks claim their
// neighbourhood first), prominence.
func FindPeaks(x []float64, opts FindOptions) (FindResult, error) {
	if opts.Distance < 1 {
		return FindResult{}, fmt.Errorf("%w: distance must be >= 1, got %v", ErrInvalidInput, opts.Distance)
	}
	if math.IsNaN(opts.Height) || math.IsNaN(opts.Prominence) {
		return FindResult{}, fmt.Errorf("%w: NaN threshold", ErrInvalidInput)
	}
	for i, v := range x {
		if math.IsNaN(v) {
			return FindResult{}, fmt.Errorf("%w: NaN at index %d", ErrInvalidInput, i)
		}
	}

	candidates := localMaxima(x)

	kept := candidates[:0]
	for _, p := range candidates {
		if x[p] >= opts.Height {
			kept = append(kept, p)
		}
	}

	if opts.Distance > 1 {
		kept = selectByDistance(x, kept, int(math.Ceil(opts.Distance)))
	}

	result := FindResult{
		Indices:     make([]int, 0, len(kept)),
		Heights:     make([]float64, 0, len(kept)),
		Prominences: make([]float64, 0, len(kept)),
	}
	for _, p := range kept {
		prom := prominence(x, p)
		if prom < opts.Prominence {
			continue
		}
		result.Indices = append(result.Indices, p)
		result.Heights = append(result.Heights, x[p])
		result.Prominences = append(result.Prominences, prom)
	}
	return result, nil
}

// localMaxima returns the indices of samples strictly greater than both
// neighbours, treating runs of equal values as one sample. The first and
// last samples are never maxima.
func localMaxima(x []float64) []int {
	var out []int
	n := len(x)
	i := 1
	for i < n-1 {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < n-1 && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				left, right := i, ahead-1
				out = append(out, (left+right)/2)
				i = ahead
			}
		}
		i++
	}
	return out
}

// selectByDistance drops peaks closer than distance to a taller peak.
func selectByDistance(x []float64, peaks []int, distance int) []int {
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return x[peaks[order[a]]] < x[peaks[order[b]]]
	})

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}

	for i := len(order) - 1; i >= 0; i-- {
		j := order[i]
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < distance; k++ {
			keep[k] = false
		}
	}

	out := peaks[:0]
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

// prominence measures how far peak p stands above the higher of the two
// lowest points reachable on either side before meeting a taller sample.
func prominence(x []float64, p int) float64 {
	leftMin := x[p]
	for i := p; i >= 0 && x[i] <= x[p]; i-- {
		leftMin = math.Min(leftMin, x[i])
	}

	rightMin := x[p]
	for i := p; i < len(x) && x[i] <= x[p]; i++ {
		rightMin = math.Min(rightMin, x[i])
	}

	return x[p] - math.Max(leftMin, rightMin)
}
