package spectral

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// InterpolationKind selects how a curve is resampled onto a new axis.
type InterpolationKind int

const (
	// Nearest takes the value of the closest known sample.
	Nearest InterpolationKind = iota
	// Linear joins neighbouring samples with straight lines.
	Linear
	// Cubic fits a not-a-knot cubic spline through all samples.
	Cubic
)

func (k InterpolationKind) String() string {
	switch k {
	case Nearest:
		return "nearest"
	case Linear:
		return "linear"
	case Cubic:
		return "cubic"
	default:
		return "unknown"
	}
}

// ErrInterpolation is returned when a curve cannot be resampled.
var ErrInterpolation = errors.New("interpolation failed")

// minPoints is the fewest samples each kind can be fitted to.
func (k InterpolationKind) minPoints() int {
	switch k {
	case Cubic:
		return 4
	case Linear:
		return 2
	default:
		return 1
	}
}

// Resample evaluates the curve (xs, ys) at every point of xNew. xs must be
// strictly increasing. Points of xNew outside [xs[0], xs[len-1]] get fill.
func Resample(xs, ys, xNew []float64, kind InterpolationKind, fill float64) ([]float64, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: %d x values, %d y values", ErrInterpolation, len(xs), len(ys))
	}
	if len(xs) < kind.minPoints() {
		return nil, fmt.Errorf("%w: %s needs %d points, got %d", ErrInterpolation, kind, kind.minPoints(), len(xs))
	}
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			return nil, fmt.Errorf("%w: NaN at index %d", ErrInterpolation, i)
		}
		if i > 0 && xs[i] <= xs[i-1] {
			return nil, fmt.Errorf("%w: x not strictly increasing at index %d", ErrInterpolation, i)
		}
	}

	var predict func(float64) float64
	switch kind {
	case Cubic:
		var spline interp.NotAKnotCubic
		if err := spline.Fit(xs, ys); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInterpolation, err)
		}
		predict = spline.Predict
	case Linear:
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, ys); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInterpolation, err)
		}
		predict = pl.Predict
	case Nearest:
		predict = nearestPredictor(xs, ys)
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInterpolation, kind)
	}

	lo, hi := xs[0], xs[len(xs)-1]
	out := make([]float64, len(xNew))
	for i, x := range xNew {
		if x < lo || x > hi {
			out[i] = fill
			continue
		}
		out[i] = predict(x)
	}
	return out, nil
}

// nearestPredictor picks the sample whose x is closest; a point exactly
// halfway between two samples takes the lower one.
func nearestPredictor(xs, ys []float64) func(float64) float64 {
	bounds := make([]float64, len(xs)-1)
	for i := range bounds {
		bounds[i] = (xs[i] + xs[i+1]) / 2
	}
	return func(x float64) float64 {
		return ys[sort.SearchFloat64s(bounds, x)]
	}
}

// Interp evaluates the piecewise-linear curve (xp, fp) at x, clamping to the
// end values outside the curve. xp must be ascending.
func Interp(x float64, xp, fp []float64) float64 {
	n := len(xp)
	switch {
	case n == 0:
		return math.NaN()
	case x <= xp[0]:
		return fp[0]
	case x >= xp[n-1]:
		return fp[n-1]
	}

	i := floats.Within(xp, x)
	if i < 0 {
		return fp[n-1]
	}
	t := (x - xp[i]) / (xp[i+1] - xp[i])
	return fp[i] + t*(fp[i+1]-fp[i])
}

// FlatCurve returns n copies of value.
func FlatCurve(n int, value float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}
