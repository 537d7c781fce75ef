package peaks

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/kilomelo/audio-analysis/internal/testutil"
)

func TestFindPeaks_LocalMaxima(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		want []int
	}{
		{"single", []float64{0, 1, 0}, []int{1}},
		{"two", []float64{0, 2, 0, 3, 0}, []int{1, 3}},
		{"plateau odd", []float64{0, 1, 1, 1, 0}, []int{2}},
		{"plateau even", []float64{0, 1, 1, 1, 1, 0}, []int{2}},
		{"edges ignored", []float64{3, 1, 2, 1, 3}, []int{2}},
		{"open plateau", []float64{0, 1, 1, 1}, nil},
		{"monotonic", []float64{1, 2, 3, 4}, nil},
		{"too short", []float64{1, 2}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := FindPeaks(tt.x, DefaultFindOptions())
			if err != nil {
				t.Fatalf("FindPeaks: %v", err)
			}
			if !slices.Equal(res.Indices, tt.want) {
				t.Errorf("indices = %v, want %v", res.Indices, tt.want)
			}
		})
	}
}

func TestFindPeaks_Height(t *testing.T) {
	x := []float64{0, 5, 0, 2, 0, 8, 0}
	opts := DefaultFindOptions()
	opts.Height = 3

	res, err := FindPeaks(x, opts)
	if err != nil {
		t.Fatalf("FindPeaks: %v", err)
	}
	if !slices.Equal(res.Indices, []int{1, 5}) {
		t.Errorf("indices = %v, want [1 5]", res.Indices)
	}
	if !slices.Equal(res.Heights, []float64{5, 8}) {
		t.Errorf("heights = %v, want [5 8]", res.Heights)
	}
}

func TestFindPeaks_DistanceKeepsTallest(t *testing.T) {
	x := []float64{0, 3, 0, 5, 0, 4, 0, 0, 0, 2, 0}
	opts := DefaultFindOptions()
	opts.Distance = 3

	res, err := FindPeaks(x, opts)
	if err != nil {
		t.Fatalf("FindPeaks: %v", err)
	}
	// 5 at index 3 suppresses 1 and 5; 9 is far enough away
	if !slices.Equal(res.Indices, []int{3, 9}) {
		t.Errorf("indices = %v, want [3 9]", res.Indices)
	}
}

func TestFindPeaks_Prominence(t *testing.T) {
	// the small bump at 5 rises only 1 above its saddle
	x := []float64{0, 10, 4, 5, 4, 6, 3, 0}
	res, err := FindPeaks(x, DefaultFindOptions())
	if err != nil {
		t.Fatalf("FindPeaks: %v", err)
	}
	if !slices.Equal(res.Indices, []int{1, 3, 5}) {
		t.Fatalf("indices = %v, want [1 3 5]", res.Indices)
	}
	testutil.AssertClose(t, "prominence 1", res.Prominences[0], 10, 0)
	testutil.AssertClose(t, "prominence 3", res.Prominences[1], 1, 0)
	testutil.AssertClose(t, "prominence 5", res.Prominences[2], 2, 0)

	opts := DefaultFindOptions()
	opts.Prominence = 2
	res, err = FindPeaks(x, opts)
	if err != nil {
		t.Fatalf("FindPeaks: %v", err)
	}
	if !slices.Equal(res.Indices, []int{1, 5}) {
		t.Errorf("indices = %v, want [1 5]", res.Indices)
	}
}

func TestFindPeaks_InvalidInput(t *testing.T) {
	if _, err := FindPeaks([]float64{0, math.NaN(), 0}, DefaultFindOptions()); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("NaN sample: err = %v", err)
	}

	opts := DefaultFindOptions()
	opts.Distance = 0.5
	if _, err := FindPeaks([]float64{0, 1, 0}, opts); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("distance < 1: err = %v", err)
	}
}

func TestParabolicOffset(t *testing.T) {
	testutil.AssertClose(t, "symmetric", ParabolicOffset(1, 2, 1), 0, 1e-12)
	testutil.AssertClose(t, "flat", ParabolicOffset(3, 3, 3), 0, 1e-12)

	// parabola y = -(x-0.25)^2 sampled at -1, 0, 1
	y := func(x float64) float64 { return -(x - 0.25) * (x - 0.25) }
	testutil.AssertClose(t, "vertex", ParabolicOffset(y(-1), y(0), y(1)), 0.25, 1e-6)

	testutil.AssertClose(t, "clipped", ParabolicOffset(10, 1, 0), 0.5, 0)
}
