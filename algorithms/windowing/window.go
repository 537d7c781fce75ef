// Package windowing provides the analysis windows applied to each audio
// block before the FFT.
package windowing

import (
	"fmt"
	"strings"

	"github.com/mjibson/go-dsp/window"
)

// Type names a window function.
type Type string

const (
	Hann        Type = "hann"
	Hamming     Type = "hamming"
	Blackman    Type = "blackman"
	Bartlett    Type = "bartlett"
	FlatTop     Type = "flattop"
	Rectangular Type = "rectangular"
)

var generators = map[Type]func(int) []float64{
	Hann:        window.Hann,
	Hamming:     window.Hamming,
	Blackman:    window.Blackman,
	Bartlett:    window.Bartlett,
	FlatTop:     window.FlatTop,
	Rectangular: window.Rectangular,
}

// ParseType accepts a window name case-insensitively; "" means Hann.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return Hann, nil
	}
	if _, ok := generators[t]; !ok {
		return "", fmt.Errorf("unknown window type %q", s)
	}
	return t, nil
}

// Window holds precomputed coefficients for one size.
type Window struct {
	kind         Type
	size         int
	periodic     bool
	coefficients []float64
}

// New creates a window of the given size. A periodic window is the first
// size points of a size+1 symmetric window, the form used for spectral
// analysis frames.
func New(kind Type, size int, periodic bool) (*Window, error) {
	gen, ok := generators[kind]
	if !ok {
		return nil, fmt.Errorf("unknown window type %q", kind)
	}
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}

	var coefficients []float64
	if periodic {
		coefficients = gen(size + 1)[:size]
	} else {
		coefficients = gen(size)
	}

	return &Window{
		kind:         kind,
		size:         size,
		periodic:     periodic,
		coefficients: coefficients,
	}, nil
}

// Apply applies the window to a signal (creates new array)
func (w *Window) Apply(signal []float64) []float64 {
	if len(signal) != w.size {
		return nil
	}

	windowed := make([]float64, w.size)
	for i, c := range w.coefficients {
		windowed[i] = signal[i] * c
	}

	return windowed
}

// ApplyInPlace applies the window to a signal in-place
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != w.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), w.size)
	}

	for i, c := range w.coefficients {
		signal[i] *= c
	}

	return nil
}

// GetCoefficients returns a copy of the window coefficients
func (w *Window) GetCoefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

// GetSize returns the window size
func (w *Window) GetSize() int {
	return w.size
}

// GetType returns the window type
func (w *Window) GetType() Type {
	return w.kind
}

// IsPeriodic reports whether the window was built in periodic form.
func (w *Window) IsPeriodic() bool {
	return w.periodic
}
