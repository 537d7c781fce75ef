package peaks

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kilomelo/audio-analysis/algorithms/spectral"
	"github.com/kilomelo/audio-analysis/logging"
)

// ErrDetection wraps every failure of DetectPeaks. Callers skip the frame.
var ErrDetection = errors.New("peak detection failed")

// parabolaEpsilon keeps the vertex offset finite on flat triples.
const parabolaEpsilon = 1e-9

// Peak is a refined spectral peak.
type Peak struct {
	Frequency   float64 `json:"frequency"`    // Hz
	AmplitudeDB float64 `json:"amplitude_db"` // read from the display curve
}

// Config holds the peak-selection policy.
type Config struct {
	MinFreq          float64 `yaml:"min_freq" json:"min_freq"`
	MaxFreq          float64 `yaml:"max_freq" json:"max_freq"`
	Prominence       float64 `yaml:"prominence" json:"prominence"`
	Height           float64 `yaml:"height" json:"height"`
	Distance         float64 `yaml:"distance" json:"distance"` // in log-axis points
	MinDB            float64 `yaml:"min_db" json:"min_db"`
	DynamicThreshold float64 `yaml:"dynamic_threshold" json:"dynamic_threshold"`
	DBOffset         float64 `yaml:"db_offset" json:"db_offset"`
	Num              int     `yaml:"num" json:"num"`
	// SmoothedCurve reads peak dB from Smooth instead of Raw. The pipeline
	// copies it from the displayed spectrum curve.
	SmoothedCurve bool `yaml:"-" json:"-"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		MinFreq:          100,
		MaxFreq:          4000,
		Prominence:       20,
		Height:           -50,
		Distance:         80,
		MinDB:            -40,
		DynamicThreshold: 0.72,
		DBOffset:         60,
		Num:              5,
		SmoothedCurve:    false,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.MaxFreq <= c.MinFreq {
		return fmt.Errorf("max_freq (%v) must exceed min_freq (%v)", c.MaxFreq, c.MinFreq)
	}
	if c.Distance < 1 {
		return fmt.Errorf("distance must be >= 1, got %v", c.Distance)
	}
	if c.Num < 1 {
		return fmt.Errorf("num must be positive, got %d", c.Num)
	}
	if c.DynamicThreshold < 0 {
		return fmt.Errorf("dynamic_threshold must not be negative, got %v", c.DynamicThreshold)
	}
	return nil
}

// Detector finds and refines peaks on frames sharing one pair of axes.
type Detector struct {
	config    Config
	xSubband  []float64
	xLog      []float64
	freqStep  float64
	bandStart int // search range inside xLog
	bandEnd   int
	logger    logging.Logger
}

// NewDetector binds a detector to the axes of a spectral.Estimator. At
// least three sub-band bins are needed for the parabolic refinement.
func NewDetector(xSubband, xLog []float64, config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid peak config: %w", err)
	}
	if len(xSubband) < 3 {
		return nil, fmt.Errorf("need at least 3 sub-band bins, got %d", len(xSubband))
	}
	if len(xLog) == 0 {
		return nil, fmt.Errorf("empty log axis")
	}

	start, end := spectral.BandIndices(xLog, config.MinFreq, config.MaxFreq)

	return &Detector{
		config:    config,
		xSubband:  xSubband,
		xLog:      xLog,
		freqStep:  xSubband[1] - xSubband[0],
		bandStart: start,
		bandEnd:   end,
		logger: logging.WithFields(logging.Fields{
			"component": "peak_detector",
		}),
	}, nil
}

// Config returns the detector's policy.
func (d *Detector) Config() Config { return d.config }

// Matches reports whether the detector was built for these axes.
func (d *Detector) Matches(xSubband, xLog []float64) bool {
	return sameSlice(d.xSubband, xSubband) && sameSlice(d.xLog, xLog)
}

func sameSlice(a, b []float64) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}

// DetectPeaks returns at most Num peaks of the frame, the loudest ones,
// ordered by ascending frequency.
func (d *Detector) DetectPeaks(frame *spectral.Frame) ([]Peak, error) {
	if frame == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrDetection)
	}
	if len(frame.Raw) != len(d.xLog) || len(frame.Smooth) != len(d.xLog) {
		return nil, fmt.Errorf("%w: curve length %d/%d, axis length %d",
			ErrDetection, len(frame.Raw), len(frame.Smooth), len(d.xLog))
	}
	if len(frame.DBSubband) != len(d.xSubband) {
		return nil, fmt.Errorf("%w: %d sub-band values for %d bins",
			ErrDetection, len(frame.DBSubband), len(d.xSubband))
	}

	validX := d.xLog[d.bandStart:d.bandEnd]
	validDB := frame.Raw[d.bandStart:d.bandEnd]

	found, err := FindPeaks(validDB, FindOptions{
		Height:     d.config.Height,
		Prominence: d.config.Prominence,
		Distance:   d.config.Distance,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetection, err)
	}

	freqs := make([]float64, found.Len())
	for i, idx := range found.Indices {
		freqs[i] = validX[idx]
	}
	survivors := DynamicThreshold(freqs, found.Heights, d.config.DBOffset, d.config.DynamicThreshold)

	display := frame.Raw
	if d.config.SmoothedCurve {
		display = frame.Smooth
	}

	refined := make([]Peak, 0, found.Len())
	for i := range found.Indices {
		if !survivors[i] ||
			found.Prominences[i] <= d.config.Prominence ||
			found.Heights[i] <= d.config.MinDB {
			continue
		}

		freq := d.refine(freqs[i], frame.DBSubband)
		refined = append(refined, Peak{
			Frequency:   freq,
			AmplitudeDB: spectral.Interp(freq, d.xLog, display),
		})
	}

	d.logger.Debug("peaks detected", logging.Fields{
		"candidates": found.Len(),
		"refined":    len(refined),
	})

	return SelectTop(refined, d.config.Num), nil
}

// refine moves an approximate log-axis frequency onto the vertex of the
// parabola through the nearest sub-band bin and its neighbours.
func (d *Detector) refine(approx float64, dbSubband []float64) float64 {
	idx := nearestIndex(d.xSubband, approx)
	idx = max(1, min(idx, len(d.xSubband)-2))
	delta := ParabolicOffset(dbSubband[idx-1], dbSubband[idx], dbSubband[idx+1])
	return d.xSubband[idx] + delta*d.freqStep
}

// nearestIndex returns the index of the ascending xs closest to v; ties go
// to the lower index.
func nearestIndex(xs []float64, v float64) int {
	i := sort.SearchFloat64s(xs, v)
	if i == 0 {
		return 0
	}
	if i == len(xs) {
		return len(xs) - 1
	}
	if v-xs[i-1] <= xs[i]-v {
		return i - 1
	}
	return i
}

// ParabolicOffset returns the vertex position, in bins relative to the
// middle sample, of the parabola through (-1, y0), (0, y1), (1, y2),
// clipped to [-0.5, 0.5].
func ParabolicOffset(y0, y1, y2 float64) float64 {
	delta := 0.5 * (y0 - y2) / (y0 - 2*y1 + y2 + parabolaEpsilon)
	if math.IsNaN(delta) {
		return 0
	}
	return math.Max(-0.5, math.Min(0.5, delta))
}

// DynamicThreshold walks the peaks from the highest frequency down and keeps
// a peak only when its offset level reaches threshold times the offset level
// of the previously kept one. The highest-frequency peak is always kept. The
// returned mask is aligned with the inputs.
func DynamicThreshold(freqs, heights []float64, offset, threshold float64) []bool {
	keep := make([]bool, len(freqs))
	if len(freqs) == 0 {
		return keep
	}

	order := make([]int, len(freqs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return freqs[order[a]] > freqs[order[b]]
	})

	prev := heights[order[0]] + offset
	keep[order[0]] = true
	for _, i := range order[1:] {
		h := heights[i] + offset
		if h >= prev*threshold {
			keep[i] = true
			prev = h
		}
	}
	return keep
}

// SelectTop keeps the n loudest peaks and orders them by frequency.
func SelectTop(peaks []Peak, n int) []Peak {
	out := make([]Peak, len(peaks))
	copy(out, peaks)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AmplitudeDB > out[j].AmplitudeDB
	})
	if len(out) > n {
		out = out[:n]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Frequency < out[j].Frequency
	})
	return out
}
