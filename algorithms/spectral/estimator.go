package spectral

import (
	"errors"
	"fmt"

	"github.com/kilomelo/audio-analysis/algorithms/windowing"
	"github.com/kilomelo/audio-analysis/logging"
)

// ErrNotConfigured is returned by ComputeSpectrum before any sample rate has
// been delivered through OnParamsChanged.
var ErrNotConfigured = errors.New("spectral estimator has no sample rate")

// EstimatorConfig holds the tunables of the spectrum estimate.
type EstimatorConfig struct {
	FreqRange [2]float64     `yaml:"freq_range" json:"freq_range"` // [low, high] Hz
	LogPoints int            `yaml:"log_points" json:"log_points"` // length of the log axis
	RefValue  float64        `yaml:"ref_value" json:"ref_value"`   // amplitude mapped to 0 dB
	TopDB     float64        `yaml:"top_db" json:"top_db"`         // dynamic range kept below the loudest bin
	FillDB    float64        `yaml:"fill_db" json:"fill_db"`       // value outside the known range
	Window    windowing.Type `yaml:"window" json:"window"`
}

// DefaultEstimatorConfig returns the settings used by the visualizer.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		FreqRange: [2]float64{200, 4000},
		LogPoints: 2000,
		RefValue:  1.0,
		TopDB:     DefaultTopDB,
		FillDB:    -120,
		Window:    windowing.Hann,
	}
}

// Validate reports the first invalid setting.
func (c EstimatorConfig) Validate() error {
	if c.FreqRange[0] <= 0 || c.FreqRange[1] <= c.FreqRange[0] {
		return fmt.Errorf("freq_range must satisfy 0 < low < high, got %v", c.FreqRange)
	}
	if c.LogPoints < 2 {
		return fmt.Errorf("log_points must be at least 2, got %d", c.LogPoints)
	}
	if c.RefValue <= 0 {
		return fmt.Errorf("ref_value must be positive, got %v", c.RefValue)
	}
	if c.TopDB < 0 {
		return fmt.Errorf("top_db must not be negative, got %v", c.TopDB)
	}
	if _, err := windowing.ParseType(string(c.Window)); err != nil {
		return err
	}
	return nil
}

// Frame is one block's spectrum. The axes are shared between frames
// computed with the same parameters and must be treated as read-only.
type Frame struct {
	SampleRate int       `json:"sample_rate"`
	XSubband   []float64 `json:"x_subband"`  // FFT bin frequencies inside the range
	DBSubband  []float64 `json:"db_subband"` // dB aligned to XSubband
	XLog       []float64 `json:"x_log"`      // log-spaced display axis
	Smooth     []float64 `json:"smooth"`     // DBSubband cubic-resampled onto XLog
	Raw        []float64 `json:"raw"`        // DBSubband nearest-resampled onto XLog
	VolumeDB   float64   `json:"volume_db"`
}

// Estimator turns fixed-size audio blocks into Frames. It is driven by a
// single compute goroutine; parameter changes must be delivered on that
// goroutine or before it starts.
type Estimator struct {
	config     EstimatorConfig
	sampleRate int
	nfft       int

	bandStart int
	bandEnd   int
	xSubband  []float64
	xLog      []float64

	window *windowing.Window
	stft   *STFT
	logger logging.Logger
}

// NewEstimator creates an estimator; it computes nothing until
// OnParamsChanged supplies a sample rate and FFT size.
func NewEstimator(config EstimatorConfig) (*Estimator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid estimator config: %w", err)
	}
	// Validate already accepted the name
	config.Window, _ = windowing.ParseType(string(config.Window))

	return &Estimator{
		config: config,
		stft:   NewSTFT(),
		logger: logging.WithFields(logging.Fields{
			"component": "spectral_estimator",
		}),
	}, nil
}

// OnParamsChanged recomputes the axes when the sample rate or FFT size
// differs from the current one.
func (e *Estimator) OnParamsChanged(sampleRate, chunkSize, nfft int) {
	if sampleRate == e.sampleRate && nfft == e.nfft {
		return
	}
	if sampleRate <= 0 || nfft <= 0 {
		e.logger.Warn("ignoring invalid audio parameters", logging.Fields{
			"sample_rate": sampleRate,
			"n_fft":       nfft,
		})
		return
	}

	e.sampleRate = sampleRate
	e.nfft = nfft
	if err := e.computeAxes(); err != nil {
		e.logger.Error(err, "failed to compute frequency axes")
		e.sampleRate = 0
		return
	}

	e.logger.Debug("frequency axes updated", logging.Fields{
		"sample_rate": sampleRate,
		"chunk_size":  chunkSize,
		"n_fft":       nfft,
		"bins":        len(e.xSubband),
	})
}

// SetFreqRange changes the analysed band; the next frame uses it.
func (e *Estimator) SetFreqRange(lo, hi float64) error {
	next := e.config
	next.FreqRange = [2]float64{lo, hi}
	if next == e.config {
		return nil
	}
	if err := next.Validate(); err != nil {
		return err
	}

	prev := e.config
	e.config = next
	if e.sampleRate > 0 {
		if err := e.computeAxes(); err != nil {
			e.config = prev
			_ = e.computeAxes()
			return err
		}
	}
	return nil
}

func (e *Estimator) computeAxes() error {
	freqs := FFTFrequencies(e.sampleRate, e.nfft)
	lo, hi := e.config.FreqRange[0], e.config.FreqRange[1]

	start, end := BandIndices(freqs, lo, hi)
	xLog, err := LogSpace(lo, hi, e.config.LogPoints)
	if err != nil {
		return err
	}

	window, err := windowing.New(e.config.Window, e.nfft, true)
	if err != nil {
		return err
	}

	// new slices rather than in-place updates: earlier Frames keep their axes
	xSubband := make([]float64, end-start)
	copy(xSubband, freqs[start:end])

	e.bandStart, e.bandEnd = start, end
	e.xSubband = xSubband
	e.xLog = xLog
	e.window = window
	return nil
}

// SampleRate returns the configured sample rate, 0 before configuration.
func (e *Estimator) SampleRate() int { return e.sampleRate }

// FFTSize returns the configured FFT size.
func (e *Estimator) FFTSize() int { return e.nfft }

// XSubband returns the in-range bin frequencies (read-only).
func (e *Estimator) XSubband() []float64 { return e.xSubband }

// XLog returns the log-spaced display axis (read-only).
func (e *Estimator) XLog() []float64 { return e.xLog }

// Config returns the current configuration.
func (e *Estimator) Config() EstimatorConfig { return e.config }

// ComputeSpectrum estimates the spectrum of one block. Blocks shorter than
// the FFT size are zero-padded; longer blocks are analysed as overlapping
// frames keeping the per-bin maximum. A failed resampling degrades to flat
// FillDB curves instead of an error.
func (e *Estimator) ComputeSpectrum(block []float64) (*Frame, error) {
	if e.sampleRate == 0 {
		return nil, ErrNotConfigured
	}

	signal := block
	if len(signal) < e.nfft {
		signal = make([]float64, e.nfft)
		copy(signal, block)
	}

	volume := RMSToDB(RMS(signal), e.config.RefValue)

	magnitude, err := e.stft.ComputeMaxMagnitude(signal, e.nfft, max(e.nfft/4, 1), e.window)
	if err != nil {
		return nil, fmt.Errorf("stft: %w", err)
	}

	db := AmplitudeToDB(magnitude, e.config.RefValue, DefaultAmin, e.config.TopDB)
	dbSubband := make([]float64, e.bandEnd-e.bandStart)
	copy(dbSubband, db[e.bandStart:e.bandEnd])

	frame := &Frame{
		SampleRate: e.sampleRate,
		XSubband:   e.xSubband,
		DBSubband:  dbSubband,
		XLog:       e.xLog,
		VolumeDB:   volume,
	}

	frame.Smooth, frame.Raw, err = e.resample(dbSubband)
	if err != nil {
		e.logger.Warn("spectrum interpolation failed, using flat curve", logging.Fields{
			"error": err.Error(),
			"bins":  len(dbSubband),
		})
		frame.Smooth = FlatCurve(len(e.xLog), e.config.FillDB)
		frame.Raw = FlatCurve(len(e.xLog), e.config.FillDB)
	}

	return frame, nil
}

func (e *Estimator) resample(dbSubband []float64) ([]float64, []float64, error) {
	smooth, err := Resample(e.xSubband, dbSubband, e.xLog, Cubic, e.config.FillDB)
	if err != nil {
		return nil, nil, err
	}
	raw, err := Resample(e.xSubband, dbSubband, e.xLog, Nearest, e.config.FillDB)
	if err != nil {
		return nil, nil, err
	}
	return smooth, raw, nil
}
