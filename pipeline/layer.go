package pipeline

import (
	"github.com/kilomelo/audio-analysis/algorithms/spectral"
	"github.com/kilomelo/audio-analysis/config"
	"github.com/kilomelo/audio-analysis/logging"
)

// Layer is one stage of the analysis. Process runs on the compute goroutine
// in layer order and may read what earlier layers stored in the Frame; Draw
// copies the layer's results into the render snapshot.
type Layer interface {
	Name() string
	Initialize() error
	Process(block []float64, frame *Frame) error
	Draw(frame *Frame, out *RenderFrame)
	// Clean drops accumulated history.
	Clean()
	OnParamsChanged(sampleRate, chunkSize, nfft int)
}

// SpectrumLayer computes the spectrum and publishes the display curve.
type SpectrumLayer struct {
	config    config.SpectrumConfig
	estimator *spectral.Estimator
	logger    logging.Logger
}

// NewSpectrumLayer creates the spectrum layer.
func NewSpectrumLayer(cfg config.SpectrumConfig) *SpectrumLayer {
	return &SpectrumLayer{
		config: cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "spectrum_layer",
		}),
	}
}

func (l *SpectrumLayer) Name() string { return "spectrum" }

func (l *SpectrumLayer) Initialize() error {
	est, err := spectral.NewEstimator(l.config.EstimatorConfig)
	if err != nil {
		return err
	}
	l.estimator = est
	return nil
}

func (l *SpectrumLayer) OnParamsChanged(sampleRate, chunkSize, nfft int) {
	l.estimator.OnParamsChanged(sampleRate, chunkSize, nfft)
}

// SetFreqRange changes the analysed band from the next block on.
func (l *SpectrumLayer) SetFreqRange(lo, hi float64) error {
	return l.estimator.SetFreqRange(lo, hi)
}

func (l *SpectrumLayer) Process(block []float64, frame *Frame) error {
	spectrum, err := l.estimator.ComputeSpectrum(block)
	if err != nil {
		return err
	}
	frame.Spectrum = spectrum
	return nil
}

func (l *SpectrumLayer) Draw(frame *Frame, out *RenderFrame) {
	if frame.Spectrum == nil {
		return
	}
	out.SampleRate = frame.Spectrum.SampleRate
	out.VolumeDB = frame.Spectrum.VolumeDB
	out.XLog = frame.Spectrum.XLog
	if l.config.SmoothedCurve {
		out.Curve = frame.Spectrum.Smooth
	} else {
		out.Curve = frame.Spectrum.Raw
	}
}

func (l *SpectrumLayer) Clean() {}
