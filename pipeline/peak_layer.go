package pipeline

import (
	"gonum.org/v1/gonum/stat"

	"github.com/kilomelo/audio-analysis/algorithms/peaks"
	"github.com/kilomelo/audio-analysis/algorithms/pitch"
	"github.com/kilomelo/audio-analysis/config"
	"github.com/kilomelo/audio-analysis/logging"
)

type cachedPeak struct {
	freq float64
	note string
	time float64
}

// PeakLayer detects peaks and annotates them with note names. To keep the
// labels steady, a marker shows the mean frequency of every peak with the
// same note name seen within the anti-shake window.
type PeakLayer struct {
	config    config.PeakConfig
	converter *pitch.Converter
	detector  *peaks.Detector
	cache     []cachedPeak
	logger    logging.Logger
}

// NewPeakLayer creates the peak layer. The detector is built on the first
// frame, once the spectrum axes are known.
func NewPeakLayer(cfg config.PeakConfig, conv *pitch.Converter) *PeakLayer {
	return &PeakLayer{
		config:    cfg,
		converter: conv,
		logger: logging.WithFields(logging.Fields{
			"component": "peak_layer",
		}),
	}
}

func (l *PeakLayer) Name() string { return "peaks" }

func (l *PeakLayer) Initialize() error {
	return l.config.Validate()
}

// OnParamsChanged is a no-op: new axes are noticed on the next frame.
func (l *PeakLayer) OnParamsChanged(sampleRate, chunkSize, nfft int) {}

func (l *PeakLayer) Process(block []float64, frame *Frame) error {
	spectrum := frame.Spectrum
	if spectrum == nil {
		return nil
	}

	cutoff := frame.Time - l.config.AntishakeWindow
	kept := l.cache[:0]
	for _, c := range l.cache {
		if c.time >= cutoff {
			kept = append(kept, c)
		}
	}
	l.cache = kept

	if spectrum.VolumeDB < l.config.VolumeThreshold {
		return nil
	}

	if l.detector == nil || !l.detector.Matches(spectrum.XSubband, spectrum.XLog) {
		d, err := peaks.NewDetector(spectrum.XSubband, spectrum.XLog, l.config.Config)
		if err != nil {
			return err
		}
		l.detector = d
		l.logger.Debug("peak detector rebuilt", logging.Fields{
			"bins":       len(spectrum.XSubband),
			"log_points": len(spectrum.XLog),
		})
	}

	found, err := l.detector.DetectPeaks(spectrum)
	if err != nil {
		return err
	}
	frame.Peaks = found

	for _, p := range found {
		note, _ := l.converter.NearestPitchInfo(p.Frequency)
		l.cache = append(l.cache, cachedPeak{freq: p.Frequency, note: note, time: frame.Time})
	}
	return nil
}

func (l *PeakLayer) Draw(frame *Frame, out *RenderFrame) {
	out.Peaks = make([]PeakMarker, 0, len(frame.Peaks))
	if len(frame.Peaks) == 0 {
		return
	}

	groups := make(map[string][]float64)
	for _, c := range l.cache {
		if c.note != "" {
			groups[c.note] = append(groups[c.note], c.freq)
		}
	}

	for _, p := range frame.Peaks {
		note, _ := l.converter.NearestPitchInfo(p.Frequency)
		display := p.Frequency
		if group := groups[note]; note != "" && len(group) > 0 {
			display = stat.Mean(group, nil)
		}
		_, cents := l.converter.NearestPitchInfo(display)

		out.Peaks = append(out.Peaks, PeakMarker{
			Frequency:        p.Frequency,
			AmplitudeDB:      p.AmplitudeDB,
			DisplayFrequency: display,
			Note:             note,
			Cents:            cents,
		})
	}
}

func (l *PeakLayer) Clean() {
	l.cache = nil
}
