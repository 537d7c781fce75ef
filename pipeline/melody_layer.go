package pipeline

import (
	"github.com/kilomelo/audio-analysis/algorithms/melody"
	"github.com/kilomelo/audio-analysis/algorithms/pitch"
)

// MelodyView changes melody display options at runtime. Nil fields are left
// unchanged.
type MelodyView struct {
	ShowReferenceLines *bool `json:"show_ref_lines,omitempty"`
	DynamicFreqRange   *bool `json:"dynamic_freq_range,omitempty"`
}

// IsZero reports whether v changes nothing.
func (v MelodyView) IsZero() bool {
	return v.ShowReferenceLines == nil && v.DynamicFreqRange == nil
}

// MelodyLayer feeds the peaks of each frame to a melody tracker.
type MelodyLayer struct {
	config    melody.Config
	converter *pitch.Converter
	tracker   *melody.Tracker
}

// NewMelodyLayer creates the melody layer.
func NewMelodyLayer(cfg melody.Config, conv *pitch.Converter) *MelodyLayer {
	return &MelodyLayer{config: cfg, converter: conv}
}

func (l *MelodyLayer) Name() string { return "melody" }

func (l *MelodyLayer) Initialize() error {
	t, err := melody.NewTracker(l.config)
	if err != nil {
		return err
	}
	l.tracker = t
	return nil
}

func (l *MelodyLayer) OnParamsChanged(sampleRate, chunkSize, nfft int) {}

func (l *MelodyLayer) Process(block []float64, frame *Frame) error {
	if frame.Spectrum == nil {
		return nil
	}
	l.tracker.Process(frame.Peaks, frame.Spectrum.VolumeDB, frame.Time)
	return nil
}

func (l *MelodyLayer) Draw(frame *Frame, out *RenderFrame) {
	lo, hi := l.tracker.DisplayRange()
	out.Melody = &MelodyTrace{
		Times:          l.tracker.Times(),
		Freqs:          l.tracker.Freqs(),
		Volumes:        l.tracker.Volumes(),
		TimeRange:      [2]float64{frame.Time - l.config.TimeWindow, frame.Time},
		FreqRange:      [2]float64{lo, hi},
		VolumeRange:    l.config.VolumeRange,
		ReferenceLines: l.tracker.ReferenceBand(l.converter),
	}
}

// ApplyView updates the display options from the next Draw on.
func (l *MelodyLayer) ApplyView(v MelodyView) {
	if v.ShowReferenceLines != nil {
		l.config.ShowReferenceLines = *v.ShowReferenceLines
	}
	if v.DynamicFreqRange != nil {
		l.config.DynamicFreqRange = *v.DynamicFreqRange
	}
	l.tracker.SetView(l.config.ShowReferenceLines, l.config.DynamicFreqRange)
}

func (l *MelodyLayer) Clean() {
	l.tracker.Reset()
}

// Tracker exposes the underlying tracker for inspection.
func (l *MelodyLayer) Tracker() *melody.Tracker { return l.tracker }
