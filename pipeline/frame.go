package pipeline

import (
	"github.com/kilomelo/audio-analysis/algorithms/peaks"
	"github.com/kilomelo/audio-analysis/algorithms/pitch"
	"github.com/kilomelo/audio-analysis/algorithms/spectral"
)

// Frame carries one block's intermediate results from layer to layer. It
// lives for a single ComputeFrame call.
type Frame struct {
	Time     float64
	Spectrum *spectral.Frame
	Peaks    []peaks.Peak
}

// RenderFrame is an immutable snapshot of everything a renderer draws.
// Slices are never modified after the frame is published.
type RenderFrame struct {
	Sequence   uint64       `json:"seq"`
	Time       float64      `json:"time"`
	SampleRate int          `json:"sample_rate"`
	VolumeDB   float64      `json:"volume_db"`
	XLog       []float64    `json:"x_log,omitempty"`
	Curve      []float64    `json:"curve,omitempty"`
	Peaks      []PeakMarker `json:"peaks"`
	Melody     *MelodyTrace `json:"melody,omitempty"`
}

// PeakMarker annotates one detected peak.
type PeakMarker struct {
	Frequency   float64 `json:"frequency"`
	AmplitudeDB float64 `json:"amplitude_db"`
	// DisplayFrequency averages recent peaks with the same note name
	DisplayFrequency float64 `json:"display_frequency"`
	Note             string  `json:"note,omitempty"`
	Cents            int     `json:"cents"`
}

// MelodyTrace is the melody history as parallel arrays plus the band it
// is drawn over.
type MelodyTrace struct {
	Times          []float64             `json:"times"`
	Freqs          []float64             `json:"freqs"`
	Volumes        []float64             `json:"volumes"`
	TimeRange      [2]float64            `json:"time_range"`
	FreqRange      [2]float64            `json:"freq_range"`
	VolumeRange    [2]float64            `json:"volume_range"`
	ReferenceLines []pitch.ReferenceLine `json:"reference_lines,omitempty"`
}
