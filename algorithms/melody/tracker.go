package melody

import (
	"fmt"
	"math"

	"github.com/kilomelo/audio-analysis/algorithms/peaks"
	"github.com/kilomelo/audio-analysis/algorithms/pitch"
	"github.com/kilomelo/audio-analysis/logging"
)

// Config holds the melody-tracking parameters.
type Config struct {
	TimeWindow              float64    `yaml:"time_window" json:"time_window"` // seconds of history kept
	FreqRange               [2]float64 `yaml:"freq_range" json:"freq_range"`
	VolumeRange             [2]float64 `yaml:"volume_range" json:"volume_range"` // colour scale for renderers
	MainPeakThreshold       float64    `yaml:"main_peak_threshold" json:"main_peak_threshold"`
	PeakDBOffset            float64    `yaml:"peak_db_offset" json:"peak_db_offset"`
	MultiplicationTolerance float64    `yaml:"multiplication_tolerance" json:"multiplication_tolerance"`
	MisjudgmentMaxDuration  float64    `yaml:"misjudgment_max_duration" json:"misjudgment_max_duration"` // seconds
	ShowReferenceLines      bool       `yaml:"show_reference_lines" json:"show_reference_lines"`
	DynamicFreqRange        bool       `yaml:"dynamic_freq_range" json:"dynamic_freq_range"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		TimeWindow:              10,
		FreqRange:               [2]float64{150, 3000},
		VolumeRange:             [2]float64{-60, 0},
		MainPeakThreshold:       0.5,
		PeakDBOffset:            50,
		MultiplicationTolerance: 0.05,
		MisjudgmentMaxDuration:  0.2,
		ShowReferenceLines:      true,
		DynamicFreqRange:        true,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.TimeWindow <= 0 {
		return fmt.Errorf("time_window must be positive, got %v", c.TimeWindow)
	}
	if c.FreqRange[0] <= 0 || c.FreqRange[1] <= c.FreqRange[0] {
		return fmt.Errorf("freq_range must satisfy 0 < low < high, got %v", c.FreqRange)
	}
	if c.MultiplicationTolerance < 0 {
		return fmt.Errorf("multiplication_tolerance must not be negative, got %v", c.MultiplicationTolerance)
	}
	if c.MisjudgmentMaxDuration < 0 {
		return fmt.Errorf("misjudgment_max_duration must not be negative, got %v", c.MisjudgmentMaxDuration)
	}
	return nil
}

// Point is one melody sample.
type Point struct {
	Time      float64 `json:"time"`
	Frequency float64 `json:"frequency"`
	VolumeDB  float64 `json:"volume_db"`
}

// State of the misjudgment detector.
type State int

const (
	// Idle means no harmonic excursion is suspected.
	Idle State = iota
	// Suspect means the melody jumped by a harmonic ratio and may be
	// following an overtone.
	Suspect
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Suspect:
		return "suspect"
	default:
		return "unknown"
	}
}

// anchor is the last trusted point before a suspected excursion.
type anchor struct {
	time float64
	freq float64
}

// Tracker keeps a sliding window of melody points and repairs octave and
// other harmonic misjudgments once the melody returns to the anchor pitch.
// It is owned by a single goroutine.
type Tracker struct {
	config Config
	points []Point

	state  State
	anchor anchor

	logger logging.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(config Config) (*Tracker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid melody config: %w", err)
	}
	return &Tracker{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "melody_tracker",
		}),
	}, nil
}

// Config returns the tracker configuration.
func (t *Tracker) Config() Config { return t.config }

// Process consumes one frame's peaks, which must be in ascending frequency
// order. It reports whether a point was appended. Frames with now <= 0 are
// ignored.
func (t *Tracker) Process(frame []peaks.Peak, volume, now float64) bool {
	if now <= 0 {
		return false
	}

	added := false
	if i := t.mainPeak(frame); i >= 0 {
		t.points = append(t.points, Point{
			Time:      now,
			Frequency: frame[i].Frequency,
			VolumeDB:  volume,
		})
		added = true
	}

	t.evict(now)

	if added && len(t.points) > 1 {
		t.checkMisjudgment(now)
	}
	return added
}

// mainPeak returns the index of the lowest peak that is either the last one
// or louder, after offset, than MainPeakThreshold times its upper
// neighbour. It returns -1 for an empty frame.
func (t *Tracker) mainPeak(frame []peaks.Peak) int {
	off := t.config.PeakDBOffset
	for i, p := range frame {
		if i == len(frame)-1 ||
			p.AmplitudeDB+off > t.config.MainPeakThreshold*(frame[i+1].AmplitudeDB+off) {
			return i
		}
	}
	return -1
}

// evict keeps the points from the first one inside [now-TimeWindow, now].
// A suspected anchor outside that window, or with no history left, is
// dropped; this also covers stream time jumping backwards.
func (t *Tracker) evict(now float64) {
	cutoff := now - t.config.TimeWindow
	first := -1
	for i, p := range t.points {
		if p.Time >= cutoff && p.Time <= now {
			first = i
			break
		}
	}
	switch {
	case first < 0:
		t.points = t.points[:0]
	case first > 0:
		t.points = append(t.points[:0], t.points[first:]...)
	}

	if t.state == Suspect &&
		(len(t.points) == 0 || t.anchor.time < cutoff || t.anchor.time > now) {
		t.logger.Debug("misjudgment anchor left the window", logging.Fields{
			"anchor_time": t.anchor.time,
			"now":         now,
		})
		t.clearAnchor()
	}
}

func (t *Tracker) checkMisjudgment(now float64) {
	n := len(t.points)
	prev, last := t.points[n-2], t.points[n-1]
	tol := t.config.MultiplicationTolerance

	ratio := pitch.HarmonicRatio(prev.Frequency, last.Frequency, tol)
	switch {
	case ratio == 0:
		if t.state == Suspect {
			t.logger.Debug("misjudgment disproved", logging.Fields{
				"anchor_freq": t.anchor.freq,
				"freq":        last.Frequency,
			})
			t.clearAnchor()
		}
	case !pitch.IsUnison(ratio):
		if t.state == Idle {
			t.state = Suspect
			t.anchor = anchor{time: prev.Time, freq: prev.Frequency}
			t.logger.Debug("misjudgment suspected", logging.Fields{
				"anchor_freq": prev.Frequency,
				"freq":        last.Frequency,
				"ratio":       ratio,
			})
		} else if pitch.IsUnison(pitch.HarmonicRatio(t.anchor.freq, last.Frequency, tol)) {
			fixed := t.fix()
			t.logger.Debug("misjudgment confirmed", logging.Fields{
				"anchor_freq": t.anchor.freq,
				"duration":    now - t.anchor.time,
				"fixed":       fixed,
			})
			t.clearAnchor()
		}
	}

	if t.state == Suspect && now-t.anchor.time > t.config.MisjudgmentMaxDuration {
		t.logger.Debug("misjudgment timed out", logging.Fields{
			"anchor_freq": t.anchor.freq,
		})
		t.clearAnchor()
	}
}

// fix rewrites the points between the anchor and the newest point onto the
// anchor's pitch class. This is the only place history is mutated. The scan
// runs backwards from the point before the newest one, skips unrelated
// frequencies and stops at the first unison with the anchor, or at the
// anchor itself. Nothing is rewritten when the anchor is not in the
// history.
func (t *Tracker) fix() int {
	n := len(t.points)
	if n < 3 {
		return 0
	}

	lower := -1
	for i := n - 2; i >= 0; i-- {
		if t.points[i].Time == t.anchor.time {
			lower = i
			break
		}
	}
	if lower < 0 {
		return 0
	}

	fixed := 0
	for i := n - 2; i > lower; i-- {
		f := t.points[i].Frequency
		r := pitch.HarmonicRatio(t.anchor.freq, f, t.config.MultiplicationTolerance)
		if r == 0 {
			continue
		}
		if pitch.IsUnison(r) {
			break
		}
		if r > 0 {
			t.points[i].Frequency = f * r
		} else {
			t.points[i].Frequency = f / math.Abs(r)
		}
		fixed++
	}
	return fixed
}

func (t *Tracker) clearAnchor() {
	t.state = Idle
	t.anchor = anchor{}
}

// Reset clears the history and the misjudgment state.
func (t *Tracker) Reset() {
	t.points = nil
	t.clearAnchor()
}

// State returns the misjudgment detector state.
func (t *Tracker) State() State { return t.state }

// Anchor returns the suspected true pitch and when it was last seen; ok is
// false while Idle.
func (t *Tracker) Anchor() (time, freq float64, ok bool) {
	if t.state != Suspect {
		return 0, 0, false
	}
	return t.anchor.time, t.anchor.freq, true
}

// Len returns the number of points in the window.
func (t *Tracker) Len() int { return len(t.points) }

// Points returns a copy of the history, oldest first.
func (t *Tracker) Points() []Point {
	out := make([]Point, len(t.points))
	copy(out, t.points)
	return out
}

// Times returns the point times, oldest first.
func (t *Tracker) Times() []float64 {
	out := make([]float64, len(t.points))
	for i, p := range t.points {
		out[i] = p.Time
	}
	return out
}

// Freqs returns the point frequencies aligned with Times.
func (t *Tracker) Freqs() []float64 {
	out := make([]float64, len(t.points))
	for i, p := range t.points {
		out[i] = p.Frequency
	}
	return out
}

// Volumes returns the point volumes aligned with Times.
func (t *Tracker) Volumes() []float64 {
	out := make([]float64, len(t.points))
	for i, p := range t.points {
		out[i] = p.VolumeDB
	}
	return out
}
