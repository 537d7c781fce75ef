package melody

import (
	"github.com/kilomelo/audio-analysis/algorithms/pitch"
)

// DisplayRange returns the frequency span the melody is drawn over. With
// DynamicFreqRange it follows the history, widened by a semitone on each
// side and clamped to FreqRange; otherwise, or with no history, it is
// FreqRange.
func (t *Tracker) DisplayRange() (lo, hi float64) {
	lo, hi = t.config.FreqRange[0], t.config.FreqRange[1]
	if !t.config.DynamicFreqRange || len(t.points) == 0 {
		return lo, hi
	}

	minF, maxF := t.points[0].Frequency, t.points[0].Frequency
	for _, p := range t.points[1:] {
		minF = min(minF, p.Frequency)
		maxF = max(maxF, p.Frequency)
	}

	return max(lo, minF/pitch.SemitoneRatio), min(hi, maxF*pitch.SemitoneRatio)
}

// ReferenceBand lists the equal-tempered notes inside DisplayRange, or nil
// when reference lines are disabled.
func (t *Tracker) ReferenceBand(conv *pitch.Converter) []pitch.ReferenceLine {
	if !t.config.ShowReferenceLines || conv == nil {
		return nil
	}
	lo, hi := t.DisplayRange()
	return conv.ReferenceLines(lo, hi)
}

// SetView switches the reference lines and the dynamic display range.
func (t *Tracker) SetView(showReferenceLines, dynamicFreqRange bool) {
	t.config.ShowReferenceLines = showReferenceLines
	t.config.DynamicFreqRange = dynamicFreqRange
}
