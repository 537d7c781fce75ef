package pitch

import "math"

// ReferenceLine is an equal-tempered note frequency used as a horizontal
// guide behind the melody trace.
type ReferenceLine struct {
	MIDI      int     `json:"midi"`
	Name      string  `json:"name"`
	Frequency float64 `json:"frequency"`
}

// ReferenceLines lists every integer MIDI note whose frequency lies in
// [lo, hi], lowest first.
func (c *Converter) ReferenceLines(lo, hi float64) []ReferenceLine {
	if lo <= 0 || hi < lo || !(c.Reference() > 0) {
		return nil
	}

	first := int(math.Ceil(c.FrequencyToMIDI(lo)))
	last := int(math.Floor(c.FrequencyToMIDI(hi)))

	lines := make([]ReferenceLine, 0, max(last-first+1, 0))
	for m := first; m <= last; m++ {
		f := c.MIDIToFrequency(float64(m))
		// guard against FrequencyToMIDI rounding at the band edges
		if f < lo || f > hi {
			continue
		}
		lines = append(lines, ReferenceLine{
			MIDI:      m,
			Name:      MIDIToNote(float64(m)),
			Frequency: f,
		})
	}
	return lines
}

// SemitoneRatio is the frequency ratio of one equal-tempered semitone.
var SemitoneRatio = math.Pow(2, 1.0/12)
