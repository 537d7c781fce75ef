package spectral

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultAmin is the smallest amplitude distinguished from silence.
	DefaultAmin = 1e-5

	// DefaultTopDB limits the dynamic range below the loudest bin.
	DefaultTopDB = 80.0
)

// AmplitudeToDB converts amplitudes to decibels relative to ref:
// 20*log10(max(amin, |a|)) - 20*log10(max(amin, |ref|)).
// With topDB > 0 every value is raised to at least max(result)-topDB.
func AmplitudeToDB(amplitudes []float64, ref, amin, topDB float64) []float64 {
	if len(amplitudes) == 0 {
		return []float64{}
	}

	refDB := 20 * math.Log10(math.Max(amin, math.Abs(ref)))

	db := make([]float64, len(amplitudes))
	for i, a := range amplitudes {
		db[i] = 20*math.Log10(math.Max(amin, math.Abs(a))) - refDB
	}

	if topDB > 0 {
		floor := floats.Max(db) - topDB
		for i, v := range db {
			if v < floor {
				db[i] = floor
			}
		}
	}

	return db
}

// RMSToDB is AmplitudeToDB for a single loudness value; no range clamp
// applies to one element.
func RMSToDB(rms, ref float64) float64 {
	return AmplitudeToDB([]float64{rms}, ref, DefaultAmin, 0)[0]
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Sqrt(floats.Dot(data, data) / float64(len(data)))
}
