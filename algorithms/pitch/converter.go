// Package pitch converts between frequency, MIDI numbers, note names and
// cents against a tunable A4 reference, and tests frequency pairs for
// simple harmonic relationships.
package pitch

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
)

const (
	// DefaultReference is the A4 reference used when none is configured.
	DefaultReference = 442.0

	// A4MIDI is the MIDI number the reference pitch is tuned to.
	A4MIDI = 69

	minNamedFrequency = 20.0
	maxNamedFrequency = 14000.0
)

var (
	// ErrInvalidFormat is returned when a note string does not match
	// letter, optional accidental, signed octave.
	ErrInvalidFormat = errors.New("invalid note format")

	// ErrUnknownNote is returned when the letter and accidental do not
	// name a chromatic pitch class.
	ErrUnknownNote = errors.New("unknown note")
)

// NoteNames is the chromatic name table starting at C.
var NoteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var noteRe = regexp.MustCompile(`^([A-Za-z])([#bB]?)(-?\d+)$`)

// Converter performs pitch conversions against a reference frequency for A4.
// The reference may be changed while other goroutines convert.
type Converter struct {
	reference atomic.Uint64
}

// NewConverter creates a converter tuned to reference Hz for A4.
func NewConverter(reference float64) *Converter {
	c := &Converter{}
	c.SetReference(reference)
	return c
}

// SetReference retunes the converter.
func (c *Converter) SetReference(reference float64) {
	c.reference.Store(math.Float64bits(reference))
}

// Reference returns the current A4 frequency.
func (c *Converter) Reference() float64 {
	return math.Float64frombits(c.reference.Load())
}

// FrequencyToMIDI returns the fractional MIDI number of freq, or 0 for
// non-positive frequencies.
func (c *Converter) FrequencyToMIDI(freq float64) float64 {
	if freq <= 0 {
		return 0
	}
	return 12*math.Log2(freq/c.Reference()) + A4MIDI
}

// MIDIToFrequency is the inverse of FrequencyToMIDI.
func (c *Converter) MIDIToFrequency(midi float64) float64 {
	return c.Reference() * math.Pow(2, (midi-A4MIDI)/12)
}

// MIDIToNote names a MIDI number with its octave, e.g. 69 -> "A4".
func (c *Converter) MIDIToNote(midi float64) string {
	return MIDIToNote(midi)
}

// MIDIToNote names a MIDI number with its octave. It does not depend on the
// reference pitch.
func MIDIToNote(midi float64) string {
	octave := int(math.Floor(midi/12)) - 1
	index := int(math.RoundToEven(midi)) % 12
	if index < 0 {
		index += 12
	}
	return NoteNames[index] + strconv.Itoa(octave)
}

// NearestPitchInfo returns the nearest note name and the deviation from it
// in cents. Frequencies outside [20, 14000] Hz, a non-positive reference, or
// any non-finite intermediate give ("", 0).
func (c *Converter) NearestPitchInfo(freq float64) (string, int) {
	ref := c.Reference()
	if freq < minNamedFrequency || freq > maxNamedFrequency || !(ref > 0) {
		return "", 0
	}

	nearest := math.RoundToEven(c.FrequencyToMIDI(freq))
	referenceFreq := ref * math.Pow(2, (nearest-A4MIDI)/12)
	if !(referenceFreq > 0) || math.IsInf(referenceFreq, 0) {
		return "", 0
	}

	cents := 1200 * math.Log2(freq/referenceFreq)
	if math.IsNaN(cents) || math.IsInf(cents, 0) {
		return "", 0
	}

	return MIDIToNote(nearest), int(math.RoundToEven(cents))
}

// NoteToFrequency parses names like "A4", "c#3", "G#-1" and returns the
// frequency under the current reference.
func (c *Converter) NoteToFrequency(note string) (float64, error) {
	m := noteRe.FindStringSubmatch(note)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, note)
	}

	// flat spellings parse but are not names in the sharp-only table
	name := strings.ToUpper(m[1] + m[2])

	index := -1
	for i, n := range NoteNames {
		if n == name {
			index = i
			break
		}
	}
	if index < 0 {
		return 0, fmt.Errorf("%w: %q is not one of %v", ErrUnknownNote, m[1]+m[2], NoteNames)
	}

	octave, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, fmt.Errorf("%w: octave %q: %v", ErrInvalidFormat, m[3], err)
	}

	midi := (octave+1)*12 + index
	return c.MIDIToFrequency(float64(midi)), nil
}
