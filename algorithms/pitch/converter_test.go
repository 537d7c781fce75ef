package pitch

import (
	"errors"
	"math"
	"testing"

	"github.com/kilomelo/audio-analysis/internal/testutil"
)

func TestConverter_MIDIRoundTrip(t *testing.T) {
	c := NewConverter(442)
	for _, f := range []float64{27.5, 100, 261.63, 442, 999.9, 4186, 13999} {
		got := c.MIDIToFrequency(c.FrequencyToMIDI(f))
		testutil.AssertClose(t, "round trip", got, f, 1e-9*f)
	}
}

func TestConverter_FrequencyToMIDI(t *testing.T) {
	c := NewConverter(442)
	if got := c.FrequencyToMIDI(442); got != 69 {
		t.Errorf("FrequencyToMIDI(442) = %v, want 69", got)
	}
	testutil.AssertClose(t, "octave up", c.FrequencyToMIDI(884), 81, 1e-12)
	for _, f := range []float64{0, -10} {
		if got := c.FrequencyToMIDI(f); got != 0 {
			t.Errorf("FrequencyToMIDI(%v) = %v, want 0", f, got)
		}
	}
}

func TestMIDIToNote(t *testing.T) {
	tests := []struct {
		midi float64
		want string
	}{
		{69, "A4"},
		{60, "C4"},
		{61, "C#4"},
		{71, "B4"},
		{72, "C5"},
		{0, "C-1"},
		{-1, "B-2"},
	}
	for _, tt := range tests {
		if got := MIDIToNote(tt.midi); got != tt.want {
			t.Errorf("MIDIToNote(%v) = %q, want %q", tt.midi, got, tt.want)
		}
	}
}

func TestConverter_NearestPitchInfo(t *testing.T) {
	c := NewConverter(442)

	name, cents := c.NearestPitchInfo(442)
	if name != "A4" || cents != 0 {
		t.Errorf("NearestPitchInfo(442) = (%q, %d), want (A4, 0)", name, cents)
	}

	// 10 cents sharp of A4
	name, cents = c.NearestPitchInfo(442 * math.Pow(2, 10.0/1200))
	if name != "A4" || cents != 10 {
		t.Errorf("sharp A4 = (%q, %d), want (A4, 10)", name, cents)
	}

	// 30 cents flat of C5 still rounds to C5
	c5 := c.MIDIToFrequency(72)
	name, cents = c.NearestPitchInfo(c5 * math.Pow(2, -30.0/1200))
	if name != "C5" || cents != -30 {
		t.Errorf("flat C5 = (%q, %d), want (C5, -30)", name, cents)
	}

	for _, f := range []float64{0, 19.9, 14000.1, -440} {
		if name, cents := c.NearestPitchInfo(f); name != "" || cents != 0 {
			t.Errorf("NearestPitchInfo(%v) = (%q, %d), want empty", f, name, cents)
		}
	}

	c.SetReference(0)
	if name, cents := c.NearestPitchInfo(440); name != "" || cents != 0 {
		t.Errorf("zero reference gave (%q, %d)", name, cents)
	}
}

func TestConverter_NoteToFrequency(t *testing.T) {
	c := NewConverter(442)

	got, err := c.NoteToFrequency("A4")
	if err != nil {
		t.Fatalf("NoteToFrequency(A4): %v", err)
	}
	if got != 442.0 {
		t.Errorf("NoteToFrequency(A4) = %v, want 442", got)
	}

	lower, err := c.NoteToFrequency("a3")
	if err != nil {
		t.Fatalf("NoteToFrequency(a3): %v", err)
	}
	testutil.AssertClose(t, "a3", lower, 221, 1e-9)

	sharp, err := c.NoteToFrequency("C#4")
	if err != nil {
		t.Fatalf("NoteToFrequency(C#4): %v", err)
	}
	testutil.AssertClose(t, "C#4", sharp, c.MIDIToFrequency(61), 1e-9)

	neg, err := c.NoteToFrequency("C-1")
	if err != nil {
		t.Fatalf("NoteToFrequency(C-1): %v", err)
	}
	testutil.AssertClose(t, "C-1", neg, c.MIDIToFrequency(0), 1e-12)
}

func TestConverter_NoteToFrequencyErrors(t *testing.T) {
	c := NewConverter(442)

	tests := []struct {
		note string
		want error
	}{
		{"H4", ErrUnknownNote},
		{"E#4", ErrUnknownNote},
		{"Cb4", ErrUnknownNote},
		{"Db4", ErrUnknownNote},
		{"Bb3", ErrUnknownNote},
		{"A", ErrInvalidFormat},
		{"", ErrInvalidFormat},
		{"A#x", ErrInvalidFormat},
		{"4A", ErrInvalidFormat},
		{"A##4", ErrInvalidFormat},
	}

	for _, tt := range tests {
		_, err := c.NoteToFrequency(tt.note)
		if !errors.Is(err, tt.want) {
			t.Errorf("NoteToFrequency(%q) err = %v, want %v", tt.note, err, tt.want)
		}
	}
}

func TestConverter_ReferenceLines(t *testing.T) {
	c := NewConverter(442)

	lines := c.ReferenceLines(430, 460)
	if len(lines) != 1 || lines[0].Name != "A4" || lines[0].Frequency != 442 {
		t.Fatalf("ReferenceLines(430, 460) = %+v, want only A4", lines)
	}

	octave := c.ReferenceLines(442, 884)
	if len(octave) != 13 {
		t.Fatalf("one octave inclusive should give 13 lines, got %d", len(octave))
	}
	if octave[0].Name != "A4" || octave[12].Name != "A5" {
		t.Errorf("octave bounds = %s..%s", octave[0].Name, octave[12].Name)
	}

	if got := c.ReferenceLines(500, 400); got != nil {
		t.Errorf("inverted range gave %v", got)
	}
}
