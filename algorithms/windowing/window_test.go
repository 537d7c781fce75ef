package windowing

import (
	"testing"

	"github.com/kilomelo/audio-analysis/internal/testutil"
)

func TestNew_PeriodicHann(t *testing.T) {
	w, err := New(Hann, 4, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := []float64{0, 0.5, 1, 0.5}
	got := w.GetCoefficients()
	for i := range want {
		testutil.AssertClose(t, "periodic hann", got[i], want[i], 1e-12)
	}
}

func TestNew_SymmetricHann(t *testing.T) {
	w, err := New(Hann, 5, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := []float64{0, 0.5, 1, 0.5, 0}
	got := w.GetCoefficients()
	for i := range want {
		testutil.AssertClose(t, "symmetric hann", got[i], want[i], 1e-12)
	}
}

func TestWindow_ApplyInPlace(t *testing.T) {
	w, _ := New(Rectangular, 8, true)
	signal := testutil.DC(0.25, 8)

	if err := w.ApplyInPlace(signal); err != nil {
		t.Fatalf("ApplyInPlace: %v", err)
	}
	for i, v := range signal {
		if v != 0.25 {
			t.Errorf("rectangular changed sample %d: %v", i, v)
		}
	}

	if err := w.ApplyInPlace(make([]float64, 7)); err == nil {
		t.Error("expected length mismatch error")
	}
	if out := w.Apply(make([]float64, 3)); out != nil {
		t.Error("Apply should return nil on length mismatch")
	}
}

func TestParseType(t *testing.T) {
	for _, s := range []string{"", "Hann", "hamming", " blackman ", "RECTANGULAR", "flattop", "bartlett"} {
		if _, err := ParseType(s); err != nil {
			t.Errorf("ParseType(%q): %v", s, err)
		}
	}
	if _, err := ParseType("kaiser"); err == nil {
		t.Error("ParseType(kaiser) should fail")
	}
	if _, err := New("triangle", 16, true); err == nil {
		t.Error("New with unknown type should fail")
	}
	if _, err := New(Hann, 0, true); err == nil {
		t.Error("New with zero size should fail")
	}
}
