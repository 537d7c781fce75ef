package spectral

import (
	"errors"
	"math"
	"testing"

	"github.com/kilomelo/audio-analysis/internal/testutil"
	"github.com/kilomelo/audio-analysis/logging"
)

func init() {
	logging.SetGlobalLogger(nil)
}

func newTestEstimator(t *testing.T) *Estimator {
	t.Helper()
	e, err := NewEstimator(DefaultEstimatorConfig())
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	e.OnParamsChanged(44100, 2048, 2048)
	return e
}

func TestEstimator_NotConfigured(t *testing.T) {
	e, err := NewEstimator(DefaultEstimatorConfig())
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	if _, err := e.ComputeSpectrum(make([]float64, 2048)); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestEstimator_InvalidConfig(t *testing.T) {
	cfg := DefaultEstimatorConfig()
	cfg.FreqRange = [2]float64{4000, 200}
	if _, err := NewEstimator(cfg); err == nil {
		t.Error("expected error for inverted range")
	}

	cfg = DefaultEstimatorConfig()
	cfg.Window = "kaiser"
	if _, err := NewEstimator(cfg); err == nil {
		t.Error("expected error for unknown window")
	}
}

func TestEstimator_Axes(t *testing.T) {
	e := newTestEstimator(t)

	x := e.XSubband()
	if len(x) == 0 {
		t.Fatal("empty sub-band axis")
	}
	if x[0] < 200 || x[len(x)-1] > 4000 {
		t.Errorf("sub-band axis [%v, %v] outside range", x[0], x[len(x)-1])
	}
	for i := 1; i < len(x); i++ {
		if x[i] <= x[i-1] {
			t.Fatalf("sub-band axis not strictly increasing at %d", i)
		}
	}
	if len(e.XLog()) != 2000 {
		t.Errorf("log axis length %d, want 2000", len(e.XLog()))
	}

	// same parameters must not rebuild the axes
	e.OnParamsChanged(44100, 2048, 2048)
	if &e.XSubband()[0] != &x[0] {
		t.Error("axes recomputed without a parameter change")
	}

	e.OnParamsChanged(88200, 4096, 4096)
	if &e.XSubband()[0] == &x[0] {
		t.Error("axes not recomputed after sample rate change")
	}
	if e.SampleRate() != 88200 || e.FFTSize() != 4096 {
		t.Errorf("params = %d/%d", e.SampleRate(), e.FFTSize())
	}
}

func TestEstimator_SineSpectrum(t *testing.T) {
	e := newTestEstimator(t)
	block := testutil.DeterministicSine(440, 44100, 0.5, 2048)

	frame, err := e.ComputeSpectrum(block)
	if err != nil {
		t.Fatalf("ComputeSpectrum: %v", err)
	}

	if len(frame.XSubband) != len(frame.DBSubband) {
		t.Fatalf("axis/value length mismatch: %d vs %d", len(frame.XSubband), len(frame.DBSubband))
	}
	if len(frame.Smooth) != len(frame.XLog) || len(frame.Raw) != len(frame.XLog) {
		t.Fatal("interpolated curves not aligned with log axis")
	}

	best := 0
	for i, v := range frame.DBSubband {
		if v > frame.DBSubband[best] {
			best = i
		}
	}
	binWidth := 44100.0 / 2048
	if math.Abs(frame.XSubband[best]-440) > binWidth {
		t.Errorf("spectral maximum at %v Hz, want within one bin of 440", frame.XSubband[best])
	}

	// RMS of a 0.5 sine is 0.5/sqrt(2)
	testutil.AssertClose(t, "volume", frame.VolumeDB, 20*math.Log10(0.5/math.Sqrt2), 0.1)

	// log axis spans the whole range while bins start above 200 Hz
	if frame.Raw[0] != -120 || frame.Smooth[0] != -120 {
		t.Errorf("point below first bin should be fill, got raw %v smooth %v", frame.Raw[0], frame.Smooth[0])
	}
}

func TestEstimator_Deterministic(t *testing.T) {
	e := newTestEstimator(t)
	block := testutil.HarmonicTone(220, 44100, []float64{0.4, 0.2, 0.1}, 2048)

	a, err := e.ComputeSpectrum(block)
	if err != nil {
		t.Fatalf("ComputeSpectrum: %v", err)
	}
	b, err := e.ComputeSpectrum(block)
	if err != nil {
		t.Fatalf("ComputeSpectrum: %v", err)
	}

	testutil.AssertSlicesEqual(t, "db_subband", a.DBSubband, b.DBSubband)
	testutil.AssertSlicesEqual(t, "raw", a.Raw, b.Raw)
}

func TestEstimator_ShortBlockPadded(t *testing.T) {
	e := newTestEstimator(t)

	frame, err := e.ComputeSpectrum(testutil.DeterministicSine(440, 44100, 0.5, 1000))
	if err != nil {
		t.Fatalf("ComputeSpectrum: %v", err)
	}
	if len(frame.DBSubband) != len(e.XSubband()) {
		t.Errorf("padded block gave %d bins, want %d", len(frame.DBSubband), len(e.XSubband()))
	}
}

func TestEstimator_InterpolationFailureFallsBackToFlat(t *testing.T) {
	cfg := DefaultEstimatorConfig()
	// only two FFT bins (430.7 and 452.2 Hz) fall in this band
	cfg.FreqRange = [2]float64{430, 460}
	e, err := NewEstimator(cfg)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	e.OnParamsChanged(44100, 2048, 2048)

	frame, err := e.ComputeSpectrum(testutil.DeterministicSine(440, 44100, 0.5, 2048))
	if err != nil {
		t.Fatalf("ComputeSpectrum should not fail: %v", err)
	}
	for i := range frame.XLog {
		if frame.Smooth[i] != -120 || frame.Raw[i] != -120 {
			t.Fatalf("point %d not flat: smooth %v raw %v", i, frame.Smooth[i], frame.Raw[i])
		}
	}
}

func TestEstimator_SetFreqRange(t *testing.T) {
	e := newTestEstimator(t)

	if err := e.SetFreqRange(100, 1000); err != nil {
		t.Fatalf("SetFreqRange: %v", err)
	}
	x := e.XSubband()
	if x[0] < 100 || x[len(x)-1] > 1000 {
		t.Errorf("axis [%v, %v] outside new range", x[0], x[len(x)-1])
	}
	testutil.AssertClose(t, "log start", e.XLog()[0], 100, 1e-9)

	if err := e.SetFreqRange(1000, 100); err == nil {
		t.Error("expected error for inverted range")
	}
	if e.Config().FreqRange != [2]float64{100, 1000} {
		t.Errorf("failed update changed config to %v", e.Config().FreqRange)
	}
}
