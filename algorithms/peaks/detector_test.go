package peaks

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/kilomelo/audio-analysis/algorithms/spectral"
	"github.com/kilomelo/audio-analysis/internal/testutil"
	"github.com/kilomelo/audio-analysis/logging"
)

func init() {
	logging.SetGlobalLogger(nil)
}

type bump struct {
	freq   float64
	height float64
}

// syntheticFrame builds a frame whose sub-band spectrum sits at -30 dB
// except for symmetric three-bin bumps at the bins nearest each bump.
func syntheticFrame(t *testing.T, bumps ...bump) *spectral.Frame {
	t.Helper()

	freqs := spectral.FFTFrequencies(44100, 2048)
	start, end := spectral.BandIndices(freqs, 200, 4000)
	xSubband := freqs[start:end]
	xLog, err := spectral.LogSpace(200, 4000, 2000)
	if err != nil {
		t.Fatalf("LogSpace: %v", err)
	}

	db := testutil.DC(-30, len(xSubband))
	for _, b := range bumps {
		i := nearestIndex(xSubband, b.freq)
		db[i-1] = b.height - 6
		db[i] = b.height
		db[i+1] = b.height - 6
	}

	raw, err := spectral.Resample(xSubband, db, xLog, spectral.Nearest, -120)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}

	return &spectral.Frame{
		SampleRate: 44100,
		XSubband:   xSubband,
		DBSubband:  db,
		XLog:       xLog,
		Smooth:     raw,
		Raw:        raw,
	}
}

func newTestDetector(t *testing.T, frame *spectral.Frame) *Detector {
	t.Helper()
	d, err := NewDetector(frame.XSubband, frame.XLog, DefaultConfig())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func TestDetector_SingleSinusoid(t *testing.T) {
	est, err := spectral.NewEstimator(spectral.DefaultEstimatorConfig())
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	est.OnParamsChanged(44100, 2048, 2048)

	frame, err := est.ComputeSpectrum(testutil.DeterministicSine(440, 44100, 0.5, 2048))
	if err != nil {
		t.Fatalf("ComputeSpectrum: %v", err)
	}

	d := newTestDetector(t, frame)
	peaks, err := d.DetectPeaks(frame)
	if err != nil {
		t.Fatalf("DetectPeaks: %v", err)
	}

	if len(peaks) != 1 {
		t.Fatalf("got %d peaks (%v), want 1", len(peaks), peaks)
	}
	binWidth := 44100.0 / 2048
	if math.Abs(peaks[0].Frequency-440) > binWidth {
		t.Errorf("peak at %v Hz, want within %v of 440", peaks[0].Frequency, binWidth)
	}
	if peaks[0].AmplitudeDB < 0 {
		t.Errorf("peak level %v dB, want a loud peak", peaks[0].AmplitudeDB)
	}
}

func TestDetector_RefinesToBinCentre(t *testing.T) {
	frame := syntheticFrame(t, bump{1000, 20})
	d := newTestDetector(t, frame)

	peaks, err := d.DetectPeaks(frame)
	if err != nil {
		t.Fatalf("DetectPeaks: %v", err)
	}
	if len(peaks) != 1 {
		t.Fatalf("got %d peaks, want 1", len(peaks))
	}

	want := frame.XSubband[nearestIndex(frame.XSubband, 1000)]
	testutil.AssertClose(t, "frequency", peaks[0].Frequency, want, 1e-6)
	testutil.AssertClose(t, "level", peaks[0].AmplitudeDB, 20, 1e-9)
}

func TestDetector_DynamicThreshold(t *testing.T) {
	tests := []struct {
		name      string
		lowHeight float64
		wantPeaks int
	}{
		// (0+60) < 0.72*(40+60)
		{"weak lower peak dropped", 0, 1},
		// (20+60) >= 0.72*(40+60)
		{"strong lower peak kept", 20, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := syntheticFrame(t, bump{300, tt.lowHeight}, bump{600, 40})
			d := newTestDetector(t, frame)

			peaks, err := d.DetectPeaks(frame)
			if err != nil {
				t.Fatalf("DetectPeaks: %v", err)
			}
			if len(peaks) != tt.wantPeaks {
				t.Fatalf("got %d peaks (%v), want %d", len(peaks), peaks, tt.wantPeaks)
			}
			if math.Abs(peaks[len(peaks)-1].Frequency-600) > 22 {
				t.Errorf("strongest peak at %v Hz, want near 600", peaks[len(peaks)-1].Frequency)
			}
		})
	}
}

func TestDynamicThreshold(t *testing.T) {
	tests := []struct {
		name    string
		freqs   []float64
		heights []float64
		want    []bool
	}{
		{"below threshold", []float64{200, 400}, []float64{-30, 0}, []bool{false, true}},
		{"above threshold", []float64{200, 400}, []float64{-10, 0}, []bool{true, true}},
		// a dropped peak does not become the new reference
		{"chain", []float64{100, 200, 300}, []float64{-5, -40, 0}, []bool{true, false, true}},
		{"unsorted input", []float64{400, 200}, []float64{0, -30}, []bool{true, false}},
		{"empty", nil, nil, []bool{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DynamicThreshold(tt.freqs, tt.heights, 60, 0.72)
			if !slices.Equal(got, tt.want) {
				t.Errorf("DynamicThreshold = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetector_TopNOrderedByFrequency(t *testing.T) {
	frame := syntheticFrame(t,
		bump{300, 30},
		bump{450, 30},
		bump{675, 25},
		bump{1000, 30},
		bump{1500, 30},
		bump{2250, 30},
	)
	d := newTestDetector(t, frame)

	peaks, err := d.DetectPeaks(frame)
	if err != nil {
		t.Fatalf("DetectPeaks: %v", err)
	}
	if len(peaks) != 5 {
		t.Fatalf("got %d peaks, want 5", len(peaks))
	}

	for i := 1; i < len(peaks); i++ {
		if peaks[i].Frequency <= peaks[i-1].Frequency {
			t.Fatalf("peaks not in ascending frequency order: %v", peaks)
		}
	}
	for _, p := range peaks {
		if math.Abs(p.Frequency-675) < 22 {
			t.Errorf("quietest peak %v should have been dropped", p)
		}
	}
}

func TestSelectTop(t *testing.T) {
	in := []Peak{{800, -10}, {200, 5}, {400, 0}, {100, -20}}
	got := SelectTop(in, 2)
	want := []Peak{{200, 5}, {400, 0}}
	if !slices.Equal(got, want) {
		t.Errorf("SelectTop = %v, want %v", got, want)
	}
	if in[0].Frequency != 800 {
		t.Error("input reordered")
	}
}

func TestDetector_Errors(t *testing.T) {
	frame := syntheticFrame(t, bump{1000, 20})
	d := newTestDetector(t, frame)

	short := *frame
	short.Raw = frame.Raw[:10]
	if _, err := d.DetectPeaks(&short); !errors.Is(err, ErrDetection) {
		t.Errorf("short curve: err = %v, want ErrDetection", err)
	}

	bad := *frame
	bad.Raw = slices.Clone(frame.Raw)
	bad.Raw[1000] = math.NaN()
	if _, err := d.DetectPeaks(&bad); !errors.Is(err, ErrDetection) {
		t.Errorf("NaN curve: err = %v, want ErrDetection", err)
	}

	if _, err := NewDetector(frame.XSubband[:2], frame.XLog, DefaultConfig()); err == nil {
		t.Error("expected error for two sub-band bins")
	}

	cfg := DefaultConfig()
	cfg.Num = 0
	if _, err := NewDetector(frame.XSubband, frame.XLog, cfg); err == nil {
		t.Error("expected error for num = 0")
	}
}
