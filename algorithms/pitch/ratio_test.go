package pitch

import "testing"

func TestHarmonicRatio(t *testing.T) {
	tests := []struct {
		name      string
		f1, f2    float64
		tolerance float64
		want      float64
	}{
		{"octave up", 440, 880, 0.05, -2},
		{"octave down", 880, 440, 0.05, 2},
		{"fifth", 440, 660, 0.05, -1.5},
		{"fifth reversed", 660, 440, 0.05, 1.5},
		{"twelfth", 300, 900, 0.05, -3},
		{"major sixth 5/3", 300, 500, 0.05, -5.0 / 3},
		{"near unison loose", 440, 441, 0.05, -1},
		{"near unison reversed", 441, 440, 0.05, 1},
		{"near unison tight", 440, 441, 0.001, 0},
		{"near unison tight reversed", 441, 440, 0.001, 0},
		{"detuned octave within tolerance", 440, 890, 0.05, -2},
		{"no relation", 440, 1000, 0.05, 0},
		{"zero first", 0, 100, 0.05, 0},
		{"zero second", 100, 0, 0.05, 0},
		{"equal", 440, 440, 0.05, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HarmonicRatio(tt.f1, tt.f2, tt.tolerance); got != tt.want {
				t.Errorf("HarmonicRatio(%v, %v, %v) = %v, want %v", tt.f1, tt.f2, tt.tolerance, got, tt.want)
			}
		})
	}
}

func TestHarmonicRatios_Distinct(t *testing.T) {
	ratios := HarmonicRatios()
	// 1, 5/4, 4/3, 3/2, 5/3, 2, 5/2, 3, 4, 5
	if len(ratios) != 10 {
		t.Fatalf("got %d candidates (%v), want 10", len(ratios), ratios)
	}
	for i := 1; i < len(ratios); i++ {
		if ratios[i] <= ratios[i-1] {
			t.Fatalf("candidates not strictly ascending: %v", ratios)
		}
	}
}

func TestIsUnison(t *testing.T) {
	if !IsUnison(1) || !IsUnison(-1) {
		t.Error("±1 should be unison")
	}
	if IsUnison(0) || IsUnison(2) {
		t.Error("0 and 2 are not unison")
	}
}
