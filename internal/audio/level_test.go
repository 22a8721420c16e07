package audio

import (
	"math"
	"testing"
)

func TestRMS(t *testing.T) {
	testCases := []struct {
		name string
		buf  []float32
		want float64
	}{
		{"empty", nil, 0},
		{"silence", []float32{0, 0, 0, 0}, 0},
		{"constant", []float32{0.5, -0.5, 0.5, -0.5}, 0.5},
		{"mixed", []float32{1, 0, 0, 0}, 0.5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := RMS(tc.buf)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("RMS(%v) = %f, expected %f", tc.buf, got, tc.want)
			}
		})
	}
}

func TestNormalizeClamps(t *testing.T) {
	if got := Normalize(0.1, 350); math.Abs(got-35) > 1e-9 {
		t.Errorf("Normalize(0.1, 350) = %f, expected 35", got)
	}
	if got := Normalize(1.0, 350); got != MaxLevel {
		t.Errorf("loud input should saturate at %f, got %f", MaxLevel, got)
	}
	if got := Normalize(-1, 350); got != 0 {
		t.Errorf("negative input should clamp to 0, got %f", got)
	}
	if got := Normalize(0.1, 0); math.Abs(got-35) > 1e-9 {
		t.Errorf("zero sensitivity should fall back to default, got %f", got)
	}
	if got := ClampLevel(math.NaN()); got != 0 {
		t.Errorf("NaN should clamp to 0, got %f", got)
	}
}

func TestLoudnessOfSineSaturates(t *testing.T) {
	buf := make([]float32, 735)
	for i := range buf {
		buf[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/44100))
	}
	if got := Loudness(buf, DefaultSensitivity); got != MaxLevel {
		t.Errorf("half-scale sine should saturate the meter, got %f", got)
	}
}
