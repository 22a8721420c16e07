package audio

import "math"

// DefaultSensitivity maps RMS amplitude onto the 0-100 meter. It is an
// empirical constant: conversational speech lands near the bottom of the
// scale and a close, loud clap saturates it. Different microphones will
// want different values.
const DefaultSensitivity = 350.0

// MaxLevel is the top of the loudness scale.
const MaxLevel = 100.0

// RMS returns the root-mean-square amplitude of a time-domain buffer.
func RMS(buf []float32) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, s := range buf {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(buf)))
}

// Normalize scales an RMS value onto [0, MaxLevel].
func Normalize(rms, sensitivity float64) float64 {
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}
	return ClampLevel(rms * sensitivity)
}

// ClampLevel pins v into [0, MaxLevel]. NaN maps to 0.
func ClampLevel(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > MaxLevel:
		return MaxLevel
	default:
		return v
	}
}

// Loudness is RMS followed by Normalize.
func Loudness(buf []float32, sensitivity float64) float64 {
	return Normalize(RMS(buf), sensitivity)
}
