package clap

import (
	"math"

	"clapbattle/internal/domain"
)

const (
	// OverdriveThreshold is the raw level above which a window overdrives.
	OverdriveThreshold = 90.0
	// QuietThreshold is the mean level below which a window is too quiet.
	QuietThreshold = 15.0

	meanWeight = 0.6
	peakWeight = 0.4
)

// Score turns the raw samples of one listening window into a ClapScore.
// An empty window scores 0 and is too quiet.
func Score(label domain.Label, samples []float64) domain.ClapScore {
	var sum, peak float64
	for _, s := range samples {
		s = clampSample(s)
		sum += s
		if s > peak {
			peak = s
		}
	}

	var mean float64
	if len(samples) > 0 {
		mean = sum / float64(len(samples))
	}
	return scoreOf(label, mean, peak)
}

func scoreOf(label domain.Label, mean, peak float64) domain.ClapScore {
	return domain.ClapScore{
		Verse:     label,
		Score:     int(math.Round(math.Min(100, mean*meanWeight+peak*peakWeight))),
		Overdrive: peak > OverdriveThreshold,
		TooQuiet:  mean < QuietThreshold,
	}
}

func clampSample(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
