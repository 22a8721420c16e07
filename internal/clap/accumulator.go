package clap

import "clapbattle/internal/domain"

// DefaultSmoothing is the weight of each new raw value in the display level.
const DefaultSmoothing = 0.3

// Accumulator collects the raw samples of one listening window. Smoothing
// only affects the display value; scoring always uses raw samples.
type Accumulator struct {
	smoothing float64
	samples   []float64
	sum       float64
	peak      float64
	display   float64
	overdrive bool
}

// NewAccumulator returns an empty accumulator. A smoothing factor outside
// (0,1] falls back to DefaultSmoothing.
func NewAccumulator(smoothing float64) *Accumulator {
	if smoothing <= 0 || smoothing > 1 {
		smoothing = DefaultSmoothing
	}
	return &Accumulator{smoothing: smoothing}
}

// Add records one raw reading and returns the new display level.
func (a *Accumulator) Add(raw float64) float64 {
	raw = clampSample(raw)
	a.display += (raw - a.display) * a.smoothing
	a.samples = append(a.samples, raw)
	a.sum += raw
	if raw > a.peak {
		a.peak = raw
	}
	if raw > OverdriveThreshold {
		a.overdrive = true
	}
	return a.display
}

// Display returns the smoothed level.
func (a *Accumulator) Display() float64 { return a.display }

// Peak returns the highest raw value seen.
func (a *Accumulator) Peak() float64 { return a.peak }

// Overdrive reports whether any raw value exceeded the overdrive threshold.
func (a *Accumulator) Overdrive() bool { return a.overdrive }

// Len returns the number of recorded samples.
func (a *Accumulator) Len() int { return len(a.samples) }

// Mean returns the average raw level, 0 when empty.
func (a *Accumulator) Mean() float64 {
	if len(a.samples) == 0 {
		return 0
	}
	return a.sum / float64(len(a.samples))
}

// Samples returns a copy of the recorded raw values.
func (a *Accumulator) Samples() []float64 {
	out := make([]float64, len(a.samples))
	copy(out, a.samples)
	return out
}

// Result scores everything recorded so far.
func (a *Accumulator) Result(label domain.Label) domain.ClapScore {
	return scoreOf(label, a.Mean(), a.peak)
}
