package audio

import "fmt"

// Resample converts samples between rates with linear interpolation.
func Resample(in []float32, inRate, outRate int) ([]float32, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: input=%d, output=%d", inRate, outRate)
	}

	if len(in) == 0 {
		return []float32{}, nil
	}

	if inRate == outRate {
		out := make([]float32, len(in))
		copy(out, in)
		return out, nil
	}

	ratio := float64(inRate) / float64(outRate)
	n := int(float64(len(in)) / ratio)
	if n <= 0 {
		return []float32{}, nil
	}

	out := make([]float32, n)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx] + frac*(in[idx+1]-in[idx])
	}

	return out, nil
}
