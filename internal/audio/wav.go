package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/youpy/go-wav"
)

// WriteWAV encodes mono float32 samples as 16-bit PCM.
func WriteWAV(w io.Writer, samples []float32, sampleRate int) error {
	writer := wav.NewWriter(w, uint32(len(samples)), 1, uint32(sampleRate), 16)

	out := make([]wav.Sample, len(samples))
	for i, s := range samples {
		out[i].Values[0] = int(clampUnit(s) * 32767)
	}

	if err := writer.WriteSamples(out); err != nil {
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	return nil
}

// SaveToWAV writes mono float32 samples to a 16-bit PCM WAV file.
func SaveToWAV(filename string, samples []float32, sampleRate int) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}
	defer file.Close()

	return WriteWAV(file, samples, sampleRate)
}
