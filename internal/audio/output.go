package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// DefaultOutputRate matches the sample rate of OpenAI speech output.
const DefaultOutputRate = 24000

// Output plays mono float32 samples on the default output device.
type Output struct {
	stream     *portaudio.Stream
	sampleRate int

	mu          sync.Mutex
	samples     []float32
	position    int
	finished    bool
	interrupted bool
}

// NewOutput opens a callback-driven output stream.
func NewOutput(sampleRate int) (*Output, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultOutputRate
	}
	if err := GetManager().Acquire(); err != nil {
		return nil, fmt.Errorf("failed to initialize audio host: %w", err)
	}

	out := &Output{sampleRate: sampleRate, finished: true}

	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), 1024, out.callback)
	if err != nil {
		GetManager().Release()
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}

	out.stream = stream
	return out, nil
}

// SampleRate returns the stream rate.
func (o *Output) SampleRate() int {
	return o.sampleRate
}

func (o *Output) callback(out []float32) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := range out {
		if o.interrupted || o.position >= len(o.samples) {
			out[i] = 0
			o.finished = true
			continue
		}
		out[i] = o.samples[o.position]
		o.position++
	}
}

// PlayEncoded decodes a WAV or MP3 payload and plays it.
func (o *Output) PlayEncoded(ctx context.Context, data []byte) error {
	samples, rate, err := Decode(data)
	if err != nil {
		return fmt.Errorf("failed to decode audio: %w", err)
	}
	if rate != o.sampleRate {
		samples, err = Resample(samples, rate, o.sampleRate)
		if err != nil {
			return fmt.Errorf("failed to resample audio: %w", err)
		}
	}
	return o.PlaySamples(ctx, samples)
}

// PlaySamples blocks until the samples have played, Stop is called, or ctx
// is cancelled.
func (o *Output) PlaySamples(ctx context.Context, samples []float32) error {
	if len(samples) == 0 {
		return fmt.Errorf("no audio samples to play")
	}

	o.mu.Lock()
	o.samples = append(o.samples[:0], samples...)
	o.position = 0
	o.finished = false
	o.interrupted = false
	o.mu.Unlock()

	if err := o.stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	defer o.stream.Stop()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.Stop()
			return ctx.Err()
		case <-ticker.C:
			if !o.IsPlaying() {
				return nil
			}
		}
	}
}

// Stop interrupts the current playback.
func (o *Output) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.interrupted = true
	o.finished = true
}

// IsPlaying reports whether samples are still being played.
func (o *Output) IsPlaying() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.finished && !o.interrupted
}

// Close releases the stream and the audio host.
func (o *Output) Close() error {
	if o.stream != nil {
		if err := o.stream.Close(); err != nil {
			return fmt.Errorf("failed to close audio stream: %w", err)
		}
	}
	return GetManager().Release()
}
