package audio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// FileSource replays the loudness of a recorded clip in real time. It
// satisfies the same start/stop/level contract as Sampler, which makes it
// useful for soundchecks without a microphone and for tests.
type FileSource struct {
	levels []float64
	frame  time.Duration
	loop   bool

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool

	level atomic.Uint64
}

// FileSourceConfig controls how a clip is windowed and replayed.
type FileSourceConfig struct {
	FramesPerWindow int
	Sensitivity     float64
	Loop            bool
}

// NewFileSource decodes a WAV file and precomputes one loudness value per
// window.
func NewFileSource(path string, cfg FileSourceConfig) (*FileSource, error) {
	samples, rate, err := DecodeWAVFile(path)
	if err != nil {
		return nil, err
	}
	return NewSampleSource(samples, rate, cfg)
}

// NewSampleSource builds a source from already decoded samples.
func NewSampleSource(samples []float32, sampleRate int, cfg FileSourceConfig) (*FileSource, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if cfg.FramesPerWindow <= 0 {
		cfg.FramesPerWindow = sampleRate / 60
	}
	if cfg.FramesPerWindow <= 0 {
		cfg.FramesPerWindow = 1
	}

	var levels []float64
	for off := 0; off < len(samples); off += cfg.FramesPerWindow {
		end := off + cfg.FramesPerWindow
		if end > len(samples) {
			end = len(samples)
		}
		levels = append(levels, Loudness(samples[off:end], cfg.Sensitivity))
	}

	frame := time.Duration(float64(time.Second) * float64(cfg.FramesPerWindow) / float64(sampleRate))
	if frame <= 0 {
		frame = time.Millisecond
	}

	return &FileSource{levels: levels, frame: frame, loop: cfg.Loop}, nil
}

// Levels returns the precomputed per-window loudness values.
func (f *FileSource) Levels() []float64 {
	out := make([]float64, len(f.levels))
	copy(out, f.levels)
	return out
}

// Start begins replaying from the first window.
func (f *FileSource) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return nil
	}
	f.stop = make(chan struct{})
	f.done = make(chan struct{})
	f.running = true
	f.setLevel(0)

	go f.play(ctx, f.stop, f.done)
	return nil
}

func (f *FileSource) play(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(f.frame)
	defer ticker.Stop()

	i := 0
	for {
		if i >= len(f.levels) {
			if !f.loop || len(f.levels) == 0 {
				f.setLevel(0)
				return
			}
			i = 0
		}
		f.setLevel(f.levels[i])
		i++

		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// Level returns the loudness of the window currently playing.
func (f *FileSource) Level() float64 {
	return math.Float64frombits(f.level.Load())
}

// Err always returns nil; a decoded clip cannot fail mid-replay.
func (f *FileSource) Err() error { return nil }

func (f *FileSource) setLevel(v float64) {
	f.level.Store(math.Float64bits(v))
}

// Stop halts playback. It is safe to call when not started.
func (f *FileSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return nil
	}
	f.running = false
	close(f.stop)
	<-f.done
	f.setLevel(0)
	return nil
}
