package audio

import (
	"context"
	"errors"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

const (
	defaultSampleRate = 44100
	// 735 frames at 44.1 kHz is one buffer per 1/60 s.
	defaultFramesPerBuffer = 735
)

// SamplerConfig controls microphone capture.
type SamplerConfig struct {
	SampleRate      int
	FramesPerBuffer int
	Sensitivity     float64
}

// DefaultSamplerConfig returns a 60 Hz capture at 44.1 kHz.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		SampleRate:      defaultSampleRate,
		FramesPerBuffer: defaultFramesPerBuffer,
		Sensitivity:     DefaultSensitivity,
	}
}

// inputStream is the subset of *portaudio.Stream the sampler drives.
type inputStream interface {
	Start() error
	Read() error
	Stop() error
	Close() error
}

// Sampler captures the default input device and publishes the loudness of
// each buffer it reads. It does no smoothing.
type Sampler struct {
	cfg     SamplerConfig
	manager *Manager
	open    func(buf []float32) (inputStream, error)

	mu      sync.Mutex
	stream  inputStream
	buf     []float32
	stop    chan struct{}
	done    chan struct{}
	running bool

	level   atomic.Uint64
	readErr atomic.Pointer[MicrophoneAccessError]
}

// NewSampler creates a sampler bound to the default input device.
func NewSampler(cfg SamplerConfig) *Sampler {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = defaultFramesPerBuffer
	}
	if cfg.Sensitivity <= 0 {
		cfg.Sensitivity = DefaultSensitivity
	}
	s := &Sampler{cfg: cfg, manager: GetManager()}
	s.open = func(buf []float32) (inputStream, error) {
		return portaudio.OpenDefaultStream(1, 0, float64(cfg.SampleRate), len(buf), buf)
	}
	return s
}

// Start acquires the microphone and begins sampling. Calling Start on a
// running sampler is a no-op. Any failure releases what was acquired and
// returns a *MicrophoneAccessError.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if err := s.manager.Acquire(); err != nil {
		return &MicrophoneAccessError{Op: "initialize", Err: err}
	}

	buf := make([]float32, s.cfg.FramesPerBuffer)
	stream, err := s.open(buf)
	if err != nil {
		s.manager.Release()
		return &MicrophoneAccessError{Op: "open", Err: err}
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		s.manager.Release()
		return &MicrophoneAccessError{Op: "start", Err: err}
	}

	s.stream = stream
	s.buf = buf
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true
	s.setLevel(0)
	s.readErr.Store(nil)

	go s.readLoop(ctx, stream, buf, s.stop, s.done)

	log.Printf("Microphone sampler started (%d Hz, %d frames/buffer)", s.cfg.SampleRate, s.cfg.FramesPerBuffer)
	return nil
}

func (s *Sampler) readLoop(ctx context.Context, stream inputStream, buf []float32, stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			log.Printf("Error reading microphone: %v", err)
			s.readErr.Store(&MicrophoneAccessError{Op: "read", Err: err})
			s.setLevel(0)
			return
		}

		s.setLevel(Loudness(buf, s.cfg.Sensitivity))
	}
}

// Level returns the most recent normalized loudness in [0,100].
func (s *Sampler) Level() float64 {
	return math.Float64frombits(s.level.Load())
}

// Err reports a capture failure that ended sampling after Start succeeded,
// such as the device being unplugged. It is cleared by the next Start.
func (s *Sampler) Err() error {
	if err := s.readErr.Load(); err != nil {
		return err
	}
	return nil
}

func (s *Sampler) setLevel(v float64) {
	s.level.Store(math.Float64bits(v))
}

// Running reports whether the sampler currently holds the microphone.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop halts sampling and releases the stream and the audio host. It is
// safe to call on a sampler that was never started.
func (s *Sampler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	close(s.stop)
	<-s.done

	var errs []error
	if err := s.stream.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.manager.Release(); err != nil {
		errs = append(errs, err)
	}

	s.stream = nil
	s.buf = nil
	s.setLevel(0)

	log.Println("Microphone sampler stopped")
	return errors.Join(errs...)
}
