package clap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"clapbattle/internal/domain"
)

// ErrSessionUsed is returned when Run is called on a session that already
// ran. A cancelled or finished session cannot be resumed.
var ErrSessionUsed = errors.New("clap session already used")

// LoudnessSource produces normalized loudness readings in [0,100]. Err
// reports a failure that happened after Start returned.
type LoudnessSource interface {
	Start(ctx context.Context) error
	Stop() error
	Level() float64
	Err() error
}

// Phase is the lifecycle step of a session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCountdown
	PhaseListening
	PhaseDone
	PhaseFailed
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseCountdown:
		return "Countdown"
	case PhaseListening:
		return "Listening"
	case PhaseDone:
		return "Done"
	case PhaseFailed:
		return "Failed"
	case PhaseCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Config controls the timing of a session.
type Config struct {
	Duration      int // listening window, whole seconds
	CountdownFrom int
	Tick          time.Duration
	FrameInterval time.Duration
	Smoothing     float64
}

// DefaultConfig returns a 3-2-1 countdown and a five second window sampled
// at 60 Hz.
func DefaultConfig() Config {
	return Config{
		Duration:      5,
		CountdownFrom: 3,
		Tick:          time.Second,
		FrameInterval: time.Second / 60,
		Smoothing:     DefaultSmoothing,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Duration <= 0 {
		c.Duration = def.Duration
	}
	if c.CountdownFrom < 0 {
		c.CountdownFrom = 0
	}
	if c.Tick <= 0 {
		c.Tick = def.Tick
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = def.FrameInterval
	}
	if c.Smoothing <= 0 {
		c.Smoothing = def.Smoothing
	}
	return c
}

// Reading is one frame of meter output.
type Reading struct {
	Verse     domain.Label `json:"verse"`
	Raw       float64      `json:"raw"`
	Display   float64      `json:"display"`
	Peak      float64      `json:"peak"`
	TimeLeft  int          `json:"timeLeft"`
	Overdrive bool         `json:"overdrive"`
}

// Observer receives session progress. Calls are made from the session's
// goroutine and must not block.
type Observer interface {
	Countdown(label domain.Label, n int)
	Meter(r Reading)
	TimeLeft(label domain.Label, seconds int)
	Completed(score domain.ClapScore)
}

type nopObserver struct{}

func (nopObserver) Countdown(domain.Label, int) {}
func (nopObserver) Meter(Reading)               {}
func (nopObserver) TimeLeft(domain.Label, int)  {}
func (nopObserver) Completed(domain.ClapScore)  {}

// Session runs one countdown and listening window for a verse and yields
// exactly one score.
type Session struct {
	label    domain.Label
	source   LoudnessSource
	cfg      Config
	observer Observer

	mu     sync.Mutex
	phase  Phase
	used   bool
	acc    *Accumulator
	result domain.ClapScore
	err    error

	emit sync.Once
}

// NewSession creates a session. A nil observer discards progress.
func NewSession(label domain.Label, source LoudnessSource, cfg Config, observer Observer) *Session {
	if observer == nil {
		observer = nopObserver{}
	}
	cfg = cfg.withDefaults()
	return &Session{
		label:    label,
		source:   source,
		cfg:      cfg,
		observer: observer,
		acc:      NewAccumulator(cfg.Smoothing),
	}
}

// Phase returns the current lifecycle step.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	old := s.phase
	s.phase = p
	s.mu.Unlock()
	if old != p {
		log.Printf("Clap session %s: %s -> %s", s.label, old, p)
	}
}

// Run blocks through countdown, listening and scoring. If the source cannot
// start or fails while listening, Run returns its error and no score is
// produced. Cancelling ctx
// stops the source and returns ctx.Err().
func (s *Session) Run(ctx context.Context) (domain.ClapScore, error) {
	s.mu.Lock()
	if s.used {
		s.mu.Unlock()
		return domain.ClapScore{}, ErrSessionUsed
	}
	s.used = true
	s.mu.Unlock()

	s.setPhase(PhaseCountdown)
	if err := s.countdown(ctx); err != nil {
		return s.fail(PhaseCancelled, err)
	}

	s.setPhase(PhaseListening)
	if err := s.source.Start(ctx); err != nil {
		return s.fail(PhaseFailed, fmt.Errorf("verse %s listening window: %w", s.label, err))
	}
	err := s.listen(ctx)
	if stopErr := s.source.Stop(); stopErr != nil {
		log.Printf("Error releasing loudness source: %v", stopErr)
	}
	if err != nil {
		if ctx.Err() != nil {
			return s.fail(PhaseCancelled, err)
		}
		return s.fail(PhaseFailed, fmt.Errorf("verse %s listening window: %w", s.label, err))
	}

	s.setPhase(PhaseDone)
	return s.finish(), nil
}

func (s *Session) countdown(ctx context.Context) error {
	if s.cfg.CountdownFrom == 0 {
		s.observer.Countdown(s.label, 0)
		return nil
	}

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for n := s.cfg.CountdownFrom; n > 0; n-- {
		s.observer.Countdown(s.label, n)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	s.observer.Countdown(s.label, 0)
	return nil
}

func (s *Session) listen(ctx context.Context) error {
	frames := time.NewTicker(s.cfg.FrameInterval)
	defer frames.Stop()
	seconds := time.NewTicker(s.cfg.Tick)
	defer seconds.Stop()

	timeLeft := s.cfg.Duration
	s.observer.TimeLeft(s.label, timeLeft)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-frames.C:
			if err := s.source.Err(); err != nil {
				return err
			}
			raw := s.source.Level()
			s.mu.Lock()
			display := s.acc.Add(raw)
			reading := Reading{
				Verse:     s.label,
				Raw:       raw,
				Display:   display,
				Peak:      s.acc.Peak(),
				TimeLeft:  timeLeft,
				Overdrive: s.acc.Overdrive(),
			}
			s.mu.Unlock()
			s.observer.Meter(reading)
		case <-seconds.C:
			timeLeft--
			s.observer.TimeLeft(s.label, timeLeft)
			if timeLeft <= 0 {
				return s.source.Err()
			}
		}
	}
}

// finish computes and emits the score. It runs its body once per session
// no matter how often it is reached.
func (s *Session) finish() domain.ClapScore {
	s.emit.Do(func() {
		s.mu.Lock()
		s.result = s.acc.Result(s.label)
		samples := s.acc.Len()
		s.mu.Unlock()

		log.Printf("Clap session %s scored %d (samples=%d, overdrive=%t, tooQuiet=%t)",
			s.label, s.result.Score, samples, s.result.Overdrive, s.result.TooQuiet)
		s.observer.Completed(s.result)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Session) fail(p Phase, err error) (domain.ClapScore, error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.setPhase(p)
	return domain.ClapScore{}, err
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Samples returns the raw samples recorded so far.
func (s *Session) Samples() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.Samples()
}
