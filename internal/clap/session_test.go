package clap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clapbattle/internal/domain"
)

type scriptedSource struct {
	mu        sync.Mutex
	level     float64
	startErr  error
	readErr   error
	failAfter int
	reads     int
	started   int
	stopped   int
}

func (s *scriptedSource) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started++
	return nil
}

func (s *scriptedSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return nil
}

func (s *scriptedSource) Level() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.level
}

func (s *scriptedSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil && s.reads >= s.failAfter {
		return s.readErr
	}
	return nil
}

type recordingObserver struct {
	mu        sync.Mutex
	countdown []int
	meters    int
	timeLeft  []int
	completed []domain.ClapScore
}

func (o *recordingObserver) Countdown(_ domain.Label, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.countdown = append(o.countdown, n)
}

func (o *recordingObserver) Meter(Reading) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.meters++
}

func (o *recordingObserver) TimeLeft(_ domain.Label, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.timeLeft = append(o.timeLeft, n)
}

func (o *recordingObserver) Completed(s domain.ClapScore) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed = append(o.completed, s)
}

func fastConfig() Config {
	return Config{
		Duration:      2,
		CountdownFrom: 2,
		Tick:          20 * time.Millisecond,
		FrameInterval: 2 * time.Millisecond,
	}
}

func TestSessionRunProducesScore(t *testing.T) {
	source := &scriptedSource{level: 50}
	obs := &recordingObserver{}
	session := NewSession(domain.LabelB, source, fastConfig(), obs)

	score, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := domain.ClapScore{Verse: domain.LabelB, Score: 50}
	if score != want {
		t.Errorf("score = %+v, expected %+v", score, want)
	}
	if session.Phase() != PhaseDone {
		t.Errorf("phase = %s, expected Done", session.Phase())
	}
	if source.started != 1 || source.stopped != 1 {
		t.Errorf("source started %d times and stopped %d times", source.started, source.stopped)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.countdown) != 3 || obs.countdown[0] != 2 || obs.countdown[2] != 0 {
		t.Errorf("unexpected countdown sequence %v", obs.countdown)
	}
	if obs.meters == 0 {
		t.Error("expected meter readings during listening")
	}
	if len(obs.timeLeft) == 0 || obs.timeLeft[len(obs.timeLeft)-1] != 0 {
		t.Errorf("timer did not reach zero: %v", obs.timeLeft)
	}
	if len(obs.completed) != 1 {
		t.Errorf("expected one completion, got %d", len(obs.completed))
	}
}

func TestSessionCannotBeReused(t *testing.T) {
	session := NewSession(domain.LabelA, &scriptedSource{level: 10}, fastConfig(), nil)
	if _, err := session.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if _, err := session.Run(context.Background()); !errors.Is(err, ErrSessionUsed) {
		t.Fatalf("expected ErrSessionUsed, got %v", err)
	}
}

func TestSessionFinishEmitsOnce(t *testing.T) {
	obs := &recordingObserver{}
	session := NewSession(domain.LabelA, &scriptedSource{}, fastConfig(), obs)
	session.acc.Add(40)

	first := session.finish()
	session.acc.Add(100)
	second := session.finish()

	if first != second {
		t.Errorf("finish changed result: %+v then %+v", first, second)
	}
	if len(obs.completed) != 1 {
		t.Errorf("expected one completion, got %d", len(obs.completed))
	}
}

type micDenied struct{}

func (micDenied) Error() string { return "permission denied" }

func TestSessionSourceFailureDoesNotEmit(t *testing.T) {
	obs := &recordingObserver{}
	source := &scriptedSource{startErr: micDenied{}}
	session := NewSession(domain.LabelA, source, fastConfig(), obs)

	_, err := session.Run(context.Background())
	var denied micDenied
	if !errors.As(err, &denied) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
	if session.Phase() != PhaseFailed {
		t.Errorf("phase = %s, expected Failed", session.Phase())
	}
	if len(obs.completed) != 0 {
		t.Errorf("failed session must not emit a score")
	}
	if session.Err() == nil {
		t.Error("expected session error to be recorded")
	}
}

func TestSessionCancelReleasesSource(t *testing.T) {
	source := &scriptedSource{level: 80}
	obs := &recordingObserver{}
	cfg := fastConfig()
	cfg.Duration = 60
	cfg.CountdownFrom = 0
	session := NewSession(domain.LabelA, source, cfg, obs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := session.Run(ctx)
		done <- err
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after cancel")
	}

	if source.stopped != 1 {
		t.Errorf("source stopped %d times, expected 1", source.stopped)
	}
	if session.Phase() != PhaseCancelled {
		t.Errorf("phase = %s, expected Cancelled", session.Phase())
	}
	if len(obs.completed) != 0 {
		t.Error("cancelled session must not emit a score")
	}
}

func TestSessionReadFailureDoesNotScore(t *testing.T) {
	obs := &recordingObserver{}
	source := &scriptedSource{level: 87, readErr: micDenied{}, failAfter: 5}
	cfg := fastConfig()
	cfg.Duration = 60
	cfg.CountdownFrom = 0
	session := NewSession(domain.LabelB, source, cfg, obs)

	_, err := session.Run(context.Background())
	var denied micDenied
	if !errors.As(err, &denied) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
	if session.Phase() != PhaseFailed {
		t.Errorf("phase = %s, expected Failed", session.Phase())
	}
	if source.stopped != 1 {
		t.Errorf("source stopped %d times, expected 1", source.stopped)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.completed) != 0 {
		t.Errorf("a failed read must not turn into a score, got %+v", obs.completed)
	}
	if obs.meters != 5 {
		t.Errorf("meter frames = %d, expected 5 before the failure", obs.meters)
	}
}
