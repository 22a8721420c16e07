package state

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"clapbattle/internal/clap"
	"clapbattle/internal/config"
	"clapbattle/internal/domain"
	"clapbattle/internal/llm"
	"clapbattle/internal/metrics"
	"clapbattle/internal/tts"
)

// ErrInvalidTransition is returned for commands the current phase does not
// accept. The state is left unchanged.
var ErrInvalidTransition = errors.New("invalid transition")

// VerseGenerator writes the two verses and the announcer line.
type VerseGenerator interface {
	Generate(ctx context.Context, cfg domain.BattleConfig) (domain.Verse, domain.Verse, error)
	AnnounceOrFallback(ctx context.Context, a, b domain.Verse, sa, sb domain.ClapScore) (string, bool)
}

// SourceFactory returns a fresh loudness source for one listening window.
type SourceFactory func() clap.LoudnessSource

// EventSink receives everything a viewer needs to render the battle. Calls
// come from several goroutines and must not block.
type EventSink interface {
	PhaseChanged(snap Snapshot)
	Countdown(label domain.Label, n int)
	Meter(r clap.Reading)
	TimeLeft(label domain.Label, seconds int)
	Scored(score domain.ClapScore)
	Announced(line string)
	SoundcheckDone(score domain.ClapScore)
}

// Options wires a Manager. Generator and Sources are required.
type Options struct {
	Generator VerseGenerator
	Sources   SourceFactory
	Clap      clap.Config
	Speech    tts.TextAnnouncer
	Sink      EventSink
	Metrics   *metrics.Metrics
}

// Manager is the battle phase machine. All transitions are serialized by
// one mutex; sessions, generation and the announcer run on goroutines and
// report back through token-checked callbacks.
type Manager struct {
	gen     VerseGenerator
	sources SourceFactory
	clapCfg clap.Config
	speech  tts.TextAnnouncer
	sink    EventSink
	metrics *metrics.Metrics

	mu        sync.Mutex
	phase     domain.Phase
	battleID  string
	config    *domain.BattleConfig
	verseA    *domain.Verse
	verseB    *domain.Verse
	clapA     *domain.ClapScore
	clapB     *domain.ClapScore
	announcer string
	errMsg    string
	speaking  domain.Label

	// battleCtx is cancelled when the battle is replaced.
	battleCtx    context.Context
	battleCancel context.CancelFunc

	session       uint64 // current clap session token
	sessionCancel context.CancelFunc
	resultSeq     uint64
	resultCancel  context.CancelFunc
	readSeq       uint64
	readCancel    context.CancelFunc

	// version numbers published snapshots in the order they were taken.
	version uint64

	soundcheck       uint64
	soundcheckCancel context.CancelFunc

	wg sync.WaitGroup
}

func NewManager(opts Options) *Manager {
	if opts.Speech == nil {
		opts.Speech = tts.Silent{}
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}

	m := &Manager{
		gen:     opts.Generator,
		sources: opts.Sources,
		clapCfg: opts.Clap,
		speech:  opts.Speech,
		sink:    opts.Sink,
		metrics: opts.Metrics,
		phase:   domain.PhaseSetup,
	}
	m.resetLocked()
	return m
}

// SetSink replaces the event sink. It is meant to be called once during
// wiring, before any command is issued.
func (m *Manager) SetSink(sink EventSink) {
	if sink == nil {
		sink = nopSink{}
	}
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
}

func (m *Manager) setPhaseLocked(p domain.Phase) {
	old := m.phase
	m.phase = p
	if old != p {
		log.Printf("Phase changed: %s -> %s", old, p)
		m.metrics.RecordPhase(string(old), string(p))
	}
}

// publish sends the current snapshot. Must be called without m.mu held.
// Publishers race once the lock is released, so sinks order snapshots by
// Seq rather than by arrival.
func (m *Manager) publish() {
	m.mu.Lock()
	snap := m.nextSnapshotLocked()
	sink := m.sink
	m.mu.Unlock()
	sink.PhaseChanged(snap)
}

func (m *Manager) nextSnapshotLocked() Snapshot {
	m.version++
	return m.snapshotLocked()
}

func invalid(op string, phase domain.Phase) error {
	return fmt.Errorf("%w: cannot %s during %s", ErrInvalidTransition, op, phase)
}

// Generate moves setup -> generating and blocks until both verses arrive
// (-> showVerses) or generation fails (-> setup with the error shown).
func (m *Manager) Generate(ctx context.Context, cfg domain.BattleConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.phase != domain.PhaseSetup {
		phase := m.phase
		m.mu.Unlock()
		return invalid("generate", phase)
	}
	if m.soundcheckCancel != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: soundcheck in progress", ErrInvalidTransition)
	}
	id := m.battleID
	battleCtx := m.battleCtx
	m.config = &cfg
	m.errMsg = ""
	m.setPhaseLocked(domain.PhaseGenerating)
	m.mu.Unlock()
	m.publish()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(battleCtx, cancel)
	defer stop()

	log.Printf("Generating battle %s: topic=%q style=%s chaos=%t models=%s/%s",
		id, cfg.Topic, cfg.Style, cfg.ChaosMode, cfg.ModelA, cfg.ModelB)
	start := time.Now()
	verseA, verseB, err := m.gen.Generate(ctx, cfg)

	m.mu.Lock()
	if m.battleID != id || m.phase != domain.PhaseGenerating {
		m.mu.Unlock()
		log.Printf("Discarding generation result for replaced battle %s", id)
		return context.Canceled
	}
	if err != nil {
		log.Printf("Generation failed: %v", err)
		m.metrics.RecordGeneration(time.Since(start), generationErrorKind(err))
		m.errMsg = err.Error()
		m.config = nil
		m.setPhaseLocked(domain.PhaseSetup)
		m.mu.Unlock()
		m.publish()
		return err
	}
	m.metrics.RecordGeneration(time.Since(start), "")
	m.verseA = &verseA
	m.verseB = &verseB
	m.setPhaseLocked(domain.PhaseShowVerses)
	m.mu.Unlock()
	m.publish()
	return nil
}

func generationErrorKind(err error) string {
	var genErr *llm.GenerationError
	var cfgErr *config.ConfigurationError
	switch {
	case errors.As(err, &genErr):
		return string(genErr.Kind)
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "other"
	}
}

// StartClaps opens the first listening window for a verse that has no
// score yet.
func (m *Manager) StartClaps() error {
	m.mu.Lock()
	if m.phase != domain.PhaseShowVerses || m.verseA == nil || m.verseB == nil {
		phase := m.phase
		m.mu.Unlock()
		return invalid("start clapping", phase)
	}
	m.stopReadingLocked()
	m.errMsg = ""

	switch {
	case m.clapA == nil:
		m.startSessionLocked(domain.LabelA)
	case m.clapB == nil:
		m.startSessionLocked(domain.LabelB)
	default:
		m.enterResultLocked()
	}
	m.mu.Unlock()
	m.publish()
	return nil
}

// Retry clears one verse's score and listens for it again.
func (m *Manager) Retry(label domain.Label) error {
	if !label.Valid() {
		return fmt.Errorf("unknown verse %q", label)
	}

	m.mu.Lock()
	if m.phase != domain.PhaseResult {
		phase := m.phase
		m.mu.Unlock()
		return invalid("retry", phase)
	}
	if label == domain.LabelA {
		m.clapA = nil
	} else {
		m.clapB = nil
	}
	m.announcer = ""
	m.cancelResultLocked()
	m.speech.Stop()
	log.Printf("Retrying verse %s", label)
	m.startSessionLocked(label)
	m.mu.Unlock()
	m.publish()
	return nil
}

// NewBattle abandons everything in flight and returns to setup. It is
// accepted from any phase.
func (m *Manager) NewBattle() {
	m.mu.Lock()
	m.resetLocked()
	m.setPhaseLocked(domain.PhaseSetup)
	id := m.battleID
	m.mu.Unlock()

	log.Printf("New battle %s", id)
	m.publish()
}

// resetLocked cancels in-flight work and clears per-battle data.
func (m *Manager) resetLocked() {
	if m.battleCancel != nil {
		m.battleCancel()
	}
	m.cancelSessionLocked()
	m.cancelSoundcheckLocked()
	m.cancelResultLocked()
	m.stopReadingLocked()
	m.speech.Stop()

	m.battleCtx, m.battleCancel = context.WithCancel(context.Background())
	m.battleID = uuid.NewString()
	m.config = nil
	m.verseA = nil
	m.verseB = nil
	m.clapA = nil
	m.clapB = nil
	m.announcer = ""
	m.errMsg = ""
}

// DismissError clears the error banner.
func (m *Manager) DismissError() {
	m.mu.Lock()
	changed := m.errMsg != ""
	m.errMsg = ""
	m.mu.Unlock()
	if changed {
		m.publish()
	}
}

// Close cancels all work and waits for background goroutines to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	m.resetLocked()
	m.battleCancel()
	m.mu.Unlock()
	m.wg.Wait()
}

// Wait blocks until background goroutines have exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) cancelSessionLocked() {
	m.session++
	if m.sessionCancel != nil {
		m.sessionCancel()
		m.sessionCancel = nil
	}
}

func (m *Manager) startSessionLocked(label domain.Label) {
	m.cancelSessionLocked()
	m.setPhaseLocked(domain.ClapPhase(label))

	token := m.session
	ctx, cancel := context.WithCancel(m.battleCtx)
	m.sessionCancel = cancel

	observer := &sessionObserver{m: m, token: token}
	session := clap.NewSession(label, m.sources(), m.clapCfg, observer)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		if _, err := session.Run(ctx); err != nil {
			m.sessionFailed(token, label, err)
		}
	}()
}

// completeClap routes a finished listening window. Completions from a
// replaced session are dropped.
func (m *Manager) completeClap(token uint64, score domain.ClapScore) {
	m.mu.Lock()
	if m.session != token || m.phase != domain.ClapPhase(score.Verse) {
		m.mu.Unlock()
		log.Printf("Discarding stale score for verse %s", score.Verse)
		return
	}
	m.sessionCancel = nil
	m.metrics.RecordClap(string(score.Verse), score.Score, score.Overdrive, score.TooQuiet)

	var passed []Snapshot
	s := score
	if score.Verse == domain.LabelA {
		m.clapA = &s
		if m.clapB == nil {
			m.startSessionLocked(domain.LabelB)
		} else {
			// Verse A was retried: step through clapB on the kept score
			// without listening again.
			m.setPhaseLocked(domain.PhaseClapB)
			passed = append(passed, m.nextSnapshotLocked())
			m.enterResultLocked()
		}
	} else {
		m.clapB = &s
		if m.clapA == nil {
			m.startSessionLocked(domain.LabelA)
		} else {
			m.enterResultLocked()
		}
	}
	sink := m.sink
	m.mu.Unlock()

	sink.Scored(score)
	for _, snap := range passed {
		sink.PhaseChanged(snap)
	}
	m.publish()
}

func (m *Manager) sessionFailed(token uint64, label domain.Label, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	m.mu.Lock()
	if m.session != token {
		m.mu.Unlock()
		return
	}
	m.sessionCancel = nil
	log.Printf("Listening window for verse %s failed: %v", label, err)
	m.metrics.RecordMicrophoneError()
	m.errMsg = err.Error()
	m.setPhaseLocked(domain.PhaseShowVerses)
	m.mu.Unlock()
	m.publish()
}

// enterResultLocked shows the outcome and asks for an announcer line in
// the background.
func (m *Manager) enterResultLocked() {
	m.setPhaseLocked(domain.PhaseResult)
	m.cancelResultLocked()

	seq := m.resultSeq
	ctx, cancel := context.WithCancel(m.battleCtx)
	m.resultCancel = cancel
	a, b := *m.verseA, *m.verseB
	sa, sb := *m.clapA, *m.clapB
	log.Printf("Result: A=%d B=%d winner=%s", sa.Score, sb.Score, domain.Winner(sa.Score, sb.Score))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		line, fallback := m.gen.AnnounceOrFallback(ctx, a, b, sa, sb)
		if fallback {
			m.metrics.RecordAnnouncerFallback()
		}
		m.announce(ctx, seq, line)
	}()
}

func (m *Manager) announce(ctx context.Context, seq uint64, line string) {
	m.mu.Lock()
	if m.resultSeq != seq || m.phase != domain.PhaseResult || ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.announcer = line
	sink := m.sink
	speech := m.speech
	m.mu.Unlock()

	sink.Announced(line)
	m.publish()

	if err := speech.Speak(ctx, line); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Failed to speak announcer line: %v", err)
	}
}

// Soundcheck runs a scoring window with no battle attached. Its result is
// reported through SoundcheckDone and never touches battle scores.
func (m *Manager) Soundcheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != domain.PhaseSetup {
		return invalid("soundcheck", m.phase)
	}
	if m.soundcheckCancel != nil {
		return fmt.Errorf("%w: soundcheck already running", ErrInvalidTransition)
	}

	m.soundcheck++
	token := m.soundcheck
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.battleCtx, cancel)
	m.soundcheckCancel = cancel

	observer := &soundcheckObserver{m: m, token: token}
	session := clap.NewSession(domain.LabelA, m.sources(), m.clapCfg, observer)
	log.Printf("Soundcheck started")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer stop()
		defer cancel()
		_, err := session.Run(ctx)

		m.mu.Lock()
		if m.soundcheck == token {
			m.soundcheckCancel = nil
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Soundcheck failed: %v", err)
				m.metrics.RecordMicrophoneError()
				m.errMsg = err.Error()
			}
		}
		m.mu.Unlock()
		m.publish()
	}()
	return nil
}

// cancelResultLocked stops the announcer of the current result, including
// speech that has not started yet.
func (m *Manager) cancelResultLocked() {
	m.resultSeq++
	if m.resultCancel != nil {
		m.resultCancel()
		m.resultCancel = nil
	}
}

func (m *Manager) cancelSoundcheckLocked() {
	m.soundcheck++
	if m.soundcheckCancel != nil {
		m.soundcheckCancel()
		m.soundcheckCancel = nil
	}
}
