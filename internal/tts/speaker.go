package tts

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// Player plays an encoded audio clip. audio.Output satisfies it.
type Player interface {
	PlayEncoded(ctx context.Context, data []byte) error
	Stop()
}

// Speaker synthesizes text and plays it on a Player.
type Speaker struct {
	synth  Synthesizer
	player Player

	playMu sync.Mutex // held while a clip is playing

	mu       sync.Mutex
	cancel   context.CancelFunc
	turn     uint64
	speaking atomic.Bool
}

func NewSpeaker(synth Synthesizer, player Player) *Speaker {
	return &Speaker{synth: synth, player: player}
}

// Speak interrupts any current speech and reads text aloud. A context that
// is already done leaves current speech untouched.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.turn++
	turn := s.turn
	s.speaking.Store(true)
	s.mu.Unlock()

	defer s.finish(turn, cancel)

	data, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}

	s.playMu.Lock()
	defer s.playMu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := s.player.PlayEncoded(ctx, data); err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}
	return nil
}

func (s *Speaker) finish(turn uint64, cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turn == turn {
		s.cancel = nil
		s.speaking.Store(false)
	}
}

// Stop interrupts the current speech, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.speaking.Store(false)
	s.mu.Unlock()

	if cancel != nil {
		log.Printf("Speech interrupted")
		cancel()
		s.player.Stop()
	}
}

func (s *Speaker) IsSpeaking() bool {
	return s.speaking.Load()
}

var _ TextAnnouncer = (*Speaker)(nil)
