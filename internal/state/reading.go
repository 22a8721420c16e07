package state

import (
	"context"
	"errors"
	"fmt"
	"log"

	"clapbattle/internal/domain"
	"clapbattle/internal/tts"
)

// ReadAloud speaks one verse. Only the verse display accepts it.
func (m *Manager) ReadAloud(label domain.Label) error {
	if !label.Valid() {
		return fmt.Errorf("unknown verse %q", label)
	}

	m.mu.Lock()
	if m.phase != domain.PhaseShowVerses {
		phase := m.phase
		m.mu.Unlock()
		return invalid("read aloud", phase)
	}
	v := m.verseA
	if label == domain.LabelB {
		v = m.verseB
	}
	m.readLocked(*v)
	m.mu.Unlock()
	m.publish()
	return nil
}

// ReadBoth speaks verse A and then verse B.
func (m *Manager) ReadBoth() error {
	m.mu.Lock()
	if m.phase != domain.PhaseShowVerses {
		phase := m.phase
		m.mu.Unlock()
		return invalid("read aloud", phase)
	}
	m.readLocked(*m.verseA, *m.verseB)
	m.mu.Unlock()
	m.publish()
	return nil
}

// StopReading interrupts any verse being read.
func (m *Manager) StopReading() {
	m.mu.Lock()
	m.stopReadingLocked()
	m.mu.Unlock()
	m.publish()
}

func (m *Manager) stopReadingLocked() {
	m.readSeq++
	m.speaking = ""
	if m.readCancel != nil {
		m.readCancel()
		m.readCancel = nil
		m.speech.Stop()
	}
}

func (m *Manager) readLocked(verses ...domain.Verse) {
	m.stopReadingLocked()

	seq := m.readSeq
	ctx, cancel := context.WithCancel(m.battleCtx)
	m.readCancel = cancel
	m.speaking = verses[0].Label

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		for _, v := range verses {
			if !m.setSpeaking(seq, v.Label) {
				return
			}
			if err := m.speech.Speak(ctx, tts.Script(v)); err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Printf("Failed to read verse %s: %v", v.Label, err)
				}
				break
			}
		}
		m.doneReading(seq)
	}()
}

func (m *Manager) setSpeaking(seq uint64, label domain.Label) bool {
	m.mu.Lock()
	if m.readSeq != seq {
		m.mu.Unlock()
		return false
	}
	changed := m.speaking != label
	m.speaking = label
	m.mu.Unlock()

	if changed {
		m.publish()
	}
	return true
}

func (m *Manager) doneReading(seq uint64) {
	m.mu.Lock()
	if m.readSeq != seq {
		m.mu.Unlock()
		return
	}
	m.speaking = ""
	m.readCancel = nil
	m.mu.Unlock()
	m.publish()
}
