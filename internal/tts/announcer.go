package tts

import (
	"context"
	"fmt"

	"clapbattle/internal/domain"
)

// TextAnnouncer reads text aloud.
type TextAnnouncer interface {
	// Speak blocks until the text has been spoken, Stop is called or ctx
	// ends. A new Speak interrupts the one in progress.
	Speak(ctx context.Context, text string) error
	Stop()
	IsSpeaking() bool
}

// Silent is a TextAnnouncer that says nothing.
type Silent struct{}

func (Silent) Speak(context.Context, string) error { return nil }
func (Silent) Stop()                               {}
func (Silent) IsSpeaking() bool                    { return false }

// Script renders a verse the way it is read to the room.
func Script(v domain.Verse) string {
	return fmt.Sprintf("Verse %s. %s.\n%s", v.Label, v.Persona, v.Text)
}

var _ TextAnnouncer = Silent{}
