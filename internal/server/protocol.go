package server

import (
	"clapbattle/internal/clap"
	"clapbattle/internal/domain"
	"clapbattle/internal/state"
)

// Client message types
const (
	MsgGenerate     = "generate"
	MsgStart        = "start"
	MsgRetry        = "retry"
	MsgNewBattle    = "new_battle"
	MsgSoundcheck   = "soundcheck"
	MsgReadAloud    = "read_aloud"
	MsgReadBoth     = "read_both"
	MsgStopReading  = "stop_reading"
	MsgDismissError = "dismiss_error"
)

// Server message types
const (
	MsgSnapshot        = "snapshot"
	MsgCountdown       = "countdown"
	MsgMeter           = "meter"
	MsgTick            = "tick"
	MsgScore           = "score"
	MsgAnnouncer       = "announcer"
	MsgSoundcheckScore = "soundcheck"
	MsgError           = "error"
)

// ClientMessage is a command sent by a viewer.
type ClientMessage struct {
	Type   string               `json:"type"`
	Config *domain.BattleConfig `json:"config,omitempty"`
	Verse  domain.Label         `json:"verse,omitempty"`
}

// ServerMessage is an event pushed to viewers. Only the fields relevant to
// Type are set.
type ServerMessage struct {
	Type     string            `json:"type"`
	Snapshot *state.Snapshot   `json:"snapshot,omitempty"`
	Verse    domain.Label      `json:"verse,omitempty"`
	Count    *int              `json:"count,omitempty"`
	Seconds  *int              `json:"seconds,omitempty"`
	Reading  *clap.Reading     `json:"reading,omitempty"`
	Score    *domain.ClapScore `json:"score,omitempty"`
	Line     string            `json:"line,omitempty"`
	Message  string            `json:"message,omitempty"`
}
