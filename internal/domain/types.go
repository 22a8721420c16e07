package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Label identifies one of the two competing verses.
type Label string

const (
	LabelA Label = "A"
	LabelB Label = "B"
)

// Valid reports whether l is A or B.
func (l Label) Valid() bool {
	return l == LabelA || l == LabelB
}

// Other returns the opposing label.
func (l Label) Other() Label {
	if l == LabelA {
		return LabelB
	}
	return LabelA
}

// Style selects the writing style both verses are generated in.
type Style string

const (
	StyleRap                  Style = "rap"
	StyleSlamPoetry           Style = "slam-poetry"
	StyleShakespeare          Style = "shakespeare"
	StyleCorporate            Style = "corporate"
	StyleFrenchExistentialist Style = "french-existentialist"
)

// StyleLabels maps each style to its display name.
var StyleLabels = map[Style]string{
	StyleRap:                  "Rap Battle",
	StyleSlamPoetry:           "Slam Poetry",
	StyleShakespeare:          "Shakespearean Monologue",
	StyleCorporate:            "Corporate Buzzword Mode",
	StyleFrenchExistentialist: "French Existentialist",
}

// Valid reports whether s is a known style.
func (s Style) Valid() bool {
	_, ok := StyleLabels[s]
	return ok
}

// DefaultModel is used when a battle config leaves a model unset.
const DefaultModel = "openai/gpt-4o-mini"

// ModelOption is one entry of the model catalogue offered at setup.
type ModelOption struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Provider string `json:"provider"`
}

// AvailableModels lists the selectable verse models.
var AvailableModels = []ModelOption{
	{ID: "openai/gpt-4o-mini", Label: "GPT-4o Mini", Provider: "OpenAI"},
	{ID: "openai/gpt-4o", Label: "GPT-4o", Provider: "OpenAI"},
	{ID: "openai/gpt-4.1", Label: "GPT-4.1", Provider: "OpenAI"},
	{ID: "openai/gpt-4.1-mini", Label: "GPT-4.1 Mini", Provider: "OpenAI"},
	{ID: "openai/gpt-4.1-nano", Label: "GPT-4.1 Nano", Provider: "OpenAI"},
	{ID: "meta/llama-4-scout-17b-16e-instruct", Label: "Llama 4 Scout", Provider: "Meta"},
	{ID: "meta/llama-4-maverick-17b-128e-instruct", Label: "Llama 4 Maverick", Provider: "Meta"},
	{ID: "deepseek/DeepSeek-R1", Label: "DeepSeek R1", Provider: "DeepSeek"},
	{ID: "mistralai/mistral-small-2503", Label: "Mistral Small", Provider: "Mistral"},
	{ID: "xai/grok-3-mini", Label: "Grok 3 Mini", Provider: "xAI"},
	{ID: "gemini/gemini-2.5-flash", Label: "Gemini 2.5 Flash", Provider: "Google"},
}

// BattleConfig is produced by the setup form and consumed once to generate
// the two verses.
type BattleConfig struct {
	Topic     string `json:"topic"`
	Style     Style  `json:"style"`
	ChaosMode bool   `json:"chaosMode"`
	ModelA    string `json:"modelA"`
	ModelB    string `json:"modelB"`
}

var (
	ErrEmptyTopic   = errors.New("topic must not be empty")
	ErrUnknownStyle = errors.New("unknown style")
)

// Validate checks the config and fills in default models.
func (c *BattleConfig) Validate() error {
	c.Topic = strings.TrimSpace(c.Topic)
	if c.Topic == "" {
		return ErrEmptyTopic
	}
	if !c.Style.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownStyle, c.Style)
	}
	if strings.TrimSpace(c.ModelA) == "" {
		c.ModelA = DefaultModel
	}
	if strings.TrimSpace(c.ModelB) == "" {
		c.ModelB = DefaultModel
	}
	return nil
}

// Verse is one generated contender.
type Verse struct {
	Label   Label  `json:"label"`
	Persona string `json:"persona"`
	Text    string `json:"text"`
	Model   string `json:"model"`
}

// ClapScore is the outcome of one listening window.
type ClapScore struct {
	Verse     Label `json:"verse"`
	Score     int   `json:"score"`
	Overdrive bool  `json:"overdrive"`
	TooQuiet  bool  `json:"tooQuiet"`
}

// Phase is the single active step of a battle.
type Phase string

const (
	PhaseSetup      Phase = "setup"
	PhaseGenerating Phase = "generating"
	PhaseShowVerses Phase = "showVerses"
	PhaseClapA      Phase = "clapA"
	PhaseClapB      Phase = "clapB"
	PhaseResult     Phase = "result"
)

// ClapPhase returns the listening phase for a verse.
func ClapPhase(l Label) Phase {
	if l == LabelB {
		return PhaseClapB
	}
	return PhaseClapA
}

const Tie = "tie"

// Winner compares two final scores. Equal scores are a tie.
func Winner(scoreA, scoreB int) string {
	switch {
	case scoreA > scoreB:
		return string(LabelA)
	case scoreA < scoreB:
		return string(LabelB)
	default:
		return Tie
	}
}
