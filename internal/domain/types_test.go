package domain

import (
	"errors"
	"testing"
)

func TestWinner(t *testing.T) {
	tests := []struct {
		a, b int
		want string
	}{
		{80, 40, "A"},
		{12, 13, "B"},
		{70, 70, Tie},
		{0, 0, Tie},
	}
	for _, tt := range tests {
		if got := Winner(tt.a, tt.b); got != tt.want {
			t.Errorf("Winner(%d, %d) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestBattleConfigValidate(t *testing.T) {
	cfg := BattleConfig{Topic: "  pineapple on pizza  ", Style: StyleShakespeare, ModelB: "openai/gpt-4o"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Topic != "pineapple on pizza" {
		t.Errorf("topic not trimmed: %q", cfg.Topic)
	}
	if cfg.ModelA != DefaultModel || cfg.ModelB != "openai/gpt-4o" {
		t.Errorf("models = %q / %q", cfg.ModelA, cfg.ModelB)
	}

	empty := BattleConfig{Topic: " \t", Style: StyleRap}
	if err := empty.Validate(); !errors.Is(err, ErrEmptyTopic) {
		t.Errorf("expected ErrEmptyTopic, got %v", err)
	}

	badStyle := BattleConfig{Topic: "x", Style: "limerick"}
	if err := badStyle.Validate(); !errors.Is(err, ErrUnknownStyle) {
		t.Errorf("expected ErrUnknownStyle, got %v", err)
	}
}

func TestLabelsAndPhases(t *testing.T) {
	if LabelA.Other() != LabelB || LabelB.Other() != LabelA {
		t.Error("Other should swap labels")
	}
	if Label("C").Valid() {
		t.Error("C is not a verse")
	}
	if ClapPhase(LabelA) != PhaseClapA || ClapPhase(LabelB) != PhaseClapB {
		t.Error("unexpected clap phases")
	}
	for s := range StyleLabels {
		if !s.Valid() {
			t.Errorf("style %q should be valid", s)
		}
	}
}
