package verse

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"clapbattle/internal/domain"
)

func TestParseVerse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		label       domain.Label
		wantPersona string
		wantText    string
	}{
		{
			name:        "persona and lines",
			raw:         "Persona: MC Cloud\nLine one\n\nLine two\n",
			label:       domain.LabelA,
			wantPersona: "MC Cloud",
			wantText:    "Line one\nLine two",
		},
		{
			name:        "markers stripped",
			raw:         "VERSE A\npersona:   Doctor Byte\nbars here\nverse b more bars",
			label:       domain.LabelA,
			wantPersona: "Doctor Byte",
			wantText:    "bars here\n more bars",
		},
		{
			name:        "default persona for A",
			raw:         "just a line",
			label:       domain.LabelA,
			wantPersona: "The Expert",
			wantText:    "just a line",
		},
		{
			name:        "default persona for B",
			raw:         "VerseB\n  \nchaos line",
			label:       domain.LabelB,
			wantPersona: "The Underdog",
			wantText:    "chaos line",
		},
		{
			name:        "empty reply",
			raw:         "",
			label:       domain.LabelB,
			wantPersona: "The Underdog",
			wantText:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ParseVerse(tt.raw, tt.label, "openai/gpt-4o")
			if v.Persona != tt.wantPersona {
				t.Errorf("persona = %q, want %q", v.Persona, tt.wantPersona)
			}
			if v.Text != tt.wantText {
				t.Errorf("text = %q, want %q", v.Text, tt.wantText)
			}
			if v.Label != tt.label || v.Model != "openai/gpt-4o" {
				t.Errorf("label/model not carried: %+v", v)
			}
		})
	}
}

type call struct {
	model, system, user string
}

type fakeCompleter struct {
	mu      sync.Mutex
	calls   []call
	replies map[string]string
	errs    map[string]error
}

func (f *fakeCompleter) Complete(_ context.Context, model, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{model, system, user})
	if err := f.errs[model]; err != nil {
		return "", err
	}
	return f.replies[model], nil
}

func TestGenerateUsesEachModel(t *testing.T) {
	fc := &fakeCompleter{replies: map[string]string{
		"model-a": "Persona: Sage\nwise words",
		"model-b": "Persona: Goblin\nsilly words",
	}}
	g := NewGenerator(fc)
	g.Constraint = func() string { return "Compare everything to coffee" }

	a, b, err := g.Generate(context.Background(), domain.BattleConfig{
		Topic:     "  tabs vs spaces ",
		Style:     domain.StyleRap,
		ChaosMode: true,
		ModelA:    "model-a",
		ModelB:    "model-b",
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if a.Persona != "Sage" || b.Persona != "Goblin" {
		t.Errorf("unexpected personas %q / %q", a.Persona, b.Persona)
	}
	if a.Model != "model-a" || b.Model != "model-b" {
		t.Errorf("models not carried: %q / %q", a.Model, b.Model)
	}

	if len(fc.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(fc.calls))
	}
	for _, c := range fc.calls {
		if c.user != `Topic: "tabs vs spaces"` {
			t.Errorf("unexpected user prompt %q", c.user)
		}
		if !strings.Contains(c.system, "ADDITIONAL CONSTRAINT (Chaos Mode): Compare everything to coffee") {
			t.Errorf("chaos constraint missing for %s", c.model)
		}
		want := "a serious, confident expert"
		if c.model == "model-b" {
			want = "a chaotic, funny underdog"
		}
		if !strings.Contains(c.system, want) {
			t.Errorf("%s prompt missing perspective %q", c.model, want)
		}
	}
}

func TestGenerateWithoutChaos(t *testing.T) {
	fc := &fakeCompleter{}
	g := NewGenerator(fc)
	g.Constraint = func() string {
		t.Error("constraint picked with chaos mode off")
		return ""
	}

	if _, _, err := g.Generate(context.Background(), domain.BattleConfig{Topic: "x", Style: domain.StyleCorporate}); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	for _, c := range fc.calls {
		if strings.Contains(c.system, "Chaos Mode") {
			t.Errorf("unexpected chaos line in prompt")
		}
		if c.model != domain.DefaultModel {
			t.Errorf("expected default model, got %q", c.model)
		}
	}
}

func TestGenerateFailure(t *testing.T) {
	boom := errors.New("boom")
	fc := &fakeCompleter{errs: map[string]error{"bad": boom}}
	g := NewGenerator(fc)

	_, _, err := g.Generate(context.Background(), domain.BattleConfig{Topic: "x", Style: domain.StyleRap, ModelA: "ok", ModelB: "bad"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped upstream error, got %v", err)
	}

	_, _, err = g.Generate(context.Background(), domain.BattleConfig{Topic: "   ", Style: domain.StyleRap})
	if !errors.Is(err, domain.ErrEmptyTopic) {
		t.Fatalf("expected empty topic error, got %v", err)
	}
}

func TestAnnounceOrFallback(t *testing.T) {
	a := domain.Verse{Label: domain.LabelA, Persona: "Sage"}
	b := domain.Verse{Label: domain.LabelB, Persona: "Goblin"}
	sa := domain.ClapScore{Verse: domain.LabelA, Score: 70}
	sb := domain.ClapScore{Verse: domain.LabelB, Score: 70}

	fc := &fakeCompleter{replies: map[string]string{domain.DefaultModel: "What a night!"}}
	line, fallback := NewGenerator(fc).AnnounceOrFallback(context.Background(), a, b, sa, sb)
	if line != "What a night!" || fallback {
		t.Errorf("unexpected line %q (fallback=%v)", line, fallback)
	}
	if !strings.Contains(fc.calls[0].user, "Winner: It's a tie") {
		t.Errorf("tie not announced: %q", fc.calls[0].user)
	}

	failing := &fakeCompleter{errs: map[string]error{domain.DefaultModel: errors.New("down")}}
	line, fallback = NewGenerator(failing).AnnounceOrFallback(context.Background(), a, b, sa, sb)
	if line != FallbackLine || !fallback {
		t.Errorf("expected fallback, got %q", line)
	}

	empty := &fakeCompleter{}
	if line, _ := NewGenerator(empty).AnnounceOrFallback(context.Background(), a, b, sa, sb); line != FallbackLine {
		t.Errorf("empty reply should fall back, got %q", line)
	}
}

func TestRandomConstraint(t *testing.T) {
	if len(ChaosConstraints) != 20 {
		t.Fatalf("expected 20 constraints, got %d", len(ChaosConstraints))
	}
	for i := 0; i < 50; i++ {
		c := RandomConstraint()
		found := false
		for _, known := range ChaosConstraints {
			if c == known {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("unknown constraint %q", c)
		}
	}
}
