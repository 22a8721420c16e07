package verse

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"clapbattle/internal/domain"
)

// FallbackLine replaces the announcer line whenever the announcer call fails.
const FallbackLine = "The crowd has spoken!"

// Completer runs one system+user chat turn against a model.
type Completer interface {
	Complete(ctx context.Context, model, system, user string) (string, error)
}

// Generator writes battle verses and announcer lines.
type Generator struct {
	completer Completer
	// AnnouncerModel is the model used for announcer lines.
	AnnouncerModel string
	// Constraint picks the chaos-mode constraint.
	Constraint func() string
}

func NewGenerator(c Completer) *Generator {
	return &Generator{
		completer:      c,
		AnnouncerModel: domain.DefaultModel,
		Constraint:     RandomConstraint,
	}
}

// Generate writes both verses concurrently, each with its own model.
// The first failure cancels the other call and is returned.
func (g *Generator) Generate(ctx context.Context, cfg domain.BattleConfig) (domain.Verse, domain.Verse, error) {
	if err := cfg.Validate(); err != nil {
		return domain.Verse{}, domain.Verse{}, err
	}

	constraint := ""
	if cfg.ChaosMode {
		constraint = g.Constraint()
		log.Printf("Chaos mode constraint: %s", constraint)
	}
	user := UserPrompt(cfg.Topic)

	var rawA, rawB string
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		rawA, err = g.completer.Complete(egCtx, cfg.ModelA, SystemPrompt(cfg.Style, domain.LabelA, constraint), user)
		if err != nil {
			return fmt.Errorf("verse A: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		rawB, err = g.completer.Complete(egCtx, cfg.ModelB, SystemPrompt(cfg.Style, domain.LabelB, constraint), user)
		if err != nil {
			return fmt.Errorf("verse B: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return domain.Verse{}, domain.Verse{}, err
	}

	return ParseVerse(rawA, domain.LabelA, cfg.ModelA), ParseVerse(rawB, domain.LabelB, cfg.ModelB), nil
}

// Announce asks the announcer model for a one-line verdict.
func (g *Generator) Announce(ctx context.Context, a, b domain.Verse, sa, sb domain.ClapScore) (string, error) {
	line, err := g.completer.Complete(ctx, g.AnnouncerModel, announcerSystemPrompt, announcerUserPrompt(a, b, sa, sb))
	if err != nil {
		return "", fmt.Errorf("announcer: %w", err)
	}
	return line, nil
}

// AnnounceOrFallback never fails: any error or empty reply yields FallbackLine.
// The second result reports whether the fallback was used.
func (g *Generator) AnnounceOrFallback(ctx context.Context, a, b domain.Verse, sa, sb domain.ClapScore) (string, bool) {
	line, err := g.Announce(ctx, a, b, sa, sb)
	if err != nil {
		log.Printf("Announcer failed, using fallback: %v", err)
		return FallbackLine, true
	}
	if line == "" {
		return FallbackLine, true
	}
	return line, false
}
