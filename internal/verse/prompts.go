package verse

import (
	"fmt"
	"math/rand/v2"

	"clapbattle/internal/domain"
)

var styleInstructions = map[domain.Style]string{
	domain.StyleRap:                  "Write in a punchy rap battle style with bars, rhymes, wordplay, and mic-drop moments.",
	domain.StyleSlamPoetry:           "Write in passionate slam poetry style: emotional, rhythmic, raw, powerful.",
	domain.StyleShakespeare:          "Write in Shakespearean English with iambic pentameter, dramatic flair, and theatrical monologue style.",
	domain.StyleCorporate:            "Write using maximum corporate buzzwords (synergy, leverage, disrupt, pivot, circle-back) delivered with absurd confidence.",
	domain.StyleFrenchExistentialist: "Write in the style of a French existentialist philosopher: contemplative, absurd, melancholic, yet oddly poetic.",
}

const fallbackStyle = "Write in a creative poetic style."

// ChaosConstraints are the extra rules one of which is added in chaos mode.
var ChaosConstraints = []string{
	"Include a cooking metaphor in every other line",
	"Explain it as if to a medieval king",
	"Every line must reference the cloud",
	"Work in a dramatic plot twist halfway through",
	"Include at least one cat-related pun",
	"Write as if you are narrating a nature documentary",
	"Throw in a dramatic courtroom objection",
	"Reference a famous movie scene",
	"Include a weather forecast somewhere in the verse",
	"Compare everything to coffee",
	"Add a conspiracy theory undertone",
	"Write as if the WiFi just went down mid-verse",
	"Mention at least three different animals",
	"Include a dramatic countdown from 5",
	"Speak as if the audience is on a sinking ship",
	"Reference a famous love song but about code",
	"Include an existential crisis about semicolons",
	"Write as if delivering breaking news",
	"Add a plot twist involving time travel",
	"Include an apology to a rubber duck",
}

// RandomConstraint picks a chaos constraint uniformly.
func RandomConstraint() string {
	return ChaosConstraints[rand.IntN(len(ChaosConstraints))]
}

// StyleInstruction returns the writing guide for a style.
func StyleInstruction(s domain.Style) string {
	if guide, ok := styleInstructions[s]; ok {
		return guide
	}
	return fallbackStyle
}

func perspective(l domain.Label) string {
	if l == domain.LabelA {
		return "a serious, confident expert"
	}
	return "a chaotic, funny underdog"
}

// SystemPrompt builds the writer prompt for one side of the battle.
// An empty constraint leaves chaos mode off.
func SystemPrompt(style domain.Style, label domain.Label, constraint string) string {
	chaos := ""
	if constraint != "" {
		chaos = "\n\nADDITIONAL CONSTRAINT (Chaos Mode): " + constraint
	}
	return fmt.Sprintf(`You are a creative AI verse writer for a live battle. Write ONE verse on the given topic.

STYLE: %s

RULES:
- Write exactly ONE verse, 6-10 lines long.
- Write from the perspective of %s.
- Address the topic directly.
- Make it entertaining and suitable for a live audience.
- Start with a persona name (1-3 words).%s

FORMAT your response EXACTLY like this:
Persona: [persona name]
[verse lines]`, StyleInstruction(style), perspective(label), chaos)
}

// UserPrompt carries the topic.
func UserPrompt(topic string) string {
	return fmt.Sprintf("Topic: %q", topic)
}

const announcerSystemPrompt = "You are a hype announcer for an AI verse battle. Generate ONE short, witty, dramatic sentence announcing the winner. Keep it under 20 words. Be funny and energetic."

func announcerUserPrompt(a, b domain.Verse, sa, sb domain.ClapScore) string {
	var winner string
	switch domain.Winner(sa.Score, sb.Score) {
	case string(domain.LabelA):
		winner = fmt.Sprintf("Verse A (%s)", a.Persona)
	case string(domain.LabelB):
		winner = fmt.Sprintf("Verse B (%s)", b.Persona)
	default:
		winner = "It's a tie"
	}
	return fmt.Sprintf("Verse A %q scored %d/100. Verse B %q scored %d/100. Winner: %s. Topic context: the verses were about a creative battle.",
		a.Persona, sa.Score, b.Persona, sb.Score, winner)
}
