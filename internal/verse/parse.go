package verse

import (
	"regexp"
	"strings"

	"clapbattle/internal/domain"
)

var (
	markerPattern  = regexp.MustCompile(`(?i)VERSE\s*[AB]`)
	personaPattern = regexp.MustCompile(`(?i)^persona:\s*`)
)

// DefaultPersona is used when a reply names no persona.
func DefaultPersona(l domain.Label) string {
	if l == domain.LabelA {
		return "The Expert"
	}
	return "The Underdog"
}

// ParseVerse turns a free-text model reply into a Verse. "VERSE A/B"
// markers are removed, the first "Persona:" line names the persona and the
// remaining non-empty lines form the text.
func ParseVerse(raw string, label domain.Label, model string) domain.Verse {
	cleaned := strings.TrimSpace(markerPattern.ReplaceAllString(raw, ""))

	persona := ""
	var body []string
	for _, line := range strings.Split(cleaned, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if personaPattern.MatchString(trimmed) {
			if persona == "" {
				persona = strings.TrimSpace(personaPattern.ReplaceAllString(trimmed, ""))
			}
			continue
		}
		body = append(body, line)
	}
	if persona == "" {
		persona = DefaultPersona(label)
	}

	return domain.Verse{
		Label:   label,
		Persona: persona,
		Text:    strings.TrimSpace(strings.Join(body, "\n")),
		Model:   model,
	}
}
