package config

import "fmt"

// ConfigurationError reports a missing or placeholder setting that blocks a
// feature from running at all.
type ConfigurationError struct {
	Setting string
	Hint    string
}

func (e *ConfigurationError) Error() string {
	if e.Hint != "" {
		return e.Hint
	}
	return fmt.Sprintf("%s is not configured", e.Setting)
}
