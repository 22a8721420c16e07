package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// PlaceholderToken is the sample value shipped in .env.example.
const PlaceholderToken = "your_github_pat_here"

// Config is the runtime configuration of the battle server and tools.
type Config struct {
	// Verse generation
	GitHubToken   string
	ModelsBaseURL string
	Provider      string // "github" or "openai"
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string

	// Server
	ListenAddr string

	// Clap meter
	ClapDuration    int
	CountdownFrom   int
	Sensitivity     float64
	SampleRate      int
	FramesPerBuffer int

	// Announcer voice
	SpeechEnabled bool
	TTSModel      string
	TTSVoice      string
}

// Default returns configuration defaults.
func Default() Config {
	return Config{
		ModelsBaseURL:   "https://models.github.ai/inference",
		Provider:        "github",
		OpenAIBaseURL:   "https://api.openai.com/v1",
		ListenAddr:      ":8080",
		ClapDuration:    5,
		CountdownFrom:   3,
		Sensitivity:     350,
		SampleRate:      44100,
		FramesPerBuffer: 735,
		SpeechEnabled:   true,
		TTSModel:        "tts-1",
		TTSVoice:        "onyx",
	}
}

// Load reads .env files (if present) and the environment on top of Default.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	var err error

	cfg.GitHubToken = firstEnv("GITHUB_TOKEN", "VITE_GITHUB_TOKEN")
	setString(&cfg.ModelsBaseURL, "MODELS_BASE_URL")
	setString(&cfg.Provider, "LLM_PROVIDER")
	cfg.Provider = strings.ToLower(cfg.Provider)
	cfg.OpenAIAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	setString(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	cfg.GeminiAPIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	setString(&cfg.ListenAddr, "CLAPBATTLE_ADDR")
	setString(&cfg.TTSModel, "TTS_MODEL")
	setString(&cfg.TTSVoice, "TTS_VOICE")

	if cfg.ClapDuration, err = intEnv("CLAP_DURATION_SECONDS", cfg.ClapDuration); err != nil {
		return Config{}, err
	}
	if cfg.CountdownFrom, err = intEnv("CLAP_COUNTDOWN_FROM", cfg.CountdownFrom); err != nil {
		return Config{}, err
	}
	if cfg.SampleRate, err = intEnv("MIC_SAMPLE_RATE", cfg.SampleRate); err != nil {
		return Config{}, err
	}
	if cfg.FramesPerBuffer, err = intEnv("MIC_FRAMES_PER_BUFFER", cfg.FramesPerBuffer); err != nil {
		return Config{}, err
	}
	if cfg.Sensitivity, err = floatEnv("MIC_SENSITIVITY", cfg.Sensitivity); err != nil {
		return Config{}, err
	}
	if cfg.SpeechEnabled, err = boolEnv("ANNOUNCER_SPEECH", cfg.SpeechEnabled); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that have no sensible fallback. The generation
// credential is not checked here; see CheckGenerationCredential.
func (c Config) Validate() error {
	if c.ClapDuration <= 0 {
		return fmt.Errorf("clap duration must be positive, got %d", c.ClapDuration)
	}
	if c.CountdownFrom < 0 {
		return fmt.Errorf("countdown must not be negative, got %d", c.CountdownFrom)
	}
	if c.Sensitivity <= 0 {
		return fmt.Errorf("microphone sensitivity must be positive, got %g", c.Sensitivity)
	}
	if c.SampleRate <= 0 || c.FramesPerBuffer <= 0 {
		return fmt.Errorf("invalid microphone buffer %d frames at %d Hz", c.FramesPerBuffer, c.SampleRate)
	}
	switch c.Provider {
	case "github", "openai":
	default:
		return fmt.Errorf("unknown LLM provider %q", c.Provider)
	}
	return nil
}

// CheckGenerationCredential reports a *ConfigurationError when the default
// provider has no usable credential.
func (c Config) CheckGenerationCredential() error {
	switch c.Provider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return &ConfigurationError{
				Setting: "OPENAI_API_KEY",
				Hint:    "Set OPENAI_API_KEY in your environment or .env file.",
			}
		}
	default:
		if c.GitHubToken == "" || c.GitHubToken == PlaceholderToken {
			return &ConfigurationError{
				Setting: "GITHUB_TOKEN",
				Hint:    "Missing GitHub PAT. Set GITHUB_TOKEN in your .env file.",
			}
		}
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
