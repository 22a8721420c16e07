package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Supported voices
const (
	VoiceAlloy   = "alloy"
	VoiceEcho    = "echo"
	VoiceFable   = "fable"
	VoiceOnyx    = "onyx"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
)

// Supported models
const (
	ModelTTS1   = "tts-1"
	ModelTTS1HD = "tts-1-hd"
)

// Synthesizer turns text into an encoded audio clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// OpenAISynthesizer produces MP3 speech with the OpenAI audio API.
type OpenAISynthesizer struct {
	client openai.Client
	model  string
	voice  string
}

// NewOpenAISynthesizer creates a synthesizer. Empty model and voice fall
// back to tts-1 and onyx.
func NewOpenAISynthesizer(apiKey, baseURL, model, voice string, opts ...option.RequestOption) *OpenAISynthesizer {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)

	if model == "" {
		model = ModelTTS1
	}
	return &OpenAISynthesizer{
		client: openai.NewClient(reqOpts...),
		model:  model,
		voice:  convertVoice(voice),
	}
}

// Synthesize returns the MP3 bytes for text.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat("mp3"),
	}

	resp, err := s.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("speech synthesis returned no audio")
	}
	return data, nil
}

// convertVoice maps a configured voice name onto an OpenAI voice.
func convertVoice(voice string) string {
	voiceMap := map[string]string{
		VoiceAlloy:   VoiceAlloy,
		VoiceEcho:    VoiceEcho,
		VoiceFable:   VoiceFable,
		VoiceOnyx:    VoiceOnyx,
		VoiceNova:    VoiceNova,
		VoiceShimmer: VoiceShimmer,
		"female":     VoiceNova,
		"male":       VoiceOnyx,
		"neutral":    VoiceAlloy,
	}

	if v, ok := voiceMap[voice]; ok {
		return v
	}
	return VoiceOnyx
}
