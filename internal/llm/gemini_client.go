package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiPrefix marks model ids routed to the Gemini API.
const GeminiPrefix = "gemini/"

// GeminiClient serves chat completions through the Gemini API.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// ChatCompletion maps system messages onto the system instruction and the
// remaining messages onto conversation turns.
func (c *GeminiClient) ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := strings.TrimPrefix(req.Model, GeminiPrefix)

	var system []string
	var contents []*genai.Content
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		cfg.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, statusError("Gemini", apiErr.Code, apiErr.Message)
		}
		return nil, &GenerationError{Kind: KindUpstream, Provider: "Gemini", Err: err}
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("no response choices returned")
	}

	return &ChatResponse{
		Model: req.Model,
		Choices: []Choice{{
			Message: Message{Role: "assistant", Content: text},
		}},
	}, nil
}

var _ ChatClient = (*GeminiClient)(nil)
