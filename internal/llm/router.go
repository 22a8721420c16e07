package llm

import (
	"context"
	"strings"

	"clapbattle/internal/config"
)

const (
	defaultTemperature = 1.0
	defaultMaxTokens   = 1024
)

// Router sends each completion to the client that serves its model id.
type Router struct {
	primary ChatClient
	gemini  ChatClient
}

// NewRouter routes every model to primary unless another client claims it.
func NewRouter(primary ChatClient) *Router {
	return &Router{primary: primary}
}

// WithGemini routes "gemini/..." model ids to c.
func (r *Router) WithGemini(c ChatClient) *Router {
	r.gemini = c
	return r
}

func (r *Router) clientFor(model string) ChatClient {
	if strings.HasPrefix(model, GeminiPrefix) {
		if r.gemini == nil {
			return Unavailable(&config.ConfigurationError{
				Setting: "GEMINI_API_KEY",
				Hint:    "Gemini models need GEMINI_API_KEY in your .env file.",
			})
		}
		return r.gemini
	}
	return r.primary
}

// Complete runs a single system+user turn and returns the trimmed reply.
func (r *Router) Complete(ctx context.Context, model, system, user string) (string, error) {
	req := &ChatRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}

	resp, err := r.clientFor(model).ChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type unavailable struct{ err error }

// Unavailable returns a client that fails every call with err before
// touching the network. It stands in for a provider without credentials.
func Unavailable(err error) ChatClient {
	return unavailable{err: err}
}

func (u unavailable) ChatCompletion(context.Context, *ChatRequest) (*ChatResponse, error) {
	return nil, u.err
}
