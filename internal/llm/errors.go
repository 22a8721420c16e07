package llm

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed generation call.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindUpstream    ErrorKind = "upstream"
)

// RateLimitMessage is shown to the user verbatim when the upstream rejects
// a request with 429.
const RateLimitMessage = "Rate limit hit, wait a moment and try again."

// GenerationError is returned when the upstream model endpoint refuses or
// fails a chat completion.
type GenerationError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *GenerationError) Error() string {
	if e.Kind == KindRateLimited {
		return RateLimitMessage
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s API error", e.Provider)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// statusError builds the error for a non-200 upstream response.
func statusError(provider string, status int, body string) *GenerationError {
	if status == http.StatusTooManyRequests {
		return &GenerationError{Kind: KindRateLimited, Provider: provider, StatusCode: status, Body: body}
	}
	return &GenerationError{Kind: KindUpstream, Provider: provider, StatusCode: status, Body: body}
}
