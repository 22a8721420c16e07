package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAISDKClient serves chat completions through the official OpenAI SDK.
type OpenAISDKClient struct {
	client openai.Client
}

// NewOpenAISDKClient creates an SDK client. An empty baseURL keeps the SDK
// default.
func NewOpenAISDKClient(apiKey, baseURL string) *OpenAISDKClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAISDKClient{
		client: openai.NewClient(opts...),
	}
}

// ChatCompletion creates a chat completion using the SDK.
func (c *OpenAISDKClient) ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, len(req.Messages))
	for i, msg := range req.Messages {
		switch msg.Role {
		case "system":
			messages[i] = openai.SystemMessage(msg.Content)
		case "assistant":
			messages[i] = openai.AssistantMessage(msg.Content)
		default:
			messages[i] = openai.UserMessage(msg.Content)
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    req.Model,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, statusError("OpenAI", apiErr.StatusCode, apiErr.Message)
		}
		return nil, &GenerationError{Kind: KindUpstream, Provider: "OpenAI", Err: err}
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	choices := make([]Choice, len(completion.Choices))
	for i, choice := range completion.Choices {
		choices[i] = Choice{
			Index: i,
			Message: Message{
				Role:    string(choice.Message.Role),
				Content: choice.Message.Content,
			},
			FinishReason: string(choice.FinishReason),
		}
	}

	return &ChatResponse{
		ID:      completion.ID,
		Model:   completion.Model,
		Choices: choices,
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}

var _ ChatClient = (*OpenAISDKClient)(nil)
