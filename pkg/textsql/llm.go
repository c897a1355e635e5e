package textsql

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ChatClient is the minimal interface Generate needs from an LLM. The
// production implementation below wraps openai-go/v3; tests substitute a
// fake that returns canned completions.
type ChatClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OpenAIChatClient calls a chat-completion endpoint (OpenAI-compatible;
// baseURL may point at a self-hosted gateway) at a fixed temperature/token
// budget tuned for short, deterministic SQL generations.
type OpenAIChatClient struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewOpenAIChatClient builds a chat client. baseURL may be empty to use the
// library default (api.openai.com).
func NewOpenAIChatClient(apiKey, baseURL, model string) *OpenAIChatClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIChatClient{
		client:      openai.NewClient(opts...),
		model:       model,
		maxTokens:   500,
		temperature: 0.1,
	}
}

// Complete issues one chat completion and returns the first choice's text.
func (c *OpenAIChatClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("text-to-sql chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("text-to-sql chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
