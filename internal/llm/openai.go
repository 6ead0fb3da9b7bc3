package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to OpenAI or any server exposing the same chat API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	opts   Options
}

func NewOpenAIClient(apiKey string, model string, baseURL string, opts Options) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
		opts:   opts,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	var messages []openai.ChatCompletionMessage
	if c.opts.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.opts.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai %s: %w", c.model, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("openai %s: %w", c.model, ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
