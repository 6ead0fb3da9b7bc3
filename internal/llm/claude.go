package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
)

const claudeMaxTokens = 512

type ClaudeClient struct {
	client *anthropic.Client
	model  string
	opts   Options
}

func NewClaudeClient(apiKey string, model string, baseURL string, opts Options) *ClaudeClient {
	var clientOpts []anthropic.ClientOption
	if baseURL != "" {
		clientOpts = append(clientOpts, anthropic.WithBaseURL(baseURL))
	}
	return &ClaudeClient{
		client: anthropic.NewClient(apiKey, clientOpts...),
		model:  model,
		opts:   opts,
	}
}

func (c *ClaudeClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := anthropic.MessagesRequest{
		Model:  anthropic.Model(c.model),
		System: c.opts.System,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(prompt),
				},
			},
		},
		MaxTokens: c.opts.MaxTokens,
	}
	// the messages API requires max_tokens
	if req.MaxTokens <= 0 {
		req.MaxTokens = claudeMaxTokens
	}
	if c.opts.Temperature > 0 {
		t := c.opts.Temperature
		req.Temperature = &t
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("claude %s: %w", c.model, err)
	}

	var sb strings.Builder
	for _, part := range resp.Content {
		if part.Text != nil {
			sb.WriteString(*part.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("claude %s: %w", c.model, ErrEmptyResponse)
	}
	return sb.String(), nil
}
