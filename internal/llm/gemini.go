package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

func NewGeminiClient(ctx context.Context, apiKey string, model string, opts Options) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	gm := client.GenerativeModel(model)
	if opts.System != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(opts.System)}}
	}
	if opts.Temperature > 0 {
		gm.SetTemperature(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		gm.SetMaxOutputTokens(int32(opts.MaxTokens))
	}

	return &GeminiClient{client: client, model: gm, name: model}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", c.name, err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("gemini %s: %w", c.name, ErrEmptyResponse)
	}
	return sb.String(), nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}
