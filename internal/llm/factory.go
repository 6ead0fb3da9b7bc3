package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/ontosense/internal/config"
)

const defaultOllamaURL = "http://localhost:11434"

func NewClient(ctx context.Context, cfg config.LLMConfig) (LLMClient, error) {
	provider := strings.ToLower(cfg.Provider)
	opts := OptionsFrom(cfg)

	switch provider {
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, opts), nil

	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model, opts)

	case "claude":
		return NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL, opts), nil

	case "ollama":
		// Ollama is reached through its OpenAI-compatible endpoint.
		return NewOpenAIClient(ollamaKey(cfg.APIKey), cfg.Model, OllamaBaseURL(cfg.BaseURL), opts), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}

// OllamaBaseURL maps an Ollama host to its OpenAI-compatible /v1 root.
func OllamaBaseURL(baseURL string) string {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if strings.HasSuffix(baseURL, "/v1") {
		return baseURL
	}
	return fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
}

// Ollama ignores the key but the client refuses an empty one.
func ollamaKey(apiKey string) string {
	if apiKey == "" {
		return "ollama"
	}
	return apiKey
}
