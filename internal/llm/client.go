package llm

import (
	"context"
	"errors"

	"github.com/agenthands/ontosense/internal/config"
)

// LLMClient is a single prompt-in, text-out generation call.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("llm returned no text")

// DefaultSystem keeps answers to the requested format.
const DefaultSystem = "You are a concise lexicographer. Reply with exactly the requested format and nothing else."

// Options apply to every call a client makes. Zero values leave the provider default.
type Options struct {
	System      string
	Temperature float32
	MaxTokens   int
}

func OptionsFrom(cfg config.LLMConfig) Options {
	opts := Options{
		System:      cfg.System,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	if opts.System == "" {
		opts.System = DefaultSystem
	}
	return opts
}
