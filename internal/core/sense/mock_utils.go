package sense

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agenthands/ontosense/internal/core/model"
)

type MockLLMClient struct {
	Response string
	Err      error

	mu      sync.Mutex
	Prompts []string
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// MockSearcher answers from Hits keyed by query; Fail lists queries that error.
type MockSearcher struct {
	Hits map[string][]model.SearchHit
	Fail map[string]bool

	mu      sync.Mutex
	Queries []string
}

func (m *MockSearcher) Search(ctx context.Context, query string) ([]model.SearchHit, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()
	if m.Fail[query] {
		return nil, fmt.Errorf("%w: %s", model.ErrLookupFailed, query)
	}
	hits, ok := m.Hits[query]
	if !ok || len(hits) == 0 {
		return nil, fmt.Errorf("%w: no results", model.ErrLookupFailed)
	}
	return hits, nil
}

func (m *MockSearcher) ArticleURL(title string) string {
	return "https://en.wikipedia.org/wiki/" + strings.ReplaceAll(title, " ", "_")
}
