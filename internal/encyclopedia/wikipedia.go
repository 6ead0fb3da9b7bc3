package encyclopedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/agenthands/ontosense/internal/config"
	"github.com/agenthands/ontosense/internal/core/model"
	"github.com/agenthands/ontosense/internal/logger"
)

// Searcher is a ranked free-text search over an encyclopedia.
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.SearchHit, error)
	ArticleURL(title string) string
}

// WikipediaClient queries the MediaWiki search API.
type WikipediaClient struct {
	searchURL  string
	articleURL string
	limit      int
	userAgent  string
	timeout    time.Duration

	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

type searchResponse struct {
	Query *struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			PageID  int    `json:"pageid"`
		} `json:"search"`
	} `json:"query"`
}

func NewWikipediaClient(cfg config.EncyclopediaConfig, log *zap.Logger) *WikipediaClient {
	log = logger.OrNop(log)
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 3
	}

	return &WikipediaClient{
		searchURL:  cfg.SearchURL,
		articleURL: strings.TrimRight(cfg.ArticleURL, "/"),
		limit:      limit,
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout.Duration,
		http:       &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "wikipedia",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			// An empty result set is an answer, not an outage.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, errNoResults)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state changed", zap.String("name", name), zap.Stringer("from", from), zap.Stringer("to", to))
			},
		}),
		log: log,
	}
}

var errNoResults = errors.New("no results")

// Search returns up to the configured number of hits. Every failure, including
// an empty result set, wraps model.ErrLookupFailed.
func (c *WikipediaClient) Search(ctx context.Context, query string) ([]model.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", model.ErrLookupFailed)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrLookupFailed, err)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.search(ctx, query)
	})
	if err != nil {
		c.log.Debug("wikipedia search failed", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("%w: %q: %v", model.ErrLookupFailed, query, err)
	}
	return res.([]model.SearchHit), nil
}

func (c *WikipediaClient) search(ctx context.Context, query string) ([]model.SearchHit, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(c.limit))
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if parsed.Query == nil || len(parsed.Query.Search) == 0 {
		return nil, errNoResults
	}

	hits := make([]model.SearchHit, 0, len(parsed.Query.Search))
	for _, s := range parsed.Query.Search {
		hits = append(hits, model.SearchHit{Title: s.Title, Snippet: s.Snippet, PageID: s.PageID})
		if len(hits) == c.limit {
			break
		}
	}
	return hits, nil
}

// ArticleURL links to the article with the given title.
func (c *WikipediaClient) ArticleURL(title string) string {
	return c.articleURL + "/" + url.QueryEscape(strings.ReplaceAll(title, " ", "_"))
}
