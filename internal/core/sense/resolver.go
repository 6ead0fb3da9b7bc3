package sense

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/ontosense/internal/config"
	"github.com/agenthands/ontosense/internal/core/common"
	"github.com/agenthands/ontosense/internal/core/model"
	"github.com/agenthands/ontosense/internal/encyclopedia"
	"github.com/agenthands/ontosense/internal/llm"
	"github.com/agenthands/ontosense/internal/logger"
)

// DefaultPrompt takes the meaning count, the word and the answer language.
const DefaultPrompt = `List the %[1]d most probable dictionary meanings of the word '%[2]s' in %[3]s. ` +
	`For each, provide a short, human-readable definition (not just the word itself). ` +
	`Respond ONLY as a JSON array of objects, each with a 'meaning' property, for example: ` +
	`[{"meaning": "a sweet, crystalline substance obtained from various plants, used as a sweetener"}, ` +
	`{"meaning": "a term of endearment, used to refer to a loved one"}]. ` +
	`Do not include any markdown, code blocks, or explanations, just the JSON array.`

// Resolver turns a word into ranked meaning candidates: one generation call,
// fallback parsing, then one encyclopedia lookup per meaning.
type Resolver struct {
	LLM     llm.LLMClient
	Search  encyclopedia.Searcher
	Prompts config.MeaningsConfig
	Log     *zap.Logger
}

func NewResolver(llmClient llm.LLMClient, search encyclopedia.Searcher, prompts config.MeaningsConfig, log *zap.Logger) *Resolver {
	if prompts.MaxMeanings <= 0 {
		prompts.MaxMeanings = 3
	}
	if prompts.Prompt == "" {
		prompts.Prompt = DefaultPrompt
	}
	return &Resolver{
		LLM:     llmClient,
		Search:  search,
		Prompts: prompts,
		Log:     logger.OrNop(log),
	}
}

func (r *Resolver) Prompt(word string) string {
	return fmt.Sprintf(r.Prompts.Prompt, r.Prompts.MaxMeanings, word, r.Prompts.Language)
}

// Resolve returns at most MaxMeanings candidates in the order the generator
// ranked them. Only a failed generation call fails the whole request; a failed
// lookup marks its own candidate with model.FailedReference.
func (r *Resolver) Resolve(ctx context.Context, word string) ([]model.MeaningCandidate, error) {
	log := r.Log.With(zap.String("word", word))

	genCtx := ctx
	if d := r.Prompts.GenerateTimeout.Duration; d > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	raw, err := r.LLM.Generate(genCtx, r.Prompt(word))
	if err != nil {
		log.Error("meaning generation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", model.ErrGenerationUnavailable, err)
	}

	parsed := common.ParseMeanings(raw, r.Prompts.MaxMeanings)
	if parsed.Degraded() {
		log.Warn("meanings parsed at reduced fidelity", zap.Stringer("outcome", parsed.Outcome))
	}
	if len(parsed.Meanings) == 0 {
		log.Warn("no meanings in generator output", zap.String("raw", raw))
		return []model.MeaningCandidate{}, nil
	}

	candidates := make([]model.MeaningCandidate, len(parsed.Meanings))
	var g errgroup.Group
	for i, meaning := range parsed.Meanings {
		g.Go(func() error {
			candidates[i] = model.MeaningCandidate{Meaning: meaning, Reference: r.lookup(ctx, meaning)}
			return nil
		})
	}
	_ = g.Wait()

	log.Debug("meanings resolved", zap.Int("count", len(candidates)))
	return candidates, nil
}

func (r *Resolver) lookup(ctx context.Context, meaning string) model.Reference {
	hits, err := r.Search.Search(ctx, meaning)
	if err != nil || len(hits) == 0 {
		r.Log.Warn("encyclopedia lookup failed", zap.String("meaning", meaning), zap.Error(err))
		return model.FailedReference()
	}
	first := hits[0]
	return model.Reference{
		Title:            first.Title,
		Link:             r.Search.ArticleURL(first.Title),
		ShortDescription: first.Snippet,
		PageID:           first.PageID,
	}
}

// Suggest returns the encyclopedia's own top hits for the word.
func (r *Resolver) Suggest(ctx context.Context, word string) ([]model.SearchHit, error) {
	hits, err := r.Search.Search(ctx, word)
	if err != nil {
		return nil, err
	}
	if len(hits) > 3 {
		hits = hits[:3]
	}
	return hits, nil
}
