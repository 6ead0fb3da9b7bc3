package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/agenthands/ontosense/internal/config"
	"github.com/agenthands/ontosense/internal/core/graph"
	"github.com/agenthands/ontosense/internal/core/model"
	"github.com/agenthands/ontosense/internal/core/sense"
	"github.com/agenthands/ontosense/internal/core/tokenize"
	"github.com/agenthands/ontosense/internal/logger"
	"github.com/agenthands/ontosense/internal/store"
)

// GraphView is the graph as shown to a client. Revision grows with every
// change the builder reports.
type GraphView struct {
	Revision uint64       `json:"revision"`
	Nodes    []model.Node `json:"nodes"`
	Edges    []model.Edge `json:"edges"`
}

// Ontosense is one editing session: the current input text, the word whose
// meanings are being browsed, and the semantic graph built from the user's choices.
type Ontosense struct {
	Builder  *graph.Builder
	Resolver *sense.Resolver
	Config   *config.Config

	log *zap.Logger

	mu     sync.Mutex
	input  string
	tokens []tokenize.Token
	active string

	// epoch advances on every input change and meaning request; a meaning
	// response is only delivered if no newer one was started meanwhile.
	epoch atomic.Uint64

	catalog  atomic.Pointer[config.Config]
	revision atomic.Uint64
}

func NewOntosense(builder *graph.Builder, resolver *sense.Resolver, cfg *config.Config, log *zap.Logger) *Ontosense {
	if cfg == nil {
		cfg = config.Default()
	}
	o := &Ontosense{
		Builder:  builder,
		Resolver: resolver,
		Config:   cfg,
		log:      logger.OrNop(log),
	}
	o.catalog.Store(cfg)
	builder.OnGraphChanged(o.graphChanged)
	return o
}

func (o *Ontosense) graphChanged(nodes []model.Node, edges []model.Edge) {
	rev := o.revision.Add(1)
	o.log.Debug("graph changed", zap.Uint64("revision", rev), zap.Int("nodes", len(nodes)), zap.Int("edges", len(edges)))
}

// ReloadCatalog swaps in the attribute catalog of cfg. Other settings are only
// read at startup.
func (o *Ontosense) ReloadCatalog(cfg *config.Config) {
	o.catalog.Store(cfg)
	o.log.Info("attribute catalog reloaded", zap.Int("entries", len(cfg.Attributes)))
}

// UpdateInput retokenizes text and makes sure every finalized token has a pill.
// New pills are pushed to the store right away. A non-nil error with non-nil
// tokens means the input was applied but synchronization failed.
func (o *Ontosense) UpdateInput(ctx context.Context, text string) ([]tokenize.Token, error) {
	tokens := tokenize.Tokenize(text)

	o.mu.Lock()
	o.input = text
	o.tokens = tokens
	o.active = ""
	o.mu.Unlock()
	o.epoch.Add(1)

	created := 0
	for _, t := range tokenize.Finalized(tokens) {
		if _, isNew := o.Builder.EnsurePill(t.Text); isNew {
			created++
		}
	}
	if created == 0 {
		return tokens, nil
	}

	o.log.Debug("pills added", zap.Int("count", created))
	return tokens, o.Builder.Synchronize(ctx).Err()
}

// RequestMeanings makes word the active word and resolves its candidate meanings.
// If the input changes or another word is requested before resolution
// finishes, the result is dropped and model.ErrStaleResponse returned.
func (o *Ontosense) RequestMeanings(ctx context.Context, word string) ([]model.MeaningCandidate, error) {
	token := o.epoch.Add(1)
	o.mu.Lock()
	o.active = word
	o.mu.Unlock()

	candidates, err := o.Resolver.Resolve(ctx, word)
	if o.epoch.Load() != token {
		o.log.Debug("meaning response superseded", zap.String("word", word))
		return nil, fmt.Errorf("%w: meanings for %q", model.ErrStaleResponse, word)
	}
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// Suggestions returns the encyclopedia's top hits for word.
func (o *Ontosense) Suggestions(ctx context.Context, word string) ([]model.SearchHit, error) {
	return o.Resolver.Suggest(ctx, word)
}

// SelectSense attaches the chosen meaning to the pill for word and synchronizes.
// When only synchronization fails the returned node is valid and the error wraps
// model.ErrPersistenceFailure.
func (o *Ontosense) SelectSense(ctx context.Context, word string, c model.MeaningCandidate) (model.Node, error) {
	pill, ok := o.Builder.Pill(word)
	if !ok {
		return model.Node{}, fmt.Errorf("%w: %q", model.ErrUnknownPill, word)
	}
	node, _, err := o.Builder.SelectSense(pill, c)
	if err != nil {
		return model.Node{}, err
	}
	o.log.Info("sense selected", zap.String("word", word), zap.String("sense", node.Content))
	return node, o.Builder.Synchronize(ctx).Err()
}

// SetAttribute records name=value on the pill for word and synchronizes. It
// returns the new Value node.
func (o *Ontosense) SetAttribute(ctx context.Context, word, name, value string) (model.Node, error) {
	pill, ok := o.Builder.Pill(word)
	if !ok {
		return model.Node{}, fmt.Errorf("%w: %q", model.ErrUnknownPill, word)
	}
	_, val, err := o.Builder.SetAttribute(pill, name, value)
	if err != nil {
		return model.Node{}, err
	}
	return val, o.Builder.Synchronize(ctx).Err()
}

func (o *Ontosense) AttributeOptions(word string) []config.AttributeOption {
	return o.catalog.Load().AttributesFor(word)
}

func (o *Ontosense) Graph() GraphView {
	rev := o.revision.Load()
	nodes, edges := o.Builder.Snapshot()
	return GraphView{Revision: rev, Nodes: nodes, Edges: edges}
}

// Input returns the current text, its tokens and the active word.
func (o *Ontosense) Input() (string, []tokenize.Token, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.input, append([]tokenize.Token(nil), o.tokens...), o.active
}

// Ping checks the record store when it can report its health.
func (o *Ontosense) Ping(ctx context.Context) error {
	if p, ok := o.Builder.Store.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (o *Ontosense) Synchronize(ctx context.Context) graph.SyncReport {
	return o.Builder.Synchronize(ctx)
}

func (o *Ontosense) Load(ctx context.Context) error {
	if err := o.Builder.Load(ctx); err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}
	return nil
}

// Clear deletes the whole graph locally and in the store.
func (o *Ontosense) Clear(ctx context.Context) (int, error) {
	o.mu.Lock()
	o.active = ""
	o.mu.Unlock()
	o.epoch.Add(1)

	n, err := o.Builder.DeleteAll(ctx)
	if err != nil {
		o.log.Warn("graph cleared with failures", zap.Int("deleted", n), zap.Error(err))
		return n, err
	}
	o.log.Info("graph cleared", zap.Int("deleted", n))
	return n, nil
}
