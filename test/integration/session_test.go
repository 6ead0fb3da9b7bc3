//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/ontosense/internal/core"
	"github.com/agenthands/ontosense/internal/core/graph"
	"github.com/agenthands/ontosense/internal/core/model"
	"github.com/agenthands/ontosense/internal/core/sense"
	"github.com/agenthands/ontosense/internal/encyclopedia"
	"github.com/agenthands/ontosense/internal/llm"
	"github.com/agenthands/ontosense/internal/store"
)

func TestBuilder_SynchronizeAgainstMemgraph(t *testing.T) {
	s, cfg := newGraphStore(t)
	ctx := context.Background()
	word := "it-" + uuid.NewString()[:8]

	b := graph.NewBuilder(s, nil)
	b.Concurrency = cfg.Sync.Concurrency

	pill, _ := b.EnsurePill(word)
	_, _, err := b.SelectSense(pill, model.MeaningCandidate{
		Meaning:   "data storage device",
		Reference: model.Reference{Title: "Hard disk drive", PageID: 13777, ShortDescription: "storage"},
	})
	require.NoError(t, err)
	_, _, err = b.SetAttribute(pill, "capacity", "1TB")
	require.NoError(t, err)

	report := b.Synchronize(ctx)
	require.NoError(t, report.Err())
	assert.Equal(t, 7, report.Created)

	nodes, edges := b.Snapshot()
	units, err := s.ListAll(ctx, store.KindUnit)
	require.NoError(t, err)
	remote := byID(units)
	for _, n := range nodes {
		require.Contains(t, remote, n.ID)
		assert.Equal(t, n.Content, remote[n.ID].Content)
	}
	links, err := s.ListAll(ctx, store.KindLink)
	require.NoError(t, err)
	remoteLinks := byID(links)
	for _, e := range edges {
		require.Contains(t, remoteLinks, e.ID)
		assert.Equal(t, e.SourceID, remoteLinks[e.ID].SourceID)
	}

	reloaded := graph.NewBuilder(s, nil)
	require.NoError(t, reloaded.Load(ctx))
	again, ok := reloaded.Pill(word)
	require.True(t, ok)
	assert.Equal(t, "1TB", again.Attributes["capacity"])
	_, ok = reloaded.SenseOf(again)
	assert.True(t, ok)

	// DeleteAll on b only touches what b created.
	n, err := b.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestResolve_Live(t *testing.T) {
	cfg := testConfig(t)
	if !envSet("LLM_PROVIDER") {
		t.Skip("Skipping live resolver test: LLM_PROVIDER not set")
	}
	ctx := context.Background()

	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	require.NoError(t, err)
	wiki := encyclopedia.NewWikipediaClient(cfg.Encyclopedia, nil)
	o := core.NewOntosense(graph.NewBuilder(store.NewMemoryStore(), nil), sense.NewResolver(llmClient, wiki, cfg.Meanings, nil), cfg, nil)

	_, err = o.UpdateInput(ctx, "HDD ")
	require.NoError(t, err)
	candidates, err := o.RequestMeanings(ctx, "HDD")
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	assert.LessOrEqual(t, len(candidates), cfg.Meanings.MaxMeanings)
	for _, c := range candidates {
		t.Logf("%s -> %s (%s)", c.Meaning, c.Reference.Title, c.Reference.Link)
	}

	_, err = o.SelectSense(ctx, "HDD", candidates[0])
	require.NoError(t, err)
	assert.Len(t, o.Graph().Edges, 1)
}
