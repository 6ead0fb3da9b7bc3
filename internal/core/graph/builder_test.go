package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/ontosense/internal/core/model"
	"github.com/agenthands/ontosense/internal/store"
)

// countingStore wraps a MemoryStore, counts calls and fails records matching Fail.
type countingStore struct {
	*store.MemoryStore
	creates atomic.Int32
	updates atomic.Int32
	deletes atomic.Int32

	mu         sync.Mutex
	Fail       func(rec store.Record) bool
	FailDelete func(id string) bool
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: store.NewMemoryStore()}
}

func (s *countingStore) shouldFail(rec store.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Fail != nil && s.Fail(rec)
}

func (s *countingStore) setFail(f func(rec store.Record) bool) {
	s.mu.Lock()
	s.Fail = f
	s.mu.Unlock()
}

func (s *countingStore) Create(ctx context.Context, rec store.Record) (store.Record, error) {
	s.creates.Add(1)
	if s.shouldFail(rec) {
		return store.Record{}, fmt.Errorf("%w: injected", model.ErrPersistenceFailure)
	}
	return s.MemoryStore.Create(ctx, rec)
}

func (s *countingStore) Update(ctx context.Context, id string, rec store.Record) error {
	s.updates.Add(1)
	if s.shouldFail(rec) {
		return fmt.Errorf("%w: injected", model.ErrPersistenceFailure)
	}
	return s.MemoryStore.Update(ctx, id, rec)
}

func (s *countingStore) setFailDelete(f func(id string) bool) {
	s.mu.Lock()
	s.FailDelete = f
	s.mu.Unlock()
}

func (s *countingStore) Delete(ctx context.Context, id string) error {
	s.deletes.Add(1)
	s.mu.Lock()
	fail := s.FailDelete != nil && s.FailDelete(id)
	s.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: injected", model.ErrPersistenceFailure)
	}
	return s.MemoryStore.Delete(ctx, id)
}

func candidate(title string, pageID int) model.MeaningCandidate {
	return model.MeaningCandidate{
		Meaning: "meaning of " + title,
		Reference: model.Reference{
			Title:            title,
			Link:             "https://en.wikipedia.org/wiki/" + strings.ReplaceAll(title, " ", "_"),
			ShortDescription: title + " snippet",
			PageID:           pageID,
		},
	}
}

func edgesFrom(edges []model.Edge, source string, rel model.Relation) []model.Edge {
	var out []model.Edge
	for _, e := range edges {
		if e.SourceID == source && e.Relation == rel {
			out = append(out, e)
		}
	}
	return out
}

func nodesOfKind(nodes []model.Node, kind model.NodeKind) []model.Node {
	var out []model.Node
	for _, n := range nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func TestEnsurePill_Idempotent(t *testing.T) {
	s := newCountingStore()
	b := NewBuilder(s, nil)

	first, created := b.EnsurePill("x")
	assert.True(t, created)
	assert.True(t, first.Pending)
	assert.True(t, strings.HasPrefix(first.ID, TempIDPrefix))
	assert.NotNil(t, first.Attributes)

	second, created := b.EnsurePill("x")
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	report := b.Synchronize(context.Background())
	require.NoError(t, report.Err())
	assert.Equal(t, 1, report.Created)

	third, created := b.EnsurePill("x")
	assert.False(t, created)
	assert.False(t, third.Pending)

	b.Synchronize(context.Background())
	assert.Equal(t, int32(1), s.creates.Load())
}

func TestSelectSense_ReplacesPrevious(t *testing.T) {
	b := NewBuilder(store.NewMemoryStore(), nil)
	pill, _ := b.EnsurePill("HDD")

	senseA, _, err := b.SelectSense(pill, candidate("Hard disk drive", 13777))
	require.NoError(t, err)
	senseB, edgeB, err := b.SelectSense(pill, candidate("High-definition", 42))
	require.NoError(t, err)

	nodes, edges := b.Snapshot()
	hasSense := edgesFrom(edges, pill.ID, model.HasSense)
	require.Len(t, hasSense, 1)
	assert.Equal(t, edgeB.ID, hasSense[0].ID)
	assert.Equal(t, senseB.ID, hasSense[0].TargetID)

	for _, n := range nodes {
		assert.NotEqual(t, senseA.ID, n.ID)
	}
	assert.Len(t, nodesOfKind(nodes, model.KindSense), 1)

	current, ok := b.SenseOf(pill)
	require.True(t, ok)
	assert.Equal(t, "High-definition", current.Content)
	assert.Equal(t, "42", current.Metadata[model.MetaPageID])
	assert.Equal(t, "High-definition snippet", current.Metadata[model.MetaSnippet])
}

func TestSelectSense_RetiresConfirmedSenseRemotely(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	b := NewBuilder(s, nil)
	pill, _ := b.EnsurePill("HDD")

	_, _, err := b.SelectSense(pill, candidate("Hard disk drive", 1))
	require.NoError(t, err)
	require.NoError(t, b.Synchronize(ctx).Err())

	_, _, err = b.SelectSense(pill, candidate("Hard drive (album)", 2))
	require.NoError(t, err)
	report := b.Synchronize(ctx)
	require.NoError(t, report.Err())
	assert.Equal(t, 2, report.Deleted)

	units, err := s.ListAll(ctx, store.KindUnit)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "Hard drive (album)", units[1].Content)

	links, err := s.ListAll(ctx, store.KindLink)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, units[1].ID, links[0].TargetID)
	assert.Equal(t, 0, b.Pending())
}

func TestSelectSense_FailedLinkDeleteIsRetried(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	b := NewBuilder(s, nil)
	pill, _ := b.EnsurePill("HDD")

	_, _, err := b.SelectSense(pill, candidate("Hard disk drive", 1))
	require.NoError(t, err)
	require.NoError(t, b.Synchronize(ctx).Err())

	confirmed, _ := b.Pill("HDD")
	_, edges := b.Snapshot()
	old := edgesFrom(edges, confirmed.ID, model.HasSense)
	require.Len(t, old, 1)
	oldLink, oldSense := old[0].ID, old[0].TargetID

	s.setFailDelete(func(id string) bool { return id == oldLink })
	_, _, err = b.SelectSense(pill, candidate("Hard drive (album)", 2))
	require.NoError(t, err)

	report := b.Synchronize(ctx)
	require.Error(t, report.Err())
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 0, report.Deleted)
	failed := map[string]store.Kind{}
	for _, f := range report.Failures {
		failed[f.ID] = f.Kind
	}
	assert.Equal(t, map[string]store.Kind{oldLink: store.KindLink, oldSense: store.KindUnit}, failed)
	assert.Equal(t, 2, b.Pending())

	// the old sense and its link are still stored
	links, err := s.ListAll(ctx, store.KindLink)
	require.NoError(t, err)
	assert.Len(t, links, 2)

	s.setFailDelete(nil)
	report = b.Synchronize(ctx)
	require.NoError(t, report.Err())
	assert.Equal(t, 2, report.Deleted)
	assert.Equal(t, 0, b.Pending())
	require.NoError(t, b.Synchronize(ctx).Err())

	units, err := s.ListAll(ctx, store.KindUnit)
	require.NoError(t, err)
	assert.Len(t, units, 2)
}

func TestSelectSense_RemotelyMissingSenseCountsAsDeleted(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	b := NewBuilder(s, nil)
	pill, _ := b.EnsurePill("HDD")

	_, _, err := b.SelectSense(pill, candidate("Hard disk drive", 1))
	require.NoError(t, err)
	require.NoError(t, b.Synchronize(ctx).Err())

	confirmed, _ := b.Pill("HDD")
	old, ok := b.SenseOf(confirmed)
	require.True(t, ok)
	// someone else already removed the sense, and its link with it
	require.NoError(t, s.MemoryStore.Delete(ctx, old.ID))

	_, _, err = b.SelectSense(pill, candidate("Hard drive (album)", 2))
	require.NoError(t, err)
	report := b.Synchronize(ctx)
	require.NoError(t, report.Err())
	assert.Equal(t, 2, report.Deleted)
	assert.Equal(t, 0, b.Pending())
}

func TestSelectSense_FailedLookupUsesMeaning(t *testing.T) {
	b := NewBuilder(store.NewMemoryStore(), nil)
	pill, _ := b.EnsurePill("HDD")

	sense, _, err := b.SelectSense(pill, model.MeaningCandidate{Meaning: "a storage device", Reference: model.FailedReference()})
	require.NoError(t, err)
	assert.Equal(t, "a storage device", sense.Content)
	assert.Empty(t, sense.Metadata[model.MetaSnippet])
}

func TestUnknownPill(t *testing.T) {
	b := NewBuilder(store.NewMemoryStore(), nil)
	ghost := model.Node{ID: "nope", Kind: model.KindPill, Content: "ghost"}

	_, _, err := b.SelectSense(ghost, candidate("x", 1))
	assert.ErrorIs(t, err, model.ErrUnknownPill)
	_, _, err = b.SetAttribute(ghost, "a", "b")
	assert.ErrorIs(t, err, model.ErrUnknownPill)
}

func TestSetAttribute(t *testing.T) {
	b := NewBuilder(store.NewMemoryStore(), nil)
	pill, _ := b.EnsurePill("HDD")

	attr, val, err := b.SetAttribute(pill, "capacity", "1TB")
	require.NoError(t, err)
	assert.Equal(t, model.KindAttribute, attr.Kind)
	assert.Equal(t, "capacity", attr.Content)
	assert.Equal(t, pill.ID, attr.ParentID())
	assert.Equal(t, attr.ID, val.ParentID())

	_, _, err = b.SetAttribute(pill, "capacity", "2TB")
	require.NoError(t, err)
	_, _, err = b.SetAttribute(pill, "interface", "SATA")
	require.NoError(t, err)

	current, ok := b.Pill("HDD")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"capacity": "2TB", "interface": "SATA"}, current.Attributes)

	nodes, edges := b.Snapshot()
	assert.Len(t, nodesOfKind(nodes, model.KindAttribute), 3)
	assert.Len(t, nodesOfKind(nodes, model.KindValue), 3)

	hasAttr := edgesFrom(edges, pill.ID, model.HasAttribute)
	require.Len(t, hasAttr, 3)
	assert.Equal(t, "capacity", hasAttr[0].Metadata[model.MetaAttributeName])
	hasValue := edgesFrom(edges, attr.ID, model.HasValue)
	require.Len(t, hasValue, 1)
	assert.Equal(t, val.ID, hasValue[0].TargetID)

	_, _, err = b.SetAttribute(pill, " ", "x")
	assert.ErrorIs(t, err, model.ErrInvalidAttribute)
	_, _, err = b.SetAttribute(pill, "capacity", "\t")
	assert.ErrorIs(t, err, model.ErrInvalidAttribute)
}

func TestSynchronize_RewritesTemporaryIDs(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	b := NewBuilder(s, nil)

	pill, _ := b.EnsurePill("HDD")
	sense, _, _ := b.SelectSense(pill, candidate("Hard disk drive", 13777))
	attr, _, _ := b.SetAttribute(pill, "capacity", "1TB")

	report := b.Synchronize(ctx)
	require.NoError(t, report.Err())
	assert.Equal(t, 7, report.Created)
	assert.Equal(t, 0, b.Pending())

	nodes, edges := b.Snapshot()
	ids := map[string]model.Node{}
	for _, n := range nodes {
		assert.False(t, n.Pending)
		assert.False(t, strings.HasPrefix(n.ID, TempIDPrefix), n.ID)
		assert.Len(t, n.ID, 36)
		ids[n.ID] = n
	}
	for _, e := range edges {
		assert.False(t, e.Pending)
		assert.Contains(t, ids, e.SourceID)
		assert.Contains(t, ids, e.TargetID)
	}
	for _, n := range nodes {
		if n.Kind == model.KindAttribute || n.Kind == model.KindValue {
			assert.Contains(t, ids, n.ParentID())
		}
	}

	// stale temporary handles still resolve through the content index
	_, ok := b.SenseOf(pill)
	assert.True(t, ok)
	assert.NotContains(t, ids, sense.ID)
	assert.NotContains(t, ids, attr.ID)

	// the pill's attribute update was folded into its creation
	report = b.Synchronize(ctx)
	assert.Zero(t, report.Created+report.Updated)

	_, _, err := b.SetAttribute(pill, "capacity", "2TB")
	require.NoError(t, err)
	report = b.Synchronize(ctx)
	require.NoError(t, report.Err())
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 4, report.Created)
}

func TestSynchronize_FailureIsIsolatedAndRetried(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	s.setFail(func(rec store.Record) bool { return rec.Content == "CPU" })
	b := NewBuilder(s, nil)

	hdd, _ := b.EnsurePill("HDD")
	cpu, _ := b.EnsurePill("CPU")
	_, _, err := b.SetAttribute(cpu, "cores", "4")
	require.NoError(t, err)
	_, _, err = b.SetAttribute(hdd, "capacity", "1TB")
	require.NoError(t, err)

	report := b.Synchronize(ctx)
	// CPU failed; its attribute, value and both edges wait on it and fail too.
	require.Len(t, report.Failures, 5)
	for _, f := range report.Failures {
		assert.ErrorIs(t, f.Err, model.ErrPersistenceFailure)
	}
	assert.Equal(t, 5, report.Created)
	assert.ErrorIs(t, report.Err(), model.ErrPersistenceFailure)

	// local state is kept as the source of truth
	local, ok := b.Pill("CPU")
	require.True(t, ok)
	assert.True(t, local.Pending)
	assert.Equal(t, "4", local.Attributes["cores"])
	assert.Equal(t, 5, b.Pending())

	s.setFail(nil)
	report = b.Synchronize(ctx)
	require.NoError(t, report.Err())
	assert.Equal(t, 5, report.Created)
	assert.Equal(t, 0, b.Pending())

	links, err := s.ListAll(ctx, store.KindLink)
	require.NoError(t, err)
	assert.Len(t, links, 4)
}

func TestSynchronize_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	b := NewBuilder(s, nil)

	pill, _ := b.EnsurePill("HDD")
	b.EnsurePill("hard disk")
	_, _, _ = b.SelectSense(pill, candidate("Hard disk drive", 13777))
	_, _, _ = b.SetAttribute(pill, "capacity", "1TB")
	require.NoError(t, b.Synchronize(ctx).Err())
	wantNodes, wantEdges := b.Snapshot()

	reloaded := NewBuilder(s, nil)
	require.NoError(t, reloaded.Load(ctx))
	gotNodes, gotEdges := reloaded.Snapshot()

	require.Len(t, gotNodes, len(wantNodes))
	require.Len(t, gotEdges, len(wantEdges))

	loaded := make(map[string]model.Node, len(gotNodes))
	for _, n := range gotNodes {
		loaded[n.ID] = n
	}
	for _, want := range wantNodes {
		got, ok := loaded[want.ID]
		require.True(t, ok, want.ID)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Content, got.Content)
		assert.Equal(t, len(want.Metadata), len(got.Metadata))
		for k, v := range want.Metadata {
			assert.Equal(t, v, got.Metadata[k])
		}
		assert.Equal(t, len(want.Attributes), len(got.Attributes))
	}

	loadedEdges := make(map[string]model.Edge, len(gotEdges))
	for _, e := range gotEdges {
		loadedEdges[e.ID] = e
	}
	for _, want := range wantEdges {
		got, ok := loadedEdges[want.ID]
		require.True(t, ok, want.ID)
		assert.Equal(t, want.SourceID, got.SourceID)
		assert.Equal(t, want.TargetID, got.TargetID)
		assert.Equal(t, want.Relation, got.Relation)
	}

	again, created := reloaded.EnsurePill("HDD")
	assert.False(t, created)
	assert.Equal(t, "1TB", again.Attributes["capacity"])
}

// gatedStore blocks sense creation until release is closed.
type gatedStore struct {
	*store.MemoryStore
	entered chan string
	release chan struct{}
}

func (s *gatedStore) Create(ctx context.Context, rec store.Record) (store.Record, error) {
	if rec.Kind == store.KindUnit && rec.Type == store.TypeSense {
		s.entered <- rec.Content
		<-s.release
	}
	return s.MemoryStore.Create(ctx, rec)
}

func TestSynchronize_DiscardedWhileInFlight(t *testing.T) {
	ctx := context.Background()
	s := &gatedStore{MemoryStore: store.NewMemoryStore(), entered: make(chan string, 4), release: make(chan struct{})}
	b := NewBuilder(s, nil)

	pill, _ := b.EnsurePill("HDD")
	_, _, err := b.SelectSense(pill, candidate("First", 1))
	require.NoError(t, err)

	done := make(chan SyncReport)
	go func() { done <- b.Synchronize(ctx) }()
	assert.Equal(t, "First", <-s.entered)

	_, _, err = b.SelectSense(pill, candidate("Second", 2))
	require.NoError(t, err)
	close(s.release)

	require.NoError(t, (<-done).Err())
	// the orphaned sense and its edge were queued for deletion
	require.NoError(t, b.Synchronize(ctx).Err())

	units, err := s.ListAll(ctx, store.KindUnit)
	require.NoError(t, err)
	var senses []string
	for _, u := range units {
		if u.Type == store.TypeSense {
			senses = append(senses, u.Content)
		}
	}
	assert.Equal(t, []string{"Second"}, senses)

	links, err := s.ListAll(ctx, store.KindLink)
	require.NoError(t, err)
	assert.Len(t, links, 1)
	assert.Equal(t, 0, b.Pending())
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	b := NewBuilder(s, nil)

	pill, _ := b.EnsurePill("HDD")
	_, _, _ = b.SelectSense(pill, candidate("Hard disk drive", 1))
	require.NoError(t, b.Synchronize(ctx).Err())
	b.EnsurePill("unsynced")

	n, err := b.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	nodes, edges := b.Snapshot()
	assert.Empty(t, nodes)
	assert.Empty(t, edges)

	units, err := s.ListAll(ctx, store.KindUnit)
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestOnGraphChanged(t *testing.T) {
	b := NewBuilder(store.NewMemoryStore(), nil)
	var calls int
	var lastNodes []model.Node
	b.OnGraphChanged(func(nodes []model.Node, edges []model.Edge) {
		calls++
		lastNodes = nodes
	})

	pill, _ := b.EnsurePill("HDD")
	b.EnsurePill("HDD")
	_, _, _ = b.SetAttribute(pill, "capacity", "1TB")
	b.Synchronize(context.Background())

	assert.Equal(t, 3, calls)
	require.Len(t, lastNodes, 3)
	assert.False(t, lastNodes[0].Pending)
}
