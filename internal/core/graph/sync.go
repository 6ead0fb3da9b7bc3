package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/ontosense/internal/core/model"
	"github.com/agenthands/ontosense/internal/store"
)

// SyncFailure is one entity the store did not accept; it stays scheduled.
type SyncFailure struct {
	ID   string
	Kind store.Kind
	Err  error
}

type SyncReport struct {
	Created  int
	Updated  int
	Deleted  int
	Failures []SyncFailure
}

// Err joins the per-entity failures, or returns nil.
func (r SyncReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = fmt.Errorf("%s %s: %w", f.Kind, f.ID, f.Err)
	}
	return errors.Join(errs...)
}

type jobOp int

const (
	opCreate jobOp = iota
	opUpdate
	opDelete
)

// syncJob is one remote call. deps must finish successfully before it runs; its
// result fields are written before done is closed.
type syncJob struct {
	key     string
	localID string
	kind    store.Kind
	op      jobOp
	version uint64
	rec     store.Record
	deps    []*syncJob

	done      chan struct{}
	confirmed string
	createdAt time.Time
	err       error
}

func (j *syncJob) finish(err error) {
	j.err = err
	close(j.done)
}

// Synchronize pushes every scheduled node, edge and deletion to the store.
// Independent calls run concurrently; an edge waits for both endpoints and an
// Attribute/Value node for its parent to be confirmed first. Confirmed ids are
// merged back and every local reference to the temporary id is rewritten.
// Failed entities stay scheduled for the next call.
func (b *Builder) Synchronize(ctx context.Context) SyncReport {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()

	jobs := b.planSync()
	if len(jobs) == 0 {
		return SyncReport{}
	}

	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}
	b.run(ctx, jobs)

	report := b.merge(jobs)
	if err := report.Err(); err != nil {
		b.log.Warn("synchronization incomplete", zap.Int("failed", len(report.Failures)), zap.Error(err))
	} else {
		b.log.Debug("synchronized", zap.Int("created", report.Created), zap.Int("updated", report.Updated), zap.Int("deleted", report.Deleted))
	}
	b.notify()
	return report
}

// planSync snapshots the scheduled work in dependency order.
func (b *Builder) planSync() []*syncJob {
	b.mu.Lock()
	defer b.mu.Unlock()

	byID := make(map[string]*syncJob)
	var pending []*syncJob

	for id, s := range b.nodes {
		if !s.dirty {
			continue
		}
		j := &syncJob{key: id, localID: id, kind: store.KindUnit, version: s.version, rec: store.FromNode(s.node), op: opUpdate}
		if s.node.Pending {
			j.op = opCreate
		}
		byID[id] = j
		pending = append(pending, j)
	}
	for id, s := range b.edges {
		if !s.dirty {
			continue
		}
		j := &syncJob{key: id, localID: id, kind: store.KindLink, version: s.version, rec: store.FromEdge(s.edge), op: opUpdate}
		if s.edge.Pending {
			j.op = opCreate
		}
		byID[id] = j
		pending = append(pending, j)
	}

	for _, j := range pending {
		var refs []string
		if j.kind == store.KindUnit {
			refs = []string{j.rec.Metadata[model.MetaParentID]}
		} else {
			refs = []string{j.rec.SourceID, j.rec.TargetID}
		}
		for _, ref := range refs {
			if dep, ok := byID[ref]; ok && dep.op == opCreate {
				j.deps = append(j.deps, dep)
			}
		}
	}

	// Link deletions go first; a unit deletion only runs once every link
	// deletion of the pass has succeeded.
	var linkDeletes, unitDeletes []*syncJob
	for id, kind := range b.tombstones {
		j := &syncJob{key: "delete:" + id, localID: id, kind: kind, op: opDelete}
		if kind == store.KindLink {
			linkDeletes = append(linkDeletes, j)
		} else {
			unitDeletes = append(unitDeletes, j)
		}
	}
	for _, j := range unitDeletes {
		j.deps = append(j.deps, linkDeletes...)
	}

	ordered := topoOrder(pending)
	ordered = append(ordered, linkDeletes...)
	ordered = append(ordered, unitDeletes...)
	for _, j := range ordered {
		j.done = make(chan struct{})
	}
	return ordered
}

// topoOrder puts every job after its dependencies. Jobs are started in this
// order under a concurrency limit, so a job only ever waits on jobs that
// already hold a slot.
func topoOrder(jobs []*syncJob) []*syncJob {
	out := make([]*syncJob, 0, len(jobs))
	seen := make(map[*syncJob]bool, len(jobs))
	var visit func(j *syncJob)
	visit = func(j *syncJob) {
		if seen[j] {
			return
		}
		seen[j] = true
		for _, d := range j.deps {
			visit(d)
		}
		out = append(out, j)
	}
	for _, j := range jobs {
		visit(j)
	}
	return out
}

func (b *Builder) run(ctx context.Context, jobs []*syncJob) {
	var g errgroup.Group
	if b.Concurrency > 0 {
		g.SetLimit(b.Concurrency)
	}
	for _, j := range jobs {
		g.Go(func() error {
			j.finish(b.execute(ctx, j))
			return nil
		})
	}
	_ = g.Wait()
}

func (b *Builder) execute(ctx context.Context, j *syncJob) error {
	for _, d := range j.deps {
		select {
		case <-d.done:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", model.ErrPersistenceFailure, ctx.Err())
		}
		if d.err != nil {
			return fmt.Errorf("%w: dependency %s not confirmed", model.ErrPersistenceFailure, d.localID)
		}
		b.rewriteRef(&j.rec, d.localID, d.confirmed)
	}

	switch j.op {
	case opCreate:
		rec, err := b.Store.Create(ctx, j.rec)
		if err != nil {
			return err
		}
		j.confirmed = rec.ID
		j.createdAt = rec.CreatedAt
		return nil
	case opUpdate:
		return b.Store.Update(ctx, j.localID, j.rec)
	default:
		return deleteRecord(ctx, b.Store, j.localID)
	}
}

// deleteRecord treats a record the store no longer holds as deleted; a unit
// delete removes its links along with it.
func deleteRecord(ctx context.Context, s store.RecordStore, id string) error {
	if err := s.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func (b *Builder) rewriteRef(rec *store.Record, from, to string) {
	if to == "" {
		return
	}
	if rec.SourceID == from {
		rec.SourceID = to
	}
	if rec.TargetID == from {
		rec.TargetID = to
	}
	if rec.Metadata[model.MetaParentID] == from {
		rec.Metadata[model.MetaParentID] = to
	}
}

// merge folds the call results back into the graph.
func (b *Builder) merge(jobs []*syncJob) SyncReport {
	b.mu.Lock()
	defer b.mu.Unlock()

	var report SyncReport
	for _, j := range jobs {
		if j.err != nil {
			report.Failures = append(report.Failures, SyncFailure{ID: j.localID, Kind: j.kind, Err: j.err})
			continue
		}
		switch j.op {
		case opCreate:
			report.Created++
			b.confirm(j)
		case opUpdate:
			report.Updated++
			b.markSynced(j, j.localID)
		case opDelete:
			report.Deleted++
			delete(b.tombstones, j.localID)
		}
	}
	return report
}

func (b *Builder) confirm(j *syncJob) {
	from, to := j.localID, j.confirmed

	if j.kind == store.KindUnit {
		s, ok := b.nodes[from]
		if !ok {
			// Discarded while its creation was in flight.
			b.tombstones[to] = store.KindUnit
			return
		}
		delete(b.nodes, from)
		s.node.ID = to
		s.node.Pending = false
		s.node.CreatedAt = j.createdAt
		b.nodes[to] = s
		if s.node.Kind == model.KindPill {
			b.pills[s.node.Content] = to
		}
		for _, ns := range b.nodes {
			if ns.node.Metadata[model.MetaParentID] == from {
				ns.node.Metadata[model.MetaParentID] = to
			}
		}
		for _, es := range b.edges {
			if es.edge.SourceID == from {
				es.edge.SourceID = to
			}
			if es.edge.TargetID == from {
				es.edge.TargetID = to
			}
		}
		b.markSynced(j, to)
		return
	}

	s, ok := b.edges[from]
	if !ok {
		b.tombstones[to] = store.KindLink
		return
	}
	delete(b.edges, from)
	s.edge.ID = to
	s.edge.Pending = false
	s.edge.CreatedAt = j.createdAt
	b.edges[to] = s
	b.markSynced(j, to)
}

// markSynced clears the schedule unless the entity changed while in flight.
func (b *Builder) markSynced(j *syncJob, id string) {
	now := b.Now()
	if j.kind == store.KindUnit {
		if s, ok := b.nodes[id]; ok {
			if j.op == opUpdate {
				s.node.UpdatedAt = &now
			}
			if s.version == j.version {
				s.dirty = false
			}
		}
		return
	}
	if s, ok := b.edges[id]; ok {
		if j.op == opUpdate {
			s.edge.UpdatedAt = &now
		}
		if s.version == j.version {
			s.dirty = false
		}
	}
}

// Load replaces the local graph with the store's contents.
func (b *Builder) Load(ctx context.Context) error {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()

	units, err := b.Store.ListAll(ctx, store.KindUnit)
	if err != nil {
		return err
	}
	links, err := b.Store.ListAll(ctx, store.KindLink)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.nodes = make(map[string]*nodeState, len(units))
	b.edges = make(map[string]*edgeState, len(links))
	b.pills = make(map[string]string)
	b.tombstones = make(map[string]store.Kind)
	for _, rec := range units {
		n := rec.Node()
		if n.Kind == model.KindPill {
			if _, dup := b.pills[n.Content]; dup {
				b.log.Warn("duplicate pill in store ignored", zap.String("word", n.Content), zap.String("id", n.ID))
				continue
			}
			b.pills[n.Content] = n.ID
		}
		b.seq++
		b.nodes[n.ID] = &nodeState{node: n, seq: b.seq, version: 1}
	}
	for _, rec := range links {
		e := rec.Edge()
		if _, ok := b.nodes[e.SourceID]; !ok {
			continue
		}
		if _, ok := b.nodes[e.TargetID]; !ok {
			continue
		}
		b.seq++
		b.edges[e.ID] = &edgeState{edge: e, seq: b.seq, version: 1}
	}
	b.mu.Unlock()

	b.log.Info("graph loaded", zap.Int("nodes", len(units)), zap.Int("edges", len(links)))
	b.notify()
	return nil
}

// DeleteAll removes every confirmed entity from the store, links first, and
// clears the local graph. It returns once all calls have completed; entities the
// store refused stay queued for deletion.
func (b *Builder) DeleteAll(ctx context.Context) (int, error) {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()

	b.mu.Lock()
	var links, units []tombstone
	for id, kind := range b.tombstones {
		if kind == store.KindLink {
			links = append(links, tombstone{id, kind})
		} else {
			units = append(units, tombstone{id, kind})
		}
	}
	for id, s := range b.edges {
		if !s.edge.Pending {
			links = append(links, tombstone{id, store.KindLink})
		}
	}
	for id, s := range b.nodes {
		if !s.node.Pending {
			units = append(units, tombstone{id, store.KindUnit})
		}
	}
	b.nodes = make(map[string]*nodeState)
	b.edges = make(map[string]*edgeState)
	b.pills = make(map[string]string)
	b.tombstones = make(map[string]store.Kind)
	b.mu.Unlock()

	deleted := 0
	var errs []error
	for _, phase := range [][]tombstone{links, units} {
		failed := b.deleteBatch(ctx, phase)
		deleted += len(phase) - len(failed)
		if len(failed) == 0 {
			continue
		}
		b.mu.Lock()
		for _, f := range failed {
			b.tombstones[f.id] = f.kind
		}
		b.mu.Unlock()
		for _, f := range failed {
			errs = append(errs, fmt.Errorf("%s %s: %w", f.kind, f.id, f.err))
		}
	}

	b.notify()
	return deleted, errors.Join(errs...)
}

type failedDelete struct {
	tombstone
	err error
}

func (b *Builder) deleteBatch(ctx context.Context, batch []tombstone) []failedDelete {
	results := make([]error, len(batch))
	var g errgroup.Group
	if b.Concurrency > 0 {
		g.SetLimit(b.Concurrency)
	}
	for i, t := range batch {
		g.Go(func() error {
			results[i] = deleteRecord(ctx, b.Store, t.id)
			return nil
		})
	}
	_ = g.Wait()

	var failed []failedDelete
	for i, err := range results {
		if err != nil {
			failed = append(failed, failedDelete{batch[i], err})
		}
	}
	return failed
}
