package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/ontosense/internal/core/model"
	"github.com/agenthands/ontosense/internal/logger"
	"github.com/agenthands/ontosense/internal/store"
)

// TempIDPrefix marks identifiers generated locally before the store confirms them.
const TempIDPrefix = "local-"

// Listener receives a snapshot of the graph after every completed mutation batch.
type Listener func(nodes []model.Node, edges []model.Edge)

type nodeState struct {
	node    model.Node
	seq     uint64
	version uint64
	dirty   bool
}

type edgeState struct {
	edge    model.Edge
	seq     uint64
	version uint64
	dirty   bool
}

type tombstone struct {
	id   string
	kind store.Kind
}

// Builder owns the semantic graph of one editing session and mirrors it into a
// RecordStore. Pills are indexed by content: one Pill per distinct finalized
// token text. New entities carry Pending until the store confirms them.
type Builder struct {
	Store         store.RecordStore
	UUIDGenerator func() string
	Concurrency   int
	Timeout       time.Duration
	Now           func() time.Time

	log *zap.Logger

	mu         sync.Mutex
	nodes      map[string]*nodeState
	edges      map[string]*edgeState
	pills      map[string]string
	tombstones map[string]store.Kind
	seq        uint64
	listeners  []Listener

	// syncMu serializes Synchronize, Load and DeleteAll.
	syncMu sync.Mutex
}

func NewBuilder(s store.RecordStore, log *zap.Logger) *Builder {
	return &Builder{
		Store:         s,
		UUIDGenerator: uuid.NewString,
		Concurrency:   8,
		Now:           func() time.Time { return time.Now().UTC() },
		log:           logger.OrNop(log),
		nodes:         make(map[string]*nodeState),
		edges:         make(map[string]*edgeState),
		pills:         make(map[string]string),
		tombstones:    make(map[string]store.Kind),
	}
}

// OnGraphChanged registers l; it is called outside the builder's lock.
func (b *Builder) OnGraphChanged(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// EnsurePill returns the Pill for word, creating and scheduling it on first use.
// The second result reports whether the pill was created by this call.
func (b *Builder) EnsurePill(word string) (model.Node, bool) {
	b.mu.Lock()
	if id, ok := b.pills[word]; ok {
		n := b.nodes[id].node.Clone()
		b.mu.Unlock()
		return n, false
	}
	n := b.addNode(model.Node{
		Kind:       model.KindPill,
		Content:    word,
		Attributes: map[string]string{},
	})
	b.mu.Unlock()

	b.log.Debug("pill created", zap.String("word", word), zap.String("id", n.ID))
	b.notify()
	return n, true
}

// SelectSense replaces the pill's sense: the previous HAS_SENSE edge and its Sense
// node are detached and discarded before the new pair is created.
func (b *Builder) SelectSense(pill model.Node, c model.MeaningCandidate) (model.Node, model.Edge, error) {
	b.mu.Lock()
	ps := b.pillState(pill)
	if ps == nil {
		b.mu.Unlock()
		return model.Node{}, model.Edge{}, fmt.Errorf("%w: %q", model.ErrUnknownPill, pill.Content)
	}
	pillID := ps.node.ID

	for id, es := range b.edges {
		if es.edge.SourceID == pillID && es.edge.Relation == model.HasSense {
			target := es.edge.TargetID
			b.discardEdge(id)
			b.discardNode(target)
		}
	}

	meta := map[string]string{}
	if c.Reference.PageID != 0 {
		meta[model.MetaPageID] = strconv.Itoa(c.Reference.PageID)
	}
	if c.Reference.ShortDescription != "" && !c.Reference.Failed {
		meta[model.MetaSnippet] = c.Reference.ShortDescription
	}
	if c.Reference.Link != "" {
		meta[model.MetaLink] = c.Reference.Link
	}

	sense := b.addNode(model.Node{Kind: model.KindSense, Content: c.SenseTitle(), Metadata: meta})
	edge := b.addEdge(model.Edge{SourceID: pillID, TargetID: sense.ID, Relation: model.HasSense})
	b.mu.Unlock()

	b.notify()
	return sense, edge, nil
}

// SetAttribute appends an Attribute/Value pair under the pill and records value
// as the pill's latest value for name. Earlier pairs stay in the graph.
func (b *Builder) SetAttribute(pill model.Node, name, value string) (model.Node, model.Node, error) {
	name, value = strings.TrimSpace(name), strings.TrimSpace(value)
	if name == "" || value == "" {
		return model.Node{}, model.Node{}, fmt.Errorf("%w: %q=%q", model.ErrInvalidAttribute, name, value)
	}

	b.mu.Lock()
	ps := b.pillState(pill)
	if ps == nil {
		b.mu.Unlock()
		return model.Node{}, model.Node{}, fmt.Errorf("%w: %q", model.ErrUnknownPill, pill.Content)
	}
	pillID := ps.node.ID

	attr := b.addNode(model.Node{
		Kind:     model.KindAttribute,
		Content:  name,
		Metadata: map[string]string{model.MetaParentID: pillID},
	})
	val := b.addNode(model.Node{
		Kind:     model.KindValue,
		Content:  value,
		Metadata: map[string]string{model.MetaParentID: attr.ID},
	})
	b.addEdge(model.Edge{
		SourceID: pillID,
		TargetID: attr.ID,
		Relation: model.HasAttribute,
		Metadata: map[string]string{model.MetaAttributeName: name},
	})
	b.addEdge(model.Edge{SourceID: attr.ID, TargetID: val.ID, Relation: model.HasValue})

	if ps.node.Attributes == nil {
		ps.node.Attributes = map[string]string{}
	}
	ps.node.Attributes[name] = value
	b.touchNode(ps)
	b.mu.Unlock()

	b.notify()
	return attr, val, nil
}

// Pill looks a pill up by its content.
func (b *Builder) Pill(word string) (model.Node, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.pills[word]
	if !ok {
		return model.Node{}, false
	}
	return b.nodes[id].node.Clone(), true
}

// SenseOf returns the Sense node currently attached to pill.
func (b *Builder) SenseOf(pill model.Node) (model.Node, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ps := b.pillState(pill)
	if ps == nil {
		return model.Node{}, false
	}
	for _, es := range b.edges {
		if es.edge.SourceID == ps.node.ID && es.edge.Relation == model.HasSense {
			if ns, ok := b.nodes[es.edge.TargetID]; ok {
				return ns.node.Clone(), true
			}
		}
	}
	return model.Node{}, false
}

// Snapshot returns copies of all nodes and edges in creation order.
func (b *Builder) Snapshot() ([]model.Node, []model.Edge) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// Pending reports how many entities still await synchronization.
func (b *Builder) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.tombstones)
	for _, s := range b.nodes {
		if s.dirty {
			n++
		}
	}
	for _, s := range b.edges {
		if s.dirty {
			n++
		}
	}
	return n
}

func (b *Builder) snapshotLocked() ([]model.Node, []model.Edge) {
	ns := make([]*nodeState, 0, len(b.nodes))
	for _, s := range b.nodes {
		ns = append(ns, s)
	}
	sort.Slice(ns, func(i, j int) bool { return ns[i].seq < ns[j].seq })

	es := make([]*edgeState, 0, len(b.edges))
	for _, s := range b.edges {
		es = append(es, s)
	}
	sort.Slice(es, func(i, j int) bool { return es[i].seq < es[j].seq })

	nodes := make([]model.Node, len(ns))
	for i, s := range ns {
		nodes[i] = s.node.Clone()
	}
	edges := make([]model.Edge, len(es))
	for i, s := range es {
		edges[i] = s.edge.Clone()
	}
	return nodes, edges
}

func (b *Builder) notify() {
	b.mu.Lock()
	if len(b.listeners) == 0 {
		b.mu.Unlock()
		return
	}
	listeners := append([]Listener(nil), b.listeners...)
	nodes, edges := b.snapshotLocked()
	b.mu.Unlock()

	for _, l := range listeners {
		l(nodes, edges)
	}
}

// pillState resolves a pill by its natural key, falling back to its id.
func (b *Builder) pillState(p model.Node) *nodeState {
	if id, ok := b.pills[p.Content]; ok {
		return b.nodes[id]
	}
	if s, ok := b.nodes[p.ID]; ok && s.node.Kind == model.KindPill {
		return s
	}
	return nil
}

func (b *Builder) newTempID() string {
	return TempIDPrefix + b.UUIDGenerator()
}

func (b *Builder) addNode(n model.Node) model.Node {
	b.seq++
	n.ID = b.newTempID()
	n.Pending = true
	n.CreatedAt = b.Now()
	s := &nodeState{node: n, seq: b.seq, version: 1, dirty: true}
	b.nodes[n.ID] = s
	if n.Kind == model.KindPill {
		b.pills[n.Content] = n.ID
	}
	return n.Clone()
}

func (b *Builder) addEdge(e model.Edge) model.Edge {
	b.seq++
	e.ID = b.newTempID()
	e.Pending = true
	e.CreatedAt = b.Now()
	b.edges[e.ID] = &edgeState{edge: e, seq: b.seq, version: 1, dirty: true}
	return e.Clone()
}

func (b *Builder) touchNode(s *nodeState) {
	s.version++
	s.dirty = true
}

// discardNode drops a node locally; confirmed nodes are queued for remote deletion.
func (b *Builder) discardNode(id string) {
	s, ok := b.nodes[id]
	if !ok {
		return
	}
	delete(b.nodes, id)
	if s.node.Kind == model.KindPill && b.pills[s.node.Content] == id {
		delete(b.pills, s.node.Content)
	}
	if !s.node.Pending {
		b.tombstones[id] = store.KindUnit
	}
}

func (b *Builder) discardEdge(id string) {
	s, ok := b.edges[id]
	if !ok {
		return
	}
	delete(b.edges, id)
	if !s.edge.Pending {
		b.tombstones[id] = store.KindLink
	}
}
