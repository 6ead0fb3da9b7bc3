package store

import (
	"context"
	"errors"
	"time"

	"github.com/agenthands/ontosense/internal/core/model"
)

type Kind string

const (
	KindUnit Kind = "unit"
	KindLink Kind = "link"
)

// Unit type codes as stored.
const (
	TypePill      = 0
	TypeSense     = 1
	TypeAttribute = 2
	TypeValue     = 3
)

// Record is the stored form of a node (unit) or an edge (link).
// ID, CreatedAt and UpdatedAt are assigned by the store.
type Record struct {
	ID          string            `json:"id"`
	Kind        Kind              `json:"kind"`
	Title       string            `json:"title,omitempty"`
	Content     string            `json:"content,omitempty"`
	Type        int               `json:"type"`
	SourceID    string            `json:"sourceId,omitempty"`
	TargetID    string            `json:"targetId,omitempty"`
	Relation    string            `json:"relation,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   *time.Time        `json:"updatedAt,omitempty"`
}

// RecordStore is the remote mirror of the semantic graph. Every failure wraps
// model.ErrPersistenceFailure.
type RecordStore interface {
	Create(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, id string, rec Record) error
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context, kind Kind) ([]Record, error)
}

// ErrNotFound is wrapped, next to model.ErrPersistenceFailure, when an update or
// delete names a record the store does not hold.
var ErrNotFound = errors.New("not found")

// Pinger is implemented by stores that can report their backend's health.
type Pinger interface {
	Ping(ctx context.Context) error
}

var typeByKind = map[model.NodeKind]int{
	model.KindPill:      TypePill,
	model.KindSense:     TypeSense,
	model.KindAttribute: TypeAttribute,
	model.KindValue:     TypeValue,
}

var kindByType = map[int]model.NodeKind{
	TypePill:      model.KindPill,
	TypeSense:     model.KindSense,
	TypeAttribute: model.KindAttribute,
	TypeValue:     model.KindValue,
}

func FromNode(n model.Node) Record {
	return Record{
		ID:         n.ID,
		Kind:       KindUnit,
		Title:      n.Content,
		Content:    n.Content,
		Type:       typeByKind[n.Kind],
		Metadata:   copyMap(n.Metadata),
		Attributes: copyMap(n.Attributes),
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}

func FromEdge(e model.Edge) Record {
	return Record{
		ID:          e.ID,
		Kind:        KindLink,
		SourceID:    e.SourceID,
		TargetID:    e.TargetID,
		Relation:    string(e.Relation),
		Description: e.Metadata[model.MetaAttributeName],
		Metadata:    copyMap(e.Metadata),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// Node converts a unit record back into a confirmed node.
func (r Record) Node() model.Node {
	kind, ok := kindByType[r.Type]
	if !ok {
		kind = model.KindValue
	}
	n := model.Node{
		ID:        r.ID,
		Kind:      kind,
		Content:   r.Content,
		Metadata:  copyMap(r.Metadata),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if kind == model.KindPill {
		n.Attributes = copyMap(r.Attributes)
		if n.Attributes == nil {
			n.Attributes = map[string]string{}
		}
	}
	return n
}

// Edge converts a link record back into a confirmed edge.
func (r Record) Edge() model.Edge {
	return model.Edge{
		ID:        r.ID,
		SourceID:  r.SourceID,
		TargetID:  r.TargetID,
		Relation:  model.Relation(r.Relation),
		Metadata:  copyMap(r.Metadata),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
