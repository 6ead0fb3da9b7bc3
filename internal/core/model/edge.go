package model

import "time"

type Relation string

const (
	HasSense     Relation = "HAS_SENSE"
	HasAttribute Relation = "HAS_ATTRIBUTE"
	HasValue     Relation = "HAS_VALUE"
)

// MetaAttributeName is set on HAS_ATTRIBUTE edges.
const MetaAttributeName = "attributeName"

// Edge is a directed, typed relation between two nodes.
type Edge struct {
	ID        string            `json:"id"`
	SourceID  string            `json:"source_id"`
	TargetID  string            `json:"target_id"`
	Relation  Relation          `json:"type"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Pending   bool              `json:"pending"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt *time.Time        `json:"updated_at,omitempty"`
}

func (e Edge) Clone() Edge {
	c := e
	c.Metadata = cloneMap(e.Metadata)
	if e.UpdatedAt != nil {
		t := *e.UpdatedAt
		c.UpdatedAt = &t
	}
	return c
}
