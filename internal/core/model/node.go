package model

import "time"

type NodeKind string

const (
	KindPill      NodeKind = "PILL"
	KindSense     NodeKind = "SENSE"
	KindAttribute NodeKind = "ATTRIBUTE"
	KindValue     NodeKind = "VALUE"
)

// Metadata keys carried by the node variants.
const (
	MetaPageID   = "pageId"
	MetaSnippet  = "snippet"
	MetaLink     = "link"
	MetaParentID = "parentId"
)

// Node is one vertex of the semantic graph. Pills are keyed by Content: at most
// one Pill exists per distinct finalized token text.
type Node struct {
	ID         string            `json:"id"`
	Kind       NodeKind          `json:"type"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"` // Pill only: latest value per attribute name
	Pending    bool              `json:"pending"`              // not yet confirmed by the record store
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  *time.Time        `json:"updated_at,omitempty"`
}

// ParentID returns the parentId metadata of Attribute and Value nodes.
func (n Node) ParentID() string {
	return n.Metadata[MetaParentID]
}

// Clone returns a copy that shares no maps with n.
func (n Node) Clone() Node {
	c := n
	c.Metadata = cloneMap(n.Metadata)
	c.Attributes = cloneMap(n.Attributes)
	if n.UpdatedAt != nil {
		t := *n.UpdatedAt
		c.UpdatedAt = &t
	}
	return c
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
