package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/ontosense/internal/core/model"
)

// MemoryStore keeps records in process. It assigns uuid identifiers and
// timestamps the same way the graph store does.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	order   []string
	Now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", model.ErrPersistenceFailure, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Kind == KindLink {
		if _, ok := s.records[rec.SourceID]; !ok {
			return Record{}, fmt.Errorf("%w: source unit %s not found", model.ErrPersistenceFailure, rec.SourceID)
		}
		if _, ok := s.records[rec.TargetID]; !ok {
			return Record{}, fmt.Errorf("%w: target unit %s not found", model.ErrPersistenceFailure, rec.TargetID)
		}
	}

	rec.ID = uuid.NewString()
	rec.CreatedAt = s.Now()
	rec.UpdatedAt = nil
	rec.Metadata = copyMap(rec.Metadata)
	rec.Attributes = copyMap(rec.Attributes)
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return rec, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistenceFailure, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: record %s %w", model.ErrPersistenceFailure, id, ErrNotFound)
	}
	now := s.Now()
	rec.ID = id
	rec.Kind = old.Kind
	rec.CreatedAt = old.CreatedAt
	rec.UpdatedAt = &now
	rec.Metadata = copyMap(rec.Metadata)
	rec.Attributes = copyMap(rec.Attributes)
	s.records[id] = rec
	return nil
}

// Delete removes a record; deleting a unit also removes its links.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistenceFailure, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: record %s %w", model.ErrPersistenceFailure, id, ErrNotFound)
	}
	delete(s.records, id)
	if rec.Kind == KindUnit {
		for lid, l := range s.records {
			if l.Kind == KindLink && (l.SourceID == id || l.TargetID == id) {
				delete(s.records, lid)
			}
		}
	}
	s.compact()
	return nil
}

func (s *MemoryStore) ListAll(ctx context.Context, kind Kind) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPersistenceFailure, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, id := range s.order {
		if rec := s.records[id]; rec.Kind == kind {
			rec.Metadata = copyMap(rec.Metadata)
			rec.Attributes = copyMap(rec.Attributes)
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) compact() {
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.records[id]; ok {
			kept = append(kept, id)
		}
	}
	s.order = kept
}
