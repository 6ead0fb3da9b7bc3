package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/ontosense/internal/core/model"
	"github.com/agenthands/ontosense/internal/driver"
)

// GraphStore persists records in Memgraph/Neo4j through a GraphDriver.
type GraphStore struct {
	Driver        driver.GraphDriver
	UUIDGenerator func() string
	Now           func() time.Time
}

func NewGraphStore(d driver.GraphDriver) *GraphStore {
	return &GraphStore{
		Driver:        d,
		UUIDGenerator: uuid.NewString,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *GraphStore) Ping(ctx context.Context) error {
	if err := s.Driver.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistenceFailure, err)
	}
	return nil
}

func (s *GraphStore) Create(ctx context.Context, rec Record) (Record, error) {
	rec.ID = s.UUIDGenerator()
	rec.CreatedAt = s.Now()
	rec.UpdatedAt = nil

	var query string
	params, err := recordParams(rec)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", model.ErrPersistenceFailure, err)
	}
	params["created_at"] = rec.CreatedAt.Format(time.RFC3339Nano)

	switch rec.Kind {
	case KindUnit:
		query = driver.CreateUnitQuery
	case KindLink:
		query = driver.CreateLinkQuery
	default:
		return Record{}, fmt.Errorf("%w: unknown record kind %q", model.ErrPersistenceFailure, rec.Kind)
	}

	res, err := s.Driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		return Record{}, fmt.Errorf("%w: create %s: %v", model.ErrPersistenceFailure, rec.Kind, err)
	}
	if len(res.Records) == 0 {
		// Only a link can match nothing: one of its endpoints is missing.
		return Record{}, fmt.Errorf("%w: create %s: endpoints not found", model.ErrPersistenceFailure, rec.Kind)
	}
	return rec, nil
}

func (s *GraphStore) Update(ctx context.Context, id string, rec Record) error {
	rec.ID = id
	params, err := recordParams(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistenceFailure, err)
	}
	params["updated_at"] = s.Now().Format(time.RFC3339Nano)

	query := driver.UpdateUnitQuery
	if rec.Kind == KindLink {
		query = driver.UpdateLinkQuery
	}
	res, err := s.Driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		return fmt.Errorf("%w: update %s: %v", model.ErrPersistenceFailure, id, err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("%w: update %s: %w", model.ErrPersistenceFailure, id, ErrNotFound)
	}
	return nil
}

// Delete removes a unit (with its links) or a link with the given id.
func (s *GraphStore) Delete(ctx context.Context, id string) error {
	params := map[string]interface{}{"uuid": id}
	for _, query := range []string{driver.DeleteUnitQuery, driver.DeleteLinkQuery} {
		res, err := s.Driver.ExecuteQuery(ctx, query, params)
		if err != nil {
			return fmt.Errorf("%w: delete %s: %v", model.ErrPersistenceFailure, id, err)
		}
		if deletedCount(res) > 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: delete %s: %w", model.ErrPersistenceFailure, id, ErrNotFound)
}

func (s *GraphStore) ListAll(ctx context.Context, kind Kind) ([]Record, error) {
	query := driver.ListUnitsQuery
	if kind == KindLink {
		query = driver.ListLinksQuery
	}
	res, err := s.Driver.ExecuteQuery(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", model.ErrPersistenceFailure, kind, err)
	}

	out := make([]Record, 0, len(res.Records))
	for _, r := range res.Records {
		rec := Record{
			ID:          getString(r, "uuid"),
			Kind:        kind,
			Title:       getString(r, "title"),
			Content:     getString(r, "content"),
			Type:        int(getInt(r, "type")),
			SourceID:    getString(r, "source_uuid"),
			TargetID:    getString(r, "target_uuid"),
			Relation:    getString(r, "relation"),
			Description: getString(r, "description"),
			Metadata:    getMap(r, "metadata"),
			Attributes:  getMap(r, "attributes"),
			CreatedAt:   getTime(r, "created_at"),
		}
		if t := getTime(r, "updated_at"); !t.IsZero() {
			rec.UpdatedAt = &t
		}
		out = append(out, rec)
	}
	return out, nil
}

func recordParams(rec Record) (map[string]interface{}, error) {
	metadata, err := encodeMap(rec.Metadata)
	if err != nil {
		return nil, err
	}
	attributes, err := encodeMap(rec.Attributes)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"uuid":        rec.ID,
		"title":       rec.Title,
		"content":     rec.Content,
		"type":        int64(rec.Type),
		"source_uuid": rec.SourceID,
		"target_uuid": rec.TargetID,
		"relation":    rec.Relation,
		"description": rec.Description,
		"metadata":    metadata,
		"attributes":  attributes,
	}, nil
}

func encodeMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func deletedCount(res neo4j.EagerResult) int64 {
	if len(res.Records) == 0 {
		return 0
	}
	return getInt(res.Records[0], "deleted")
}

func getString(r *neo4j.Record, key string) string {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func getInt(r *neo4j.Record, key string) int64 {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func getMap(r *neo4j.Record, key string) map[string]string {
	raw := getString(r, key)
	if raw == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}

func getTime(r *neo4j.Record, key string) time.Time {
	raw := getString(r, key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
