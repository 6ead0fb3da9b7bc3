package driver

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphDriver runs Cypher against a bolt endpoint and returns eagerly collected rows.
type GraphDriver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
	BuildIndices(ctx context.Context) error
	// Ping reports whether the database is reachable right now.
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
