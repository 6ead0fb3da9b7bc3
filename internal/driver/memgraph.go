package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/agenthands/ontosense/internal/config"
	"github.com/agenthands/ontosense/internal/logger"
)

type MemgraphDriver struct {
	Driver neo4j.DriverWithContext
	log    *zap.Logger
}

// NewMemgraphDriver connects over bolt and verifies the connection within
// cfg.ConnectTimeout (1s when unset).
func NewMemgraphDriver(ctx context.Context, cfg config.MemgraphConfig, log *zap.Logger) (*MemgraphDriver, error) {
	log = logger.OrNop(log)
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, err
	}

	timeout := cfg.ConnectTimeout.Duration
	if timeout <= 0 {
		timeout = time.Second
	}
	verifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("memgraph unreachable at %s: %w", cfg.URI, err)
	}

	log.Info("connected to memgraph", zap.String("uri", cfg.URI))
	return &MemgraphDriver{Driver: driver, log: log}, nil
}

func (d *MemgraphDriver) Ping(ctx context.Context) error {
	return d.Driver.VerifyConnectivity(ctx)
}

func (d *MemgraphDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *MemgraphDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

func (d *MemgraphDriver) BuildIndices(ctx context.Context) error {
	for _, q := range IndexQueries {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			// Memgraph errors on an index that already exists.
			d.log.Warn("failed to create index", zap.String("query", q), zap.Error(err))
		}
	}
	return nil
}
