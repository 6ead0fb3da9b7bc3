//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/ontosense/internal/config"
	"github.com/agenthands/ontosense/internal/driver"
	"github.com/agenthands/ontosense/internal/store"
)

// testConfig loads the repo config plus environment overrides.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	_ = godotenv.Load("../../.env")

	cfg, err := config.Load("../../config/config.toml")
	if err != nil {
		t.Logf("Config not found, using default: %v", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	return cfg
}

// newGraphStore connects to Memgraph or skips the test when MEMGRAPH_URI is unset.
func newGraphStore(t *testing.T) (*store.GraphStore, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	if !envSet("MEMGRAPH_URI") {
		t.Skip("Skipping integration test: MEMGRAPH_URI not set")
	}

	ctx := context.Background()
	d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	require.NoError(t, d.BuildIndices(ctx))

	return store.NewGraphStore(d), cfg
}
