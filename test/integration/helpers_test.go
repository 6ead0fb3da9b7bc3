//go:build integration

package integration

import (
	"os"

	"github.com/agenthands/ontosense/internal/store"
)

func envSet(key string) bool {
	return os.Getenv(key) != ""
}

func byID(recs []store.Record) map[string]store.Record {
	out := make(map[string]store.Record, len(recs))
	for _, r := range recs {
		out[r.ID] = r
	}
	return out
}
