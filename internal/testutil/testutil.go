// Package testutil holds shared test fixtures.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/headline-goat/abacus/internal/abtest"
	"github.com/headline-goat/abacus/internal/store"
)

// SetupTestStore creates a test database and returns the store.
// Uses t.TempDir() for automatic cleanup on test completion.
func SetupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// Params returns a valid parameter set with a fixed seed.
func Params(baseline, effect float64, n int) abtest.Params {
	seed := uint64(42)
	p := abtest.DefaultParams()
	p.BaselineRate = baseline
	p.EffectSize = effect
	p.SampleSize = n
	p.Seed = &seed
	return p
}

// SaveScenario stores a scenario or fails the test.
func SaveScenario(t *testing.T, s store.Store, name string, p abtest.Params) *store.Scenario {
	t.Helper()

	sc, err := s.SaveScenario(context.Background(), name, "", p)
	if err != nil {
		t.Fatalf("failed to save scenario %s: %v", name, err)
	}
	return sc
}
