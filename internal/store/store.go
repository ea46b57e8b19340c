package store

import (
	"context"

	"github.com/headline-goat/abacus/internal/abtest"
)

// Store defines the interface for scenario storage operations
type Store interface {
	SaveScenario(ctx context.Context, name, description string, params abtest.Params) (*Scenario, error)
	GetScenario(ctx context.Context, name string) (*Scenario, error)
	ListScenarios(ctx context.Context) ([]*Scenario, error)
	DeleteScenario(ctx context.Context, name string) error

	// Lifecycle
	Close() error
}
