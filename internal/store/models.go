package store

import (
	"time"

	"github.com/headline-goat/abacus/internal/abtest"
)

// Scenario is a named, reusable test configuration. Only inputs are kept;
// simulation output is never written back.
type Scenario struct {
	ID          int64
	Name        string
	Description string
	Params      abtest.Params // Decoded from JSON
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
