package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/headline-goat/abacus/internal/abtest"
)

var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS scenarios (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    params TEXT NOT NULL,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_scenarios_name ON scenarios(name);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveScenario inserts the scenario or replaces the params and description
// of an existing one with the same name. Params must form a valid
// configuration.
func (s *SQLiteStore) SaveScenario(ctx context.Context, name, description string, params abtest.Params) (*Scenario, error) {
	if name == "" {
		return nil, &abtest.ConfigurationError{Field: "name", Reason: "must not be empty"}
	}
	if _, err := abtest.NewConfig(params); err != nil {
		return nil, err
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scenarios (name, description, params, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		     description = excluded.description,
		     params = excluded.params,
		     updated_at = excluded.updated_at`,
		name, description, string(paramsJSON), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save scenario: %w", err)
	}

	return s.GetScenario(ctx, name)
}

func (s *SQLiteStore) GetScenario(ctx context.Context, name string) (*Scenario, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, params, created_at, updated_at
		 FROM scenarios WHERE name = ?`, name,
	)

	sc, err := scanScenario(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}
	return sc, nil
}

func (s *SQLiteStore) ListScenarios(ctx context.Context) ([]*Scenario, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, params, created_at, updated_at
		 FROM scenarios ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []*Scenario
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		scenarios = append(scenarios, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}

	return scenarios, nil
}

func (s *SQLiteStore) DeleteScenario(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM scenarios WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete scenario: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScenario(row scanner) (*Scenario, error) {
	var sc Scenario
	var paramsJSON string
	var createdAt, updatedAt int64

	if err := row.Scan(&sc.ID, &sc.Name, &sc.Description, &paramsJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(paramsJSON), &sc.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}

	sc.CreatedAt = time.Unix(createdAt, 0)
	sc.UpdatedAt = time.Unix(updatedAt, 0)
	return &sc, nil
}
