/*
Package sqlite provides a SQLite-backed scenario.Store.

PURPOSE:
  Persists scenarios, their inputs and their run history in a single
  SQLite file. Suitable for a single server; use store/postgres when
  several servers share state.

KEY TABLES:
  scenarios:        one row per scenario, deleted_at marks the trash
  scenario_inputs:  category/key/year rows, see factory.InputRow
  scenario_runs:    run summaries (NPV, IRR, payback, violations)

  Inputs and runs are removed with their scenario (ON DELETE CASCADE).

TIMESTAMPS:
  Stored as fixed-width UTC text so that ORDER BY on the column is
  chronological.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The pool is capped at one
  connection so ":memory:" databases are shared by every query.

USAGE:
  store, err := sqlite.New("./data/carbon.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := scenario.NewService(store)

SEE ALSO:
  - scenario/store.go: Interface definition
  - scenario/store/memory.go: In-memory implementation for testing
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/carbon-engine/engine"
	"github.com/warp/carbon-engine/factory"
	"github.com/warp/carbon-engine/scenario"
)

const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Store implements scenario.Store using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.InputFactory
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, factory: factory.NewInputFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		project_name TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_scenarios_created
		ON scenarios(created_at);
	CREATE INDEX IF NOT EXISTS idx_scenarios_deleted
		ON scenarios(deleted_at) WHERE deleted_at IS NOT NULL;

	CREATE TABLE IF NOT EXISTS scenario_inputs (
		scenario_id TEXT NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
		category TEXT NOT NULL,
		input_key TEXT NOT NULL,
		year INTEGER NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (scenario_id, category, input_key, year)
	);

	CREATE TABLE IF NOT EXISTS scenario_runs (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
		ran_at TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		npv TEXT NOT NULL,
		irr TEXT NOT NULL,
		payback TEXT NOT NULL,
		violations INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_scenario_runs_scenario
		ON scenario_runs(scenario_id, ran_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCENARIOS
// =============================================================================

// Save inserts or replaces a scenario and its input rows atomically.
func (s *Store) Save(ctx context.Context, sc scenario.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scenarios (id, name, project_name, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			project_name = excluded.project_name,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at
	`,
		string(sc.ID),
		sc.Name,
		sc.ProjectName,
		formatTime(sc.CreatedAt),
		formatTime(sc.UpdatedAt),
		nullTime(sc.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save scenario: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scenario_inputs WHERE scenario_id = ?`, string(sc.ID)); err != nil {
		return fmt.Errorf("failed to clear scenario inputs: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scenario_inputs (scenario_id, category, input_key, year, value)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare input insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range s.factory.ToRows(sc.Inputs) {
		if _, err := stmt.ExecContext(ctx, string(sc.ID), r.Category, r.Key, r.Year, r.Value); err != nil {
			return fmt.Errorf("failed to save input %s/%s: %w", r.Category, r.Key, err)
		}
	}

	return tx.Commit()
}

// Get returns a scenario, trashed or not.
func (s *Store) Get(ctx context.Context, id scenario.ID) (scenario.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.queryScenarios(ctx, `
		SELECT id, name, project_name, created_at, updated_at, deleted_at
		FROM scenarios WHERE id = ?
	`, string(id))
	if err != nil {
		return scenario.Scenario{}, err
	}
	if len(list) == 0 {
		return scenario.Scenario{}, scenario.ErrScenarioNotFound
	}
	return list[0], nil
}

// List returns scenarios ordered by creation time.
func (s *Store) List(ctx context.Context, includeDeleted bool) ([]scenario.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, project_name, created_at, updated_at, deleted_at
		FROM scenarios
		WHERE deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`
	if includeDeleted {
		query = `
			SELECT id, name, project_name, created_at, updated_at, deleted_at
			FROM scenarios
			ORDER BY created_at ASC, id ASC
		`
	}
	return s.queryScenarios(ctx, query)
}

// ListTrash returns trashed scenarios, most recently deleted first.
func (s *Store) ListTrash(ctx context.Context) ([]scenario.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryScenarios(ctx, `
		SELECT id, name, project_name, created_at, updated_at, deleted_at
		FROM scenarios
		WHERE deleted_at IS NOT NULL
		ORDER BY deleted_at DESC, id ASC
	`)
}

// SoftDelete moves a scenario to the trash.
func (s *Store) SoftDelete(ctx context.Context, id scenario.ID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := s.deletedState(ctx, id)
	if err != nil {
		return err
	}
	if deleted {
		return scenario.ErrScenarioDeleted
	}

	_, err = s.db.ExecContext(ctx, `UPDATE scenarios SET deleted_at = ? WHERE id = ?`, formatTime(at), string(id))
	if err != nil {
		return fmt.Errorf("failed to delete scenario: %w", err)
	}
	return nil
}

// Restore takes a scenario out of the trash.
func (s *Store) Restore(ctx context.Context, id scenario.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := s.deletedState(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return scenario.ErrScenarioNotDeleted
	}

	_, err = s.db.ExecContext(ctx, `UPDATE scenarios SET deleted_at = NULL WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("failed to restore scenario: %w", err)
	}
	return nil
}

// PurgeDeletedBefore removes scenarios trashed before cutoff.
func (s *Store) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) ([]scenario.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM scenarios
		WHERE deleted_at IS NOT NULL AND deleted_at < ?
		ORDER BY id
	`, formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to find purgeable scenarios: %w", err)
	}
	var ids []scenario.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, scenario.ID(id))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM scenarios WHERE id = ?`, string(id)); err != nil {
			return nil, fmt.Errorf("failed to purge scenario %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// =============================================================================
// RUNS
// =============================================================================

// SaveRun records a run summary.
func (s *Store) SaveRun(ctx context.Context, r scenario.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.deletedState(ctx, r.ScenarioID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scenario_runs (id, scenario_id, ran_at, fingerprint, npv, irr, payback, violations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		string(r.ScenarioID),
		formatTime(r.RanAt),
		r.Fingerprint,
		r.NPV.String(),
		r.IRR.String(),
		r.Payback.String(),
		r.Violations,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// ListRuns returns the runs of a scenario, oldest first.
func (s *Store) ListRuns(ctx context.Context, id scenario.ID) ([]scenario.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.deletedState(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario_id, ran_at, fingerprint, npv, irr, payback, violations
		FROM scenario_runs
		WHERE scenario_id = ?
		ORDER BY ran_at ASC, id ASC
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []scenario.Run
	for rows.Next() {
		var (
			r                               scenario.Run
			scenarioID, ranAt, npv, irr, pb string
		)
		if err := rows.Scan(&r.ID, &scenarioID, &ranAt, &r.Fingerprint, &npv, &irr, &pb, &r.Violations); err != nil {
			return nil, err
		}
		r.ScenarioID = scenario.ID(scenarioID)
		if r.RanAt, err = parseTime(ranAt); err != nil {
			return nil, err
		}
		if r.NPV, err = decimal.NewFromString(npv); err != nil {
			return nil, fmt.Errorf("run %s npv: %w", r.ID, err)
		}
		if r.IRR, err = engine.ParseRate(irr); err != nil {
			return nil, fmt.Errorf("run %s irr: %w", r.ID, err)
		}
		if r.Payback, err = engine.ParsePayback(pb); err != nil {
			return nil, fmt.Errorf("run %s payback: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// deletedState reports whether the scenario is trashed, or
// ErrScenarioNotFound. Caller holds the lock.
func (s *Store) deletedState(ctx context.Context, id scenario.ID) (bool, error) {
	var deletedAt sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT deleted_at FROM scenarios WHERE id = ?`, string(id)).Scan(&deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, scenario.ErrScenarioNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to load scenario: %w", err)
	}
	return deletedAt.Valid, nil
}

// queryScenarios reads scenario rows, then their inputs. The scenario cursor
// is closed before the input queries run. Caller holds the lock.
func (s *Store) queryScenarios(ctx context.Context, query string, args ...any) ([]scenario.Scenario, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}

	var result []scenario.Scenario
	for rows.Next() {
		var (
			sc                   scenario.Scenario
			id, created, updated string
			deleted              sql.NullString
		)
		if err := rows.Scan(&id, &sc.Name, &sc.ProjectName, &created, &updated, &deleted); err != nil {
			rows.Close()
			return nil, err
		}
		sc.ID = scenario.ID(id)
		if sc.CreatedAt, err = parseTime(created); err != nil {
			rows.Close()
			return nil, err
		}
		if sc.UpdatedAt, err = parseTime(updated); err != nil {
			rows.Close()
			return nil, err
		}
		if deleted.Valid {
			at, err := parseTime(deleted.String)
			if err != nil {
				rows.Close()
				return nil, err
			}
			sc.DeletedAt = &at
		}
		result = append(result, sc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		inputs, err := s.loadInputs(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Inputs = inputs
	}
	return result, nil
}

func (s *Store) loadInputs(ctx context.Context, id scenario.ID) (engine.UIInputs, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, input_key, year, value
		FROM scenario_inputs
		WHERE scenario_id = ?
	`, string(id))
	if err != nil {
		return engine.UIInputs{}, fmt.Errorf("failed to query inputs: %w", err)
	}
	defer rows.Close()

	var inputRows []factory.InputRow
	for rows.Next() {
		var r factory.InputRow
		if err := rows.Scan(&r.Category, &r.Key, &r.Year, &r.Value); err != nil {
			return engine.UIInputs{}, err
		}
		inputRows = append(inputRows, r)
	}
	if err := rows.Err(); err != nil {
		return engine.UIInputs{}, err
	}

	ui, err := s.factory.FromRows(inputRows)
	if err != nil {
		return engine.UIInputs{}, fmt.Errorf("scenario %s inputs: %w", id, err)
	}
	return ui, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// Compile-time interface check
var _ scenario.Store = (*Store)(nil)
