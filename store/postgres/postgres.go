/*
Package postgres provides a PostgreSQL-backed scenario.Store.

PURPOSE:
  Same contract and tables as store/sqlite, for deployments where several
  servers share one database. Uses a pgx connection pool; concurrency is
  left to the database.

USAGE:
  store, err := postgres.New(ctx, os.Getenv("DATABASE_URL"))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/sqlite: SQLite implementation
  - scenario/store.go: Interface definition
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/carbon-engine/engine"
	"github.com/warp/carbon-engine/factory"
	"github.com/warp/carbon-engine/scenario"
)

// Store implements scenario.Store using PostgreSQL.
type Store struct {
	pool    *pgxpool.Pool
	factory *factory.InputFactory
}

// New connects to databaseURL and migrates the schema.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("postgres url not set")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	store := &Store{pool: pool, factory: factory.NewInputFactory()}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		project_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		deleted_at TIMESTAMPTZ
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
		value DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (scenario_id, category, input_key, year)
	);

	CREATE TABLE IF NOT EXISTS scenario_runs (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
		ran_at TIMESTAMPTZ NOT NULL,
		fingerprint TEXT NOT NULL,
		npv NUMERIC NOT NULL,
		irr TEXT NOT NULL,
		payback TEXT NOT NULL,
		violations INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_scenario_runs_scenario
		ON scenario_runs(scenario_id, ran_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// SCENARIOS
// =============================================================================

// Save upserts a scenario and replaces its input rows in one transaction.
func (s *Store) Save(ctx context.Context, sc scenario.Scenario) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO scenarios (id, name, project_name, created_at, updated_at, deleted_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				project_name = EXCLUDED.project_name,
				updated_at = EXCLUDED.updated_at,
				deleted_at = EXCLUDED.deleted_at
		`, string(sc.ID), sc.Name, sc.ProjectName, sc.CreatedAt.UTC(), sc.UpdatedAt.UTC(), utcPtr(sc.DeletedAt))
		if err != nil {
			return fmt.Errorf("failed to save scenario: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM scenario_inputs WHERE scenario_id = $1`, string(sc.ID)); err != nil {
			return fmt.Errorf("failed to clear scenario inputs: %w", err)
		}

		batch := &pgx.Batch{}
		for _, r := range s.factory.ToRows(sc.Inputs) {
			batch.Queue(`
				INSERT INTO scenario_inputs (scenario_id, category, input_key, year, value)
				VALUES ($1, $2, $3, $4, $5)
			`, string(sc.ID), r.Category, r.Key, r.Year, r.Value)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save inputs: %w", err)
		}
		return nil
	})
}

// Get returns a scenario, trashed or not.
func (s *Store) Get(ctx context.Context, id scenario.ID) (scenario.Scenario, error) {
	list, err := s.queryScenarios(ctx, `
		SELECT id, name, project_name, created_at, updated_at, deleted_at
		FROM scenarios WHERE id = $1
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
	return s.queryScenarios(ctx, `
		SELECT id, name, project_name, created_at, updated_at, deleted_at
		FROM scenarios
		WHERE $1 OR deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, includeDeleted)
}

// ListTrash returns trashed scenarios, most recently deleted first.
func (s *Store) ListTrash(ctx context.Context) ([]scenario.Scenario, error) {
	return s.queryScenarios(ctx, `
		SELECT id, name, project_name, created_at, updated_at, deleted_at
		FROM scenarios
		WHERE deleted_at IS NOT NULL
		ORDER BY deleted_at DESC, id ASC
	`)
}

// SoftDelete moves a scenario to the trash.
func (s *Store) SoftDelete(ctx context.Context, id scenario.ID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scenarios SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL
	`, string(id), at.UTC())
	if err != nil {
		return fmt.Errorf("failed to delete scenario: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOr(ctx, id, scenario.ErrScenarioDeleted)
	}
	return nil
}

// Restore takes a scenario out of the trash.
func (s *Store) Restore(ctx context.Context, id scenario.ID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scenarios SET deleted_at = NULL WHERE id = $1 AND deleted_at IS NOT NULL
	`, string(id))
	if err != nil {
		return fmt.Errorf("failed to restore scenario: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOr(ctx, id, scenario.ErrScenarioNotDeleted)
	}
	return nil
}

// PurgeDeletedBefore removes scenarios trashed before cutoff.
func (s *Store) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) ([]scenario.ID, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM scenarios
		WHERE deleted_at IS NOT NULL AND deleted_at < $1
		RETURNING id
	`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to purge scenarios: %w", err)
	}

	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (scenario.ID, error) {
		var id string
		err := row.Scan(&id)
		return scenario.ID(id), err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// =============================================================================
// RUNS
// =============================================================================

// SaveRun records a run summary.
func (s *Store) SaveRun(ctx context.Context, r scenario.Run) error {
	if err := s.exists(ctx, r.ScenarioID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scenario_runs (id, scenario_id, ran_at, fingerprint, npv, irr, payback, violations)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, string(r.ScenarioID), r.RanAt.UTC(), r.Fingerprint, r.NPV.String(), r.IRR.String(), r.Payback.String(), r.Violations)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// ListRuns returns the runs of a scenario, oldest first.
func (s *Store) ListRuns(ctx context.Context, id scenario.ID) ([]scenario.Run, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, scenario_id, ran_at, fingerprint, npv::text, irr, payback, violations
		FROM scenario_runs
		WHERE scenario_id = $1
		ORDER BY ran_at ASC, id ASC
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (scenario.Run, error) {
		var (
			r                             scenario.Run
			scenarioID, npv, irr, payback string
		)
		if err := row.Scan(&r.ID, &scenarioID, &r.RanAt, &r.Fingerprint, &npv, &irr, &payback, &r.Violations); err != nil {
			return r, err
		}
		r.ScenarioID = scenario.ID(scenarioID)
		var err error
		if r.NPV, err = decimal.NewFromString(npv); err != nil {
			return r, err
		}
		if r.IRR, err = engine.ParseRate(irr); err != nil {
			return r, err
		}
		r.Payback, err = engine.ParsePayback(payback)
		return r, err
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) exists(ctx context.Context, id scenario.ID) error {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM scenarios WHERE id = $1`, string(id)).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return scenario.ErrScenarioNotFound
	}
	return err
}

// missingOr returns ErrScenarioNotFound when id does not exist, else stateErr.
func (s *Store) missingOr(ctx context.Context, id scenario.ID, stateErr error) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	return stateErr
}

type scenarioRow struct {
	ID          string
	Name        string
	ProjectName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

func (s *Store) queryScenarios(ctx context.Context, query string, args ...any) ([]scenario.Scenario, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowToStructByPos[scenarioRow])
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios: %w", err)
	}

	result := make([]scenario.Scenario, 0, len(found))
	for _, f := range found {
		inputs, err := s.loadInputs(ctx, scenario.ID(f.ID))
		if err != nil {
			return nil, err
		}
		sc := scenario.Scenario{
			ID:          scenario.ID(f.ID),
			Name:        f.Name,
			ProjectName: f.ProjectName,
			Inputs:      inputs,
			CreatedAt:   f.CreatedAt.UTC(),
			UpdatedAt:   f.UpdatedAt.UTC(),
		}
		if f.DeletedAt != nil {
			at := f.DeletedAt.UTC()
			sc.DeletedAt = &at
		}
		result = append(result, sc)
	}
	return result, nil
}

func (s *Store) loadInputs(ctx context.Context, id scenario.ID) (engine.UIInputs, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, input_key, year, value
		FROM scenario_inputs
		WHERE scenario_id = $1
	`, string(id))
	if err != nil {
		return engine.UIInputs{}, fmt.Errorf("failed to query inputs: %w", err)
	}
	inputRows, err := pgx.CollectRows(rows, pgx.RowToStructByPos[factory.InputRow])
	if err != nil {
		return engine.UIInputs{}, fmt.Errorf("failed to read inputs: %w", err)
	}
	ui, err := s.factory.FromRows(inputRows)
	if err != nil {
		return engine.UIInputs{}, fmt.Errorf("scenario %s inputs: %w", id, err)
	}
	return ui, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// Compile-time interface check
var _ scenario.Store = (*Store)(nil)
