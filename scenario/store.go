package scenario

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Interface for scenario persistence
// =============================================================================

// Store persists scenarios and their runs.
//
// Implementations:
//   - scenario/store.Memory: in-memory, for tests and demos
//   - store/sqlite.Store:    single-node deployments
//   - store/postgres.Store:  shared database
type Store interface {
	// Save inserts or replaces a scenario, including its DeletedAt state.
	Save(ctx context.Context, s Scenario) error

	// Get returns a scenario whether or not it is trashed.
	// Returns ErrScenarioNotFound if it does not exist.
	Get(ctx context.Context, id ID) (Scenario, error)

	// List returns scenarios ordered by creation time.
	List(ctx context.Context, includeDeleted bool) ([]Scenario, error)

	// ListTrash returns trashed scenarios, most recently deleted first.
	ListTrash(ctx context.Context) ([]Scenario, error)

	// SoftDelete moves a scenario to the trash.
	// Returns ErrScenarioDeleted if it is already there.
	SoftDelete(ctx context.Context, id ID, at time.Time) error

	// Restore takes a scenario out of the trash.
	// Returns ErrScenarioNotDeleted if it is not there.
	Restore(ctx context.Context, id ID) error

	// PurgeDeletedBefore permanently removes scenarios trashed before cutoff,
	// with their runs, and returns the removed IDs.
	PurgeDeletedBefore(ctx context.Context, cutoff time.Time) ([]ID, error)

	// SaveRun records a run.
	SaveRun(ctx context.Context, r Run) error

	// ListRuns returns the runs of a scenario, oldest first.
	ListRuns(ctx context.Context, id ID) ([]Run, error)
}
