package scenario

import (
	"errors"

	"github.com/warp/carbon-engine/engine"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrScenarioNotFound is returned when no scenario has the ID.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrScenarioDeleted is returned when modifying a trashed scenario.
	ErrScenarioDeleted = errors.New("scenario is in the trash")

	// ErrScenarioNotDeleted is returned when restoring an active scenario.
	ErrScenarioNotDeleted = errors.New("scenario is not in the trash")

	// ErrInvalidScenario is returned for a scenario without a name.
	ErrInvalidScenario = errors.New("invalid scenario")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if err means the scenario does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScenarioNotFound)
}

// IsConflict returns true if err is a trash state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrScenarioDeleted) || errors.Is(err, ErrScenarioNotDeleted)
}

// IsClientError returns true if err was caused by the request, not the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidScenario) ||
		IsNotFound(err) ||
		IsConflict(err) ||
		engine.IsValidation(err)
}
