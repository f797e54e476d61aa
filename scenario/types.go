/*
Package scenario manages saved projection scenarios and their runs.

PURPOSE:
  A scenario is a named set of project inputs. Users edit scenarios, run
  the engine on them, compare runs over time and delete scenarios they no
  longer need. Deleted scenarios go to a trash and are purged after a
  retention window.

KEY CONCEPTS:
  Scenario: name + project + UIInputs, soft-deletable
  Run:      summary of one engine run over a scenario
  Store:    persistence (memory, sqlite, postgres)
  Service:  the operations the API exposes, with model caching

LIFECYCLE:
  active --Delete--> trashed --Restore--> active
                        |
                        +--Purge (after retention)--> gone

SEE ALSO:
  - engine/: the calculation
  - factory/: row conversion used by the SQL stores
  - cache/: model cache used by Service
*/
package scenario

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/carbon-engine/engine"
)

// ID identifies a scenario.
type ID string

// Scenario is a saved set of project inputs.
type Scenario struct {
	ID          ID              `json:"id"`
	Name        string          `json:"name"`
	ProjectName string          `json:"project_name"`
	Inputs      engine.UIInputs `json:"inputs"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

// Deleted reports whether the scenario is in the trash.
func (s Scenario) Deleted() bool { return s.DeletedAt != nil }

// Run summarizes one engine run over a scenario.
type Run struct {
	ID          string          `json:"id"`
	ScenarioID  ID              `json:"scenario_id"`
	RanAt       time.Time       `json:"ran_at"`
	Fingerprint string          `json:"fingerprint"`
	NPV         decimal.Decimal `json:"npv"`
	IRR         engine.Rate     `json:"irr"`
	Payback     engine.Payback  `json:"payback_period"`
	Violations  int             `json:"violations"`
}

// NewRun builds a run summary from a computed model.
func NewRun(id string, scenarioID ID, at time.Time, fingerprint string, m *engine.Model) Run {
	return Run{
		ID:          id,
		ScenarioID:  scenarioID,
		RanAt:       at,
		Fingerprint: fingerprint,
		NPV:         m.Returns.NPV,
		IRR:         m.Returns.IRR,
		Payback:     m.Returns.PaybackPeriod,
		Violations:  len(m.Violations),
	}
}
