/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Engine and scenario
  types already carry JSON tags and are returned directly; the types here
  cover request bodies and wrappers the domain packages do not define.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Scenario:
    ScenarioRequest, ScenarioInputsDTO, CalculateScenarioResponse

  Sweep:
    SweepRequest, SweepResponse

  Trash:
    PurgeResponse

  Demos:
    DemoDTO, LoadDemoRequest

VALIDATION:
  Validation is done by the engine and the scenario service, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: Model JSON
*/
package api

import (
	"github.com/warp/carbon-engine/engine"
	"github.com/warp/carbon-engine/factory"
	"github.com/warp/carbon-engine/scenario"
	"github.com/warp/carbon-engine/sweep"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ScenarioRequest creates or updates a scenario.
type ScenarioRequest struct {
	Name        string          `json:"name"`
	ProjectName string          `json:"project_name"`
	Inputs      engine.UIInputs `json:"inputs"`
}

// ScenarioInputsDTO is a scenario's inputs in stored row form.
type ScenarioInputsDTO struct {
	ScenarioID string             `json:"scenario_id"`
	Rows       []factory.InputRow `json:"rows"`
}

// CalculateScenarioResponse is a computed model with the run it recorded.
type CalculateScenarioResponse struct {
	Run   scenario.Run  `json:"run"`
	Model *engine.Model `json:"model"`
}

// SweepRequest runs variations over one set of inputs. Without variations
// the standard grid is used.
type SweepRequest struct {
	Inputs     engine.UIInputs   `json:"inputs"`
	Variations []sweep.Variation `json:"variations,omitempty"`
}

// SweepResponse holds the base returns and one result per variation.
type SweepResponse struct {
	Base    engine.Returns `json:"base"`
	Results []sweep.Result `json:"results"`
}

// PurgeResponse lists scenarios removed from the trash.
type PurgeResponse struct {
	Purged []scenario.ID `json:"purged"`
}

// DemoDTO describes a demo project.
type DemoDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadDemoRequest names the demo project to load.
type LoadDemoRequest struct {
	DemoID string `json:"demo_id"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
