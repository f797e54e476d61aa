/*
handlers.go - HTTP API handlers for the carbon projection engine

PURPOSE:
  Exposes the engine and the scenario service via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Model (ad-hoc inputs, nothing stored):
    POST   /api/model/calculate              UIInputs -> Model
    POST   /api/model/sweep                  Sensitivity sweep
    POST   /api/model/export/{statement}     UIInputs -> CSV

  Scenarios:
    GET    /api/scenarios                    List active scenarios
    POST   /api/scenarios                    Create scenario
    GET    /api/scenarios/{id}               Get scenario
    PUT    /api/scenarios/{id}               Replace name and inputs
    DELETE /api/scenarios/{id}               Move to trash
    GET    /api/scenarios/{id}/inputs        Inputs as category/key/year rows
    PUT    /api/scenarios/{id}/inputs        Replace inputs from rows
    POST   /api/scenarios/{id}/calculate     Run and record
    GET    /api/scenarios/{id}/runs          Recorded runs
    GET    /api/scenarios/{id}/export/{statement}  CSV

  Trash:
    GET    /api/trash                        List trashed scenarios
    POST   /api/trash/{id}/restore           Restore
    POST   /api/trash/purge                  Purge past retention

  Demos:
    GET    /api/demos                        List demo projects
    POST   /api/demos/load                   Create a scenario from a demo

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Service: scenario persistence and cached engine runs
  - Factory: row <-> UIInputs conversion
  - Logger:  zap

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed request body, unknown statement
  - 404: Scenario not found
  - 409: Trash state conflict
  - 422: Inputs rejected by the engine or the scenario service
  - 500: Internal errors, including invariant failures in strict mode

SEE ALSO:
  - dto.go: Request/response data structures
  - demos.go: Demo project loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/carbon-engine/engine"
	"github.com/warp/carbon-engine/export"
	"github.com/warp/carbon-engine/factory"
	"github.com/warp/carbon-engine/scenario"
	"github.com/warp/carbon-engine/sweep"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies. A 100-year horizon fits comfortably.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service    *scenario.Service
	Factory    *factory.InputFactory
	Logger     *zap.Logger
	SweepLimit int
}

// NewHandler creates a new handler over the scenario service.
func NewHandler(svc *scenario.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:    svc,
		Factory:    factory.NewInputFactory(),
		Logger:     logger,
		SweepLimit: sweep.DefaultLimit,
	}
}

// =============================================================================
// MODEL HANDLERS
// =============================================================================

// Calculate runs the engine on the posted inputs.
// POST /api/model/calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var ui engine.UIInputs
	if !decodeBody(w, r, &ui) {
		return
	}

	model, err := h.Service.Calculate(r.Context(), ui)
	if err != nil {
		h.handleError(w, "Failed to calculate model", err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

// Sweep runs sensitivity variations over the posted inputs.
// POST /api/model/sweep
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if !decodeBody(w, r, &req) {
		return
	}
	variations := req.Variations
	if len(variations) == 0 {
		variations = sweep.Standard()
	}

	in, err := engine.Normalize(req.Inputs)
	if err != nil {
		h.handleError(w, "Invalid inputs", err)
		return
	}
	base, err := h.Service.CalculateInputs(r.Context(), in)
	if err != nil {
		h.handleError(w, "Failed to calculate base model", err)
		return
	}

	results, err := sweep.Run(r.Context(), in, variations, h.SweepLimit, engine.WithPolicy(h.Service.Policy()))
	if err != nil {
		h.handleError(w, "Sweep cancelled", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResponse{Base: base.Returns, Results: results})
}

// ExportModel renders one statement of the posted inputs as CSV.
// POST /api/model/export/{statement}
func (h *Handler) ExportModel(w http.ResponseWriter, r *http.Request) {
	statement, err := export.ParseStatement(chi.URLParam(r, "statement"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown statement", err)
		return
	}
	var ui engine.UIInputs
	if !decodeBody(w, r, &ui) {
		return
	}

	model, err := h.Service.Calculate(r.Context(), ui)
	if err != nil {
		h.handleError(w, "Failed to calculate model", err)
		return
	}
	h.writeCSV(w, model, statement, "model")
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns the active scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		h.handleError(w, "Failed to list scenarios", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// CreateScenario saves a new scenario.
// POST /api/scenarios
func (h *Handler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	var req ScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sc, err := h.Service.Create(r.Context(), req.Name, req.ProjectName, req.Inputs)
	if err != nil {
		h.handleError(w, "Failed to create scenario", err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

// GetScenario returns one scenario, including a trashed one.
// GET /api/scenarios/{id}
func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := h.Service.Get(r.Context(), scenarioID(r))
	if err != nil {
		h.handleError(w, "Failed to get scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// UpdateScenario replaces a scenario's name and inputs.
// PUT /api/scenarios/{id}
func (h *Handler) UpdateScenario(w http.ResponseWriter, r *http.Request) {
	var req ScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sc, err := h.Service.Update(r.Context(), scenarioID(r), req.Name, req.ProjectName, req.Inputs)
	if err != nil {
		h.handleError(w, "Failed to update scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// DeleteScenario moves a scenario to the trash.
// DELETE /api/scenarios/{id}
func (h *Handler) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), scenarioID(r)); err != nil {
		h.handleError(w, "Failed to delete scenario", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetScenarioInputs returns a scenario's inputs as stored rows.
// GET /api/scenarios/{id}/inputs
func (h *Handler) GetScenarioInputs(w http.ResponseWriter, r *http.Request) {
	id := scenarioID(r)
	sc, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, "Failed to get scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, ScenarioInputsDTO{
		ScenarioID: string(id),
		Rows:       h.Factory.ToRows(sc.Inputs),
	})
}

// PutScenarioInputs replaces a scenario's inputs from rows.
// PUT /api/scenarios/{id}/inputs
func (h *Handler) PutScenarioInputs(w http.ResponseWriter, r *http.Request) {
	var req ScenarioInputsDTO
	if !decodeBody(w, r, &req) {
		return
	}

	ui, err := h.Factory.FromRows(req.Rows)
	if err != nil {
		if !engine.IsValidation(err) {
			writeError(w, http.StatusBadRequest, "Invalid input rows", err)
			return
		}
		h.handleError(w, "Invalid input rows", err)
		return
	}

	sc, err := h.Service.UpdateInputs(r.Context(), scenarioID(r), ui)
	if err != nil {
		h.handleError(w, "Failed to update inputs", err)
		return
	}
	writeJSON(w, http.StatusOK, ScenarioInputsDTO{
		ScenarioID: string(sc.ID),
		Rows:       h.Factory.ToRows(sc.Inputs),
	})
}

// CalculateScenario runs a saved scenario and records the run.
// POST /api/scenarios/{id}/calculate
func (h *Handler) CalculateScenario(w http.ResponseWriter, r *http.Request) {
	model, run, err := h.Service.CalculateScenario(r.Context(), scenarioID(r))
	if err != nil {
		h.handleError(w, "Failed to calculate scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, CalculateScenarioResponse{Run: run, Model: model})
}

// ListRuns returns the recorded runs of a scenario.
// GET /api/scenarios/{id}/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Service.Runs(r.Context(), scenarioID(r))
	if err != nil {
		h.handleError(w, "Failed to list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(runs))
}

// ExportScenario renders one statement of a saved scenario as CSV. The
// export is not recorded as a run.
// GET /api/scenarios/{id}/export/{statement}
func (h *Handler) ExportScenario(w http.ResponseWriter, r *http.Request) {
	statement, err := export.ParseStatement(chi.URLParam(r, "statement"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown statement", err)
		return
	}

	id := scenarioID(r)
	sc, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, "Failed to get scenario", err)
		return
	}
	model, err := h.Service.Calculate(r.Context(), sc.Inputs)
	if err != nil {
		h.handleError(w, "Failed to calculate scenario", err)
		return
	}
	h.writeCSV(w, model, statement, string(id))
}

// =============================================================================
// TRASH HANDLERS
// =============================================================================

// ListTrash returns trashed scenarios, most recently deleted first.
// GET /api/trash
func (h *Handler) ListTrash(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListTrash(r.Context())
	if err != nil {
		h.handleError(w, "Failed to list trash", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// RestoreScenario takes a scenario out of the trash.
// POST /api/trash/{id}/restore
func (h *Handler) RestoreScenario(w http.ResponseWriter, r *http.Request) {
	id := scenarioID(r)
	if err := h.Service.Restore(r.Context(), id); err != nil {
		h.handleError(w, "Failed to restore scenario", err)
		return
	}
	sc, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, "Failed to get scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// PurgeTrash removes scenarios trashed longer than the retention window.
// POST /api/trash/purge
func (h *Handler) PurgeTrash(w http.ResponseWriter, r *http.Request) {
	purged, err := h.Service.Purge(r.Context(), h.Service.Now())
	if err != nil {
		h.handleError(w, "Failed to purge trash", err)
		return
	}
	writeJSON(w, http.StatusOK, PurgeResponse{Purged: nonNil(purged)})
}

// =============================================================================
// HELPERS
// =============================================================================

func scenarioID(r *http.Request) scenario.ID {
	return scenario.ID(chi.URLParam(r, "id"))
}

// decodeBody decodes a JSON body into dst and writes a 400 on failure.
// Unknown fields are rejected so that misspelt inputs are not silently zero.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// handleError maps domain errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, message string, err error) {
	var parseErr *export.ParseError
	switch {
	case scenario.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case scenario.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsValidation(err), errors.Is(err, scenario.ErrInvalidScenario):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case errors.Is(err, export.ErrUnknownStatement), errors.As(err, &parseErr):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func (h *Handler) writeCSV(w http.ResponseWriter, m *engine.Model, s export.Statement, name string) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, m, s); err != nil {
		h.handleError(w, "Failed to export statement", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s-%s.csv", name, s)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
