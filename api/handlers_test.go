/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Ad-hoc calculation, sweep and CSV export
- Scenario CRUD, inputs as rows, runs
- Trash, restore and purge
- Error status mapping
*/
package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/carbon-engine/cache"
	"github.com/warp/carbon-engine/engine"
	"github.com/warp/carbon-engine/export"
	"github.com/warp/carbon-engine/factory"
	"github.com/warp/carbon-engine/scenario"
	"github.com/warp/carbon-engine/store/sqlite"
	"go.uber.org/zap"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

type testServer struct {
	handler *Handler
	router  http.Handler
	clock   *testClock
}

func newTestServer(t *testing.T, opts ...scenario.Option) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &testClock{t: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)}
	base := []scenario.Option{
		scenario.WithCache(cache.NewMemory(time.Hour)),
		scenario.WithClock(clock.now),
	}
	svc := scenario.NewService(store, append(base, opts...)...)
	h := NewHandler(svc, zap.NewNop())
	return &testServer{handler: h, router: NewRouter(h), clock: clock}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createScenario(t *testing.T, name string) scenario.Scenario {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/scenarios", ScenarioRequest{
		Name:        name,
		ProjectName: "Ghana",
		Inputs:      GhanaCookstoves(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[scenario.Scenario](t, rec)
}

// =============================================================================
// MODEL
// =============================================================================

func TestCalculate_Ghana(t *testing.T) {
	// GIVEN: The Ghana demo inputs
	s := newTestServer(t)

	// WHEN: Posting them to the calculator
	rec := s.do(t, http.MethodPost, "/api/model/calculate", GhanaCookstoves())

	// THEN: A balanced ten-year model comes back
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	model := decode[engine.Model](t, rec)
	assert.Len(t, model.Years, 10)
	assert.Len(t, model.BalanceSheets, 10)
	assert.Empty(t, model.Violations)
	for _, bs := range model.BalanceSheets {
		assert.True(t, bs.TotalAssets.Sub(bs.TotalLiabilities).Sub(bs.TotalEquity).Abs().LessThanOrEqual(engine.Cent))
	}
}

func TestCalculate_Errors(t *testing.T) {
	s := newTestServer(t)

	short := GhanaCookstoves()
	short.PricePerCredit = short.PricePerCredit[:3]

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"start_year":`, http.StatusBadRequest},
		{"unknown field", `{"start_year":2025,"years":1,"credits":[1]}`, http.StatusBadRequest},
		{"length mismatch", mustJSON(t, short), http.StatusUnprocessableEntity},
		{"no horizon", `{"start_year":2025}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/model/calculate", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestCalculate_StrictPolicyFailsImbalance(t *testing.T) {
	s := newTestServer(t, scenario.WithPolicy(engine.PolicyStrict))
	ui := GhanaCookstoves()
	ui.OpeningCashY1 = ptr(100)

	rec := s.do(t, http.MethodPost, "/api/model/calculate", ui)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, engine.CheckBalanceSheet)
}

func TestSweep_StandardGrid(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/model/sweep", SweepRequest{Inputs: GhanaCookstoves()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[SweepResponse](t, rec)
	assert.Len(t, resp.Results, 20)
	assert.False(t, resp.Base.NPV.IsZero())
	for _, r := range resp.Results {
		assert.Empty(t, r.Error, r.Variation.Label())
	}
}

func TestExportModel_CSV(t *testing.T) {
	// GIVEN: The Ghana inputs
	s := newTestServer(t)

	// WHEN: Exporting the debt schedule
	rec := s.do(t, http.MethodPost, "/api/model/export/debt", GhanaCookstoves())

	// THEN: A CSV with the debt headers and one row per year
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	headers, err := export.Headers(export.StatementDebt)
	require.NoError(t, err)
	assert.Equal(t, headers, records[0])
	assert.Len(t, records, 11)

	rec = s.do(t, http.MethodPost, "/api/model/export/ledger", GhanaCookstoves())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarios_Lifecycle(t *testing.T) {
	s := newTestServer(t)

	// Create and list
	sc := s.createScenario(t, "Base case")
	assert.NotEmpty(t, sc.ID)

	rec := s.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]scenario.Scenario](t, rec), 1)

	// Update
	ui := GhanaCookstoves()
	ui.PricePerCredit = repeat(20, 10)
	rec = s.do(t, http.MethodPut, "/api/scenarios/"+string(sc.ID), ScenarioRequest{Name: "High price", Inputs: ui})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[scenario.Scenario](t, rec)
	assert.Equal(t, "High price", updated.Name)
	assert.Equal(t, repeat(20, 10), updated.Inputs.PricePerCredit)

	// Calculate twice, two runs
	for range 2 {
		rec = s.do(t, http.MethodPost, "/api/scenarios/"+string(sc.ID)+"/calculate", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	calc := decode[CalculateScenarioResponse](t, rec)
	assert.Equal(t, sc.ID, calc.Run.ScenarioID)
	assert.True(t, calc.Model.Returns.NPV.Equal(calc.Run.NPV))

	rec = s.do(t, http.MethodGet, "/api/scenarios/"+string(sc.ID)+"/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]scenario.Run](t, rec), 2)

	// Export
	rec = s.do(t, http.MethodGet, "/api/scenarios/"+string(sc.ID)+"/export/returns", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), string(sc.ID)+"-returns.csv")

	// Delete
	rec = s.do(t, http.MethodDelete, "/api/scenarios/"+string(sc.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/scenarios", nil)
	assert.Empty(t, decode[[]scenario.Scenario](t, rec))
}

func TestScenarios_InputsAsRows(t *testing.T) {
	// GIVEN: A saved scenario
	s := newTestServer(t)
	sc := s.createScenario(t, "Base case")
	path := "/api/scenarios/" + string(sc.ID) + "/inputs"

	// WHEN: Reading its rows, changing one, and writing them back
	rec := s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decode[ScenarioInputsDTO](t, rec)
	assert.Equal(t, factory.NewInputFactory().ToRows(GhanaCookstoves()), dto.Rows)

	for i, row := range dto.Rows {
		if row.Key == "price_per_credit" && row.Year == 2030 {
			dto.Rows[i].Value = 99
		}
	}
	rec = s.do(t, http.MethodPut, path, dto)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The scenario's typed inputs reflect the change
	rec = s.do(t, http.MethodGet, "/api/scenarios/"+string(sc.ID), nil)
	got := decode[scenario.Scenario](t, rec)
	assert.Equal(t, 99.0, got.Inputs.PricePerCredit[5])
}

func TestScenarios_BadRows(t *testing.T) {
	s := newTestServer(t)
	sc := s.createScenario(t, "Base case")
	path := "/api/scenarios/" + string(sc.ID) + "/inputs"

	unknown := ScenarioInputsDTO{Rows: append(factory.NewInputFactory().ToRows(GhanaCookstoves()),
		factory.InputRow{Category: "carbon", Key: "vintage", Year: 2025, Value: 1})}
	rec := s.do(t, http.MethodPut, path, unknown)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	outside := ScenarioInputsDTO{Rows: append(factory.NewInputFactory().ToRows(GhanaCookstoves()),
		factory.InputRow{Category: "carbon", Key: "price_per_credit", Year: 2040, Value: 1})}
	rec = s.do(t, http.MethodPut, path, outside)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestScenarios_ErrorStatus(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/scenarios/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/scenarios", ScenarioRequest{Name: "", Inputs: GhanaCookstoves()})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	sc := s.createScenario(t, "Base case")
	s.do(t, http.MethodDelete, "/api/scenarios/"+string(sc.ID), nil)

	rec = s.do(t, http.MethodDelete, "/api/scenarios/"+string(sc.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/scenarios/"+string(sc.ID)+"/calculate", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// TRASH
// =============================================================================

func TestTrash_RestoreAndPurge(t *testing.T) {
	// GIVEN: Two trashed scenarios, one deleted 45 days ago
	s := newTestServer(t)
	old := s.createScenario(t, "Old")
	recent := s.createScenario(t, "Recent")

	s.do(t, http.MethodDelete, "/api/scenarios/"+string(old.ID), nil)
	s.clock.t = s.clock.t.AddDate(0, 0, 40)
	s.do(t, http.MethodDelete, "/api/scenarios/"+string(recent.ID), nil)
	s.clock.t = s.clock.t.AddDate(0, 0, 5)

	rec := s.do(t, http.MethodGet, "/api/trash", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trash := decode[[]scenario.Scenario](t, rec)
	require.Len(t, trash, 2)
	assert.Equal(t, recent.ID, trash[0].ID)

	// WHEN: Purging
	rec = s.do(t, http.MethodPost, "/api/trash/purge", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: Only the old scenario is gone, the recent one can be restored
	assert.Equal(t, []scenario.ID{old.ID}, decode[PurgeResponse](t, rec).Purged)

	rec = s.do(t, http.MethodPost, "/api/trash/"+string(recent.ID)+"/restore", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, decode[scenario.Scenario](t, rec).DeletedAt)

	rec = s.do(t, http.MethodPost, "/api/trash/"+string(recent.ID)+"/restore", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/trash/"+string(old.ID)+"/restore", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := newTestServer(t).do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
