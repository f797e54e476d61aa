/*
demos.go - Demo project loaders for testing and demonstrations

PURPOSE:

	Provides pre-built projects that create realistic scenarios for demos
	and manual testing. Each demo exercises a different part of the model.

AVAILABLE DEMOS:

	ghana-cookstoves:  Cookstove distribution with debt and a pre-purchase
	                   agreement (same inputs as testdata/ghana)
	amazon-arr:        Long reforestation project, biennial issuance, no
	                   pre-purchase
	biochar-equity:    Equity-only biochar plant, so DSCR is N/A every year

HOW DEMOS WORK:
 1. Look up the demo by ID
 2. Create a scenario with the demo's inputs through the scenario service
 3. Return the new scenario

Loading a demo never touches existing scenarios.

USAGE VIA API:

	POST /api/demos/load
	{"demo_id": "ghana-cookstoves"}

ADDING NEW DEMOS:
 1. Add to 'demos' with ID, name, description and an inputs function
 2. Keep inputs valid: every per-year array has Years entries

SEE ALSO:
  - handlers.go: Scenario handlers
  - testdata/ghana: Fixture matching ghana-cookstoves
*/
package api

import (
	"net/http"

	"github.com/warp/carbon-engine/engine"
)

// =============================================================================
// DEMO DEFINITIONS
// =============================================================================

type demo struct {
	DemoDTO
	inputs func() engine.UIInputs
}

var demos = []demo{
	{
		DemoDTO: DemoDTO{
			ID:          "ghana-cookstoves",
			Name:        "Ghana Cookstoves",
			Description: "Cookstove distribution with a 5-year loan and a 40% pre-purchase agreement",
			Category:    "energy",
		},
		inputs: GhanaCookstoves,
	},
	{
		DemoDTO: DemoDTO{
			ID:          "amazon-arr",
			Name:        "Amazon Reforestation",
			Description: "15-year afforestation project with a long lead time and biennial issuance",
			Category:    "nature",
		},
		inputs: amazonReforestation,
	},
	{
		DemoDTO: DemoDTO{
			ID:          "biochar-equity",
			Name:        "Biochar (equity only)",
			Description: "Equity-funded biochar plant; no debt service so DSCR is N/A",
			Category:    "removal",
		},
		inputs: biocharEquity,
	},
}

func findDemo(id string) (demo, bool) {
	for _, d := range demos {
		if d.ID == id {
			return d, true
		}
	}
	return demo{}, false
}

func ptr(v float64) *float64 { return &v }

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// GhanaCookstoves returns the inputs of the Ghana cookstove demo in UI units.
func GhanaCookstoves() engine.UIInputs {
	duration := 5
	return engine.UIInputs{
		StartYear:         2025,
		Years:             10,
		CreditsGenerated:  []float64{0, 5000, 8000, 9500, 10000, 10000, 10000, 10000, 10000, 10000},
		IssuanceFlag:      []float64{0, 0, 1, 1, 1, 1, 1, 1, 1, 1},
		PricePerCredit:    []float64{12, 12, 12.5, 13, 13.5, 14, 14.5, 15, 15.5, 16},
		FeasibilityCosts:  []float64{60000, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		PDDCosts:          []float64{45000, 20000, 0, 0, 0, 0, 0, 0, 0, 0},
		MRVCosts:          []float64{0, 15000, 15000, 15000, 15000, 15000, 15000, 15000, 15000, 15000},
		StaffCosts:        []float64{40000, 40000, 42000, 42000, 44000, 44000, 46000, 46000, 48000, 48000},
		Capex:             []float64{150000, 50000, 0, 0, 0, 0, 0, 0, 0, 0},
		Depreciation:      []float64{15000, 20000, 20000, 20000, 20000, 20000, 20000, 20000, 20000, 20000},
		EquityInjection:   []float64{0, 100000, 0, 0, 0, 0, 0, 0, 0, 0},
		DebtDraw:          []float64{200000, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		PurchaseAmount:    []float64{0, 0, 350000, 350000, 0, 0, 0, 0, 0, 0},
		InterestRatePct:   ptr(8),
		DebtDurationYears: &duration,
		PurchaseSharePct:  ptr(40),
		ARRatePct:         ptr(10),
		APRatePct:         ptr(8),
		COGSRatePct:       ptr(5),
		IncomeTaxRatePct:  ptr(25),
		DiscountRatePct:   ptr(10),
		InitialEquityT0:   ptr(300000),
		OpeningCashY1:     ptr(300000),
		InitialPPE:        ptr(0),
	}
}

func amazonReforestation() engine.UIInputs {
	const years = 15
	duration := 10
	price := make([]float64, years)
	for i := range price {
		price[i] = 15 + 0.5*float64(i)
	}
	return engine.UIInputs{
		StartYear:         2026,
		Years:             years,
		CreditsGenerated:  []float64{0, 0, 0, 2000, 6000, 12000, 18000, 24000, 28000, 30000, 30000, 30000, 30000, 30000, 30000},
		IssuanceFlag:      []float64{0, 0, 0, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1},
		PricePerCredit:    price,
		FeasibilityCosts:  append([]float64{80000}, repeat(0, years-1)...),
		PDDCosts:          append([]float64{60000, 30000}, repeat(0, years-2)...),
		MRVCosts:          append(repeat(0, 3), repeat(25000, years-3)...),
		StaffCosts:        repeat(70000, years),
		Capex:             append([]float64{300000, 150000}, repeat(0, years-2)...),
		Depreciation:      repeat(30000, years),
		DebtDraw:          append([]float64{500000}, repeat(0, years-1)...),
		InterestRatePct:   ptr(7),
		DebtDurationYears: &duration,
		ARRatePct:         ptr(15),
		APRatePct:         ptr(10),
		COGSRatePct:       ptr(8),
		IncomeTaxRatePct:  ptr(20),
		DiscountRatePct:   ptr(12),
		InitialEquityT0:   ptr(400000),
	}
}

func biocharEquity() engine.UIInputs {
	const years = 8
	return engine.UIInputs{
		StartYear:        2025,
		Years:            years,
		CreditsGenerated: []float64{4000, 6000, 8000, 8000, 8000, 8000, 8000, 8000},
		PricePerCredit:   repeat(120, years),
		PDDCosts:         append([]float64{50000}, repeat(0, years-1)...),
		MRVCosts:         repeat(30000, years),
		StaffCosts:       repeat(150000, years),
		Capex:            append([]float64{900000}, repeat(0, years-1)...),
		Depreciation:     repeat(100000, years),
		EquityInjection:  append([]float64{0, 200000}, repeat(0, years-2)...),
		PurchaseAmount:   append([]float64{0, 60000}, repeat(0, years-2)...),
		PurchaseSharePct: ptr(25),
		ARRatePct:        ptr(5),
		APRatePct:        ptr(5),
		COGSRatePct:      ptr(20),
		IncomeTaxRatePct: ptr(25),
		DiscountRatePct:  ptr(9),
		InitialEquityT0:  ptr(1000000),
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListDemos returns the available demo projects.
// GET /api/demos
func (h *Handler) ListDemos(w http.ResponseWriter, r *http.Request) {
	dtos := make([]DemoDTO, len(demos))
	for i, d := range demos {
		dtos[i] = d.DemoDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadDemo creates a scenario from a demo project.
// POST /api/demos/load
func (h *Handler) LoadDemo(w http.ResponseWriter, r *http.Request) {
	var req LoadDemoRequest
	if !decodeBody(w, r, &req) {
		return
	}

	d, ok := findDemo(req.DemoID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown demo", nil)
		return
	}

	sc, err := h.Service.Create(r.Context(), d.Name, d.Name, d.inputs())
	if err != nil {
		h.handleError(w, "Failed to load demo", err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}
