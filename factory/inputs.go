/*
Package factory converts stored and file-based project inputs into the
engine's typed UIInputs.

PURPOSE:
  The application keeps project inputs as generic rows:

    category   key                 year   value
    carbon     credits_generated   2026   5000
    carbon     purchase_share_pct     0   40
    financing  debt_draw           2025   200000

  The engine never sees this shape. The factory converts rows to
  engine.UIInputs once, at the boundary, and back again for storage.
  Year 0 marks a scalar (whole-project) value.

FILE FORMATS:
  Scenario files may be JSON or YAML with the UIInputs field names.
  Fixture files (engine_inputs.json) hold EngineInputs in canonical units.

USAGE:
  f := factory.NewInputFactory()

  ui, err := f.FromRows(rows)
  rows := f.ToRows(ui)

  ui, err := f.ParseUIInputs(data, factory.FormatYAML)
  in, err := f.ParseEngineInputs(data)

SEE ALSO:
  - engine/normalize.go: UIInputs and Normalize
  - scenario/: persists rows through a Store
*/
package factory

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/warp/carbon-engine/engine"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// ROW SCHEMA
// =============================================================================

// InputRow is one stored input value. Year is a calendar year for per-year
// series and 0 for scalars.
type InputRow struct {
	Category string  `json:"category"`
	Key      string  `json:"key"`
	Year     int     `json:"year"`
	Value    float64 `json:"value"`
}

// Row categories.
const (
	CategoryProject        = "project"
	CategoryCarbon         = "carbon"
	CategoryExpenses       = "expenses"
	CategoryAssets         = "assets"
	CategoryFinancing      = "financing"
	CategoryWorkingCapital = "working_capital"
	CategoryTax            = "tax"
)

type seriesField struct {
	category, key string
	get           func(*engine.UIInputs) *[]float64
}

type scalarField struct {
	category, key string
	get           func(*engine.UIInputs) **float64
}

var seriesFields = []seriesField{
	{CategoryCarbon, "credits_generated", func(u *engine.UIInputs) *[]float64 { return &u.CreditsGenerated }},
	{CategoryCarbon, "credits_issued", func(u *engine.UIInputs) *[]float64 { return &u.CreditsIssued }},
	{CategoryCarbon, "issuance_flag", func(u *engine.UIInputs) *[]float64 { return &u.IssuanceFlag }},
	{CategoryCarbon, "price_per_credit", func(u *engine.UIInputs) *[]float64 { return &u.PricePerCredit }},
	{CategoryCarbon, "purchase_amount", func(u *engine.UIInputs) *[]float64 { return &u.PurchaseAmount }},
	{CategoryExpenses, "feasibility_costs", func(u *engine.UIInputs) *[]float64 { return &u.FeasibilityCosts }},
	{CategoryExpenses, "pdd_costs", func(u *engine.UIInputs) *[]float64 { return &u.PDDCosts }},
	{CategoryExpenses, "mrv_costs", func(u *engine.UIInputs) *[]float64 { return &u.MRVCosts }},
	{CategoryExpenses, "staff_costs", func(u *engine.UIInputs) *[]float64 { return &u.StaffCosts }},
	{CategoryAssets, "capex", func(u *engine.UIInputs) *[]float64 { return &u.Capex }},
	{CategoryAssets, "depreciation", func(u *engine.UIInputs) *[]float64 { return &u.Depreciation }},
	{CategoryFinancing, "equity_injection", func(u *engine.UIInputs) *[]float64 { return &u.EquityInjection }},
	{CategoryFinancing, "debt_draw", func(u *engine.UIInputs) *[]float64 { return &u.DebtDraw }},
}

var scalarFields = []scalarField{
	{CategoryCarbon, "purchase_share_pct", func(u *engine.UIInputs) **float64 { return &u.PurchaseSharePct }},
	{CategoryExpenses, "cogs_rate_pct", func(u *engine.UIInputs) **float64 { return &u.COGSRatePct }},
	{CategoryAssets, "initial_ppe", func(u *engine.UIInputs) **float64 { return &u.InitialPPE }},
	{CategoryFinancing, "interest_rate_pct", func(u *engine.UIInputs) **float64 { return &u.InterestRatePct }},
	{CategoryFinancing, "initial_equity_t0", func(u *engine.UIInputs) **float64 { return &u.InitialEquityT0 }},
	{CategoryFinancing, "opening_cash_y1", func(u *engine.UIInputs) **float64 { return &u.OpeningCashY1 }},
	{CategoryFinancing, "discount_rate_pct", func(u *engine.UIInputs) **float64 { return &u.DiscountRatePct }},
	{CategoryWorkingCapital, "ar_rate_pct", func(u *engine.UIInputs) **float64 { return &u.ARRatePct }},
	{CategoryWorkingCapital, "ap_rate_pct", func(u *engine.UIInputs) **float64 { return &u.APRatePct }},
	{CategoryTax, "income_tax_rate_pct", func(u *engine.UIInputs) **float64 { return &u.IncomeTaxRatePct }},
}

// Project-level keys. debt_duration_years is an integer so it is handled apart
// from the float scalars.
const (
	keyStartYear    = "start_year"
	keyYears        = "years"
	keyDebtDuration = "debt_duration_years"
)

func rowKey(category, key string) string { return category + "/" + key }

// =============================================================================
// INPUT FACTORY
// =============================================================================

// InputFactory converts between stored rows, files and engine inputs.
type InputFactory struct {
	series  map[string]seriesField
	scalars map[string]scalarField
}

// NewInputFactory creates a new input factory.
func NewInputFactory() *InputFactory {
	f := &InputFactory{
		series:  make(map[string]seriesField, len(seriesFields)),
		scalars: make(map[string]scalarField, len(scalarFields)),
	}
	for _, s := range seriesFields {
		f.series[rowKey(s.category, s.key)] = s
	}
	for _, s := range scalarFields {
		f.scalars[rowKey(s.category, s.key)] = s
	}
	return f
}

// FromRows builds UIInputs from stored rows. The project rows start_year and
// years are required. Unknown category/key pairs and years outside the model
// horizon are errors.
func (f *InputFactory) FromRows(rows []InputRow) (engine.UIInputs, error) {
	var ui engine.UIInputs

	// first pass: horizon
	for _, r := range rows {
		if r.Category != CategoryProject {
			continue
		}
		switch r.Key {
		case keyStartYear:
			ui.StartYear = int(r.Value)
		case keyYears:
			if r.Value != math.Trunc(r.Value) || r.Value < 1 || r.Value > engine.MaxHorizon {
				return engine.UIInputs{}, &engine.ValidationError{
					Field:   "project",
					Message: fmt.Sprintf("project/years must be a whole number between 1 and %d, got %v", engine.MaxHorizon, r.Value),
				}
			}
			ui.Years = int(r.Value)
		case keyDebtDuration:
			d := int(r.Value)
			ui.DebtDurationYears = &d
		default:
			return engine.UIInputs{}, fmt.Errorf("unknown input row %s/%s", r.Category, r.Key)
		}
	}
	if ui.StartYear == 0 || ui.Years <= 0 {
		return engine.UIInputs{}, &engine.ValidationError{
			Field:   "project",
			Message: "rows must include project/start_year and a positive project/years",
		}
	}

	for _, r := range rows {
		if r.Category == CategoryProject {
			continue
		}
		k := rowKey(r.Category, r.Key)

		if s, ok := f.scalars[k]; ok {
			v := r.Value
			*s.get(&ui) = &v
			continue
		}

		s, ok := f.series[k]
		if !ok {
			return engine.UIInputs{}, fmt.Errorf("unknown input row %s", k)
		}
		idx := r.Year - ui.StartYear
		if idx < 0 || idx >= ui.Years {
			return engine.UIInputs{}, &engine.ValidationError{
				Field:   r.Key,
				Message: fmt.Sprintf("year %d outside model years %d-%d", r.Year, ui.StartYear, ui.StartYear+ui.Years-1),
			}
		}
		dst := s.get(&ui)
		if *dst == nil {
			*dst = make([]float64, ui.Years)
		}
		(*dst)[idx] = r.Value
	}

	return ui, nil
}

// ToRows flattens UIInputs into rows, sorted by category, key and year.
// Nil series and nil scalars produce no rows.
func (f *InputFactory) ToRows(ui engine.UIInputs) []InputRow {
	rows := []InputRow{
		{Category: CategoryProject, Key: keyStartYear, Value: float64(ui.StartYear)},
		{Category: CategoryProject, Key: keyYears, Value: float64(ui.Years)},
	}
	if ui.DebtDurationYears != nil {
		rows = append(rows, InputRow{Category: CategoryProject, Key: keyDebtDuration, Value: float64(*ui.DebtDurationYears)})
	}

	for _, s := range seriesFields {
		for i, v := range *s.get(&ui) {
			rows = append(rows, InputRow{Category: s.category, Key: s.key, Year: ui.StartYear + i, Value: v})
		}
	}
	for _, s := range scalarFields {
		if p := *s.get(&ui); p != nil {
			rows = append(rows, InputRow{Category: s.category, Key: s.key, Value: *p})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Category != rows[j].Category {
			return rows[i].Category < rows[j].Category
		}
		if rows[i].Key != rows[j].Key {
			return rows[i].Key < rows[j].Key
		}
		return rows[i].Year < rows[j].Year
	})
	return rows
}

// =============================================================================
// FILE PARSING
// =============================================================================

// Format is a scenario file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a format from a file extension. Anything that is not
// .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseUIInputs decodes a scenario file.
func (f *InputFactory) ParseUIInputs(data []byte, format Format) (engine.UIInputs, error) {
	var ui engine.UIInputs
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &ui); err != nil {
			return engine.UIInputs{}, fmt.Errorf("failed to parse inputs YAML: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &ui); err != nil {
			return engine.UIInputs{}, fmt.Errorf("failed to parse inputs JSON: %w", err)
		}
	default:
		return engine.UIInputs{}, fmt.Errorf("unknown input format: %s", format)
	}
	return ui, nil
}

// ParseEngineInputs decodes an engine_inputs.json fixture in canonical units.
func (f *InputFactory) ParseEngineInputs(data []byte) (engine.EngineInputs, error) {
	var in engine.EngineInputs
	if err := json.Unmarshal(data, &in); err != nil {
		return engine.EngineInputs{}, fmt.Errorf("failed to parse engine inputs JSON: %w", err)
	}
	return in, nil
}

// LoadEngineInputs accepts either file shape: EngineInputs fixtures are
// recognised by their "horizon" field, everything else is decoded as
// UIInputs and normalized.
func (f *InputFactory) LoadEngineInputs(data []byte, format Format) (engine.EngineInputs, error) {
	if format == FormatJSON {
		var probe struct {
			Horizon *int `json:"horizon"`
		}
		if err := json.Unmarshal(data, &probe); err == nil && probe.Horizon != nil {
			return f.ParseEngineInputs(data)
		}
	}
	ui, err := f.ParseUIInputs(data, format)
	if err != nil {
		return engine.EngineInputs{}, err
	}
	return engine.Normalize(ui)
}
