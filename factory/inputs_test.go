package factory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/carbon-engine/engine"
	"github.com/warp/carbon-engine/factory"
)

func f64(v float64) *float64 { return &v }

func TestFromRows_BuildsUIInputs(t *testing.T) {
	// GIVEN: Stored rows for a three-year project
	// WHEN: Converting to UIInputs
	// THEN: Per-year rows land at their year offset, scalars are set

	rows := []factory.InputRow{
		{Category: "project", Key: "start_year", Value: 2025},
		{Category: "project", Key: "years", Value: 3},
		{Category: "project", Key: "debt_duration_years", Value: 5},
		{Category: "carbon", Key: "credits_generated", Year: 2026, Value: 5000},
		{Category: "carbon", Key: "credits_generated", Year: 2027, Value: 8000},
		{Category: "carbon", Key: "purchase_share_pct", Value: 40},
		{Category: "tax", Key: "income_tax_rate_pct", Value: 25},
	}

	ui, err := factory.NewInputFactory().FromRows(rows)
	require.NoError(t, err)

	assert.Equal(t, 2025, ui.StartYear)
	assert.Equal(t, 3, ui.Years)
	assert.Equal(t, []float64{0, 5000, 8000}, ui.CreditsGenerated)
	assert.Nil(t, ui.Capex)
	require.NotNil(t, ui.PurchaseSharePct)
	assert.Equal(t, 40.0, *ui.PurchaseSharePct)
	require.NotNil(t, ui.DebtDurationYears)
	assert.Equal(t, 5, *ui.DebtDurationYears)
	assert.Nil(t, ui.DiscountRatePct)
}

func TestFromRows_Errors(t *testing.T) {
	base := []factory.InputRow{
		{Category: "project", Key: "start_year", Value: 2025},
		{Category: "project", Key: "years", Value: 2},
	}

	tests := []struct {
		name string
		rows []factory.InputRow
	}{
		{"missing horizon", []factory.InputRow{{Category: "project", Key: "start_year", Value: 2025}}},
		{"unknown key", append(base[:2:2], factory.InputRow{Category: "carbon", Key: "vintage", Year: 2025, Value: 1})},
		{"unknown project key", append(base[:2:2], factory.InputRow{Category: "project", Key: "owner", Value: 1})},
		{"year outside horizon", append(base[:2:2], factory.InputRow{Category: "assets", Key: "capex", Year: 2027, Value: 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.NewInputFactory().FromRows(tt.rows)
			assert.Error(t, err)
		})
	}
}

func TestFromRows_YearsBounded(t *testing.T) {
	// GIVEN: A project/years row that is huge, negative or fractional
	// WHEN: Converting to UIInputs
	// THEN: A ValidationError is returned before any series is allocated

	for _, years := range []float64{1 << 40, engine.MaxHorizon + 1, -3, 0, 2.5} {
		rows := []factory.InputRow{
			{Category: "project", Key: "start_year", Value: 2025},
			{Category: "project", Key: "years", Value: years},
			{Category: "carbon", Key: "credits_generated", Year: 2025, Value: 100},
		}
		_, err := factory.NewInputFactory().FromRows(rows)
		require.Error(t, err, "years=%v", years)
		assert.True(t, engine.IsValidation(err), "years=%v: %v", years, err)
	}

	rows := []factory.InputRow{
		{Category: "project", Key: "start_year", Value: 2025},
		{Category: "project", Key: "years", Value: engine.MaxHorizon},
	}
	ui, err := factory.NewInputFactory().FromRows(rows)
	require.NoError(t, err)
	assert.Equal(t, engine.MaxHorizon, ui.Years)
}

func TestRows_RoundTrip(t *testing.T) {
	duration := 4
	ui := engine.UIInputs{
		StartYear:         2030,
		Years:             2,
		CreditsGenerated:  []float64{100, 200},
		IssuanceFlag:      []float64{0, 1},
		DebtDraw:          []float64{1000, 0},
		DebtDurationYears: &duration,
		InterestRatePct:   f64(7.5),
		OpeningCashY1:     f64(123.45),
	}

	fac := factory.NewInputFactory()
	rows := fac.ToRows(ui)
	back, err := fac.FromRows(rows)
	require.NoError(t, err)
	assert.Equal(t, ui, back)

	// sorted by category, key, year
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		assert.True(t, prev.Category < cur.Category ||
			(prev.Category == cur.Category && prev.Key < cur.Key) ||
			(prev.Category == cur.Category && prev.Key == cur.Key && prev.Year < cur.Year))
	}
}

func TestParseUIInputs_YAMLAndJSON(t *testing.T) {
	yamlDoc := []byte(`
start_year: 2025
years: 2
credits_generated: [1000, 2000]
price_per_credit: [10, 11]
purchase_share_pct: 25
`)
	jsonDoc := []byte(`{"start_year":2025,"years":2,"credits_generated":[1000,2000],"price_per_credit":[10,11],"purchase_share_pct":25}`)

	fac := factory.NewInputFactory()
	fromYAML, err := fac.ParseUIInputs(yamlDoc, factory.FormatYAML)
	require.NoError(t, err)
	fromJSON, err := fac.ParseUIInputs(jsonDoc, factory.FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, fromJSON, fromYAML)
	assert.Equal(t, []float64{1000, 2000}, fromYAML.CreditsGenerated)

	_, err = fac.ParseUIInputs([]byte("{"), factory.FormatJSON)
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, factory.FormatYAML, factory.FormatFromPath("scenario.yml"))
	assert.Equal(t, factory.FormatYAML, factory.FormatFromPath("dir/SCENARIO.YAML"))
	assert.Equal(t, factory.FormatJSON, factory.FormatFromPath("engine_inputs.json"))
}

func TestLoadEngineInputs_DetectsFixtureShape(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "testdata", "ghana", "engine_inputs.json"))
	require.NoError(t, err)

	fac := factory.NewInputFactory()
	in, err := fac.LoadEngineInputs(data, factory.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 10, in.Horizon)
	assert.Equal(t, "0.4", in.PurchaseShare.String())

	in, err = fac.LoadEngineInputs([]byte(`{"years":2,"purchase_share_pct":40}`), factory.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 2, in.Horizon)
	assert.Equal(t, "0.4", in.PurchaseShare.String())
}
