package engine_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/carbon-engine/engine"
)

func TestIRR_SinglePeriod(t *testing.T) {
	// GIVEN: 100 invested, 110 returned after one year
	// WHEN: Solving for IRR
	// THEN: The rate is 10%

	irr := engine.IRR(dec("100"), decs("110"))
	require.True(t, irr.Valid)
	assertDecEqual(t, dec("0.1"), irr.Value)
}

func TestIRR_NoSignChangeIsSentinel(t *testing.T) {
	irr := engine.IRR(dec("100"), decs("-10", "-10", "-10"))
	assert.False(t, irr.Valid)
	assert.Equal(t, engine.NotAvailable, irr.String())

	data, err := json.Marshal(irr)
	require.NoError(t, err)
	assert.JSONEq(t, `"N/A"`, string(data))
}

func TestIRR_AllZeroIsSentinel(t *testing.T) {
	// GIVEN: No investment and no flows
	// WHEN: Solving for IRR
	// THEN: There is no rate to report

	irr := engine.IRR(decimal.Zero, decs("0", "0", "0"))
	assert.False(t, irr.Valid)
	assert.Equal(t, engine.NotAvailable, irr.String())
}

func TestRun_EmptyProjectIRRIsSentinel(t *testing.T) {
	in, err := engine.Normalize(engine.UIInputs{StartYear: 2025, Years: 3})
	require.NoError(t, err)

	model, err := engine.Run(in, engine.WithPolicy(engine.PolicyStrict))
	require.NoError(t, err)
	assert.False(t, model.Returns.IRR.Valid)
}

func TestIRR_MultiPeriod(t *testing.T) {
	// 1000 now, 500 for three years: about 23.375%
	irr := engine.IRR(dec("1000"), decs("500", "500", "500"))
	require.True(t, irr.Valid)
	assert.InDelta(t, 0.233752, irr.Value.InexactFloat64(), 1e-5)

	npv := engine.NPV(irr.Value, dec("1000"), decs("500", "500", "500"))
	assert.True(t, npv.Abs().LessThanOrEqual(dec("0.05")), "npv at irr was %s", npv)
}

func TestNPV(t *testing.T) {
	assertDecEqual(t, decimal.Zero, engine.NPV(dec("0.1"), dec("100"), decs("110")))
	assertDecEqual(t, dec("20"), engine.NPV(decimal.Zero, dec("100"), decs("60", "60")))
	assertDecEqual(t, dec("-100"), engine.NPV(dec("0.1"), dec("100"), nil))
}

func TestPaybackPeriod(t *testing.T) {
	tests := []struct {
		name    string
		initial string
		flows   []string
		want    string
	}{
		{"interpolated", "100", []string{"40", "40", "40"}, "2.50"},
		{"exact year", "100", []string{"50", "50"}, "2.00"},
		{"never recovers", "100", []string{"10", "10"}, engine.BeyondHorizon},
		{"no outflow", "0", []string{"-5"}, "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.PaybackPeriod(dec(tt.initial), decs(tt.flows...))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestPayback_JSON(t *testing.T) {
	data, err := json.Marshal(engine.Payback{})
	require.NoError(t, err)
	assert.JSONEq(t, `"> horizon"`, string(data))

	var p engine.Payback
	require.NoError(t, json.Unmarshal([]byte(`2.5`), &p))
	assert.True(t, p.Within)
	assertDecEqual(t, dec("2.5"), p.Years)

	require.NoError(t, json.Unmarshal([]byte(`"> horizon"`), &p))
	assert.False(t, p.Within)
}

func TestRatio(t *testing.T) {
	r := engine.NewRatio(dec("150"), dec("100"))
	require.True(t, r.Valid)
	assert.Equal(t, "1.5000", r.String())

	assert.False(t, engine.NewRatio(dec("150"), decimal.Zero).Valid)

	parsed, err := engine.ParseRatio(engine.NotAvailable)
	require.NoError(t, err)
	assert.False(t, parsed.Valid)

	parsed, err = engine.ParseRatio("1.2500")
	require.NoError(t, err)
	assertDecEqual(t, dec("1.25"), parsed.Value)

	_, err = engine.ParseRatio("lots")
	assert.Error(t, err)
}

func TestReturns_Ghana(t *testing.T) {
	in := loadGhana(t)
	model := runStrict(t, in)
	r := model.Returns

	require.Len(t, r.FCFToEquity, in.Horizon)
	running := in.InitialEquityT0.Neg()
	for i, v := range r.FCFToEquity {
		running = running.Add(v)
		assertDecEqual(t, running, r.CumulativeFCFE[i], "year %d", i)
	}
	assertDecEqual(t, engine.NPV(in.DiscountRate, in.InitialEquityT0, r.FCFToEquity), r.NPV)

	// fcfe equals the change in cash net of new equity
	for i, cf := range model.CashFlows {
		want := cf.NetChangeCash.Sub(cf.EquityInjection)
		assertDecEqual(t, want, r.FCFToEquity[i], "year %d", i)
	}
}
