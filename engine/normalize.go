package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// UI INPUTS - Values as typed in the project forms
// =============================================================================

// UIInputs holds inputs the way the forms capture them: rates as 0-100
// percentages, optional fields left nil. Normalize turns it into EngineInputs.
type UIInputs struct {
	StartYear int `json:"start_year" yaml:"start_year"`
	Years     int `json:"years" yaml:"years"`

	CreditsGenerated []float64 `json:"credits_generated,omitempty" yaml:"credits_generated,omitempty"`
	CreditsIssued    []float64 `json:"credits_issued,omitempty" yaml:"credits_issued,omitempty"`
	IssuanceFlag     []float64 `json:"issuance_flag,omitempty" yaml:"issuance_flag,omitempty"`
	PricePerCredit   []float64 `json:"price_per_credit,omitempty" yaml:"price_per_credit,omitempty"`
	FeasibilityCosts []float64 `json:"feasibility_costs,omitempty" yaml:"feasibility_costs,omitempty"`
	PDDCosts         []float64 `json:"pdd_costs,omitempty" yaml:"pdd_costs,omitempty"`
	MRVCosts         []float64 `json:"mrv_costs,omitempty" yaml:"mrv_costs,omitempty"`
	StaffCosts       []float64 `json:"staff_costs,omitempty" yaml:"staff_costs,omitempty"`
	Capex            []float64 `json:"capex,omitempty" yaml:"capex,omitempty"`
	Depreciation     []float64 `json:"depreciation,omitempty" yaml:"depreciation,omitempty"`
	EquityInjection  []float64 `json:"equity_injection,omitempty" yaml:"equity_injection,omitempty"`
	DebtDraw         []float64 `json:"debt_draw,omitempty" yaml:"debt_draw,omitempty"`
	PurchaseAmount   []float64 `json:"purchase_amount,omitempty" yaml:"purchase_amount,omitempty"`

	InterestRatePct   *float64 `json:"interest_rate_pct,omitempty" yaml:"interest_rate_pct,omitempty"`
	DebtDurationYears *int     `json:"debt_duration_years,omitempty" yaml:"debt_duration_years,omitempty"`
	PurchaseSharePct  *float64 `json:"purchase_share_pct,omitempty" yaml:"purchase_share_pct,omitempty"`
	ARRatePct         *float64 `json:"ar_rate_pct,omitempty" yaml:"ar_rate_pct,omitempty"`
	APRatePct         *float64 `json:"ap_rate_pct,omitempty" yaml:"ap_rate_pct,omitempty"`
	COGSRatePct       *float64 `json:"cogs_rate_pct,omitempty" yaml:"cogs_rate_pct,omitempty"`
	IncomeTaxRatePct  *float64 `json:"income_tax_rate_pct,omitempty" yaml:"income_tax_rate_pct,omitempty"`
	DiscountRatePct   *float64 `json:"discount_rate_pct,omitempty" yaml:"discount_rate_pct,omitempty"`
	InitialEquityT0   *float64 `json:"initial_equity_t0,omitempty" yaml:"initial_equity_t0,omitempty"`
	OpeningCashY1     *float64 `json:"opening_cash_y1,omitempty" yaml:"opening_cash_y1,omitempty"`
	InitialPPE        *float64 `json:"initial_ppe,omitempty" yaml:"initial_ppe,omitempty"`
}

// Normalize converts UI values into canonical EngineInputs.
//
//   - percentages become fractions (25 -> 0.25)
//   - nil arrays become zero-filled arrays of the horizon
//   - an array of the wrong length is a ValidationError, never truncated
//   - with neither an issuance schedule nor flags, credits issue every year
//   - a nil opening cash is derived so the opening balance sheet balances
//
// The horizon is Years, or the length of CreditsGenerated when Years is 0.
func Normalize(ui UIInputs) (EngineInputs, error) {
	horizon := ui.Years
	if horizon == 0 {
		horizon = len(ui.CreditsGenerated)
	}
	if horizon <= 0 {
		return EngineInputs{}, &ValidationError{Field: "years", Message: "model horizon must be at least one year"}
	}

	in := EngineInputs{
		StartYear: ui.StartYear,
		Horizon:   horizon,
	}

	series := []struct {
		name string
		src  []float64
		dst  *[]decimal.Decimal
	}{
		{"credits_generated", ui.CreditsGenerated, &in.CreditsGenerated},
		{"issuance_flag", ui.IssuanceFlag, &in.IssuanceFlag},
		{"price_per_credit", ui.PricePerCredit, &in.PricePerCredit},
		{"feasibility_costs", ui.FeasibilityCosts, &in.FeasibilityCosts},
		{"pdd_costs", ui.PDDCosts, &in.PDDCosts},
		{"mrv_costs", ui.MRVCosts, &in.MRVCosts},
		{"staff_costs", ui.StaffCosts, &in.StaffCosts},
		{"capex", ui.Capex, &in.Capex},
		{"depreciation", ui.Depreciation, &in.Depreciation},
		{"equity_injection", ui.EquityInjection, &in.EquityInjection},
		{"debt_draw", ui.DebtDraw, &in.DebtDraw},
		{"purchase_amount", ui.PurchaseAmount, &in.PurchaseAmount},
	}
	for _, s := range series {
		values, err := yearly(s.name, s.src, horizon)
		if err != nil {
			return EngineInputs{}, err
		}
		*s.dst = values
	}

	if ui.CreditsIssued != nil {
		issued, err := yearly("credits_issued", ui.CreditsIssued, horizon)
		if err != nil {
			return EngineInputs{}, err
		}
		in.CreditsIssued = issued
	} else if ui.IssuanceFlag == nil {
		for i := range in.IssuanceFlag {
			in.IssuanceFlag[i] = one
		}
	}

	in.InterestRate = percent(ui.InterestRatePct)
	in.PurchaseShare = percent(ui.PurchaseSharePct)
	in.ARRate = percent(ui.ARRatePct)
	in.APRate = percent(ui.APRatePct)
	in.COGSRate = percent(ui.COGSRatePct)
	in.IncomeTaxRate = percent(ui.IncomeTaxRatePct)
	in.DiscountRate = percent(ui.DiscountRatePct)
	if ui.DebtDurationYears != nil {
		in.DebtDurationYears = *ui.DebtDurationYears
	}

	in.InitialEquityT0 = amount(ui.InitialEquityT0)
	in.InitialPPE = amount(ui.InitialPPE)
	if ui.OpeningCashY1 != nil {
		in.OpeningCashY1 = amount(ui.OpeningCashY1)
	} else {
		in.OpeningCashY1 = in.InitialEquityT0.Sub(in.InitialPPE)
	}

	return in, nil
}

func yearly(name string, src []float64, horizon int) ([]decimal.Decimal, error) {
	if src == nil {
		return zeros(horizon), nil
	}
	if len(src) != horizon {
		return nil, LengthMismatch(name, horizon, len(src))
	}
	out := make([]decimal.Decimal, horizon)
	for i, v := range src {
		out[i] = decimal.NewFromFloat(v)
	}
	return out, nil
}

func percent(p *float64) decimal.Decimal {
	if p == nil {
		return zero
	}
	return decimal.NewFromFloat(*p).Div(hundred)
}

func amount(v *float64) decimal.Decimal {
	if v == nil {
		return zero
	}
	return cents(decimal.NewFromFloat(*v))
}

// Percentages converts canonical fractions back to UI percentages. Used when
// a fixture in engine units needs to be edited in the forms.
func Percentages(in EngineInputs) UIInputs {
	pct := func(d decimal.Decimal) *float64 {
		f := d.Mul(hundred).InexactFloat64()
		return &f
	}
	amt := func(d decimal.Decimal) *float64 {
		f := d.InexactFloat64()
		return &f
	}
	floats := func(ds []decimal.Decimal) []float64 {
		if ds == nil {
			return nil
		}
		out := make([]float64, len(ds))
		for i, d := range ds {
			out[i] = d.InexactFloat64()
		}
		return out
	}
	duration := in.DebtDurationYears

	return UIInputs{
		StartYear:         in.StartYear,
		Years:             in.Horizon,
		CreditsGenerated:  floats(in.CreditsGenerated),
		CreditsIssued:     floats(in.CreditsIssued),
		IssuanceFlag:      floats(in.IssuanceFlag),
		PricePerCredit:    floats(in.PricePerCredit),
		FeasibilityCosts:  floats(in.FeasibilityCosts),
		PDDCosts:          floats(in.PDDCosts),
		MRVCosts:          floats(in.MRVCosts),
		StaffCosts:        floats(in.StaffCosts),
		Capex:             floats(in.Capex),
		Depreciation:      floats(in.Depreciation),
		EquityInjection:   floats(in.EquityInjection),
		DebtDraw:          floats(in.DebtDraw),
		PurchaseAmount:    floats(in.PurchaseAmount),
		InterestRatePct:   pct(in.InterestRate),
		DebtDurationYears: &duration,
		PurchaseSharePct:  pct(in.PurchaseShare),
		ARRatePct:         pct(in.ARRate),
		APRatePct:         pct(in.APRate),
		COGSRatePct:       pct(in.COGSRate),
		IncomeTaxRatePct:  pct(in.IncomeTaxRate),
		DiscountRatePct:   pct(in.DiscountRate),
		InitialEquityT0:   amt(in.InitialEquityT0),
		OpeningCashY1:     amt(in.OpeningCashY1),
		InitialPPE:        amt(in.InitialPPE),
	}
}
