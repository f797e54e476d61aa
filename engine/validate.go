package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxHorizon bounds the projection length.
const MaxHorizon = 100

// Validate checks EngineInputs before a run. It returns the first problem
// found as a *ValidationError.
func (in EngineInputs) Validate() error {
	if in.Horizon < 1 || in.Horizon > MaxHorizon {
		return &ValidationError{Field: "horizon", Message: fmt.Sprintf("must be between 1 and %d", MaxHorizon)}
	}

	for _, s := range in.yearlyFields() {
		if len(*s.values) != in.Horizon {
			return LengthMismatch(s.name, in.Horizon, len(*s.values))
		}
	}
	if in.CreditsIssued != nil && len(in.CreditsIssued) != in.Horizon {
		return LengthMismatch("credits_issued", in.Horizon, len(in.CreditsIssued))
	}

	for i, f := range in.IssuanceFlag {
		if !f.IsZero() && !f.Equal(one) {
			return &ValidationError{Field: "issuance_flag", Message: fmt.Sprintf("year %d: flag must be 0 or 1, got %s", in.Year(i), f)}
		}
	}

	nonNegative := []namedSeries{
		{"credits_generated", &in.CreditsGenerated},
		{"price_per_credit", &in.PricePerCredit},
		{"feasibility_costs", &in.FeasibilityCosts},
		{"pdd_costs", &in.PDDCosts},
		{"mrv_costs", &in.MRVCosts},
		{"staff_costs", &in.StaffCosts},
		{"capex", &in.Capex},
		{"depreciation", &in.Depreciation},
		{"equity_injection", &in.EquityInjection},
		{"debt_draw", &in.DebtDraw},
		{"purchase_amount", &in.PurchaseAmount},
	}
	if in.CreditsIssued != nil {
		nonNegative = append(nonNegative, namedSeries{"credits_issued", &in.CreditsIssued})
	}
	for _, s := range nonNegative {
		for i, v := range *s.values {
			if v.IsNegative() {
				return &ValidationError{Field: s.name, Message: fmt.Sprintf("year %d: must not be negative, got %s", in.Year(i), v)}
			}
		}
	}

	fractions := []struct {
		name  string
		value decimal.Decimal
	}{
		{"purchase_share", in.PurchaseShare},
		{"ar_rate", in.ARRate},
		{"ap_rate", in.APRate},
		{"cogs_rate", in.COGSRate},
		{"income_tax_rate", in.IncomeTaxRate},
	}
	for _, f := range fractions {
		if f.value.IsNegative() || f.value.GreaterThan(one) {
			return &ValidationError{Field: f.name, Message: fmt.Sprintf("must be a fraction between 0 and 1, got %s", f.value)}
		}
	}
	if in.InterestRate.IsNegative() {
		return &ValidationError{Field: "interest_rate", Message: "must not be negative"}
	}
	if in.DiscountRate.LessThanOrEqual(one.Neg()) {
		return &ValidationError{Field: "discount_rate", Message: "must be greater than -1"}
	}
	if in.InitialPPE.IsNegative() {
		return &ValidationError{Field: "initial_ppe", Message: "must not be negative"}
	}
	if in.DebtDurationYears < 0 {
		return &ValidationError{Field: "debt_duration_years", Message: "must not be negative"}
	}
	for _, d := range in.DebtDraw {
		if d.IsPositive() && in.DebtDurationYears == 0 {
			return &ValidationError{Field: "debt_duration_years", Message: "required when debt is drawn"}
		}
	}

	if in.CreditsIssued != nil {
		cumGen, cumIss := zero, zero
		for i := range in.CreditsIssued {
			cumGen = cumGen.Add(in.CreditsGenerated[i])
			cumIss = cumIss.Add(in.CreditsIssued[i])
			if cumIss.GreaterThan(cumGen) {
				return &ValidationError{Field: "credits_issued", Message: fmt.Sprintf("year %d: cumulative issuance %s exceeds cumulative generation %s", in.Year(i), cumIss, cumGen)}
			}
		}
	}

	if f := firstPurchaseYear(in); f >= 0 && in.PurchaseShare.IsPositive() && in.CreditsGenerated[f].IsZero() {
		return &ValidationError{Field: "purchase_amount", Message: fmt.Sprintf("year %d: pre-purchase in a year with no generated credits cannot price the contract", in.Year(f))}
	}

	return nil
}

// firstPurchaseYear returns the index of the first nonzero purchase amount, or -1.
func firstPurchaseYear(in EngineInputs) int {
	for i, p := range in.PurchaseAmount {
		if !p.IsZero() {
			return i
		}
	}
	return -1
}
