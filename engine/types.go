/*
Package engine provides the carbon project financial projection engine.

PURPOSE:
  Derives a consistent three-statement financial model (income statement,
  balance sheet, cash flow) plus the debt schedule, the carbon-credit
  issuance/pre-purchase stream and equity returns from a flat set of yearly
  inputs. The computation is a single deterministic pass over the project
  horizon: each year consumes its own inputs plus the state carried forward
  from the previous year.

KEY CONCEPTS IN THIS FILE (types.go):
  - EngineInputs: canonical inputs (fractions, absolute currency, decimal)
  - IncomeStatement / BalanceSheet / CashFlowStatement: one row per year
  - DebtYear / CarbonYear: supporting schedules
  - Returns: FCF to equity, NPV, IRR, payback
  - Model: everything the engine produces for one run

DESIGN PRINCIPLES:
  1. Precision: all money and credit quantities are decimal.Decimal
  2. Cents: money lines are rounded to cents exactly once, when produced,
     so every subtotal is an exact sum and the accounting identities hold
     to the cent
  3. Purity: no globals, no I/O, no randomness. Same inputs, same output.

USAGE:
  inputs, err := engine.Normalize(ui)
  if err != nil { ... }
  model, err := engine.Run(inputs)
  fmt.Println(model.Returns.NPV, model.Returns.IRR)

SEE ALSO:
  - normalize.go: UI values -> EngineInputs
  - engine.go: Run and the calculation pipeline
  - invariants.go: accounting identity checks
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

var (
	zero    = decimal.Zero
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Cent is the tolerance used by the invariant checks.
var Cent = decimal.New(1, -2)

// cents rounds a money amount to two decimal places.
func cents(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

func maxDec(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func minDec(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func zeros(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = zero
	}
	return out
}

// =============================================================================
// ENGINE INPUTS - Canonical units
// =============================================================================

// EngineInputs is the immutable input snapshot for one engine run.
// Rates are fractions (0.25 = 25%), currency is absolute.
// Every per-year array must have exactly Horizon entries.
type EngineInputs struct {
	StartYear int `json:"start_year"`
	Horizon   int `json:"horizon"`

	CreditsGenerated []decimal.Decimal `json:"credits_generated"`
	// CreditsIssued is an explicit issuance schedule. When nil, issuance is
	// derived from IssuanceFlag.
	CreditsIssued    []decimal.Decimal `json:"credits_issued,omitempty"`
	IssuanceFlag     []decimal.Decimal `json:"issuance_flag"`
	PricePerCredit   []decimal.Decimal `json:"price_per_credit"`
	FeasibilityCosts []decimal.Decimal `json:"feasibility_costs"`
	PDDCosts         []decimal.Decimal `json:"pdd_costs"`
	MRVCosts         []decimal.Decimal `json:"mrv_costs"`
	StaffCosts       []decimal.Decimal `json:"staff_costs"`
	Capex            []decimal.Decimal `json:"capex"`
	Depreciation     []decimal.Decimal `json:"depreciation"`
	EquityInjection  []decimal.Decimal `json:"equity_injection"`
	DebtDraw         []decimal.Decimal `json:"debt_draw"`
	PurchaseAmount   []decimal.Decimal `json:"purchase_amount"`

	InterestRate      decimal.Decimal `json:"interest_rate"`
	DebtDurationYears int             `json:"debt_duration_years"`
	PurchaseShare     decimal.Decimal `json:"purchase_share"`
	ARRate            decimal.Decimal `json:"ar_rate"`
	APRate            decimal.Decimal `json:"ap_rate"`
	COGSRate          decimal.Decimal `json:"cogs_rate"`
	IncomeTaxRate     decimal.Decimal `json:"income_tax_rate"`
	DiscountRate      decimal.Decimal `json:"discount_rate"`
	InitialEquityT0   decimal.Decimal `json:"initial_equity_t0"`
	OpeningCashY1     decimal.Decimal `json:"opening_cash_y1"`
	InitialPPE        decimal.Decimal `json:"initial_ppe"`
}

// Year returns the calendar year for a horizon offset.
func (in EngineInputs) Year(i int) int { return in.StartYear + i }

// yearlyFields lists every per-year array with its JSON name.
// CreditsIssued is optional and handled separately.
func (in *EngineInputs) yearlyFields() []namedSeries {
	return []namedSeries{
		{"credits_generated", &in.CreditsGenerated},
		{"issuance_flag", &in.IssuanceFlag},
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
}

type namedSeries struct {
	name   string
	values *[]decimal.Decimal
}

// =============================================================================
// STATEMENTS - One row per projection year
// =============================================================================

// IncomeStatement is the operating statement for one year.
type IncomeStatement struct {
	Year                 int             `json:"year"`
	CreditsGenerated     decimal.Decimal `json:"credits_generated"`
	CreditsIssued        decimal.Decimal `json:"credits_issued"`
	PricePerCredit       decimal.Decimal `json:"price_per_credit"`
	PurchasedCredits     decimal.Decimal `json:"purchased_credits"` // delivered against pre-purchase
	ImpliedPurchasePrice decimal.Decimal `json:"implied_purchase_price"`
	SpotRevenue          decimal.Decimal `json:"spot_revenue"`
	PrePurchaseRevenue   decimal.Decimal `json:"pre_purchase_revenue"`
	TotalRevenue         decimal.Decimal `json:"total_revenue"`
	COGS                 decimal.Decimal `json:"cogs"`
	GrossProfit          decimal.Decimal `json:"gross_profit"`
	FeasibilityCosts     decimal.Decimal `json:"feasibility_costs"`
	PDDCosts             decimal.Decimal `json:"pdd_costs"`
	MRVCosts             decimal.Decimal `json:"mrv_costs"`
	StaffCosts           decimal.Decimal `json:"staff_costs"`
	TotalOpex            decimal.Decimal `json:"total_opex"`
	EBITDA               decimal.Decimal `json:"ebitda"`
	Depreciation         decimal.Decimal `json:"depreciation"`
	EBIT                 decimal.Decimal `json:"ebit"`
	InterestExpense      decimal.Decimal `json:"interest_expense"`
	EarningsBeforeTax    decimal.Decimal `json:"earnings_before_tax"`
	IncomeTax            decimal.Decimal `json:"income_tax"`
	NetIncome            decimal.Decimal `json:"net_income"`
}

// BalanceSheet is the closing position for one year.
type BalanceSheet struct {
	Year                      int             `json:"year"`
	Cash                      decimal.Decimal `json:"cash"`
	AccountsReceivable        decimal.Decimal `json:"accounts_receivable"`
	PPENet                    decimal.Decimal `json:"ppe_net"`
	TotalAssets               decimal.Decimal `json:"total_assets"`
	AccountsPayable           decimal.Decimal `json:"accounts_payable"`
	UnearnedRevenue           decimal.Decimal `json:"unearned_revenue"`
	DebtBalance               decimal.Decimal `json:"debt_balance"`
	TotalLiabilities          decimal.Decimal `json:"total_liabilities"`
	ContributedCapital        decimal.Decimal `json:"contributed_capital"`
	RetainedEarnings          decimal.Decimal `json:"retained_earnings"`
	TotalEquity               decimal.Decimal `json:"total_equity"`
	TotalLiabilitiesAndEquity decimal.Decimal `json:"total_liabilities_and_equity"`
	BalanceCheck              decimal.Decimal `json:"balance_check"`
}

// CashFlowStatement reconciles the movement in cash for one year.
//
// The change in unearned revenue is split across two sections: cash received
// from pre-purchase buyers is financing (PurchaseAmount) and revenue released
// on delivery is an operating non-cash deduction (UnearnedRevenueReleased).
type CashFlowStatement struct {
	Year                     int             `json:"year"`
	NetIncome                decimal.Decimal `json:"net_income"`
	Depreciation             decimal.Decimal `json:"depreciation"`
	ChangeAccountsReceivable decimal.Decimal `json:"change_accounts_receivable"`
	ChangeAccountsPayable    decimal.Decimal `json:"change_accounts_payable"`
	UnearnedRevenueReleased  decimal.Decimal `json:"unearned_revenue_released"`
	OperatingCashFlow        decimal.Decimal `json:"operating_cash_flow"`
	Capex                    decimal.Decimal `json:"capex"`
	InvestingCashFlow        decimal.Decimal `json:"investing_cash_flow"`
	EquityInjection          decimal.Decimal `json:"equity_injection"`
	DebtDraw                 decimal.Decimal `json:"debt_draw"`
	DebtPrincipalPayment     decimal.Decimal `json:"debt_principal_payment"`
	PurchaseAmount           decimal.Decimal `json:"purchase_amount"`
	FinancingCashFlow        decimal.Decimal `json:"financing_cash_flow"`
	CashStart                decimal.Decimal `json:"cash_start"`
	NetChangeCash            decimal.Decimal `json:"net_change_cash"`
	CashEnd                  decimal.Decimal `json:"cash_end"`
}

// DebtYear is one row of the debt schedule (all tranches combined).
type DebtYear struct {
	Year             int             `json:"year"`
	BeginningBalance decimal.Decimal `json:"beginning_balance"`
	Draw             decimal.Decimal `json:"draw"`
	PrincipalPayment decimal.Decimal `json:"principal_payment"`
	EndingBalance    decimal.Decimal `json:"ending_balance"`
	InterestExpense  decimal.Decimal `json:"interest_expense"`
	DebtService      decimal.Decimal `json:"debt_service"`
	DSCR             Ratio           `json:"dscr"`
}

// CarbonYear is one row of the credit issuance and pre-purchase stream.
type CarbonYear struct {
	Year                      int             `json:"year"`
	CreditsGenerated          decimal.Decimal `json:"credits_generated"`
	CreditsIssued             decimal.Decimal `json:"credits_issued"`
	CumulativeGenerated       decimal.Decimal `json:"cumulative_generated"`
	CumulativeIssued          decimal.Decimal `json:"cumulative_issued"`
	PurchaseAmount            decimal.Decimal `json:"purchase_amount"`
	ImpliedPurchasePrice      decimal.Decimal `json:"implied_purchase_price"`
	PurchasedCredits          decimal.Decimal `json:"purchased_credits"` // contracted this year
	PurchasedCreditsDelivered decimal.Decimal `json:"purchased_credits_delivered"`
	SpotCredits               decimal.Decimal `json:"spot_credits"`
	UnearnedRevenueStart      decimal.Decimal `json:"unearned_revenue_start"`
	UnearnedRevenueAdded      decimal.Decimal `json:"unearned_revenue_added"`
	UnearnedRevenueReleased   decimal.Decimal `json:"unearned_revenue_released"`
	UnearnedRevenueEnd        decimal.Decimal `json:"unearned_revenue_end"`
}

// Returns summarizes equity returns over the horizon.
type Returns struct {
	DiscountRate   decimal.Decimal   `json:"discount_rate"`
	InitialEquity  decimal.Decimal   `json:"initial_equity"`
	FCFToEquity    []decimal.Decimal `json:"fcf_to_equity"`
	CumulativeFCFE []decimal.Decimal `json:"cumulative_fcfe"` // includes the t=0 outflow
	NPV            decimal.Decimal   `json:"npv"`
	IRR            Rate              `json:"irr"`
	PaybackPeriod  Payback           `json:"payback_period"`
}

// Model is the full output of one engine run.
type Model struct {
	Inputs           EngineInputs        `json:"inputs"`
	Years            []int               `json:"years"`
	IncomeStatements []IncomeStatement   `json:"income_statement"`
	BalanceSheets    []BalanceSheet      `json:"balance_sheet"`
	CashFlows        []CashFlowStatement `json:"cash_flow"`
	DebtSchedule     []DebtYear          `json:"debt_schedule"`
	CarbonStream     []CarbonYear        `json:"carbon_stream"`
	Returns          Returns             `json:"returns"`

	// Violations holds invariant failures found after the run. Empty for a
	// correct model.
	Violations []InvariantViolation `json:"violations,omitempty"`
}

// Balanced reports whether the model passed every invariant check.
func (m *Model) Balanced() bool { return len(m.Violations) == 0 }
