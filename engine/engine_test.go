package engine_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/carbon-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func loadGhana(t *testing.T) engine.EngineInputs {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "testdata", "ghana", "engine_inputs.json"))
	require.NoError(t, err)

	var in engine.EngineInputs
	require.NoError(t, json.Unmarshal(data, &in))
	return in
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func f(v float64) *float64 { return &v }

func decs(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = dec(v)
	}
	return out
}

// assertDecEqual compares decimals by value, so "1.50" equals "1.5".
func assertDecEqual(t *testing.T, want, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, want.Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func withinCent(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(engine.Cent)
}

func runStrict(t *testing.T, in engine.EngineInputs) *engine.Model {
	t.Helper()
	model, err := engine.Run(in, engine.WithPolicy(engine.PolicyStrict))
	require.NoError(t, err)
	return model
}

// =============================================================================
// ACCOUNTING IDENTITIES
// =============================================================================

func TestRun_Ghana_IdentitiesHold(t *testing.T) {
	// GIVEN: The Ghana cookstove fixture
	// WHEN: Running the engine in strict mode
	// THEN: Every identity holds to the cent, every year

	in := loadGhana(t)
	model := runStrict(t, in)

	require.Len(t, model.IncomeStatements, in.Horizon)
	require.Len(t, model.BalanceSheets, in.Horizon)
	require.Len(t, model.CashFlows, in.Horizon)
	assert.Empty(t, model.Violations)

	equity := in.InitialEquityT0
	cumGen, cumIss := decimal.Zero, decimal.Zero
	for i := 0; i < in.Horizon; i++ {
		bs := model.BalanceSheets[i]
		cf := model.CashFlows[i]
		is := model.IncomeStatements[i]

		// equity identity
		equity = equity.Add(in.EquityInjection[i]).Add(is.NetIncome)
		assert.True(t, withinCent(bs.TotalEquity.Sub(equity)), "equity identity year %d", bs.Year)

		// cash identity
		movement := cf.OperatingCashFlow.Add(cf.InvestingCashFlow).Add(cf.FinancingCashFlow)
		assert.True(t, withinCent(cf.CashEnd.Sub(cf.CashStart).Sub(movement)), "cash identity year %d", bs.Year)

		// balance sheet balances
		assert.True(t, withinCent(bs.TotalAssets.Sub(bs.TotalLiabilities).Sub(bs.TotalEquity)), "balance year %d", bs.Year)
		assert.True(t, withinCent(bs.BalanceCheck), "balance_check year %d", bs.Year)

		// continuity
		if i == 0 {
			assertDecEqual(t, in.OpeningCashY1, cf.CashStart)
		} else {
			assertDecEqual(t, model.CashFlows[i-1].CashEnd, cf.CashStart)
		}
		assertDecEqual(t, cf.CashEnd, bs.Cash)

		// issuance never exceeds generation
		cumGen = cumGen.Add(in.CreditsGenerated[i])
		cumIss = cumIss.Add(is.CreditsIssued)
		assert.True(t, cumIss.LessThanOrEqual(cumGen), "issuance year %d", bs.Year)
	}
}

func TestRun_Idempotent(t *testing.T) {
	// GIVEN: Identical inputs
	// WHEN: Running twice
	// THEN: Outputs are identical, including their JSON bytes

	in := loadGhana(t)
	first := runStrict(t, in)
	second := runStrict(t, in)

	if diff := cmp.Diff(first, second, decimalComparer); diff != "" {
		t.Fatalf("runs differ (-first +second):\n%s", diff)
	}

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRun_OpeningImbalance_ReportedNotCorrected(t *testing.T) {
	// GIVEN: Opening cash that does not match initial equity
	// WHEN: Running under both policies
	// THEN: warn returns the model with violations, strict returns an error

	in := loadGhana(t)
	in.OpeningCashY1 = in.OpeningCashY1.Sub(dec("500"))

	model, err := engine.Run(in)
	require.NoError(t, err)
	require.NotEmpty(t, model.Violations)
	assert.False(t, model.Balanced())
	assert.Equal(t, engine.CheckBalanceSheet, model.Violations[0].Check)
	assertDecEqual(t, dec("-500"), model.BalanceSheets[0].BalanceCheck)

	model, err = engine.Run(in, engine.WithPolicy(engine.PolicyStrict))
	require.Error(t, err)
	assert.True(t, engine.IsInvariant(err))
	var ierr *engine.InvariantError
	require.ErrorAs(t, err, &ierr)
	assert.NotEmpty(t, ierr.Violations)
	assert.NotNil(t, model, "strict runs still return the model for inspection")
}

// =============================================================================
// CARBON STREAM
// =============================================================================

func TestIssuance_ZeroIssuanceYearReleasesBacklog(t *testing.T) {
	// GIVEN: 9000 credits generated each year, issuance flags [0, 1, 1]
	// WHEN: Running the engine
	// THEN: Issued is [0, 18000, 9000]

	in, err := engine.Normalize(engine.UIInputs{
		StartYear:        2025,
		Years:            3,
		CreditsGenerated: []float64{9000, 9000, 9000},
		IssuanceFlag:     []float64{0, 1, 1},
		PricePerCredit:   []float64{10, 10, 10},
	})
	require.NoError(t, err)

	model := runStrict(t, in)

	want := []string{"0", "18000", "9000"}
	for i, w := range want {
		assertDecEqual(t, dec(w), model.CarbonStream[i].CreditsIssued, "year %d", i)
		assertDecEqual(t, dec(w), model.IncomeStatements[i].CreditsIssued, "year %d", i)
	}
	assertDecEqual(t, dec("180000"), model.IncomeStatements[1].SpotRevenue)
}

func TestIssuance_DefaultsToAnnual(t *testing.T) {
	in, err := engine.Normalize(engine.UIInputs{
		Years:            2,
		CreditsGenerated: []float64{100, 200},
	})
	require.NoError(t, err)

	model := runStrict(t, in)
	assertDecEqual(t, dec("100"), model.CarbonStream[0].CreditsIssued)
	assertDecEqual(t, dec("200"), model.CarbonStream[1].CreditsIssued)
}

func TestIssuance_ExplicitScheduleBeyondGenerationRejected(t *testing.T) {
	in, err := engine.Normalize(engine.UIInputs{
		Years:            2,
		CreditsGenerated: []float64{100, 100},
		CreditsIssued:    []float64{150, 50},
	})
	require.NoError(t, err)

	_, err = engine.Run(in)
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

func TestPrePurchase_PriceLockedAtFirstPurchaseYear(t *testing.T) {
	// GIVEN: Ghana fixture, purchases of 350000 in years 2 and 3, 40% share,
	//        8000 credits generated in year 2 and 9500 in year 3
	// WHEN: Running the engine
	// THEN: The implied price from year 2 is reused unchanged in year 3

	in := loadGhana(t)
	require.True(t, in.CreditsGenerated[2].Equal(dec("8000")))
	require.False(t, in.CreditsGenerated[3].Equal(in.CreditsGenerated[2]))

	model := runStrict(t, in)

	price, fixedAt := engine.ImpliedPurchasePrice(in)
	assert.Equal(t, 2, fixedAt)
	assertDecEqual(t, dec("109.375"), price)

	y2 := model.CarbonStream[2]
	y3 := model.CarbonStream[3]
	assertDecEqual(t, price, y2.ImpliedPurchasePrice)
	assertDecEqual(t, y2.ImpliedPurchasePrice, y3.ImpliedPurchasePrice)
	assertDecEqual(t, dec("3200"), y2.PurchasedCredits)
	assertDecEqual(t, dec("3200"), y3.PurchasedCredits)

	// no price before the contract exists
	assertDecEqual(t, decimal.Zero, model.CarbonStream[1].ImpliedPurchasePrice)
}

func TestPrePurchase_UnearnedRevenueRollForward(t *testing.T) {
	in := loadGhana(t)
	model := runStrict(t, in)

	for i, c := range model.CarbonStream {
		assertDecEqual(t, c.UnearnedRevenueStart.Add(c.UnearnedRevenueAdded).Sub(c.UnearnedRevenueReleased), c.UnearnedRevenueEnd, "year %d", i)
		assertDecEqual(t, c.UnearnedRevenueEnd, model.BalanceSheets[i].UnearnedRevenue, "year %d", i)
		assertDecEqual(t, c.UnearnedRevenueReleased, model.IncomeStatements[i].PrePurchaseRevenue, "year %d", i)
		assert.False(t, c.UnearnedRevenueEnd.IsNegative(), "year %d", i)
		if i > 0 {
			assertDecEqual(t, model.CarbonStream[i-1].UnearnedRevenueEnd, c.UnearnedRevenueStart, "year %d", i)
		}
	}

	// year 2 delivers the full 3200 credits contracted that year
	assertDecEqual(t, dec("3200"), model.CarbonStream[2].PurchasedCreditsDelivered)
	assertDecEqual(t, dec("350000"), model.IncomeStatements[2].PrePurchaseRevenue)
	assertDecEqual(t, dec("9800"), model.CarbonStream[2].SpotCredits)
}

func TestPrePurchase_ZeroShareIsIdenticallyZero(t *testing.T) {
	// GIVEN: Purchase amounts but a 0% purchase share
	// WHEN: Running the engine
	// THEN: Pre-purchase revenue and unearned revenue are zero every year

	in, err := engine.Normalize(engine.UIInputs{
		Years:            3,
		CreditsGenerated: []float64{1000, 1000, 1000},
		PricePerCredit:   []float64{10, 10, 10},
		PurchaseAmount:   []float64{5000, 5000, 0},
		PurchaseSharePct: f(0),
	})
	require.NoError(t, err)

	model := runStrict(t, in)
	for i := range model.Years {
		assert.True(t, model.IncomeStatements[i].PrePurchaseRevenue.IsZero())
		assert.True(t, model.BalanceSheets[i].UnearnedRevenue.IsZero())
		assert.True(t, model.CashFlows[i].PurchaseAmount.IsZero())
	}
}

// =============================================================================
// OPERATING STATEMENT
// =============================================================================

func TestIncomeStatement_LossYieldsZeroTax(t *testing.T) {
	in, err := engine.Normalize(engine.UIInputs{
		Years:            2,
		CreditsGenerated: []float64{1000, 1000},
		PricePerCredit:   []float64{10, 10},
		StaffCosts:       []float64{50000, 1000},
		IncomeTaxRatePct: f(25),
		COGSRatePct:      f(10),
	})
	require.NoError(t, err)

	model := runStrict(t, in)

	loss := model.IncomeStatements[0]
	assertDecEqual(t, dec("10000"), loss.TotalRevenue)
	assertDecEqual(t, dec("1000"), loss.COGS)
	assertDecEqual(t, dec("-41000"), loss.EarningsBeforeTax)
	assertDecEqual(t, decimal.Zero, loss.IncomeTax)
	assertDecEqual(t, dec("-41000"), loss.NetIncome)

	profit := model.IncomeStatements[1]
	assertDecEqual(t, dec("8000"), profit.EarningsBeforeTax)
	assertDecEqual(t, dec("2000"), profit.IncomeTax, "no loss carryforward")
	assertDecEqual(t, dec("6000"), profit.NetIncome)
}

func TestPPE_DepreciationCappedAtAvailable(t *testing.T) {
	// GIVEN: Depreciation larger than the asset base
	// WHEN: Running the engine
	// THEN: PPE floors at zero and the statements still balance

	in, err := engine.Normalize(engine.UIInputs{
		Years:           3,
		Capex:           []float64{1000, 0, 0},
		Depreciation:    []float64{600, 600, 600},
		InitialEquityT0: f(5000),
	})
	require.NoError(t, err)

	model := runStrict(t, in)
	assertDecEqual(t, dec("400"), model.BalanceSheets[0].PPENet)
	assertDecEqual(t, decimal.Zero, model.BalanceSheets[1].PPENet)
	assertDecEqual(t, dec("400"), model.IncomeStatements[1].Depreciation)
	assertDecEqual(t, decimal.Zero, model.IncomeStatements[2].Depreciation)
}

// =============================================================================
// DEBT SCHEDULE
// =============================================================================

func TestDebt_LevelPaymentAmortization(t *testing.T) {
	// GIVEN: 100000 drawn in year 0 at 10% over 5 years
	// WHEN: Running the engine
	// THEN: Repayment starts the year after the draw and clears in year 5

	in, err := engine.Normalize(engine.UIInputs{
		Years:             7,
		DebtDraw:          []float64{100000, 0, 0, 0, 0, 0, 0},
		InterestRatePct:   f(10),
		DebtDurationYears: intPtr(5),
	})
	require.NoError(t, err)

	model := runStrict(t, in)
	debt := model.DebtSchedule

	assertDecEqual(t, dec("26379.75"), engine.LevelPayment(dec("100000"), dec("0.10"), 5))

	// draw year: no interest, no repayment
	assertDecEqual(t, decimal.Zero, debt[0].BeginningBalance)
	assertDecEqual(t, decimal.Zero, debt[0].InterestExpense)
	assertDecEqual(t, decimal.Zero, debt[0].PrincipalPayment)
	assertDecEqual(t, dec("100000"), debt[0].EndingBalance)

	// first repayment year: interest on the opening balance
	assertDecEqual(t, dec("10000"), debt[1].InterestExpense)
	assertDecEqual(t, dec("16379.75"), debt[1].PrincipalPayment)
	assertDecEqual(t, dec("83620.25"), debt[1].EndingBalance)

	total := decimal.Zero
	for i, row := range debt {
		total = total.Add(row.PrincipalPayment)
		assertDecEqual(t, row.BeginningBalance.Add(row.Draw).Sub(row.PrincipalPayment), row.EndingBalance, "year %d", i)
		assert.False(t, row.EndingBalance.IsNegative())
	}
	assertDecEqual(t, dec("100000"), total)
	assertDecEqual(t, decimal.Zero, debt[5].EndingBalance)
	assertDecEqual(t, decimal.Zero, debt[6].DebtService)
}

func TestDebt_ZeroRateSplitsEvenly(t *testing.T) {
	assertDecEqual(t, dec("25000"), engine.LevelPayment(dec("100000"), decimal.Zero, 4))
	assertDecEqual(t, decimal.Zero, engine.LevelPayment(decimal.Zero, dec("0.05"), 4))
}

func TestDSCR_NoDebtServiceIsSentinel(t *testing.T) {
	// GIVEN: A year with zero principal and zero interest
	// WHEN: Computing DSCR
	// THEN: It is the N/A sentinel, not Infinity, NaN or a crash

	in, err := engine.Normalize(engine.UIInputs{
		Years:            2,
		CreditsGenerated: []float64{1000, 1000},
		PricePerCredit:   []float64{10, 10},
	})
	require.NoError(t, err)

	model := runStrict(t, in)
	for _, row := range model.DebtSchedule {
		assert.False(t, row.DSCR.Valid)
		assert.Equal(t, engine.NotAvailable, row.DSCR.String())
	}

	data, err := json.Marshal(model.DebtSchedule[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dscr":"N/A"`)
}

func TestDSCR_Ghana(t *testing.T) {
	model := runStrict(t, loadGhana(t))

	// draw year has no service
	assert.False(t, model.DebtSchedule[0].DSCR.Valid)
	// repayment years are covered by EBITDA
	row := model.DebtSchedule[1]
	require.True(t, row.DSCR.Valid)
	want := model.IncomeStatements[1].EBITDA.DivRound(row.DebtService, 4)
	assertDecEqual(t, want, row.DSCR.Value)
}

func intPtr(v int) *int { return &v }
