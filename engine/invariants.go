package engine

import "github.com/shopspring/decimal"

// Invariant check names.
const (
	CheckBalanceSheet   = "balance_sheet"
	CheckCashIdentity   = "cash_identity"
	CheckCashContinuity = "cash_continuity"
	CheckEquityIdentity = "equity_identity"
	CheckIssuance       = "issuance_within_generation"
)

// CheckInvariants verifies the accounting identities of a computed model,
// each to within one cent. A non-empty result means the engine is wrong.
func CheckInvariants(m *Model) []InvariantViolation {
	var out []InvariantViolation
	flag := func(check string, year int, delta decimal.Decimal) {
		if delta.Abs().GreaterThan(Cent) {
			out = append(out, InvariantViolation{Check: check, Year: year, Delta: delta.String()})
		}
	}

	in := m.Inputs
	equity := in.InitialEquityT0
	cumGen, cumIss := zero, zero

	for i := range m.BalanceSheets {
		bs := m.BalanceSheets[i]
		cf := m.CashFlows[i]
		is := m.IncomeStatements[i]
		year := bs.Year

		flag(CheckBalanceSheet, year, bs.TotalAssets.Sub(bs.TotalLiabilities).Sub(bs.TotalEquity))

		movement := cf.OperatingCashFlow.Add(cf.InvestingCashFlow).Add(cf.FinancingCashFlow)
		flag(CheckCashIdentity, year, cf.CashEnd.Sub(cf.CashStart).Sub(movement))

		expectedStart := in.OpeningCashY1
		if i > 0 {
			expectedStart = m.CashFlows[i-1].CashEnd
		}
		flag(CheckCashContinuity, year, cf.CashStart.Sub(expectedStart))
		flag(CheckCashContinuity, year, bs.Cash.Sub(cf.CashEnd))

		equity = equity.Add(in.EquityInjection[i]).Add(is.NetIncome)
		flag(CheckEquityIdentity, year, bs.TotalEquity.Sub(equity))

		cumGen = cumGen.Add(m.CarbonStream[i].CreditsGenerated)
		cumIss = cumIss.Add(m.CarbonStream[i].CreditsIssued)
		if cumIss.GreaterThan(cumGen) {
			out = append(out, InvariantViolation{Check: CheckIssuance, Year: year, Delta: cumIss.Sub(cumGen).String()})
		}
	}

	return out
}
