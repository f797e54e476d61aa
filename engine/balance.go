/*
balance.go - Balance sheet and working capital

WORKING CAPITAL:
  Balances are rate-driven, not transaction-driven:
    accounts_receivable = ar_rate * total_revenue
    accounts_payable    = ap_rate * (cogs + total_opex)
  Only the year-over-year changes feed the cash flow statement.

PPE:
  ppe[i] = ppe[i-1] + capex[i] - depreciation[i], never below zero. The
  depreciation charged is the input capped at the PPE available, so the
  floor cannot open a gap between the statements.

EQUITY:
  contributed = initial_equity_t0 + cumulative equity injections
  retained    = cumulative net income (no dividends)

CASH:
  Cash is not computed here. It is the cash_end of the reconciled cash
  flow statement (cashflow.go). balance_check is reported, never corrected.
*/
package engine

import "github.com/shopspring/decimal"

// ppeSchedule returns the depreciation actually charged and closing net PPE.
func ppeSchedule(in EngineInputs) (charged, ppe []decimal.Decimal) {
	charged = make([]decimal.Decimal, in.Horizon)
	ppe = make([]decimal.Decimal, in.Horizon)

	prev := in.InitialPPE
	for i := 0; i < in.Horizon; i++ {
		available := prev.Add(in.Capex[i])
		charged[i] = minDec(in.Depreciation[i], available)
		ppe[i] = maxDec(available.Sub(charged[i]), zero)
		prev = ppe[i]
	}
	return charged, ppe
}

type workingCapital struct {
	receivable decimal.Decimal
	payable    decimal.Decimal
}

func workingCapitalFor(in EngineInputs, is IncomeStatement) workingCapital {
	return workingCapital{
		receivable: cents(in.ARRate.Mul(is.TotalRevenue)),
		payable:    cents(in.APRate.Mul(is.COGS.Add(is.TotalOpex))),
	}
}

// balanceSheetFor closes the books for one year once cash is known.
func balanceSheetFor(year int, cash, ppe, unearned, debt, contributed, retained decimal.Decimal, wc workingCapital) BalanceSheet {
	assets := cash.Add(wc.receivable).Add(ppe)
	liabilities := wc.payable.Add(unearned).Add(debt)
	equity := contributed.Add(retained)
	le := liabilities.Add(equity)

	return BalanceSheet{
		Year:                      year,
		Cash:                      cash,
		AccountsReceivable:        wc.receivable,
		PPENet:                    ppe,
		TotalAssets:               assets,
		AccountsPayable:           wc.payable,
		UnearnedRevenue:           unearned,
		DebtBalance:               debt,
		TotalLiabilities:          liabilities,
		ContributedCapital:        contributed,
		RetainedEarnings:          retained,
		TotalEquity:               equity,
		TotalLiabilitiesAndEquity: le,
		BalanceCheck:              assets.Sub(le),
	}
}
