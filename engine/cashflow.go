/*
cashflow.go - Cash flow reconciliation

  operating = net_income + depreciation - dAR + dAP - unearned_released
  investing = -capex
  financing = equity_injection + debt_draw - principal + purchase_amount

  cash_end[i]     = cash_start[i] + operating + investing + financing
  cash_start[0]   = opening_cash_y1
  cash_start[i+1] = cash_end[i]

The change in unearned revenue appears once: the cash received from buyers
under financing, the release on delivery under operating.

This is a fold over the years. The balance sheet for year i is produced in
the same step, because its cash is this step's cash_end.
*/
package engine

import "github.com/shopspring/decimal"

func reconcile(
	in EngineInputs,
	income []IncomeStatement,
	carbon carbonResult,
	debt []DebtYear,
	ppe []decimal.Decimal,
) ([]CashFlowStatement, []BalanceSheet) {
	flows := make([]CashFlowStatement, in.Horizon)
	sheets := make([]BalanceSheet, in.Horizon)

	var (
		cash        = in.OpeningCashY1
		prevWC      = workingCapital{receivable: zero, payable: zero}
		contributed = in.InitialEquityT0
		retained    = zero
	)

	for i := 0; i < in.Horizon; i++ {
		is := income[i]
		wc := workingCapitalFor(in, is)
		stream := carbon.stream[i]

		dAR := wc.receivable.Sub(prevWC.receivable)
		dAP := wc.payable.Sub(prevWC.payable)
		released := stream.UnearnedRevenueReleased

		operating := is.NetIncome.
			Add(is.Depreciation).
			Sub(dAR).
			Add(dAP).
			Sub(released)
		investing := in.Capex[i].Neg()
		financing := in.EquityInjection[i].
			Add(debt[i].Draw).
			Sub(debt[i].PrincipalPayment).
			Add(stream.PurchaseAmount)

		start := cash
		net := operating.Add(investing).Add(financing)
		cash = start.Add(net)

		flows[i] = CashFlowStatement{
			Year:                     in.Year(i),
			NetIncome:                is.NetIncome,
			Depreciation:             is.Depreciation,
			ChangeAccountsReceivable: dAR,
			ChangeAccountsPayable:    dAP,
			UnearnedRevenueReleased:  released,
			OperatingCashFlow:        operating,
			Capex:                    in.Capex[i],
			InvestingCashFlow:        investing,
			EquityInjection:          in.EquityInjection[i],
			DebtDraw:                 debt[i].Draw,
			DebtPrincipalPayment:     debt[i].PrincipalPayment,
			PurchaseAmount:           stream.PurchaseAmount,
			FinancingCashFlow:        financing,
			CashStart:                start,
			NetChangeCash:            net,
			CashEnd:                  cash,
		}

		contributed = contributed.Add(in.EquityInjection[i])
		retained = retained.Add(is.NetIncome)
		sheets[i] = balanceSheetFor(in.Year(i), cash, ppe[i], stream.UnearnedRevenueEnd, debt[i].EndingBalance, contributed, retained, wc)

		prevWC = wc
	}

	return flows, sheets
}
