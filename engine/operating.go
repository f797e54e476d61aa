package engine

import "github.com/shopspring/decimal"

// buildIncomeStatements assembles the operating statement for every year.
//
// COGS is a rate on revenue, not cost-based. Tax is only charged on positive
// pre-tax income: losses yield zero tax, never a tax benefit, and there is
// no loss carryforward.
func buildIncomeStatements(in EngineInputs, carbon carbonResult, debt []DebtYear, depreciation []decimal.Decimal) []IncomeStatement {
	out := make([]IncomeStatement, in.Horizon)

	for i := 0; i < in.Horizon; i++ {
		c := carbon.stream[i]
		spot := carbon.spotRevenue[i]
		pre := carbon.prePurchaseRevenue[i]
		revenue := spot.Add(pre)
		cogs := cents(in.COGSRate.Mul(revenue))
		gross := revenue.Sub(cogs)

		opex := in.FeasibilityCosts[i].
			Add(in.PDDCosts[i]).
			Add(in.MRVCosts[i]).
			Add(in.StaffCosts[i])
		ebitda := gross.Sub(opex)
		ebit := ebitda.Sub(depreciation[i])
		interest := debt[i].InterestExpense
		ebt := ebit.Sub(interest)
		tax := cents(maxDec(ebt, zero).Mul(in.IncomeTaxRate))

		out[i] = IncomeStatement{
			Year:                 in.Year(i),
			CreditsGenerated:     c.CreditsGenerated,
			CreditsIssued:        c.CreditsIssued,
			PricePerCredit:       in.PricePerCredit[i],
			PurchasedCredits:     c.PurchasedCreditsDelivered,
			ImpliedPurchasePrice: c.ImpliedPurchasePrice,
			SpotRevenue:          spot,
			PrePurchaseRevenue:   pre,
			TotalRevenue:         revenue,
			COGS:                 cogs,
			GrossProfit:          gross,
			FeasibilityCosts:     in.FeasibilityCosts[i],
			PDDCosts:             in.PDDCosts[i],
			MRVCosts:             in.MRVCosts[i],
			StaffCosts:           in.StaffCosts[i],
			TotalOpex:            opex,
			EBITDA:               ebitda,
			Depreciation:         depreciation[i],
			EBIT:                 ebit,
			InterestExpense:      interest,
			EarningsBeforeTax:    ebt,
			IncomeTax:            tax,
			NetIncome:            ebt.Sub(tax),
		}
	}

	return out
}
