/*
carbon.go - Credit issuance and pre-purchase stream

ISSUANCE:
  Without an explicit schedule, issuance is all-or-nothing per flagged year:
  a flagged year releases every credit generated so far that has not been
  issued yet; an unflagged year releases nothing.

    generated [9000, 9000, 9000], flags [0, 1, 1] -> issued [0, 18000, 9000]

PRE-PURCHASE:
  Buyers pay in advance for a share of future credits. The implied price
  per credit is fixed once, in the first year with a nonzero purchase:

    implied_price = purchase[f] / (purchase_share * generated[f])

  and reused for every later purchase. Cash received is unearned revenue.
  As credits issue, purchase_share of them are delivered to buyers until
  the contracted volume is met, releasing unearned revenue at the implied
  price. The rest of the issued credits sell at the spot price.

  With a zero purchase share there is no contract: purchase amounts are
  disregarded and every pre-purchase line is zero.
*/
package engine

import "github.com/shopspring/decimal"

type carbonResult struct {
	stream             []CarbonYear
	spotRevenue        []decimal.Decimal
	prePurchaseRevenue []decimal.Decimal
}

// issuanceSchedule returns credits issued per year, explicit or derived.
func issuanceSchedule(in EngineInputs) []decimal.Decimal {
	if in.CreditsIssued != nil {
		out := make([]decimal.Decimal, in.Horizon)
		copy(out, in.CreditsIssued)
		return out
	}

	issued := zeros(in.Horizon)
	cumGen, cumIss := zero, zero
	for i := 0; i < in.Horizon; i++ {
		cumGen = cumGen.Add(in.CreditsGenerated[i])
		if in.IssuanceFlag[i].Equal(one) {
			issued[i] = cumGen.Sub(cumIss)
		}
		cumIss = cumIss.Add(issued[i])
	}
	return issued
}

// ImpliedPurchasePrice returns the locked pre-purchase price per credit and the
// year index it was fixed in. It returns (0, -1) when there is no pre-purchase.
func ImpliedPurchasePrice(in EngineInputs) (decimal.Decimal, int) {
	if !in.PurchaseShare.IsPositive() {
		return zero, -1
	}
	f := firstPurchaseYear(in)
	if f < 0 {
		return zero, -1
	}
	contracted := in.PurchaseShare.Mul(in.CreditsGenerated[f])
	if contracted.IsZero() {
		return zero, -1
	}
	return in.PurchaseAmount[f].Div(contracted), f
}

func buildCarbonStream(in EngineInputs) carbonResult {
	n := in.Horizon
	issued := issuanceSchedule(in)
	price, fixedAt := ImpliedPurchasePrice(in)
	active := fixedAt >= 0

	res := carbonResult{
		stream:             make([]CarbonYear, n),
		spotRevenue:        make([]decimal.Decimal, n),
		prePurchaseRevenue: make([]decimal.Decimal, n),
	}

	var (
		cumGen      = zero
		cumIss      = zero
		outstanding = zero // contracted credits not yet delivered
		unearned    = zero
	)

	for i := 0; i < n; i++ {
		cumGen = cumGen.Add(in.CreditsGenerated[i])
		cumIss = cumIss.Add(issued[i])

		purchase, contracted, delivered, released := zero, zero, zero, zero
		yearPrice := zero
		if active && i >= fixedAt {
			yearPrice = price
			purchase = in.PurchaseAmount[i]
			if purchase.IsPositive() {
				contracted = purchase.Div(price)
			}
			outstanding = outstanding.Add(contracted)
			if outstanding.IsPositive() {
				delivered = minDec(in.PurchaseShare.Mul(issued[i]), outstanding)
				outstanding = outstanding.Sub(delivered)
			}

			available := unearned.Add(purchase)
			if outstanding.IsZero() && delivered.IsPositive() {
				// contract fully delivered: release the remainder, not a rounded product
				released = available
			} else {
				released = minDec(cents(delivered.Mul(price)), available)
			}
		}

		spotCredits := issued[i].Sub(delivered)
		spot := cents(spotCredits.Mul(in.PricePerCredit[i]))

		start := unearned
		unearned = start.Add(purchase).Sub(released)

		res.spotRevenue[i] = spot
		res.prePurchaseRevenue[i] = released
		res.stream[i] = CarbonYear{
			Year:                      in.Year(i),
			CreditsGenerated:          in.CreditsGenerated[i],
			CreditsIssued:             issued[i],
			CumulativeGenerated:       cumGen,
			CumulativeIssued:          cumIss,
			PurchaseAmount:            purchase,
			ImpliedPurchasePrice:      yearPrice,
			PurchasedCredits:          contracted,
			PurchasedCreditsDelivered: delivered,
			SpotCredits:               spotCredits,
			UnearnedRevenueStart:      start,
			UnearnedRevenueAdded:      purchase,
			UnearnedRevenueReleased:   released,
			UnearnedRevenueEnd:        unearned,
		}
	}

	return res
}
