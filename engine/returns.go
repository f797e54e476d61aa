/*
returns.go - Equity returns

  fcfe[i] = net_income + depreciation - d(working capital) - capex
            + (debt_draw - principal)
  working capital = receivables - payables - unearned revenue

  NPV     = -initial_equity_t0 + sum fcfe[i] / (1 + discount)^(i+1)
  IRR     = rate where that NPV is zero, solved by bracketing + bisection
  Payback = first point where cumulative cash (starting at -initial_equity_t0)
            is non-negative, interpolated within the year

IRR reports the non-convergent sentinel when no sign change exists between
-99% and 1000%. Payback reports "> horizon" when cash never recovers.
*/
package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	irrLow       = -0.99
	irrHigh      = 10.0
	irrScanStep  = 0.01
	irrMaxIter   = 200
	irrTolerance = 1e-10
)

func buildReturns(in EngineInputs, flows []CashFlowStatement) Returns {
	fcfe := make([]decimal.Decimal, in.Horizon)
	cumulative := make([]decimal.Decimal, in.Horizon)

	running := in.InitialEquityT0.Neg()
	for i, cf := range flows {
		// equals the change in cash before new equity
		dWC := cf.ChangeAccountsReceivable.
			Sub(cf.ChangeAccountsPayable).
			Sub(cf.PurchaseAmount.Sub(cf.UnearnedRevenueReleased))
		fcfe[i] = cf.NetIncome.
			Add(cf.Depreciation).
			Sub(dWC).
			Sub(cf.Capex).
			Add(cf.DebtDraw.Sub(cf.DebtPrincipalPayment))
		running = running.Add(fcfe[i])
		cumulative[i] = running
	}

	return Returns{
		DiscountRate:   in.DiscountRate,
		InitialEquity:  in.InitialEquityT0,
		FCFToEquity:    fcfe,
		CumulativeFCFE: cumulative,
		NPV:            NPV(in.DiscountRate, in.InitialEquityT0, fcfe),
		IRR:            IRR(in.InitialEquityT0, fcfe),
		PaybackPeriod:  PaybackPeriod(in.InitialEquityT0, fcfe),
	}
}

// NPV discounts yearly flows at rate, year i at period i+1, after an initial
// outflow at t=0. Rounded to cents.
func NPV(rate, initial decimal.Decimal, flows []decimal.Decimal) decimal.Decimal {
	base := one.Add(rate)
	factor := one
	total := initial.Neg()
	for _, f := range flows {
		factor = factor.Mul(base)
		total = total.Add(f.DivRound(factor, 10))
	}
	return cents(total)
}

// IRR solves for the rate that zeroes the NPV of [-initial, flows...].
func IRR(initial decimal.Decimal, flows []decimal.Decimal) Rate {
	cf := make([]float64, 0, len(flows)+1)
	cf = append(cf, -initial.InexactFloat64())
	for _, f := range flows {
		cf = append(cf, f.InexactFloat64())
	}

	rate, ok := solveIRR(cf)
	if !ok {
		return Rate{}
	}
	return Rate{Value: decimal.NewFromFloat(rate).Round(6), Valid: true}
}

func allZero(cf []float64) bool {
	for _, v := range cf {
		if v != 0 {
			return false
		}
	}
	return true
}

func npvAt(rate float64, cf []float64) float64 {
	sum := 0.0
	for t, v := range cf {
		sum += v / math.Pow(1+rate, float64(t))
	}
	return sum
}

// solveIRR scans [irrLow, irrHigh] for the first sign change, then bisects.
// A series of all zeros, or one whose NPV vanishes at the lower bound, has no
// meaningful rate.
func solveIRR(cf []float64) (float64, bool) {
	if allZero(cf) {
		return 0, false
	}
	lo := irrLow
	npvLo := npvAt(lo, cf)
	if npvLo == 0 {
		return 0, false
	}

	hi := math.NaN()
	for r := lo + irrScanStep; r <= irrHigh+irrScanStep/2; r += irrScanStep {
		v := npvAt(r, cf)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		if v == 0 {
			return r, true
		}
		if (v > 0) != (npvLo > 0) {
			hi = r
			break
		}
		lo, npvLo = r, v
	}
	if math.IsNaN(hi) {
		return 0, false
	}

	for iter := 0; iter < irrMaxIter; iter++ {
		mid := (lo + hi) / 2
		v := npvAt(mid, cf)
		if math.Abs(v) < irrTolerance || (hi-lo)/2 < irrTolerance {
			return mid, true
		}
		if (v > 0) == (npvLo > 0) {
			lo, npvLo = mid, v
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2, true
}

// PaybackPeriod returns years until cumulative cash, starting from the
// initial outflow, turns non-negative.
func PaybackPeriod(initial decimal.Decimal, flows []decimal.Decimal) Payback {
	prev := initial.Neg()
	if !prev.IsNegative() {
		return Payback{Years: zero, Within: true}
	}
	for i, f := range flows {
		cur := prev.Add(f)
		if !cur.IsNegative() {
			fraction := prev.Neg().DivRound(f, 4)
			return Payback{Years: decimal.NewFromInt(int64(i)).Add(fraction), Within: true}
		}
		prev = cur
	}
	return Payback{}
}
