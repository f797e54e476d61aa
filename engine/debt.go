/*
debt.go - Debt schedule

Each draw is its own tranche, amortized with a level (annuity) payment over
DebtDurationYears starting the year after the draw. Within a year:

  interest   = opening balance * rate      (simple, on the opening balance)
  principal  = level payment - tranche interest  (PPMT)
  ending     = opening + draw - principal  (never below zero)

The final period of a tranche repays whatever balance is left, absorbing
rounding. DSCR is filled in once EBITDA is known (see engine.go).
*/
package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

type tranche struct {
	drawnAt int
	balance decimal.Decimal
	payment decimal.Decimal
}

// LevelPayment is the constant annual payment that amortizes principal over
// periods years at rate, rounded to cents.
func LevelPayment(principal, rate decimal.Decimal, periods int) decimal.Decimal {
	if periods <= 0 || !principal.IsPositive() {
		return zero
	}
	if rate.IsZero() {
		return principal.DivRound(decimal.NewFromInt(int64(periods)), 2)
	}
	// float64 for the power, decimal for the money
	r := rate.InexactFloat64()
	factor := math.Pow(1+r, float64(periods))
	payment := principal.InexactFloat64() * r * factor / (factor - 1)
	return cents(decimal.NewFromFloat(payment))
}

func buildDebtSchedule(in EngineInputs) []DebtYear {
	rows := make([]DebtYear, in.Horizon)
	var tranches []*tranche
	balance := zero

	for i := 0; i < in.Horizon; i++ {
		begin := balance
		interest := cents(begin.Mul(in.InterestRate))

		principal := zero
		for _, t := range tranches {
			if !t.balance.IsPositive() {
				continue
			}
			period := i - t.drawnAt
			p := t.payment.Sub(cents(t.balance.Mul(in.InterestRate)))
			if period >= in.DebtDurationYears || p.GreaterThan(t.balance) {
				p = t.balance
			}
			p = maxDec(p, zero)
			t.balance = t.balance.Sub(p)
			principal = principal.Add(p)
		}

		draw := in.DebtDraw[i]
		if draw.IsPositive() {
			tranches = append(tranches, &tranche{
				drawnAt: i,
				balance: draw,
				payment: LevelPayment(draw, in.InterestRate, in.DebtDurationYears),
			})
		}

		balance = maxDec(begin.Add(draw).Sub(principal), zero)

		rows[i] = DebtYear{
			Year:             in.Year(i),
			BeginningBalance: begin,
			Draw:             draw,
			PrincipalPayment: principal,
			EndingBalance:    balance,
			InterestExpense:  interest,
			DebtService:      principal.Add(interest),
		}
	}

	return rows
}
