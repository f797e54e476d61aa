/*
Package sweep runs sensitivity analyses over one base project.

PURPOSE:
  A sweep answers "what happens to NPV if the carbon price is 20% lower?"
  for many variations at once. Each variation is an independent engine run
  on a modified copy of the base inputs, so runs execute concurrently.

KEY CONCEPTS:
  Variation: one parameter scaled by a multiplier (price x 0.8)
  Result:    the returns of the varied run, or why it could not run

USAGE:
  results, err := sweep.Run(ctx, base, sweep.Standard(), 4)

  for _, r := range results {
      fmt.Println(r.Variation.Label(), r.NPV, r.IRR)
  }

CONCURRENCY:
  Runs are bounded by limit using an errgroup. Results keep the order of
  the variations regardless of completion order. A variation the engine
  rejects is reported in its Result. Only cancellation fails the sweep.
*/
package sweep

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/carbon-engine/engine"
	"golang.org/x/sync/errgroup"
)

// DefaultLimit bounds concurrent runs when the caller passes limit <= 0.
const DefaultLimit = 4

// =============================================================================
// VARIATIONS
// =============================================================================

// Parameter is an input a sweep can vary.
type Parameter string

const (
	ParamPrice        Parameter = "price"
	ParamDiscountRate Parameter = "discount_rate"
	ParamInterestRate Parameter = "interest_rate"
	ParamCOGSRate     Parameter = "cogs_rate"
	ParamCredits      Parameter = "credits"
)

// Parameters lists every sweepable parameter.
func Parameters() []Parameter {
	return []Parameter{ParamPrice, ParamDiscountRate, ParamInterestRate, ParamCOGSRate, ParamCredits}
}

// ErrUnknownParameter is returned for a parameter outside Parameters.
var ErrUnknownParameter = errors.New("unknown sweep parameter")

// Variation scales one parameter of the base inputs.
type Variation struct {
	Parameter  Parameter       `json:"parameter"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// Label renders a variation as "price x0.8".
func (v Variation) Label() string {
	return fmt.Sprintf("%s x%s", v.Parameter, v.Multiplier.String())
}

// Standard returns a tornado grid: every parameter at 80%, 90%, 110% and 120%.
func Standard() []Variation {
	steps := []string{"0.8", "0.9", "1.1", "1.2"}
	out := make([]Variation, 0, len(steps)*len(Parameters()))
	for _, p := range Parameters() {
		for _, s := range steps {
			out = append(out, Variation{Parameter: p, Multiplier: decimal.RequireFromString(s)})
		}
	}
	return out
}

// Apply returns a copy of base with the variation applied. base is not
// modified.
func Apply(base engine.EngineInputs, v Variation) (engine.EngineInputs, error) {
	in := base
	m := v.Multiplier
	switch v.Parameter {
	case ParamPrice:
		in.PricePerCredit = scale(base.PricePerCredit, m)
	case ParamCredits:
		in.CreditsGenerated = scale(base.CreditsGenerated, m)
		if base.CreditsIssued != nil {
			in.CreditsIssued = scale(base.CreditsIssued, m)
		}
	case ParamDiscountRate:
		in.DiscountRate = base.DiscountRate.Mul(m)
	case ParamInterestRate:
		in.InterestRate = base.InterestRate.Mul(m)
	case ParamCOGSRate:
		in.COGSRate = base.COGSRate.Mul(m)
	default:
		return engine.EngineInputs{}, fmt.Errorf("%w: %q", ErrUnknownParameter, v.Parameter)
	}
	return in, nil
}

func scale(values []decimal.Decimal, m decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = v.Mul(m)
	}
	return out
}

// =============================================================================
// RUN
// =============================================================================

// Result is the outcome of one variation.
type Result struct {
	Variation  Variation       `json:"variation"`
	NPV        decimal.Decimal `json:"npv"`
	IRR        engine.Rate     `json:"irr"`
	Payback    engine.Payback  `json:"payback_period"`
	Violations int             `json:"violations"`
	Error      string          `json:"error,omitempty"`

	Model *engine.Model `json:"-"`
}

// OK reports whether the variation produced a model.
func (r Result) OK() bool { return r.Error == "" }

// Run computes every variation of base with at most limit runs in flight.
// opts are passed to each engine.Run.
func Run(ctx context.Context, base engine.EngineInputs, variations []Variation, limit int, opts ...engine.Option) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	results := make([]Result, len(variations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, v := range variations {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = runOne(base, v, opts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func runOne(base engine.EngineInputs, v Variation, opts []engine.Option) Result {
	r := Result{Variation: v}

	in, err := Apply(base, v)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	m, err := engine.Run(in, opts...)
	if err != nil {
		r.Error = err.Error()
		return r
	}

	r.Model = m
	r.NPV = m.Returns.NPV
	r.IRR = m.Returns.IRR
	r.Payback = m.Returns.PaybackPeriod
	r.Violations = len(m.Violations)
	return r
}
