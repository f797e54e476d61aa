/*
engine.go - Calculation pipeline

PURPOSE:
  Run is the single entry point. It validates the inputs, computes every
  schedule in dependency order and checks the accounting identities.

PIPELINE (leaves first):
  1. Validate          validate.go
  2. Carbon stream     carbon.go    issuance, pre-purchase, revenue
  3. Debt schedule     debt.go      balances, principal, interest
  4. PPE               balance.go   depreciation charged, net PPE
  5. Income statement  operating.go
  6. DSCR              EBITDA / debt service
  7. Cash flow + BS    cashflow.go  fold over years, cash is the plug
  8. Returns           returns.go
  9. Invariants        invariants.go

INVARIANT POLICY:
  PolicyWarn:   violations are attached to Model.Violations, err is nil.
                The reporting layer logs them.
  PolicyStrict: violations also produce an *InvariantError. The model is
                still returned so callers can inspect it.

CONCURRENCY:
  Run shares nothing between calls. Any number of runs may execute in
  parallel (see sweep package).
*/
package engine

// InvariantPolicy decides what Run does when an identity fails.
type InvariantPolicy string

const (
	PolicyWarn   InvariantPolicy = "warn"
	PolicyStrict InvariantPolicy = "strict"
)

// ParsePolicy maps a config string to a policy. Unknown values fall back to warn.
func ParsePolicy(s string) InvariantPolicy {
	if InvariantPolicy(s) == PolicyStrict {
		return PolicyStrict
	}
	return PolicyWarn
}

type runConfig struct {
	policy InvariantPolicy
}

// Option configures a run.
type Option func(*runConfig)

// WithPolicy sets the invariant policy. The default is PolicyWarn.
func WithPolicy(p InvariantPolicy) Option {
	return func(c *runConfig) { c.policy = p }
}

// Run computes the full model for one input snapshot.
func Run(in EngineInputs, opts ...Option) (*Model, error) {
	cfg := runConfig{policy: PolicyWarn}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := in.Validate(); err != nil {
		return nil, err
	}

	carbon := buildCarbonStream(in)
	debt := buildDebtSchedule(in)
	depreciation, ppe := ppeSchedule(in)
	income := buildIncomeStatements(in, carbon, debt, depreciation)

	for i := range debt {
		debt[i].DSCR = NewRatio(income[i].EBITDA, debt[i].DebtService)
	}

	flows, sheets := reconcile(in, income, carbon, debt, ppe)

	years := make([]int, in.Horizon)
	for i := range years {
		years[i] = in.Year(i)
	}

	model := &Model{
		Inputs:           in,
		Years:            years,
		IncomeStatements: income,
		BalanceSheets:    sheets,
		CashFlows:        flows,
		DebtSchedule:     debt,
		CarbonStream:     carbon.stream,
		Returns:          buildReturns(in, flows),
	}

	model.Violations = CheckInvariants(model)
	if len(model.Violations) > 0 && cfg.policy == PolicyStrict {
		return model, &InvariantError{Violations: model.Violations}
	}
	return model, nil
}
