/*
Package cache stores computed models keyed by an input fingerprint.

PURPOSE:
  engine.Run is deterministic: identical inputs produce identical models.
  Re-rendering a report page recomputes the same model many times, so the
  scenario service caches results by a hash of the canonical inputs.

KEYS:
  Fingerprint hashes the JSON encoding of EngineInputs together with the
  invariant policy using xxhash. Two inputs that differ only in trailing
  zeros ("0.40" vs "0.4") share a key.

IMPLEMENTATIONS:
  - Memory: process-local, TTL-based, for a single server
  - Redis:  shared between server instances
  - Nop:    disables caching

Both real implementations store the JSON-encoded model, so a cached model is
never aliased between callers.
*/
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
	"github.com/warp/carbon-engine/engine"
)

// Cache stores models by fingerprint.
type Cache interface {
	// Get returns the cached model. ok is false on a miss.
	Get(ctx context.Context, key string) (model *engine.Model, ok bool, err error)

	// Set stores a model.
	Set(ctx context.Context, key string, model *engine.Model) error
}

// Fingerprint returns a stable cache key for one engine run.
func Fingerprint(in engine.EngineInputs, policy engine.InvariantPolicy) (string, error) {
	data, err := json.Marshal(canonical(in))
	if err != nil {
		return "", fmt.Errorf("fingerprint inputs: %w", err)
	}

	h := xxhash.New()
	_, _ = h.Write(data)
	_, _ = h.WriteString("|" + string(policy))
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// canonical strips insignificant trailing zeros so equal values hash equally.
func canonical(in engine.EngineInputs) engine.EngineInputs {
	norm := func(ds []decimal.Decimal) []decimal.Decimal {
		if ds == nil {
			return nil
		}
		out := make([]decimal.Decimal, len(ds))
		for i, d := range ds {
			out[i] = decimal.RequireFromString(d.String())
		}
		return out
	}
	one := func(d decimal.Decimal) decimal.Decimal { return decimal.RequireFromString(d.String()) }

	out := in
	out.CreditsGenerated = norm(in.CreditsGenerated)
	out.CreditsIssued = norm(in.CreditsIssued)
	out.IssuanceFlag = norm(in.IssuanceFlag)
	out.PricePerCredit = norm(in.PricePerCredit)
	out.FeasibilityCosts = norm(in.FeasibilityCosts)
	out.PDDCosts = norm(in.PDDCosts)
	out.MRVCosts = norm(in.MRVCosts)
	out.StaffCosts = norm(in.StaffCosts)
	out.Capex = norm(in.Capex)
	out.Depreciation = norm(in.Depreciation)
	out.EquityInjection = norm(in.EquityInjection)
	out.DebtDraw = norm(in.DebtDraw)
	out.PurchaseAmount = norm(in.PurchaseAmount)
	out.InterestRate = one(in.InterestRate)
	out.PurchaseShare = one(in.PurchaseShare)
	out.ARRate = one(in.ARRate)
	out.APRate = one(in.APRate)
	out.COGSRate = one(in.COGSRate)
	out.IncomeTaxRate = one(in.IncomeTaxRate)
	out.DiscountRate = one(in.DiscountRate)
	out.InitialEquityT0 = one(in.InitialEquityT0)
	out.OpeningCashY1 = one(in.OpeningCashY1)
	out.InitialPPE = one(in.InitialPPE)
	return out
}

func encode(m *engine.Model) ([]byte, error) {
	return json.Marshal(m)
}

func decode(data []byte) (*engine.Model, error) {
	var m engine.Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode cached model: %w", err)
	}
	return &m, nil
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (*engine.Model, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, *engine.Model) error         { return nil }
