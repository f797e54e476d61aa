/*
sentinel.go - Numeric values that may be undefined

PURPOSE:
  Some outputs have no meaningful number: DSCR when there is no debt
  service, IRR when the cash flows never change sign, payback when
  cumulative cash never recovers. These are reported as sentinels, never
  as errors, and always render distinctly from numeric zero.

RENDERING:
  Ratio{Valid: false}   -> "N/A"
  Rate{Valid: false}    -> "N/A"
  Payback{Within: false} -> "> horizon"
*/
package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel renderings shared by JSON and CSV.
const (
	NotAvailable  = "N/A"
	BeyondHorizon = "> horizon"
)

// =============================================================================
// RATIO - DSCR and other coverage ratios
// =============================================================================

// Ratio is a ratio that is undefined when its denominator is zero.
type Ratio struct {
	Value decimal.Decimal
	Valid bool
}

// NewRatio divides num by den. A zero denominator yields the N/A sentinel.
func NewRatio(num, den decimal.Decimal) Ratio {
	if den.IsZero() {
		return Ratio{}
	}
	return Ratio{Value: num.DivRound(den, 4), Valid: true}
}

func (r Ratio) String() string {
	if !r.Valid {
		return NotAvailable
	}
	return r.Value.StringFixed(4)
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return json.Marshal(NotAvailable)
	}
	return []byte(r.Value.String()), nil
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	v, ok, err := unmarshalSentinel(data, NotAvailable)
	if err != nil {
		return err
	}
	*r = Ratio{Value: v, Valid: ok}
	return nil
}

// ParseRatio parses the String form of a Ratio.
func ParseRatio(s string) (Ratio, error) {
	v, ok, err := parseSentinel(s, NotAvailable)
	return Ratio{Value: v, Valid: ok}, err
}

// =============================================================================
// RATE - IRR
// =============================================================================

// Rate is a solved rate of return. Valid is false when the solver did not
// converge.
type Rate struct {
	Value decimal.Decimal
	Valid bool
}

func (r Rate) String() string {
	if !r.Valid {
		return NotAvailable
	}
	return r.Value.StringFixed(6)
}

func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return json.Marshal(NotAvailable)
	}
	return []byte(r.Value.String()), nil
}

func (r *Rate) UnmarshalJSON(data []byte) error {
	v, ok, err := unmarshalSentinel(data, NotAvailable)
	if err != nil {
		return err
	}
	*r = Rate{Value: v, Valid: ok}
	return nil
}

// ParseRate parses the String form of a Rate.
func ParseRate(s string) (Rate, error) {
	v, ok, err := parseSentinel(s, NotAvailable)
	return Rate{Value: v, Valid: ok}, err
}

// =============================================================================
// PAYBACK
// =============================================================================

// Payback is the number of years until cumulative FCF to equity turns
// non-negative. Within is false when that never happens inside the horizon.
type Payback struct {
	Years  decimal.Decimal
	Within bool
}

func (p Payback) String() string {
	if !p.Within {
		return BeyondHorizon
	}
	return p.Years.StringFixed(2)
}

func (p Payback) MarshalJSON() ([]byte, error) {
	if !p.Within {
		return json.Marshal(BeyondHorizon)
	}
	return []byte(p.Years.String()), nil
}

func (p *Payback) UnmarshalJSON(data []byte) error {
	v, ok, err := unmarshalSentinel(data, BeyondHorizon)
	if err != nil {
		return err
	}
	*p = Payback{Years: v, Within: ok}
	return nil
}

// ParsePayback parses the String form of a Payback.
func ParsePayback(s string) (Payback, error) {
	v, ok, err := parseSentinel(s, BeyondHorizon)
	return Payback{Years: v, Within: ok}, err
}

// =============================================================================
// HELPERS
// =============================================================================

func unmarshalSentinel(data []byte, sentinel string) (decimal.Decimal, bool, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return zero, false, nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return zero, false, err
		}
		return parseSentinel(s, sentinel)
	}
	return parseSentinel(string(data), sentinel)
}

func parseSentinel(s, sentinel string) (decimal.Decimal, bool, error) {
	s = strings.TrimSpace(s)
	if s == sentinel || s == "" {
		return zero, false, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return zero, false, fmt.Errorf("parse %q: %w", s, err)
	}
	return v, true, nil
}
