/*
Package generic provides the domain-agnostic calendar primitives of the
workload engine.

PURPOSE:
  This package knows nothing about workers, work orders or absences. It owns
  the arithmetic every roster computation is built on: windows of time, the
  business-hours calendar, free-text duration parsing and the classification
  of a viewport into a temporal context and zoom tier.

KEY CONCEPTS IN THIS FILE (types.go):
  - Hours: A quantity of hours backed by decimal.Decimal
  - Percent: Ratio helpers that never divide by zero

DESIGN PRINCIPLES:
  1. Purity: No I/O, no clocks. "Now" is always passed in.
  2. Precision: Hours are summed as decimals, converted to float64 only at the edge
  3. Best effort: Degenerate inputs produce zero values, never NaN

USAGE:
  total := generic.ZeroHours()
  total = total.Add(generic.HoursFromMillis(DurationMillis("18 hours")))
  pct := generic.Percent(total, generic.HoursFromFloat(40))

SEE ALSO:
  - period.go: Window type
  - business.go: Business-hours calendar
  - duration.go: Duration parser
  - context.go: Temporal context and zoom tier
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// HOURS - Decimal-backed quantity of time
// =============================================================================

const (
	MillisPerMinute = int64(60 * 1000)
	MillisPerHour   = 60 * MillisPerMinute
	MillisPerDay    = 24 * MillisPerHour
	MillisPerWeek   = 7 * MillisPerDay
)

var (
	millisPerHour = decimal.NewFromInt(MillisPerHour)
	millisPerDay  = decimal.NewFromInt(MillisPerDay)
	hundred       = decimal.NewFromInt(100)
)

type Hours struct {
	Value decimal.Decimal
}

func ZeroHours() Hours                    { return Hours{Value: decimal.Zero} }
func HoursFromFloat(h float64) Hours      { return Hours{Value: decimal.NewFromFloat(h)} }
func HoursFromMillis(ms int64) Hours      { return Hours{Value: decimal.NewFromInt(ms).Div(millisPerHour)} }
func (h Hours) Add(o Hours) Hours         { return Hours{Value: h.Value.Add(o.Value)} }
func (h Hours) Sub(o Hours) Hours         { return Hours{Value: h.Value.Sub(o.Value)} }
func (h Hours) IsZero() bool              { return h.Value.IsZero() }
func (h Hours) Float64() float64          { return h.Value.InexactFloat64() }

// NonNegative clamps negative quantities to zero.
func (h Hours) NonNegative() Hours {
	if h.Value.IsNegative() {
		return ZeroHours()
	}
	return h
}

// DaysFromMillis converts a span to fractional days.
func DaysFromMillis(ms int64) float64 {
	return decimal.NewFromInt(ms).Div(millisPerDay).InexactFloat64()
}

// =============================================================================
// PERCENT - Guarded ratios
// =============================================================================

// Percent returns part/whole*100. A zero whole yields 0, never NaN or Inf.
func Percent(part, whole Hours) float64 {
	if whole.IsZero() || part.IsZero() {
		return 0
	}
	return part.Value.Div(whole.Value).Mul(hundred).InexactFloat64()
}

// RoundedPercent is Percent rounded to the nearest integer, half away from zero.
func RoundedPercent(part, whole Hours) float64 {
	if whole.IsZero() || part.IsZero() {
		return 0
	}
	return part.Value.Div(whole.Value).Mul(hundred).Round(0).InexactFloat64()
}
