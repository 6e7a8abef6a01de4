package promotion

import (
	"github.com/shopspring/decimal"
)

// RuleKind tells how a slab's RuleValue is interpreted.
type RuleKind string

// Slab rule kinds.
const (
	RulePercentage RuleKind = "PERCENTAGE_DISCOUNT"
	RuleFixed      RuleKind = "FIXED_AMOUNT_DISCOUNT"
)

// Slab is a range-tagged monetary rule owned by a promotion. The range is
// expressed in grams of total line weight.
type Slab struct {
	ID          string
	PromotionID string
	RangeStart  int64
	// RangeEnd is nil for an unbounded slab.
	RangeEnd  *int64
	RuleKind  RuleKind
	RuleValue decimal.Decimal
	Active    bool
}

// Contains reports whether weight lies in [RangeStart, RangeEnd], both ends
// inclusive.
func (s Slab) Contains(weight int64) bool {
	if weight < s.RangeStart {
		return false
	}
	return s.RangeEnd == nil || weight <= *s.RangeEnd
}

// Range returns the weight range of the slab.
func (s Slab) Range() Range {
	return Range{Start: s.RangeStart, End: s.RangeEnd}
}

// Range is a weight interval. A nil End is unbounded.
type Range struct {
	Start int64
	End   *int64
}
