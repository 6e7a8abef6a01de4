package promotion

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/product"
)

// Reasons reported when a promotion does not apply.
const (
	ReasonMissingSlab      = "missing slab"
	ReasonNoFixedAmount    = "fixed amount not found for promotion"
	ReasonWeightedNoSlabs  = "weighted promotion requires slabs"
	ReasonUnknownKind      = "unknown promotion type"
	ReasonDisabled         = "promotion is disabled"
	ReasonNotStarted       = "promotion has not started yet"
	ReasonExpired          = "promotion has expired"
	ReasonProductInactive  = "product is not available"
	reasonNoMatchingWeight = "no matching slab for weight %dg"
)

// Result is the outcome of applying one promotion to one line.
type Result struct {
	// Amount is exact; callers round when aggregating.
	Amount  decimal.Decimal
	Applied bool
	Reason  string
	Kind    Kind
}

func notApplied(kind Kind, reason string) Result {
	return Result{Amount: decimal.Zero, Kind: kind, Reason: reason}
}

// Calculate computes the discount p grants on quantity units of prod.
// quantity must be positive. Calculate has no side effects and never fails:
// a promotion that does not apply yields Applied=false and a reason.
func Calculate(p *Promotion, prod product.Product, quantity int) Result {
	kind := InferKind(p)
	qty := decimal.NewFromInt(int64(quantity))

	switch kind {
	case KindPercentage:
		return percentage(p, prod, qty)
	case KindFixed:
		return fixed(p, qty)
	case KindWeighted:
		return weighted(p, prod, quantity, qty)
	default:
		return notApplied(kind, ReasonUnknownKind)
	}
}

func percentage(p *Promotion, prod product.Product, qty decimal.Decimal) Result {
	slabs := p.ActiveSlabs()
	if len(slabs) == 0 {
		return notApplied(KindPercentage, ReasonMissingSlab)
	}
	s := slabs[0]
	if s.RuleKind != RulePercentage || !s.RuleValue.IsPositive() || s.RuleValue.GreaterThan(hundred) {
		return notApplied(KindPercentage, ReasonMissingSlab)
	}

	amount := s.RuleValue.Div(hundred).Mul(prod.Price).Mul(qty)
	return Result{Amount: amount, Applied: true, Kind: KindPercentage}
}

func fixed(p *Promotion, qty decimal.Decimal) Result {
	amount, ok := p.Config.FixedAmount()
	if !ok {
		if slabs := p.ActiveSlabs(); len(slabs) > 0 && slabs[0].RuleKind == RuleFixed {
			amount = slabs[0].RuleValue
		}
	}
	if !amount.IsPositive() {
		return notApplied(KindFixed, ReasonNoFixedAmount)
	}
	return Result{Amount: amount.Mul(qty), Applied: true, Kind: KindFixed}
}

func weighted(p *Promotion, prod product.Product, quantity int, qty decimal.Decimal) Result {
	slabs := p.ActiveSlabs()
	if len(slabs) == 0 {
		return notApplied(KindWeighted, ReasonWeightedNoSlabs)
	}
	sort.SliceStable(slabs, func(i, j int) bool {
		return slabs[i].RangeStart < slabs[j].RangeStart
	})

	totalWeight := prod.WeightGrams * int64(quantity)
	for _, s := range slabs {
		if s.Contains(totalWeight) {
			return Result{Amount: s.RuleValue.Mul(qty), Applied: true, Kind: KindWeighted}
		}
	}
	return notApplied(KindWeighted, fmt.Sprintf(reasonNoMatchingWeight, totalWeight))
}
