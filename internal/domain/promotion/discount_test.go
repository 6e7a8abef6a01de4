package promotion

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/promo-engine/internal/domain/product"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func i64(v int64) *int64 { return &v }

func slab(start int64, end *int64, rule RuleKind, value string) Slab {
	return Slab{RangeStart: start, RangeEnd: end, RuleKind: rule, RuleValue: d(value), Active: true}
}

func prod(price string, weight int64) product.Product {
	return product.Product{ID: "p1", Name: "Rice", SKU: "RICE-1", Price: d(price), WeightGrams: weight, Active: true}
}

func TestCalculate_Percentage(t *testing.T) {
	tests := []struct {
		name    string
		promo   Promotion
		price   string
		qty     int
		want    string
		applied bool
		reason  string
	}{
		{
			name:    "scenario A",
			promo:   Promotion{Slabs: []Slab{slab(0, nil, RulePercentage, "10")}},
			price:   "100",
			qty:     3,
			want:    "30",
			applied: true,
		},
		{
			name:    "full price off",
			promo:   Promotion{Slabs: []Slab{slab(0, nil, RulePercentage, "100")}},
			price:   "19.99",
			qty:     2,
			want:    "39.98",
			applied: true,
		},
		{
			name:    "explicit marker with fixed slab",
			promo:   Promotion{Config: Config{Kind: KindPercentage}, Slabs: []Slab{slab(0, nil, RuleFixed, "5")}},
			price:   "10",
			qty:     1,
			want:    "0",
			applied: false,
			reason:  ReasonMissingSlab,
		},
		{
			name:    "value above 100",
			promo:   Promotion{Config: Config{Kind: KindPercentage}, Slabs: []Slab{slab(0, nil, RulePercentage, "120")}},
			price:   "10",
			qty:     1,
			want:    "0",
			applied: false,
			reason:  ReasonMissingSlab,
		},
		{
			name:    "inactive slab ignored",
			promo:   Promotion{Config: Config{Kind: KindPercentage}, Slabs: []Slab{{RuleKind: RulePercentage, RuleValue: d("10")}}},
			price:   "10",
			qty:     1,
			want:    "0",
			applied: false,
			reason:  ReasonMissingSlab,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Calculate(&tt.promo, prod(tt.price, 0), tt.qty)
			assert.Equal(t, tt.applied, res.Applied)
			assert.True(t, d(tt.want).Equal(res.Amount), "got %s", res.Amount)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, KindPercentage, res.Kind)
		})
	}
}

func TestCalculate_PercentageIsExactForAnyQuantity(t *testing.T) {
	p := Promotion{Slabs: []Slab{slab(0, nil, RulePercentage, "12.5")}}
	price := d("33.33")
	for q := 1; q <= 50; q++ {
		res := Calculate(&p, prod("33.33", 0), q)
		want := d("12.5").Div(hundred).Mul(price).Mul(decimal.NewFromInt(int64(q)))
		require.True(t, want.Equal(res.Amount), "q=%d got %s want %s", q, res.Amount, want)
	}
}

func TestCalculate_Fixed(t *testing.T) {
	tests := []struct {
		name    string
		promo   Promotion
		qty     int
		want    string
		applied bool
	}{
		{
			name:    "scenario B",
			promo:   Promotion{Slabs: []Slab{slab(0, nil, RuleFixed, "5")}},
			qty:     4,
			want:    "20",
			applied: true,
		},
		{
			name:    "tag value wins over slab",
			promo:   Promotion{Config: FixedConfig(d("7.5")), Slabs: []Slab{slab(0, nil, RuleFixed, "5")}},
			qty:     2,
			want:    "15",
			applied: true,
		},
		{
			name:    "zero tag falls back to slab",
			promo:   Promotion{Config: FixedConfig(decimal.Zero), Slabs: []Slab{slab(0, nil, RuleFixed, "3")}},
			qty:     2,
			want:    "6",
			applied: true,
		},
		{
			name:    "negative tag falls back to slab",
			promo:   Promotion{Config: FixedConfig(d("-5")), Slabs: []Slab{slab(0, nil, RuleFixed, "3")}},
			qty:     2,
			want:    "6",
			applied: true,
		},
		{
			name:    "negative parsed tag falls back to slab",
			promo:   Promotion{Config: ParseTag("TYPE:FIXED,FIXED:-5"), Slabs: []Slab{slab(0, nil, RuleFixed, "3")}},
			qty:     2,
			want:    "6",
			applied: true,
		},
		{
			name:    "tag with trailing text",
			promo:   Promotion{Config: ParseTag("FIXED:5 off"), Slabs: []Slab{slab(0, nil, RuleFixed, "3")}},
			qty:     2,
			want:    "10",
			applied: true,
		},
		{
			name:    "tag value without slabs",
			promo:   Promotion{Config: FixedConfig(d("2"))},
			qty:     3,
			want:    "6",
			applied: true,
		},
		{
			name:    "no resolvable amount",
			promo:   Promotion{Config: Config{Kind: KindFixed}},
			qty:     3,
			want:    "0",
			applied: false,
		},
		{
			name:    "zero slab value",
			promo:   Promotion{Slabs: []Slab{slab(0, nil, RuleFixed, "0")}},
			qty:     3,
			want:    "0",
			applied: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Calculate(&tt.promo, prod("50", 0), tt.qty)
			assert.Equal(t, tt.applied, res.Applied)
			assert.True(t, d(tt.want).Equal(res.Amount), "got %s", res.Amount)
			if !tt.applied {
				assert.Equal(t, ReasonNoFixedAmount, res.Reason)
			}
		})
	}
}

func TestCalculate_Weighted(t *testing.T) {
	tiers := []Slab{
		slab(500, i64(1000), RuleFixed, "5"),
		slab(0, i64(500), RuleFixed, "2"),
	}

	tests := []struct {
		name    string
		weight  int64
		qty     int
		want    string
		applied bool
		reason  string
	}{
		{name: "scenario C", weight: 300, qty: 2, want: "10", applied: true},
		{name: "lower tier", weight: 100, qty: 3, want: "6", applied: true},
		{name: "shared boundary picks lower slab", weight: 250, qty: 2, want: "4", applied: true},
		{name: "upper bound inclusive", weight: 500, qty: 2, want: "10", applied: true},
		{name: "above every slab", weight: 600, qty: 2, want: "0", reason: "no matching slab for weight 1200g"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Promotion{Slabs: tiers}
			res := Calculate(&p, prod("10", tt.weight), tt.qty)
			assert.Equal(t, tt.applied, res.Applied)
			assert.True(t, d(tt.want).Equal(res.Amount), "got %s", res.Amount)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, KindWeighted, res.Kind)
		})
	}
}

func TestCalculate_WeightedUnboundedTail(t *testing.T) {
	p := Promotion{
		Config: WeightedConfig(),
		Slabs: []Slab{
			slab(0, i64(999), RuleFixed, "1"),
			slab(1000, nil, RuleFixed, "3"),
		},
	}

	res := Calculate(&p, prod("10", 5000), 4)
	require.True(t, res.Applied)
	assert.True(t, d("12").Equal(res.Amount))
}

func TestCalculate_WeightedStepIsMonotonic(t *testing.T) {
	p := Promotion{
		Config: WeightedConfig(),
		Slabs: []Slab{
			slab(0, i64(999), RuleFixed, "1"),
			slab(1000, i64(4999), RuleFixed, "2"),
			slab(5000, nil, RuleFixed, "4"),
		},
	}

	prev := decimal.Zero
	for q := 1; q <= 40; q++ {
		res := Calculate(&p, prod("10", 250), q)
		require.True(t, res.Applied)
		perUnit := res.Amount.Div(decimal.NewFromInt(int64(q)))
		require.True(t, perUnit.GreaterThanOrEqual(prev), "q=%d", q)
		prev = perUnit
	}
}

func TestCalculate_WeightedWithoutSlabs(t *testing.T) {
	p := Promotion{Config: WeightedConfig()}

	res := Calculate(&p, prod("10", 100), 1)
	assert.False(t, res.Applied)
	assert.Equal(t, ReasonWeightedNoSlabs, res.Reason)
}

func TestCalculate_NoSlabsNoTag(t *testing.T) {
	p := Promotion{}

	assert.Equal(t, KindPercentage, InferKind(&p))
	res := Calculate(&p, prod("10", 100), 1)
	assert.False(t, res.Applied)
	assert.Equal(t, ReasonMissingSlab, res.Reason)
	assert.True(t, res.Amount.IsZero())
}

func TestCalculate_UnknownKind(t *testing.T) {
	p := Promotion{Config: Config{Kind: "BOGO"}}

	res := Calculate(&p, prod("10", 100), 1)
	assert.False(t, res.Applied)
	assert.Equal(t, ReasonUnknownKind, res.Reason)
}

func TestCalculate_Idempotent(t *testing.T) {
	p := Promotion{Slabs: []Slab{
		slab(500, i64(1000), RuleFixed, "5"),
		slab(0, i64(499), RuleFixed, "2"),
	}}
	before := append([]Slab(nil), p.Slabs...)

	first := Calculate(&p, prod("10", 300), 2)
	second := Calculate(&p, prod("10", 300), 2)
	assert.Equal(t, first, second)
	assert.Equal(t, before, p.Slabs, "slab order must not change")
}
