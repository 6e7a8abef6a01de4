package promotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferKind(t *testing.T) {
	tests := []struct {
		name  string
		promo Promotion
		want  Kind
	}{
		{
			name:  "explicit marker wins",
			promo: Promotion{Config: Config{Kind: KindFixed}, Slabs: []Slab{slab(0, nil, RulePercentage, "10")}},
			want:  KindFixed,
		},
		{
			name:  "several active slabs",
			promo: Promotion{Slabs: []Slab{slab(0, i64(10), RuleFixed, "1"), slab(11, nil, RuleFixed, "2")}},
			want:  KindWeighted,
		},
		{
			name:  "single percentage slab",
			promo: Promotion{Slabs: []Slab{slab(0, nil, RulePercentage, "10")}},
			want:  KindPercentage,
		},
		{
			name:  "single fixed slab with weight range",
			promo: Promotion{Slabs: []Slab{slab(100, i64(500), RuleFixed, "1")}},
			want:  KindWeighted,
		},
		{
			name:  "single fixed slab starting at zero",
			promo: Promotion{Slabs: []Slab{slab(0, i64(500), RuleFixed, "1")}},
			want:  KindFixed,
		},
		{
			name:  "single fixed slab unbounded",
			promo: Promotion{Slabs: []Slab{slab(100, nil, RuleFixed, "1")}},
			want:  KindFixed,
		},
		{
			name: "inactive slabs are not counted",
			promo: Promotion{Slabs: []Slab{
				slab(0, nil, RulePercentage, "10"),
				{RangeStart: 5, RuleKind: RuleFixed, RuleValue: d("1")},
			}},
			want: KindPercentage,
		},
		{
			name:  "no slabs",
			promo: Promotion{},
			want:  KindPercentage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferKind(&tt.promo))
			assert.Equal(t, tt.want, InferKind(&tt.promo))
		})
	}
}
