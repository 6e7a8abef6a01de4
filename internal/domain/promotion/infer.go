package promotion

// InferKind determines the discount strategy of p. It is the only place the
// kind is derived; every caller goes through it.
//
// Order of precedence:
//  1. explicit marker in the type config;
//  2. more than one active slab: WEIGHTED;
//  3. one active slab: PERCENTAGE for a percentage rule, WEIGHTED for a fixed
//     rule with a bounded range starting above zero, FIXED otherwise;
//  4. no active slabs: PERCENTAGE.
func InferKind(p *Promotion) Kind {
	if p.Config.Kind != "" {
		return p.Config.Kind
	}

	slabs := p.ActiveSlabs()
	if len(slabs) > 1 {
		return KindWeighted
	}
	if len(slabs) == 0 {
		return KindPercentage
	}

	s := slabs[0]
	switch s.RuleKind {
	case RulePercentage:
		return KindPercentage
	case RuleFixed:
		if s.RangeStart != 0 && s.RangeEnd != nil {
			return KindWeighted
		}
		return KindFixed
	default:
		return KindPercentage
	}
}
