package promotion

import (
	"fmt"
	"slices"
	"strings"

	"github.com/xenking/promo-engine/internal/domain"
)

// RangeOrderError reports a slab whose start is not below its end.
type RangeOrderError struct {
	Range Range
}

func (e *RangeOrderError) Error() string {
	return fmt.Sprintf("invalid slab range %s: start must be less than end", e.Range)
}

func (e *RangeOrderError) Is(target error) bool { return target == domain.ErrInvalidInput }

// RangeOverlapError reports two slabs whose ranges intersect once sorted.
type RangeOverlapError struct {
	Current Range
	Next    Range
}

func (e *RangeOverlapError) Error() string {
	return fmt.Sprintf("slab ranges overlap: %s overlaps with %s", e.Current, e.Next)
}

func (e *RangeOverlapError) Is(target error) bool { return target == domain.ErrInvalidInput }

// RangeError lists every range violation of a slab set.
type RangeError struct {
	Violations []error
}

func (e *RangeError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e *RangeError) Unwrap() []error { return e.Violations }

func (e *RangeError) Is(target error) bool { return target == domain.ErrInvalidInput }

func (r Range) String() string {
	if r.End == nil {
		return fmt.Sprintf("[%d-inf]", r.Start)
	}
	return fmt.Sprintf("[%d-%d]", r.Start, *r.End)
}

// ValidateRanges checks that ranges, once sorted by start, are well formed and
// do not overlap. An unbounded range must be the last one. All violations are
// returned together in a *RangeError.
func ValidateRanges(ranges []Range) error {
	sorted := slices.Clone(ranges)
	slices.SortStableFunc(sorted, func(a, b Range) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		default:
			return 0
		}
	})

	var violations []error
	for i, cur := range sorted {
		if cur.End != nil && cur.Start >= *cur.End {
			violations = append(violations, &RangeOrderError{Range: cur})
		}
		if i == len(sorted)-1 {
			continue
		}
		next := sorted[i+1]
		if cur.End == nil || *cur.End >= next.Start {
			violations = append(violations, &RangeOverlapError{Current: cur, Next: next})
		}
	}

	if len(violations) > 0 {
		return &RangeError{Violations: violations}
	}
	return nil
}
