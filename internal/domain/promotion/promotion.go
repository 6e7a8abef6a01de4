// Package promotion implements the discount engine: promotion type inference,
// per-line discount calculation, slab range validation and the admin flows
// that create and edit promotions.
package promotion

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the inferred discount strategy of a promotion.
type Kind string

// Supported promotion kinds.
const (
	KindPercentage Kind = "PERCENTAGE"
	KindFixed      Kind = "FIXED"
	KindWeighted   Kind = "WEIGHTED"
)

// ParseKind accepts a kind name in any letter case.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(upper(s)); k {
	case KindPercentage, KindFixed, KindWeighted:
		return k, true
	default:
		return "", false
	}
}

// Promotion is a discount offer together with the slabs it owns.
type Promotion struct {
	ID       string
	Name     string
	Active   bool
	StartsAt *time.Time
	EndsAt   *time.Time
	// Priority orders promotions when several apply; higher first.
	Priority  int
	Config    Config
	Slabs     []Slab
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActiveAt reports whether the promotion is enabled and now falls inside its
// optional [StartsAt, EndsAt] window.
func (p *Promotion) IsActiveAt(now time.Time) bool {
	return p.Active && p.windowState(now) == windowOpen
}

type window int

const (
	windowOpen window = iota
	windowNotStarted
	windowExpired
)

func (p *Promotion) windowState(now time.Time) window {
	switch {
	case p.StartsAt != nil && now.Before(*p.StartsAt):
		return windowNotStarted
	case p.EndsAt != nil && now.After(*p.EndsAt):
		return windowExpired
	default:
		return windowOpen
	}
}

// ActiveSlabs returns the enabled slabs in stored order.
func (p *Promotion) ActiveSlabs() []Slab {
	out := make([]Slab, 0, len(p.Slabs))
	for _, s := range p.Slabs {
		if s.Active {
			out = append(out, s)
		}
	}
	return out
}

// Kind returns the inferred kind of the promotion.
func (p *Promotion) Kind() Kind { return InferKind(p) }

// Repository defines persistence operations for promotions and their slabs.
type Repository interface {
	// FindActive returns enabled promotions whose window contains now,
	// ordered by priority descending, each with its active slabs ordered by
	// range start.
	FindActive(ctx context.Context, now time.Time) ([]Promotion, error)
	FindByID(ctx context.Context, id string) (*Promotion, error)
	List(ctx context.Context) ([]Promotion, error)
	Create(ctx context.Context, p *Promotion) error
	Update(ctx context.Context, p *Promotion) error
	// ReplaceSlabs drops every slab of the promotion and stores slabs instead.
	ReplaceSlabs(ctx context.Context, promotionID string, slabs []Slab) error
}

// Source provides the active promotion set to order placement.
type Source interface {
	Active(ctx context.Context, now time.Time) ([]Promotion, error)
}

var hundred = decimal.NewFromInt(100)
