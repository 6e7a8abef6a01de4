package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/xenking/promo-engine/internal/domain"
	"github.com/xenking/promo-engine/internal/domain/promotion"
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository is the in-memory promotion.Repository.
type PromotionRepository struct {
	store *Store
}

func (r *PromotionRepository) FindActive(ctx context.Context, now time.Time) ([]promotion.Promotion, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	var out []promotion.Promotion
	for _, p := range r.store.promotions {
		if !p.IsActiveAt(now) {
			continue
		}
		p.Slabs = p.ActiveSlabs()
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b promotion.Promotion) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *PromotionRepository) FindByID(ctx context.Context, id string) (*promotion.Promotion, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	p, ok := r.store.promotions[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "promotion", ID: id}
	}
	p.Slabs = slices.Clone(p.Slabs)
	return &p, nil
}

func (r *PromotionRepository) List(ctx context.Context) ([]promotion.Promotion, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	out := make([]promotion.Promotion, 0, len(r.store.promotions))
	for _, p := range r.store.promotions {
		p.Slabs = slices.Clone(p.Slabs)
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b promotion.Promotion) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	if _, ok := r.store.promotions[p.ID]; ok {
		return &domain.ConflictError{Entity: "promotion", Field: "id", Value: p.ID}
	}
	stored := *p
	stored.Slabs = withOwner(p.ID, p.Slabs)
	r.store.promotions[p.ID] = stored
	return nil
}

// Update stores every promotion field except its slabs.
func (r *PromotionRepository) Update(ctx context.Context, p *promotion.Promotion) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	current, ok := r.store.promotions[p.ID]
	if !ok {
		return &domain.NotFoundError{Entity: "promotion", ID: p.ID}
	}
	stored := *p
	stored.Slabs = current.Slabs
	r.store.promotions[p.ID] = stored
	return nil
}

func (r *PromotionRepository) ReplaceSlabs(ctx context.Context, promotionID string, slabs []promotion.Slab) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	p, ok := r.store.promotions[promotionID]
	if !ok {
		return &domain.NotFoundError{Entity: "promotion", ID: promotionID}
	}
	p.Slabs = withOwner(promotionID, slabs)
	r.store.promotions[promotionID] = p
	return nil
}

// withOwner copies slabs ordered by range start, stamped with the owning
// promotion.
func withOwner(promotionID string, slabs []promotion.Slab) []promotion.Slab {
	out := slices.Clone(slabs)
	for i := range out {
		out[i].PromotionID = promotionID
	}
	slices.SortStableFunc(out, func(a, b promotion.Slab) int {
		return cmp.Compare(a.RangeStart, b.RangeStart)
	})
	return out
}
