package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/xenking/promo-engine/internal/domain"
	"github.com/xenking/promo-engine/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository is the in-memory product.Repository.
type ProductRepository struct {
	store *Store
}

func (r *ProductRepository) List(ctx context.Context, includeDisabled bool) ([]product.Product, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	out := make([]product.Product, 0, len(r.store.products))
	for _, p := range r.store.products {
		if p.Active || includeDisabled {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b product.Product) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	p, ok := r.store.products[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "product", ID: id}
	}
	return &p, nil
}

func (r *ProductRepository) FindActiveByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.store.products[id]; ok && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	if _, ok := r.store.products[p.ID]; ok {
		return &domain.ConflictError{Entity: "product", Field: "id", Value: p.ID}
	}
	if err := r.unique(p); err != nil {
		return err
	}
	r.store.products[p.ID] = *p
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	if _, ok := r.store.products[p.ID]; !ok {
		return &domain.NotFoundError{Entity: "product", ID: p.ID}
	}
	if err := r.unique(p); err != nil {
		return err
	}
	r.store.products[p.ID] = *p
	return nil
}

// unique mirrors the slug and sku unique constraints.
func (r *ProductRepository) unique(p *product.Product) error {
	for id, other := range r.store.products {
		if id == p.ID {
			continue
		}
		switch {
		case other.Slug == p.Slug:
			return &domain.ConflictError{Entity: "product", Field: "slug", Value: p.Slug}
		case other.SKU == p.SKU:
			return &domain.ConflictError{Entity: "product", Field: "sku", Value: p.SKU}
		}
	}
	return nil
}
