package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain"
	"github.com/xenking/promo-engine/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository is the in-memory order.Repository.
type OrderRepository struct {
	store *Store
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	if _, ok := r.store.orders[o.ID]; ok {
		return &domain.ConflictError{Entity: "order", Field: "id", Value: o.ID}
	}
	r.store.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	o, ok := r.store.orders[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "order", ID: id}
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, int, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	var matched []order.Order
	for _, o := range r.store.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		matched = append(matched, o)
	}

	slices.SortFunc(matched, func(a, b order.Order) int {
		var c int
		if f.SortBy == order.SortTotal {
			c = a.Total.Cmp(b.Total)
		} else {
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if !f.Asc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	total := len(matched)
	limit := f.Limit
	if limit <= 0 {
		limit = total
	}
	start := min((max(f.Page, 1)-1)*limit, total)
	end := min(start+limit, total)

	page := make([]order.Order, 0, end-start)
	for _, o := range matched[start:end] {
		page = append(page, cloneOrder(o))
	}
	return page, total, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, at time.Time) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	o, ok := r.store.orders[id]
	if !ok {
		return &domain.NotFoundError{Entity: "order", ID: id}
	}
	o.Status = status
	o.UpdatedAt = at
	r.store.orders[id] = o
	return nil
}

func (r *OrderRepository) Summarize(ctx context.Context, from, to time.Time) (order.Summary, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	s := order.Summary{Revenue: decimal.Zero}
	for _, o := range r.store.orders {
		if !from.IsZero() && o.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !o.CreatedAt.Before(to) {
			continue
		}
		s.Orders++
		s.Revenue = s.Revenue.Add(o.Total)
	}
	return s, nil
}

func cloneOrder(o order.Order) order.Order {
	o.Lines = slices.Clone(o.Lines)
	for i := range o.Lines {
		o.Lines[i].Promotions = slices.Clone(o.Lines[i].Promotions)
	}
	return o
}
