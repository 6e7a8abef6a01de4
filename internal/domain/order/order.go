package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/promotion"
)

// Order is a point-in-time receipt. Lines and applied promotions are stored
// as computed at placement and never re-derived.
type Order struct {
	ID          string
	UserID      string
	PromotionID *string
	Customer    Customer
	Lines       []Line
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
	Currency    string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Customer holds the contact details captured with an order.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Line is a single product of an order with its product snapshot.
type Line struct {
	ID         string
	ProductID  string
	Name       string
	SKU        string
	UnitPrice  decimal.Decimal
	Quantity   int
	Subtotal   decimal.Decimal
	Promotions []AppliedPromotion
	Discount   decimal.Decimal
	Total      decimal.Decimal
}

// AppliedPromotion records one promotion's contribution to a line discount.
type AppliedPromotion struct {
	PromotionID string          `json:"promotion_id"`
	Name        string          `json:"name"`
	Kind        promotion.Kind  `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
}

// SortField selects the ordering of order listings.
type SortField string

// Sort fields.
const (
	SortCreatedAt SortField = "createdAt"
	SortTotal     SortField = "total"
)

// ListFilter narrows and pages an order listing. Zero values mean no filter.
type ListFilter struct {
	UserID string
	Status Status
	SortBy SortField
	Asc    bool
	Page   int
	Limit  int
}

// Summary aggregates orders in a time range.
type Summary struct {
	Orders  int64
	Revenue decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create stores the order and all its lines, or nothing.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// List returns one page of orders and the total number matching f.
	List(ctx context.Context, f ListFilter) ([]Order, int, error)
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error
	// Summarize aggregates orders created in [from, to). Zero bounds are open.
	Summarize(ctx context.Context, from, to time.Time) (Summary, error)
}
