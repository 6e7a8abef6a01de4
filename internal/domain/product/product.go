package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a product is created without a currency.
const DefaultCurrency = "BDT"

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Slug        string
	SKU         string
	Description string
	Price       decimal.Decimal
	WeightGrams int64
	Currency    string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	// FindActiveByIDs returns the active products among ids. Missing or
	// disabled ids are simply absent from the result.
	FindActiveByIDs(ctx context.Context, ids []string) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, includeDisabled bool) ([]Product, error)
	// Create and Update return a *domain.ConflictError when the slug or SKU
	// is already taken.
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
}
