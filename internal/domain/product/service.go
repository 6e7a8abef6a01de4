package product

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/domain"
)

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9-]+$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	maxPrice        = decimal.RequireFromString("9999999.99")
)

// CreateRequest holds the fields of a new product.
type CreateRequest struct {
	Name        string
	Slug        string
	SKU         string
	Description string
	Price       decimal.Decimal
	WeightGrams int64
	Currency    string
	Active      *bool
}

// UpdateRequest holds the fields to change. Nil fields are kept.
type UpdateRequest struct {
	Name        *string
	Slug        *string
	SKU         *string
	Description *string
	Price       *decimal.Decimal
	WeightGrams *int64
	Currency    *string
}

// Service manages the product catalog.
type Service struct {
	products Repository
	now      func() time.Time
}

// NewService creates a product Service.
func NewService(products Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{products: products, now: now}
}

// List returns the catalog, optionally including disabled products.
func (s *Service) List(ctx context.Context, includeDisabled bool) ([]Product, error) {
	products, err := s.products.List(ctx, includeDisabled)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	now := s.now().UTC()
	p := &Product{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(req.Name),
		Slug:        req.Slug,
		SKU:         req.SKU,
		Description: req.Description,
		Price:       req.Price,
		WeightGrams: req.WeightGrams,
		Currency:    req.Currency,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}
	zctx.From(ctx).Info("Product created",
		zap.String("product_id", p.ID),
		zap.String("sku", p.SKU),
	)
	return p, nil
}

// Update applies a partial update to an existing product.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil {
		p.Slug = *req.Slug
	}
	if req.SKU != nil {
		p.SKU = *req.SKU
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.WeightGrams != nil {
		p.WeightGrams = *req.WeightGrams
	}
	if req.Currency != nil {
		p.Currency = *req.Currency
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	p.UpdatedAt = s.now().UTC()
	if err := s.products.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("updating product %q: %w", id, err)
	}
	return p, nil
}

// SetActive enables or disables a product. Setting the current state is a
// no-op.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Active == active {
		return p, nil
	}

	p.Active = active
	p.UpdatedAt = s.now().UTC()
	if err := s.products.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("toggling product %q: %w", id, err)
	}
	zctx.From(ctx).Info("Product toggled",
		zap.String("product_id", id),
		zap.Bool("active", active),
	)
	return p, nil
}

func validate(p *Product) error {
	var violations []error
	field := func(name, reason string) {
		violations = append(violations, &domain.FieldError{Field: name, Reason: reason})
	}

	if n := len(p.Name); n == 0 || n > 255 {
		field("name", "must be between 1 and 255 characters")
	}
	if !slugPattern.MatchString(p.Slug) {
		field("slug", "must contain only lowercase letters, numbers, and hyphens")
	}
	if n := len(p.SKU); n == 0 || n > 100 {
		field("sku", "must be between 1 and 100 characters")
	}
	if !p.Price.IsPositive() {
		field("price", "must be greater than 0")
	} else if p.Price.GreaterThan(maxPrice) {
		field("price", "must not exceed 9999999.99")
	}
	if p.WeightGrams < 0 {
		field("weight", "must not be negative")
	}
	if !currencyPattern.MatchString(p.Currency) {
		field("currency", "must be a 3-letter code")
	}

	return domain.NewValidationError(violations...)
}
