package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/promo-engine/internal/domain"
)

// Limits on a single order request.
const (
	MaxItems    = 50
	MinQuantity = 1
	MaxQuantity = 1000
)

// Order validation errors. They are always reported inside a
// *domain.ValidationError.
var (
	ErrEmptyItems    = errors.New("at least one item is required")
	ErrTooManyItems  = errors.Errorf("maximum %d items allowed per order", MaxItems)
	ErrNegativeTotal = errors.New("invalid order total calculation")
)

// ProductNotFoundError lists every requested product that is missing or
// disabled.
type ProductNotFoundError struct {
	IDs []string
}

func (e *ProductNotFoundError) Error() string {
	return "one or more products not found or disabled: " + strings.Join(e.IDs, ", ")
}

func (e *ProductNotFoundError) Is(target error) bool { return target == domain.ErrInvalidInput }

// DuplicateProductError lists products requested on more than one line.
type DuplicateProductError struct {
	IDs []string
}

func (e *DuplicateProductError) Error() string {
	return "duplicate products in order: " + strings.Join(e.IDs, ", ")
}

func (e *DuplicateProductError) Is(target error) bool { return target == domain.ErrInvalidInput }

// InvalidQuantityError indicates a line quantity outside the allowed bounds.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity for product %s must be between %d and %d, got %d",
		e.ProductID, MinQuantity, MaxQuantity, e.Quantity)
}

func (e *InvalidQuantityError) Is(target error) bool { return target == domain.ErrInvalidInput }
