package promotion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/domain"
	"github.com/xenking/promo-engine/internal/domain/product"
)

// SlabInput is a weight tier submitted by an admin.
type SlabInput struct {
	MinWeight       int64
	MaxWeight       int64
	DiscountPerUnit decimal.Decimal
}

// CreateRequest holds the fields of a new promotion.
type CreateRequest struct {
	Title           string
	Kind            Kind
	StartsAt        *time.Time
	EndsAt          *time.Time
	Enabled         *bool
	Priority        int
	Slabs           []SlabInput
	PercentageValue *decimal.Decimal
	FixedValue      *decimal.Decimal
}

// UpdateRequest changes the title and date window of a promotion. Only these
// fields are editable; the kind and values are fixed at creation.
type UpdateRequest struct {
	Title    *string
	StartsAt **time.Time
	EndsAt   **time.Time
}

// Invalidator drops cached promotion state after a write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service implements promotion administration and single-promotion
// evaluation.
type Service struct {
	promotions Repository
	products   product.Repository
	tx         domain.TxManager
	cache      Invalidator
	now        func() time.Time
}

// NewService creates a promotion Service. cache may be nil.
func NewService(
	promotions Repository,
	products product.Repository,
	tx domain.TxManager,
	cache Invalidator,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		promotions: promotions,
		products:   products,
		tx:         tx,
		cache:      cache,
		now:        now,
	}
}

// Active returns the promotions in effect at now, highest priority first.
func (s *Service) Active(ctx context.Context, now time.Time) ([]Promotion, error) {
	promos, err := s.promotions.FindActive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("finding active promotions: %w", err)
	}
	return promos, nil
}

// List returns every promotion.
func (s *Service) List(ctx context.Context) ([]Promotion, error) {
	promos, err := s.promotions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	return promos, nil
}

// Get returns a promotion with its slabs.
func (s *Service) Get(ctx context.Context, id string) (*Promotion, error) {
	return s.promotions.FindByID(ctx, id)
}

// Create validates and stores a promotion. Percentage and fixed promotions get
// a single unbounded slab carrying their value.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Promotion, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &Promotion{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(req.Title),
		Active:    true,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		Priority:  req.Priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Enabled != nil {
		p.Active = *req.Enabled
	}

	switch req.Kind {
	case KindPercentage:
		p.Config = PercentageConfig(*req.PercentageValue)
		p.Slabs = []Slab{newSlab(p.ID, 0, nil, RulePercentage, *req.PercentageValue)}
	case KindFixed:
		p.Config = FixedConfig(*req.FixedValue)
		p.Slabs = []Slab{newSlab(p.ID, 0, nil, RuleFixed, *req.FixedValue)}
	case KindWeighted:
		p.Config = WeightedConfig()
		p.Slabs = slabsFromInput(p.ID, req.Slabs)
	}

	if err := s.promotions.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("creating promotion: %w", err)
	}
	s.invalidate(ctx)

	zctx.From(ctx).Info("Promotion created",
		zap.String("promotion_id", p.ID),
		zap.String("kind", string(req.Kind)),
		zap.Int("slabs", len(p.Slabs)),
	)
	return p, nil
}

// Update changes the title and date window.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Promotion, error) {
	p, err := s.promotions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		p.Name = strings.TrimSpace(*req.Title)
	}
	if req.StartsAt != nil {
		p.StartsAt = *req.StartsAt
	}
	if req.EndsAt != nil {
		p.EndsAt = *req.EndsAt
	}
	if err := domain.NewValidationError(validateTitle(p.Name), validateWindow(p.StartsAt, p.EndsAt)); err != nil {
		return nil, err
	}

	p.UpdatedAt = s.now().UTC()
	if err := s.promotions.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("updating promotion %q: %w", id, err)
	}
	s.invalidate(ctx)
	return p, nil
}

// SetEnabled turns a promotion on or off.
func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) (*Promotion, error) {
	p, err := s.promotions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Active == enabled {
		return p, nil
	}

	p.Active = enabled
	p.UpdatedAt = s.now().UTC()
	if err := s.promotions.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("toggling promotion %q: %w", id, err)
	}
	s.invalidate(ctx)

	zctx.From(ctx).Info("Promotion toggled",
		zap.String("promotion_id", id),
		zap.Bool("enabled", enabled),
	)
	return p, nil
}

// ReplaceSlabs validates the new weight tiers and swaps them in atomically.
func (s *Service) ReplaceSlabs(ctx context.Context, id string, inputs []SlabInput) (*Promotion, error) {
	if err := validateSlabInputs(inputs); err != nil {
		return nil, err
	}

	var p *Promotion
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.promotions.FindByID(ctx, id); err != nil {
			return err
		}
		p.Slabs = slabsFromInput(p.ID, inputs)
		return s.promotions.ReplaceSlabs(ctx, p.ID, p.Slabs)
	})
	if err != nil {
		return nil, fmt.Errorf("replacing slabs of promotion %q: %w", id, err)
	}
	s.invalidate(ctx)
	return p, nil
}

// Evaluate computes the discount a single promotion would grant on quantity
// units of a product at the current time.
func (s *Service) Evaluate(ctx context.Context, promotionID, productID string, quantity int) (Result, error) {
	if quantity < 1 {
		return Result{}, &domain.FieldError{Field: "quantity", Reason: "must be at least 1"}
	}

	p, err := s.promotions.FindByID(ctx, promotionID)
	if err != nil {
		return Result{}, err
	}
	prod, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return Result{}, err
	}

	kind := InferKind(p)
	if !p.Active {
		return notApplied(kind, ReasonDisabled), nil
	}
	switch p.windowState(s.now()) {
	case windowNotStarted:
		return notApplied(kind, ReasonNotStarted), nil
	case windowExpired:
		return notApplied(kind, ReasonExpired), nil
	}
	if !prod.Active {
		return notApplied(kind, ReasonProductInactive), nil
	}

	res := Calculate(p, *prod, quantity)
	res.Amount = res.Amount.Round(2)
	return res, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		zctx.From(ctx).Warn("Promotion cache invalidation failed", zap.Error(err))
	}
}

func newSlab(promotionID string, start int64, end *int64, rule RuleKind, value decimal.Decimal) Slab {
	return Slab{
		ID:          uuid.New().String(),
		PromotionID: promotionID,
		RangeStart:  start,
		RangeEnd:    end,
		RuleKind:    rule,
		RuleValue:   value,
		Active:      true,
	}
}

func slabsFromInput(promotionID string, inputs []SlabInput) []Slab {
	slabs := make([]Slab, len(inputs))
	for i, in := range inputs {
		end := in.MaxWeight
		slabs[i] = newSlab(promotionID, in.MinWeight, &end, RuleFixed, in.DiscountPerUnit)
	}
	return slabs
}

func validateCreate(req CreateRequest) error {
	violations := []error{
		validateTitle(req.Title),
		validateWindow(req.StartsAt, req.EndsAt),
	}
	field := func(name, reason string) {
		violations = append(violations, &domain.FieldError{Field: name, Reason: reason})
	}

	switch req.Kind {
	case KindWeighted:
		if len(req.Slabs) == 0 {
			field("slabs", "weighted promotion requires at least one slab")
		} else {
			violations = append(violations, validateSlabInputs(req.Slabs))
		}
	case KindPercentage:
		if len(req.Slabs) > 0 {
			field("slabs", "percentage promotion must not have slabs")
		}
		switch {
		case req.PercentageValue == nil:
			field("percentageValue", "required for percentage promotion")
		case !req.PercentageValue.IsPositive() || req.PercentageValue.GreaterThan(hundred):
			field("percentageValue", "must be greater than 0 and at most 100")
		}
	case KindFixed:
		if len(req.Slabs) > 0 {
			field("slabs", "fixed promotion must not have slabs")
		}
		switch {
		case req.FixedValue == nil:
			field("fixedValue", "required for fixed promotion")
		case !req.FixedValue.IsPositive():
			field("fixedValue", "must be greater than 0")
		}
	default:
		field("type", "must be one of PERCENTAGE, FIXED, WEIGHTED")
	}

	return domain.NewValidationError(violations...)
}

func validateTitle(title string) error {
	if n := len(strings.TrimSpace(title)); n == 0 || n > 255 {
		return &domain.FieldError{Field: "title", Reason: "must be between 1 and 255 characters"}
	}
	return nil
}

func validateWindow(start, end *time.Time) error {
	if start != nil && end != nil && !start.Before(*end) {
		return &domain.FieldError{Field: "endDate", Reason: "start date must be before end date"}
	}
	return nil
}

func validateSlabInputs(inputs []SlabInput) error {
	var violations []error
	ranges := make([]Range, 0, len(inputs))
	for i, in := range inputs {
		prefix := fmt.Sprintf("slabs[%d].", i)
		if in.MinWeight < 0 {
			violations = append(violations, &domain.FieldError{Field: prefix + "minWeight", Reason: "must not be negative"})
		}
		if in.MaxWeight <= 0 {
			violations = append(violations, &domain.FieldError{Field: prefix + "maxWeight", Reason: "must be greater than 0"})
		}
		if !in.DiscountPerUnit.IsPositive() {
			violations = append(violations, &domain.FieldError{Field: prefix + "discountPerUnit", Reason: "must be greater than 0"})
		}
		end := in.MaxWeight
		ranges = append(ranges, Range{Start: in.MinWeight, End: &end})
	}
	if err := ValidateRanges(ranges); err != nil {
		violations = append(violations, err)
	}
	return domain.NewValidationError(violations...)
}
