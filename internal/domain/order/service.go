package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/domain"
	"github.com/xenking/promo-engine/internal/domain/product"
	"github.com/xenking/promo-engine/internal/domain/promotion"
)

const instrumentationName = "github.com/xenking/promo-engine/internal/domain/order"

// Item is one requested line of a new order.
type Item struct {
	ProductID string
	Quantity  int
}

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	UserID   string
	Customer Customer
	Items    []Item
	// PromotionID restricts discounting to a single promotion. When nil every
	// active promotion is applied and their discounts add up.
	PromotionID *string
}

// Stats summarizes order volume and revenue.
type Stats struct {
	TotalOrders       int64
	TotalRevenue      decimal.Decimal
	AverageOrderValue decimal.Decimal
	TodayOrders       int64
	TodayRevenue      decimal.Decimal
	WeekOrders        int64
	WeekRevenue       decimal.Decimal
	MonthOrders       int64
	MonthRevenue      decimal.Decimal
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCurrency sets the currency recorded on new orders.
func WithCurrency(currency string) Option {
	return func(s *Service) { s.currency = currency }
}

// WithMeterProvider enables order metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// WithTracerProvider enables order tracing.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// Service encapsulates order placement and order queries.
type Service struct {
	products   product.Repository
	promotions promotion.Source
	orders     Repository
	tx         domain.TxManager

	now           func() time.Time
	currency      string
	meterProvider metric.MeterProvider
	tracer        trace.Tracer

	ordersCreated    metric.Int64Counter
	discountsApplied metric.Int64Counter
	discountsSkipped metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	promotions promotion.Source,
	orders Repository,
	tx domain.TxManager,
	opts ...Option,
) *Service {
	s := &Service{
		products:      products,
		promotions:    promotions,
		orders:        orders,
		tx:            tx,
		now:           time.Now,
		currency:      product.DefaultCurrency,
		meterProvider: metricnoop.NewMeterProvider(),
		tracer:        tracenoop.NewTracerProvider().Tracer(instrumentationName),
	}
	for _, o := range opts {
		o(s)
	}

	meter := s.meterProvider.Meter(instrumentationName)
	s.ordersCreated = counter(meter, "promo.orders.created", "Orders placed")
	s.discountsApplied = counter(meter, "promo.discounts.applied", "Promotions applied to order lines")
	s.discountsSkipped = counter(meter, "promo.discounts.skipped", "Promotions evaluated but not applied")
	return s
}

func counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return metricnoop.Int64Counter{}
	}
	return c
}

// CreateOrder validates the request, prices every line against the active
// promotions and stores the order atomically. The product read and the order
// write share one transaction.
func (s *Service) CreateOrder(ctx context.Context, req CreateRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Create")
	defer span.End()

	ids, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	promos, err := s.promotions.Active(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("loading active promotions: %w", err)
	}
	promos = selectPromotions(promos, req.PromotionID)

	o := &Order{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		PromotionID: req.PromotionID,
		Customer:    req.Customer,
		Currency:    s.currency,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		fetched, err := s.products.FindActiveByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("get products: %w", err)
		}

		byID := make(map[string]product.Product, len(fetched))
		for _, p := range fetched {
			byID[p.ID] = p
		}
		var missing []string
		for _, id := range ids {
			if _, ok := byID[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return domain.NewValidationError(&ProductNotFoundError{IDs: missing})
		}

		if err := s.price(ctx, o, req.Items, byID, promos); err != nil {
			return err
		}
		if err := s.orders.Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order")
		return nil, err
	}

	s.ordersCreated.Add(ctx, 1)
	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.Int("order.lines", len(o.Lines)),
	)
	zctx.From(ctx).Info("Order created",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.Int("lines", len(o.Lines)),
		zap.String("subtotal", o.Subtotal.StringFixed(2)),
		zap.String("discount", o.Discount.StringFixed(2)),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return o, nil
}

// price fills in lines and totals. Each promotion's contribution is rounded
// to cents, summed, and the sum is capped at the line subtotal.
func (s *Service) price(
	ctx context.Context,
	o *Order,
	items []Item,
	products map[string]product.Product,
	promos []promotion.Promotion,
) error {
	o.Lines = make([]Line, 0, len(items))
	o.Subtotal, o.Discount = decimal.Zero, decimal.Zero

	for _, item := range items {
		p := products[item.ProductID]
		qty := decimal.NewFromInt(int64(item.Quantity))

		line := Line{
			ID:        uuid.New().String(),
			ProductID: p.ID,
			Name:      p.Name,
			SKU:       p.SKU,
			UnitPrice: p.Price,
			Quantity:  item.Quantity,
			Subtotal:  p.Price.Mul(qty).Round(2),
		}

		discount := decimal.Zero
		for i := range promos {
			res := promotion.Calculate(&promos[i], p, item.Quantity)
			amount := res.Amount.Round(2)
			if !res.Applied || !amount.IsPositive() {
				s.discountsSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(res.Kind))))
				continue
			}
			s.discountsApplied.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(res.Kind))))
			line.Promotions = append(line.Promotions, AppliedPromotion{
				PromotionID: promos[i].ID,
				Name:        promos[i].Name,
				Kind:        res.Kind,
				Amount:      amount,
			})
			discount = discount.Add(amount)
		}

		line.Discount = decimal.Min(discount, line.Subtotal)
		line.Total = line.Subtotal.Sub(line.Discount)

		o.Subtotal = o.Subtotal.Add(line.Subtotal)
		o.Discount = o.Discount.Add(line.Discount)
		o.Lines = append(o.Lines, line)
	}

	o.Total = o.Subtotal.Sub(o.Discount)
	if o.Total.IsNegative() {
		return domain.NewValidationError(ErrNegativeTotal)
	}
	return nil
}

// selectPromotions keeps only the requested promotion when one is given. A
// requested promotion that is not currently active grants nothing.
func selectPromotions(active []promotion.Promotion, id *string) []promotion.Promotion {
	if id == nil {
		return active
	}
	for _, p := range active {
		if p.ID == *id {
			return []promotion.Promotion{p}
		}
	}
	return nil
}

func validateRequest(req CreateRequest) ([]string, error) {
	var violations []error

	switch n := len(req.Items); {
	case n == 0:
		violations = append(violations, ErrEmptyItems)
	case n > MaxItems:
		violations = append(violations, ErrTooManyItems)
	}

	var (
		ids  = make([]string, 0, len(req.Items))
		seen = make(map[string]int, len(req.Items))
		dups []string
	)
	for i, item := range req.Items {
		if item.ProductID == "" {
			violations = append(violations, &domain.FieldError{
				Field:  fmt.Sprintf("items[%d].productId", i),
				Reason: "is required",
			})
			continue
		}
		if item.Quantity < MinQuantity || item.Quantity > MaxQuantity {
			violations = append(violations, &InvalidQuantityError{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		seen[item.ProductID]++
		switch seen[item.ProductID] {
		case 1:
			ids = append(ids, item.ProductID)
		case 2:
			dups = append(dups, item.ProductID)
		}
	}
	if len(dups) > 0 {
		violations = append(violations, &DuplicateProductError{IDs: dups})
	}

	if strings.TrimSpace(req.Customer.Name) == "" {
		violations = append(violations, &domain.FieldError{Field: "customerInfo.name", Reason: "is required"})
	}
	if !strings.Contains(req.Customer.Email, "@") {
		violations = append(violations, &domain.FieldError{Field: "customerInfo.email", Reason: "must be a valid email"})
	}

	return ids, domain.NewValidationError(violations...)
}

// Get returns an order. When userID is set, orders of other users are
// reported as not found.
func (s *Service) Get(ctx context.Context, id, userID string) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &domain.FieldError{Field: "id", Reason: "invalid order ID format"}
	}

	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != "" && o.UserID != userID {
		return nil, &domain.NotFoundError{Entity: "order", ID: id}
	}
	return o, nil
}

// ListByUser returns a page of the user's orders.
func (s *Service) ListByUser(ctx context.Context, userID string, f ListFilter) ([]Order, int, error) {
	if userID == "" {
		return nil, 0, &domain.FieldError{Field: "userId", Reason: "is required"}
	}
	f.UserID = userID
	return s.List(ctx, f)
}

// List returns a page of orders matching f.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	f, err := normalizeFilter(f)
	if err != nil {
		return nil, 0, err
	}

	orders, total, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	return orders, total, nil
}

// Default paging of order listings.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

func normalizeFilter(f ListFilter) (ListFilter, error) {
	var violations []error
	if f.Page < 0 {
		violations = append(violations, &domain.FieldError{Field: "page", Reason: "must be positive"})
	}
	if f.Limit < 0 || f.Limit > MaxLimit {
		violations = append(violations, &domain.FieldError{Field: "limit", Reason: fmt.Sprintf("must be between 1 and %d", MaxLimit)})
	}
	switch f.SortBy {
	case "":
		f.SortBy = SortCreatedAt
	case SortCreatedAt, SortTotal:
	default:
		violations = append(violations, &domain.FieldError{Field: "sortBy", Reason: "must be createdAt or total"})
	}
	if f.Status != "" {
		if _, ok := ParseStatus(string(f.Status)); !ok {
			violations = append(violations, &domain.FieldError{Field: "status", Reason: "unknown order status"})
		}
	}
	if err := domain.NewValidationError(violations...); err != nil {
		return f, err
	}

	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	return f, nil
}

// UpdateStatus moves an order along its lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransition(to) {
		return nil, &TransitionError{From: o.Status, To: to}
	}

	at := s.now().UTC()
	if err := s.orders.UpdateStatus(ctx, id, to, at); err != nil {
		return nil, fmt.Errorf("updating status of order %q: %w", id, err)
	}
	zctx.From(ctx).Info("Order status changed",
		zap.String("order_id", id),
		zap.String("from", string(o.Status)),
		zap.String("to", string(to)),
	)

	o.Status = to
	o.UpdatedAt = at
	return o, nil
}

// Stats returns overall and windowed order figures. The day window is the
// current UTC calendar day; the week and month windows run from midnight UTC
// seven days and one calendar month back, up to now.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	all, err := s.orders.Summarize(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, errors.Wrap(err, "summarize orders")
	}

	dayStart := s.now().UTC().Truncate(24 * time.Hour)
	today, err := s.orders.Summarize(ctx, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, errors.Wrap(err, "summarize today's orders")
	}
	week, err := s.orders.Summarize(ctx, dayStart.AddDate(0, 0, -7), time.Time{})
	if err != nil {
		return nil, errors.Wrap(err, "summarize week's orders")
	}
	month, err := s.orders.Summarize(ctx, dayStart.AddDate(0, -1, 0), time.Time{})
	if err != nil {
		return nil, errors.Wrap(err, "summarize month's orders")
	}

	avg := decimal.Zero
	if all.Orders > 0 {
		avg = all.Revenue.Div(decimal.NewFromInt(all.Orders)).Round(2)
	}
	return &Stats{
		TotalOrders:       all.Orders,
		TotalRevenue:      all.Revenue,
		AverageOrderValue: avg,
		TodayOrders:       today.Orders,
		TodayRevenue:      today.Revenue,
		WeekOrders:        week.Orders,
		WeekRevenue:       week.Revenue,
		MonthOrders:       month.Orders,
		MonthRevenue:      month.Revenue,
	}, nil
}
