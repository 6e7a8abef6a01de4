package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/promo-engine/internal/domain"
	"github.com/xenking/promo-engine/internal/domain/auth"
	"github.com/xenking/promo-engine/internal/domain/order"
)

type customerBody struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Address string `json:"address" validate:"omitempty,max=500"`
}

type orderItemBody struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity"`
}

// Item counts and quantities are checked by the order service so that every
// violation is reported together.
type createOrderBody struct {
	CustomerInfo customerBody    `json:"customerInfo"`
	Items        []orderItemBody `json:"items" validate:"dive"`
	PromotionID  *string         `json:"promotionId"`
}

type statusBody struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var body createOrderBody
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]order.Item, len(body.Items))
	for i, it := range body.Items {
		items[i] = order.Item{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	o, err := h.orders.CreateOrder(r.Context(), order.CreateRequest{
		UserID: caller(r).UserID,
		Customer: order.Customer{
			Name:    body.CustomerInfo.Name,
			Email:   body.CustomerInfo.Email,
			Phone:   body.CustomerInfo.Phone,
			Address: body.CustomerInfo.Address,
		},
		Items:       items,
		PromotionID: body.PromotionID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID := caller(r).UserID
	if caller(r).HasScope(auth.ScopeAdmin) {
		userID = ""
	}
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orders, total, err := h.orders.ListByUser(r.Context(), caller(r).UserID, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOrderPage(w, orders, total, f)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f.UserID = r.URL.Query().Get("userId")
	orders, total, err := h.orders.List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOrderPage(w, orders, total, f)
}

// catalogCounts splits a catalog into currently active and inactive entries.
type catalogCounts struct {
	Total  int
	Active int
}

func (h *Handler) orderStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.orders.Stats(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	products, err := h.products.List(ctx, true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	promos, err := h.promotions.List(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	productCounts := catalogCounts{Total: len(products)}
	for i := range products {
		if products[i].Active {
			productCounts.Active++
		}
	}
	now := h.now()
	promoCounts := catalogCounts{Total: len(promos)}
	for i := range promos {
		if promos[i].IsActiveAt(now) {
			promoCounts.Active++
		}
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeStats(e, stats, productCounts, promoCounts)
	})
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	status, ok := order.ParseStatus(body.Status)
	if !ok {
		h.writeError(w, r, &domain.FieldError{Field: "status", Reason: "unknown order status"})
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// listFilter reads page, limit, status, sortBy and sortOrder.
func listFilter(r *http.Request) (order.ListFilter, error) {
	q := r.URL.Query()
	page, err := queryInt(r, "page")
	if err != nil {
		return order.ListFilter{}, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return order.ListFilter{}, err
	}

	f := order.ListFilter{
		SortBy: order.SortField(q.Get("sortBy")),
		Page:   page,
		Limit:  limit,
	}
	if raw := q.Get("status"); raw != "" {
		status, ok := order.ParseStatus(raw)
		if !ok {
			return f, &domain.FieldError{Field: "status", Reason: "unknown order status"}
		}
		f.Status = status
	}
	switch q.Get("sortOrder") {
	case "", "desc":
	case "asc":
		f.Asc = true
	default:
		return f, &domain.FieldError{Field: "sortOrder", Reason: "must be asc or desc"}
	}
	return f, nil
}

func writeOrderPage(w http.ResponseWriter, orders []order.Order, total int, f order.ListFilter) {
	page, limit := f.Page, f.Limit
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = order.DefaultLimit
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrderPage(e, orders, total, page, limit) })
}
