// Package handler exposes the catalog, promotion and order services over a
// JSON HTTP API mounted under /api.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/promo-engine/internal/domain/auth"
	"github.com/xenking/promo-engine/internal/domain/order"
	"github.com/xenking/promo-engine/internal/domain/product"
	"github.com/xenking/promo-engine/internal/domain/promotion"
)

// APIKeyHeader carries the raw API key.
const APIKeyHeader = "api_key"

// Handler serves the API routes.
type Handler struct {
	products      *product.Service
	promotions    *promotion.Service
	orders        *order.Service
	authenticator *auth.Authenticator
	validate      *validator.Validate
	now           func() time.Time
}

// Config carries the services behind the API.
type Config struct {
	Products      *product.Service
	Promotions    *promotion.Service
	Orders        *order.Service
	Authenticator *auth.Authenticator
	// Now defaults to time.Now.
	Now func() time.Time
}

// New creates a Handler.
func New(cfg Config) *Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		products:      cfg.Products,
		promotions:    cfg.Promotions,
		orders:        cfg.Orders,
		authenticator: cfg.Authenticator,
		validate:      newValidator(),
		now:           now,
	}
}

// Routes returns the API router. Mount it under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Get("/{id}", h.getProduct)
		r.Group(func(r chi.Router) {
			r.Use(h.authenticate, requireScope(auth.ScopeAdmin))
			r.Post("/", h.createProduct)
			r.Patch("/{id}", h.updateProduct)
			r.Post("/{id}/toggle", h.toggleProduct)
		})
	})

	r.Route("/promotions", func(r chi.Router) {
		r.Get("/active", h.activePromotions)
		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get("/{id}", h.getPromotion)
			r.Post("/{id}/calculate", h.calculateDiscount)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.authenticate, requireScope(auth.ScopeAdmin))
			r.Get("/", h.listPromotions)
			r.Post("/", h.createPromotion)
			r.Patch("/{id}", h.updatePromotion)
			r.Post("/{id}/toggle", h.togglePromotion)
			r.Put("/{id}/slabs", h.replaceSlabs)
		})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(h.authenticate, requireScope(auth.ScopeOrders))
		r.Post("/", h.createOrder)
		r.Get("/", h.myOrders)
		r.Get("/{id}", h.getOrder)
	})

	r.Route("/admin/orders", func(r chi.Router) {
		r.Use(h.authenticate, requireScope(auth.ScopeAdmin))
		r.Get("/", h.listOrders)
		r.Get("/stats", h.orderStats)
		r.Patch("/{id}/status", h.updateOrderStatus)
	})

	return r
}
