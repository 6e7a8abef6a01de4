package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/product"
)

type createProductBody struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Slug        string          `json:"slug" validate:"required"`
	SKU         string          `json:"sku" validate:"required,max=100"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Weight      int64           `json:"weight" validate:"min=0"`
	Currency    string          `json:"currency" validate:"omitempty,len=3"`
	IsEnabled   *bool           `json:"isEnabled"`
}

type updateProductBody struct {
	Name        *string          `json:"name" validate:"omitempty,max=255"`
	Slug        *string          `json:"slug"`
	SKU         *string          `json:"sku" validate:"omitempty,max=100"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Weight      *int64           `json:"weight" validate:"omitempty,min=0"`
	Currency    *string          `json:"currency" validate:"omitempty,len=3"`
}

type toggleBody struct {
	IsEnabled *bool `json:"isEnabled" validate:"required"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	includeDisabled, err := queryBool(r, "includeDisabled")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	products, err := h.products.List(r.Context(), includeDisabled)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProducts(e, products) })
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var body createProductBody
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.products.Create(r.Context(), product.CreateRequest{
		Name:        body.Name,
		Slug:        body.Slug,
		SKU:         body.SKU,
		Description: body.Description,
		Price:       body.Price,
		WeightGrams: body.Weight,
		Currency:    body.Currency,
		Active:      body.IsEnabled,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeProduct(e, p) })
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var body updateProductBody
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), product.UpdateRequest{
		Name:        body.Name,
		Slug:        body.Slug,
		SKU:         body.SKU,
		Description: body.Description,
		Price:       body.Price,
		WeightGrams: body.Weight,
		Currency:    body.Currency,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
}

func (h *Handler) toggleProduct(w http.ResponseWriter, r *http.Request) {
	var body toggleBody
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.products.SetActive(r.Context(), chi.URLParam(r, "id"), *body.IsEnabled)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
}
