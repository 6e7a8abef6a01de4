package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/promotion"
)

type slabBody struct {
	MinWeight       int64           `json:"minWeight" validate:"min=0"`
	MaxWeight       int64           `json:"maxWeight" validate:"min=0"`
	DiscountPerUnit decimal.Decimal `json:"discountPerUnit"`
}

type createPromotionBody struct {
	Title           string           `json:"title" validate:"required,max=255"`
	Type            string           `json:"type" validate:"required,oneof=PERCENTAGE FIXED WEIGHTED"`
	StartDate       *time.Time       `json:"startDate"`
	EndDate         *time.Time       `json:"endDate"`
	IsEnabled       *bool            `json:"isEnabled"`
	Priority        int              `json:"priority"`
	Slabs           []slabBody       `json:"slabs" validate:"dive"`
	PercentageValue *decimal.Decimal `json:"percentageValue"`
	FixedValue      *decimal.Decimal `json:"fixedValue"`
}

type updatePromotionBody struct {
	Title     *string      `json:"title" validate:"omitempty,max=255"`
	StartDate optionalTime `json:"startDate"`
	EndDate   optionalTime `json:"endDate"`
}

type replaceSlabsBody struct {
	Slabs []slabBody `json:"slabs" validate:"required,min=1,dive"`
}

type calculateBody struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1,max=1000"`
}

func slabInputs(body []slabBody) []promotion.SlabInput {
	if body == nil {
		return nil
	}
	out := make([]promotion.SlabInput, len(body))
	for i, s := range body {
		out[i] = promotion.SlabInput{
			MinWeight:       s.MinWeight,
			MaxWeight:       s.MaxWeight,
			DiscountPerUnit: s.DiscountPerUnit,
		}
	}
	return out
}

func (h *Handler) activePromotions(w http.ResponseWriter, r *http.Request) {
	ps, err := h.promotions.Active(r.Context(), h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePromotions(e, ps) })
}

func (h *Handler) listPromotions(w http.ResponseWriter, r *http.Request) {
	ps, err := h.promotions.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePromotions(e, ps) })
}

func (h *Handler) getPromotion(w http.ResponseWriter, r *http.Request) {
	p, err := h.promotions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePromotion(e, p) })
}

func (h *Handler) createPromotion(w http.ResponseWriter, r *http.Request) {
	var body createPromotionBody
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	kind, _ := promotion.ParseKind(body.Type)
	p, err := h.promotions.Create(r.Context(), promotion.CreateRequest{
		Title:           body.Title,
		Kind:            kind,
		StartsAt:        body.StartDate,
		EndsAt:          body.EndDate,
		Enabled:         body.IsEnabled,
		Priority:        body.Priority,
		Slabs:           slabInputs(body.Slabs),
		PercentageValue: body.PercentageValue,
		FixedValue:      body.FixedValue,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodePromotion(e, p) })
}

func (h *Handler) updatePromotion(w http.ResponseWriter, r *http.Request) {
	var body updatePromotionBody
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.promotions.Update(r.Context(), chi.URLParam(r, "id"), promotion.UpdateRequest{
		Title:    body.Title,
		StartsAt: body.StartDate.ptr(),
		EndsAt:   body.EndDate.ptr(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePromotion(e, p) })
}

func (h *Handler) togglePromotion(w http.ResponseWriter, r *http.Request) {
	var body toggleBody
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.promotions.SetEnabled(r.Context(), chi.URLParam(r, "id"), *body.IsEnabled)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePromotion(e, p) })
}

func (h *Handler) replaceSlabs(w http.ResponseWriter, r *http.Request) {
	var body replaceSlabsBody
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.promotions.ReplaceSlabs(r.Context(), chi.URLParam(r, "id"), slabInputs(body.Slabs))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePromotion(e, p) })
}

func (h *Handler) calculateDiscount(w http.ResponseWriter, r *http.Request) {
	var body calculateBody
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.promotions.Evaluate(r.Context(), chi.URLParam(r, "id"), body.ProductID, body.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeResult(e, res) })
}
