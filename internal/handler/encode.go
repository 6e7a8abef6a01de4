package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/order"
	"github.com/xenking/promo-engine/internal/domain/product"
	"github.com/xenking/promo-engine/internal/domain/promotion"
)

// Money is encoded as a string with two decimals, other decimals verbatim.

func money(e *jx.Encoder, field string, d decimal.Decimal) {
	e.FieldStart(field)
	e.Str(d.StringFixed(2))
}

func timestamp(e *jx.Encoder, field string, t time.Time) {
	e.FieldStart(field)
	e.Str(t.UTC().Format(time.RFC3339))
}

func optTimestamp(e *jx.Encoder, field string, t *time.Time) {
	if t == nil {
		e.FieldStart(field)
		e.Null()
		return
	}
	timestamp(e, field, *t)
}

func str(e *jx.Encoder, field, v string) {
	e.FieldStart(field)
	e.Str(v)
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	writeRaw(w, status, e.Bytes())
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	str(e, "id", p.ID)
	str(e, "name", p.Name)
	str(e, "slug", p.Slug)
	str(e, "sku", p.SKU)
	str(e, "description", p.Description)
	money(e, "price", p.Price)
	e.FieldStart("weight")
	e.Int64(p.WeightGrams)
	str(e, "currency", p.Currency)
	e.FieldStart("isEnabled")
	e.Bool(p.Active)
	timestamp(e, "createdAt", p.CreatedAt)
	timestamp(e, "updatedAt", p.UpdatedAt)
	e.ObjEnd()
}

func encodeProducts(e *jx.Encoder, ps []product.Product) {
	e.ArrStart()
	for i := range ps {
		encodeProduct(e, &ps[i])
	}
	e.ArrEnd()
}

func encodeSlab(e *jx.Encoder, s *promotion.Slab) {
	e.ObjStart()
	str(e, "id", s.ID)
	e.FieldStart("minWeight")
	e.Int64(s.RangeStart)
	e.FieldStart("maxWeight")
	if s.RangeEnd != nil {
		e.Int64(*s.RangeEnd)
	} else {
		e.Null()
	}
	str(e, "ruleType", string(s.RuleKind))
	str(e, "value", s.RuleValue.String())
	e.FieldStart("isEnabled")
	e.Bool(s.Active)
	e.ObjEnd()
}

func encodePromotion(e *jx.Encoder, p *promotion.Promotion) {
	e.ObjStart()
	str(e, "id", p.ID)
	str(e, "title", p.Name)
	str(e, "type", string(p.Kind()))
	if p.Config.Value.Valid {
		str(e, "value", p.Config.Value.Decimal.String())
	}
	e.FieldStart("isEnabled")
	e.Bool(p.Active)
	e.FieldStart("priority")
	e.Int(p.Priority)
	optTimestamp(e, "startDate", p.StartsAt)
	optTimestamp(e, "endDate", p.EndsAt)
	e.FieldStart("slabs")
	e.ArrStart()
	for i := range p.Slabs {
		encodeSlab(e, &p.Slabs[i])
	}
	e.ArrEnd()
	timestamp(e, "createdAt", p.CreatedAt)
	timestamp(e, "updatedAt", p.UpdatedAt)
	e.ObjEnd()
}

func encodePromotions(e *jx.Encoder, ps []promotion.Promotion) {
	e.ArrStart()
	for i := range ps {
		encodePromotion(e, &ps[i])
	}
	e.ArrEnd()
}

func encodeResult(e *jx.Encoder, res promotion.Result) {
	e.ObjStart()
	money(e, "discount", res.Amount)
	e.FieldStart("applied")
	e.Bool(res.Applied)
	if res.Kind != "" {
		str(e, "type", string(res.Kind))
	}
	if res.Reason != "" {
		str(e, "reason", res.Reason)
	}
	e.ObjEnd()
}

func encodeLine(e *jx.Encoder, l *order.Line) {
	e.ObjStart()
	str(e, "id", l.ID)
	str(e, "productId", l.ProductID)
	str(e, "productName", l.Name)
	str(e, "productSku", l.SKU)
	money(e, "unitPrice", l.UnitPrice)
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	money(e, "subtotal", l.Subtotal)
	money(e, "discount", l.Discount)
	money(e, "total", l.Total)
	e.FieldStart("appliedPromotions")
	e.ArrStart()
	for _, ap := range l.Promotions {
		e.ObjStart()
		str(e, "promotionId", ap.PromotionID)
		str(e, "title", ap.Name)
		str(e, "type", string(ap.Kind))
		money(e, "discount", ap.Amount)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	str(e, "id", o.ID)
	str(e, "userId", o.UserID)
	e.FieldStart("promotionId")
	if o.PromotionID != nil {
		e.Str(*o.PromotionID)
	} else {
		e.Null()
	}
	e.FieldStart("customerInfo")
	e.ObjStart()
	str(e, "name", o.Customer.Name)
	str(e, "email", o.Customer.Email)
	if o.Customer.Phone != "" {
		str(e, "phone", o.Customer.Phone)
	}
	if o.Customer.Address != "" {
		str(e, "address", o.Customer.Address)
	}
	e.ObjEnd()
	e.FieldStart("items")
	e.ArrStart()
	for i := range o.Lines {
		encodeLine(e, &o.Lines[i])
	}
	e.ArrEnd()
	money(e, "subtotal", o.Subtotal)
	money(e, "discount", o.Discount)
	money(e, "total", o.Total)
	str(e, "currency", o.Currency)
	str(e, "status", string(o.Status))
	timestamp(e, "createdAt", o.CreatedAt)
	timestamp(e, "updatedAt", o.UpdatedAt)
	e.ObjEnd()
}

func encodeOrderPage(e *jx.Encoder, orders []order.Order, total, page, limit int) {
	e.ObjStart()
	e.FieldStart("data")
	e.ArrStart()
	for i := range orders {
		encodeOrder(e, &orders[i])
	}
	e.ArrEnd()
	e.FieldStart("pagination")
	e.ObjStart()
	e.FieldStart("page")
	e.Int(page)
	e.FieldStart("limit")
	e.Int(limit)
	e.FieldStart("total")
	e.Int(total)
	e.FieldStart("totalPages")
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	e.Int(pages)
	e.ObjEnd()
	e.ObjEnd()
}

func encodeStats(e *jx.Encoder, s *order.Stats, products, promotions catalogCounts) {
	e.ObjStart()
	e.FieldStart("totalOrders")
	e.Int64(s.TotalOrders)
	money(e, "totalRevenue", s.TotalRevenue)
	money(e, "averageOrderValue", s.AverageOrderValue)
	e.FieldStart("todayOrders")
	e.Int64(s.TodayOrders)
	money(e, "todayRevenue", s.TodayRevenue)
	e.FieldStart("weekOrders")
	e.Int64(s.WeekOrders)
	money(e, "weekRevenue", s.WeekRevenue)
	e.FieldStart("monthOrders")
	e.Int64(s.MonthOrders)
	money(e, "monthRevenue", s.MonthRevenue)
	encodeCounts(e, "products", products)
	encodeCounts(e, "promotions", promotions)
	e.ObjEnd()
}

func encodeCounts(e *jx.Encoder, field string, c catalogCounts) {
	e.FieldStart(field)
	e.ObjStart()
	e.FieldStart("total")
	e.Int(c.Total)
	e.FieldStart("active")
	e.Int(c.Active)
	e.FieldStart("inactive")
	e.Int(c.Total - c.Active)
	e.ObjEnd()
}
