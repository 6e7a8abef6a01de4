package main

import (
	"context"
	"log/slog"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain"
	"github.com/xenking/promo-engine/internal/domain/auth"
	"github.com/xenking/promo-engine/internal/domain/product"
	"github.com/xenking/promo-engine/internal/domain/promotion"
)

const adminKeyID = "default-admin"

var demoProducts = []product.CreateRequest{
	{Name: "Miniket Rice 5kg", Slug: "miniket-rice-5kg", SKU: "RICE-MINIKET-5", Price: decimal.RequireFromString("450.00"), WeightGrams: 5000},
	{Name: "Red Lentils 1kg", Slug: "red-lentils-1kg", SKU: "DAL-RED-1", Price: decimal.RequireFromString("140.00"), WeightGrams: 1000},
	{Name: "Soybean Oil 2L", Slug: "soybean-oil-2l", SKU: "OIL-SOY-2", Price: decimal.RequireFromString("360.00"), WeightGrams: 1850},
	{Name: "Black Tea 400g", Slug: "black-tea-400g", SKU: "TEA-BLACK-400", Price: decimal.RequireFromString("220.00"), WeightGrams: 400},
	{Name: "Sugar 1kg", Slug: "sugar-1kg", SKU: "SUGAR-1", Price: decimal.RequireFromString("130.00"), WeightGrams: 1000},
}

func demoPromotions() []promotion.CreateRequest {
	pct := decimal.NewFromInt(5)
	fixed := decimal.NewFromInt(10)
	return []promotion.CreateRequest{
		{Title: "Weekly 5% off", Kind: promotion.KindPercentage, PercentageValue: &pct, Priority: 1},
		{Title: "Flat 10 off per item", Kind: promotion.KindFixed, FixedValue: &fixed},
		{
			Title:    "Bulk weight savings",
			Kind:     promotion.KindWeighted,
			Priority: 2,
			Slabs: []promotion.SlabInput{
				{MinWeight: 0, MaxWeight: 999, DiscountPerUnit: decimal.NewFromInt(5)},
				{MinWeight: 1000, MaxWeight: 4999, DiscountPerUnit: decimal.NewFromInt(15)},
				{MinWeight: 5000, MaxWeight: 50000, DiscountPerUnit: decimal.NewFromInt(40)},
			},
		},
	}
}

type seeder struct {
	products   *product.Service
	promotions *promotion.Service
	keys       auth.Repository
}

// seed is safe to rerun: existing products and promotions are kept.
func (s seeder) seed(ctx context.Context, apiKey string, pepper []byte) error {
	if err := s.seedProducts(ctx); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := s.seedPromotions(ctx); err != nil {
		return errors.Wrap(err, "seed promotions")
	}
	if err := s.seedAPIKey(ctx, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	return nil
}

func (s seeder) seedProducts(ctx context.Context) error {
	slog.Info("seeding products", slog.Int("count", len(demoProducts)))

	for _, req := range demoProducts {
		p, err := s.products.Create(ctx, req)
		switch {
		case errors.Is(err, domain.ErrConflict):
			slog.Info("product exists", slog.String("sku", req.SKU))
		case err != nil:
			return errors.Wrapf(err, "create product %s", req.SKU)
		default:
			slog.Info("created product", slog.String("id", p.ID), slog.String("sku", p.SKU))
		}
	}
	return nil
}

func (s seeder) seedPromotions(ctx context.Context) error {
	existing, err := s.promotions.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list promotions")
	}
	titles := make(map[string]bool, len(existing))
	for _, p := range existing {
		titles[p.Name] = true
	}

	for _, req := range demoPromotions() {
		if titles[req.Title] {
			slog.Info("promotion exists", slog.String("title", req.Title))
			continue
		}
		p, err := s.promotions.Create(ctx, req)
		if err != nil {
			return errors.Wrapf(err, "create promotion %q", req.Title)
		}
		slog.Info("created promotion",
			slog.String("id", p.ID),
			slog.String("title", p.Name),
			slog.String("type", string(p.Kind())),
		)
	}
	return nil
}

func (s seeder) seedAPIKey(ctx context.Context, apiKey string, pepper []byte) error {
	slog.Info("seeding default API key")

	if err := s.keys.Upsert(ctx, &auth.APIKeyInfo{
		ID:      adminKeyID,
		KeyHash: auth.HashKey(pepper, apiKey),
		Name:    "Default admin key",
		UserID:  "admin",
		Scopes:  []string{auth.ScopeAdmin},
		Active:  true,
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", adminKeyID))
	return nil
}
