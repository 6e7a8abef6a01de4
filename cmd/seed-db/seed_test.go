package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/promo-engine/internal/domain/auth"
	"github.com/xenking/promo-engine/internal/domain/product"
	"github.com/xenking/promo-engine/internal/domain/promotion"
	"github.com/xenking/promo-engine/internal/storage/memory"
)

func TestSeed(t *testing.T) {
	store := memory.NewStore()
	s := seeder{
		products:   product.NewService(store.Products(), nil),
		promotions: promotion.NewService(store.Promotions(), store.Products(), memory.NewTxManager(store), nil, nil),
		keys:       store.APIKeys(),
	}
	ctx := context.Background()
	pepper := []byte("pepper")

	// Seeding twice leaves one copy of everything.
	for range 2 {
		require.NoError(t, s.seed(ctx, "admin-key", pepper))
	}

	products, err := s.products.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, products, len(demoProducts))

	promos, err := s.promotions.List(ctx)
	require.NoError(t, err)
	require.Len(t, promos, 3)
	kinds := map[promotion.Kind]bool{}
	for _, p := range promos {
		kinds[p.Kind()] = true
	}
	assert.Equal(t, map[promotion.Kind]bool{
		promotion.KindPercentage: true,
		promotion.KindFixed:      true,
		promotion.KindWeighted:   true,
	}, kinds)

	key, err := auth.NewAuthenticator(store.APIKeys(), pepper).Authenticate(ctx, "admin-key")
	require.NoError(t, err)
	assert.True(t, key.HasScope(auth.ScopeAdmin))
}
