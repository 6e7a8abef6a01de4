package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/promo-engine/internal/domain/promotion"
)

type stubLister struct {
	promos []promotion.Promotion
	err    error
	calls  int
}

func (s *stubLister) List(context.Context) ([]promotion.Promotion, error) {
	s.calls++
	return s.promos, s.err
}

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newCache(t *testing.T, source Lister) (*Promotions, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPromotions(client, source, time.Minute), mr
}

func fixture() []promotion.Promotion {
	later := now.Add(time.Hour)
	end := int64(1000)
	return []promotion.Promotion{
		{ID: "low", Name: "Low", Active: true, Priority: 1, Config: promotion.PercentageConfig(decimal.NewFromInt(10)), Slabs: []promotion.Slab{
			{ID: "s1", RuleKind: promotion.RulePercentage, RuleValue: decimal.NewFromInt(10), Active: true},
		}},
		{ID: "high", Name: "High", Active: true, Priority: 5, Config: promotion.WeightedConfig(), Slabs: []promotion.Slab{
			{ID: "s2", RangeEnd: &end, RuleKind: promotion.RuleFixed, RuleValue: decimal.RequireFromString("2.50"), Active: true},
			{ID: "s3", RangeStart: 1001, RuleKind: promotion.RuleFixed, RuleValue: decimal.NewFromInt(4), Active: false},
		}},
		{ID: "off", Active: false, Priority: 9},
		{ID: "later", Active: true, Priority: 9, StartsAt: &later},
	}
}

func TestPromotions_Active(t *testing.T) {
	ctx := context.Background()
	source := &stubLister{promos: fixture()}
	c, mr := newCache(t, source)

	got, err := c.Active(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "high", got[0].ID)
	assert.Equal(t, "low", got[1].ID)
	require.Len(t, got[0].Slabs, 1, "inactive slabs are dropped")
	assert.True(t, got[0].Slabs[0].RuleValue.Equal(decimal.RequireFromString("2.50")))
	require.NotNil(t, got[0].Slabs[0].RangeEnd)
	assert.Equal(t, int64(1000), *got[0].Slabs[0].RangeEnd)
	assert.True(t, mr.Exists(DefaultKey))

	t.Run("ServedFromCache", func(t *testing.T) {
		again, err := c.Active(ctx, now)
		require.NoError(t, err)
		assert.Len(t, again, 2)
		assert.Equal(t, 1, source.calls)
		assert.Equal(t, promotion.KindPercentage, again[1].Config.Kind)
		assert.True(t, again[1].Config.Value.Valid)
	})

	t.Run("WindowCheckedPerRead", func(t *testing.T) {
		later, err := c.Active(ctx, now.Add(2*time.Hour))
		require.NoError(t, err)
		require.Len(t, later, 3)
		assert.Equal(t, "later", later[0].ID)
		assert.Equal(t, 1, source.calls)
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, c.Invalidate(ctx))
		assert.False(t, mr.Exists(DefaultKey))

		_, err := c.Active(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 2, source.calls)
	})

	t.Run("Expiry", func(t *testing.T) {
		mr.FastForward(2 * time.Minute)
		assert.False(t, mr.Exists(DefaultKey))
	})
}

func TestPromotions_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	source := &stubLister{promos: fixture()}
	c, mr := newCache(t, source)

	require.NoError(t, mr.Set(DefaultKey, "{not json"))

	got, err := c.Active(ctx, now)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, source.calls)
}

func TestPromotions_RedisDown(t *testing.T) {
	ctx := context.Background()
	source := &stubLister{promos: fixture()}
	c, mr := newCache(t, source)
	mr.Close()

	got, err := c.Active(ctx, now)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, source.calls)
}

func TestPromotions_SourceError(t *testing.T) {
	boom := errors.New("boom")
	c, _ := newCache(t, &stubLister{err: boom})

	_, err := c.Active(context.Background(), now)
	require.ErrorIs(t, err, boom)
}
