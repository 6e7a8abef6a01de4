// Package cache keeps the enabled promotion set in Redis so order placement
// does not reload promotions and slabs on every request.
package cache

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/domain/promotion"
)

// DefaultKey is the Redis key holding the enabled promotion set.
const DefaultKey = "promo:promotions:enabled"

// Lister loads every promotion with all of its slabs.
type Lister interface {
	List(ctx context.Context) ([]promotion.Promotion, error)
}

var (
	_ promotion.Source      = (*Promotions)(nil)
	_ promotion.Invalidator = (*Promotions)(nil)
)

// Promotions caches the enabled promotions with their active slabs. The
// time window is checked on every read, so an entry stays valid while
// promotions start and expire.
type Promotions struct {
	client redis.Cmdable
	source Lister
	ttl    time.Duration
	key    string
}

// NewPromotions returns a cache in front of source. Entries expire after ttl.
func NewPromotions(client redis.Cmdable, source Lister, ttl time.Duration) *Promotions {
	return &Promotions{client: client, source: source, ttl: ttl, key: DefaultKey}
}

// Active returns the promotions in effect at now, highest priority first.
// Redis failures fall back to the source.
func (c *Promotions) Active(ctx context.Context, now time.Time) ([]promotion.Promotion, error) {
	enabled, err := c.enabled(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]promotion.Promotion, 0, len(enabled))
	for _, p := range enabled {
		if p.IsActiveAt(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Invalidate drops the cached set.
func (c *Promotions) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("deleting %s: %w", c.key, err)
	}
	return nil
}

func (c *Promotions) enabled(ctx context.Context) ([]promotion.Promotion, error) {
	lg := zctx.From(ctx)

	data, err := c.client.Get(ctx, c.key).Bytes()
	switch {
	case err == nil:
		var cached []promotion.Promotion
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		lg.Warn("Dropping undecodable promotion cache entry", zap.Error(err))
	case errors.Is(err, redis.Nil):
	default:
		lg.Warn("Promotion cache read failed", zap.Error(err))
	}

	enabled, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(enabled)
	if err != nil {
		return nil, fmt.Errorf("encoding promotions: %w", err)
	}
	if err := c.client.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
		lg.Warn("Promotion cache write failed", zap.Error(err))
	}
	return enabled, nil
}

func (c *Promotions) load(ctx context.Context) ([]promotion.Promotion, error) {
	all, err := c.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading promotions: %w", err)
	}

	enabled := make([]promotion.Promotion, 0, len(all))
	for _, p := range all {
		if !p.Active {
			continue
		}
		p.Slabs = p.ActiveSlabs()
		enabled = append(enabled, p)
	}
	slices.SortFunc(enabled, func(a, b promotion.Promotion) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return enabled, nil
}
