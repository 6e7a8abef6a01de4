package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/promo-engine/internal/domain"
	"github.com/xenking/promo-engine/internal/domain/promotion"
)

const (
	promotionColumns = `id, name, active, starts_at, ends_at, priority, type_tag, created_at, updated_at`
	slabColumns      = `id, promotion_id, range_start, range_end, rule_kind, rule_value, active`

	findActivePromotionsSQL = `SELECT ` + promotionColumns + ` FROM promotions
		WHERE active
			AND (starts_at IS NULL OR starts_at <= $1)
			AND (ends_at IS NULL OR ends_at >= $1)
		ORDER BY priority DESC, created_at, id`

	listPromotionsSQL = `SELECT ` + promotionColumns + ` FROM promotions
		ORDER BY priority DESC, created_at DESC, id`

	getPromotionByIDSQL = `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`

	slabsForPromotionsSQL = `SELECT ` + slabColumns + ` FROM promotion_slabs
		WHERE promotion_id = ANY($1) AND (active OR NOT $2)
		ORDER BY promotion_id, range_start, id`

	insertPromotionSQL = `INSERT INTO promotions (` + promotionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	updatePromotionSQL = `UPDATE promotions SET name = $2, active = $3, starts_at = $4, ends_at = $5,
		priority = $6, type_tag = $7, updated_at = $8
		WHERE id = $1`

	insertSlabSQL = `INSERT INTO promotion_slabs (` + slabColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	deleteSlabsSQL = `DELETE FROM promotion_slabs WHERE promotion_id = $1`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
// The type config is stored in the type_tag column in its legacy string form.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// FindActive returns the promotions in effect at now with their active slabs.
func (r *PromotionRepository) FindActive(ctx context.Context, now time.Time) ([]promotion.Promotion, error) {
	promos, err := r.query(ctx, findActivePromotionsSQL, now)
	if err != nil {
		return nil, fmt.Errorf("finding active promotions: %w", err)
	}
	if err := r.attachSlabs(ctx, promos, true); err != nil {
		return nil, err
	}
	return promos, nil
}

// List returns every promotion with all of its slabs.
func (r *PromotionRepository) List(ctx context.Context) ([]promotion.Promotion, error) {
	promos, err := r.query(ctx, listPromotionsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	if err := r.attachSlabs(ctx, promos, false); err != nil {
		return nil, err
	}
	return promos, nil
}

// FindByID returns a promotion with all of its slabs.
func (r *PromotionRepository) FindByID(ctx context.Context, id string) (*promotion.Promotion, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getPromotionByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting promotion %q: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "promotion", ID: id}
		}
		return nil, fmt.Errorf("getting promotion %q: %w", id, err)
	}

	promos := []promotion.Promotion{p}
	if err := r.attachSlabs(ctx, promos, false); err != nil {
		return nil, err
	}
	return &promos[0], nil
}

// Create inserts the promotion and its slabs in one batch.
func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	b := &pgx.Batch{}
	b.Queue(insertPromotionSQL,
		p.ID, p.Name, p.Active, p.StartsAt, p.EndsAt, p.Priority, p.Config.String(),
		p.CreatedAt, p.UpdatedAt,
	)
	for _, s := range p.Slabs {
		queueSlab(b, p.ID, s)
	}

	if err := conn(ctx, r.pool).SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("creating promotion %q: %w", p.ID, err)
	}
	return nil
}

// Update overwrites the promotion row. Slabs are left untouched.
func (r *PromotionRepository) Update(ctx context.Context, p *promotion.Promotion) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updatePromotionSQL,
		p.ID, p.Name, p.Active, p.StartsAt, p.EndsAt, p.Priority, p.Config.String(), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating promotion %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Entity: "promotion", ID: p.ID}
	}
	return nil
}

// ReplaceSlabs deletes the promotion's slabs and inserts slabs in one batch.
func (r *PromotionRepository) ReplaceSlabs(ctx context.Context, promotionID string, slabs []promotion.Slab) error {
	b := &pgx.Batch{}
	b.Queue(deleteSlabsSQL, promotionID)
	for _, s := range slabs {
		queueSlab(b, promotionID, s)
	}

	if err := conn(ctx, r.pool).SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("replacing slabs of promotion %q: %w", promotionID, err)
	}
	return nil
}

func queueSlab(b *pgx.Batch, promotionID string, s promotion.Slab) {
	b.Queue(insertSlabSQL,
		s.ID, promotionID, s.RangeStart, s.RangeEnd, string(s.RuleKind), s.RuleValue, s.Active,
	)
}

func (r *PromotionRepository) query(ctx context.Context, sql string, args ...any) ([]promotion.Promotion, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanPromotion)
}

// attachSlabs loads slabs for promos with a single query, ordered by range
// start.
func (r *PromotionRepository) attachSlabs(ctx context.Context, promos []promotion.Promotion, activeOnly bool) error {
	if len(promos) == 0 {
		return nil
	}

	ids := make([]string, len(promos))
	index := make(map[string]int, len(promos))
	for i, p := range promos {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := conn(ctx, r.pool).Query(ctx, slabsForPromotionsSQL, ids, activeOnly)
	if err != nil {
		return fmt.Errorf("loading promotion slabs: %w", err)
	}
	slabs, err := pgx.CollectRows(rows, scanSlab)
	if err != nil {
		return fmt.Errorf("loading promotion slabs: %w", err)
	}

	for _, s := range slabs {
		i := index[s.PromotionID]
		promos[i].Slabs = append(promos[i].Slabs, s)
	}
	return nil
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var (
		p   promotion.Promotion
		tag string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Active, &p.StartsAt, &p.EndsAt, &p.Priority, &tag,
		&p.CreatedAt, &p.UpdatedAt,
	)
	p.Config = promotion.ParseTag(tag)
	return p, err
}

func scanSlab(row pgx.CollectableRow) (promotion.Slab, error) {
	var (
		s    promotion.Slab
		kind string
	)
	err := row.Scan(&s.ID, &s.PromotionID, &s.RangeStart, &s.RangeEnd, &kind, &s.RuleValue, &s.Active)
	s.RuleKind = promotion.RuleKind(kind)
	return s, err
}
