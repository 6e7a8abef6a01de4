package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/promo-engine/internal/domain"
	"github.com/xenking/promo-engine/internal/domain/product"
)

const (
	productColumns = `id, name, slug, sku, description, price, weight_grams, currency, active, created_at, updated_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE active OR $1 ORDER BY created_at, id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	findActiveProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE id = ANY($1) AND active`

	insertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	updateProductSQL = `UPDATE products SET name = $2, slug = $3, sku = $4, description = $5,
		price = $6, weight_grams = $7, currency = $8, active = $9, updated_at = $10
		WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns catalog products ordered by creation time.
func (r *ProductRepository) List(ctx context.Context, includeDisabled bool) ([]product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listProductsSQL, includeDisabled)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "product", ID: id}
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// FindActiveByIDs returns the active products matching any of the given IDs.
func (r *ProductRepository) FindActiveByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, findActiveProductsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts a product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := conn(ctx, r.pool).Exec(ctx, insertProductSQL,
		p.ID, p.Name, p.Slug, p.SKU, p.Description, p.Price, p.WeightGrams,
		p.Currency, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return conflict(err, "product", productConstraints(p))
	}
	return nil
}

// Update overwrites every mutable column of a product.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Slug, p.SKU, p.Description, p.Price, p.WeightGrams,
		p.Currency, p.Active, p.UpdatedAt,
	)
	if err != nil {
		return conflict(err, "product", productConstraints(p))
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Entity: "product", ID: p.ID}
	}
	return nil
}

func productConstraints(p *product.Product) map[string]uniqueField {
	return map[string]uniqueField{
		"products_slug_key": {name: "slug", value: p.Slug},
		"products_sku_key":  {name: "sku", value: p.SKU},
	}
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.SKU, &p.Description, &p.Price, &p.WeightGrams,
		&p.Currency, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
