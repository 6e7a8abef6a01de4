package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/promo-engine/internal/domain"
	"github.com/xenking/promo-engine/internal/domain/order"
)

const (
	orderColumns = `id, user_id, promotion_id, customer_name, customer_email, customer_phone,
		customer_address, subtotal, discount, total, currency, status, created_at, updated_at`
	lineColumns = `id, order_id, position, product_id, product_name, product_sku, unit_price,
		quantity, subtotal, discount, total, applied_promotions`

	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	insertLineSQL = `INSERT INTO order_lines (` + lineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	linesForOrdersSQL = `SELECT ` + lineColumns + ` FROM order_lines
		WHERE order_id = ANY($1) ORDER BY order_id, position`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`

	summarizeOrdersSQL = `SELECT COUNT(*), COALESCE(SUM(total), 0) FROM orders
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at < $2)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Applied
// promotions of each line are stored as JSONB.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and its lines in one batch. Called inside a
// TxManager transaction the writes commit together with the caller's reads.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	b := &pgx.Batch{}
	b.Queue(insertOrderSQL,
		o.ID, o.UserID, o.PromotionID, o.Customer.Name, o.Customer.Email, o.Customer.Phone,
		o.Customer.Address, o.Subtotal, o.Discount, o.Total, o.Currency, string(o.Status),
		o.CreatedAt, o.UpdatedAt,
	)
	for i, l := range o.Lines {
		applied := l.Promotions
		if applied == nil {
			applied = []order.AppliedPromotion{}
		}
		appliedJSON, err := json.Marshal(applied)
		if err != nil {
			return fmt.Errorf("marshaling applied promotions: %w", err)
		}
		b.Queue(insertLineSQL,
			l.ID, o.ID, i, l.ProductID, l.Name, l.SKU, l.UnitPrice,
			l.Quantity, l.Subtotal, l.Discount, l.Total, appliedJSON,
		)
	}

	if err := conn(ctx, r.pool).SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns an order with its lines.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "order", ID: id}
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	orders := []order.Order{o}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// List returns one page of orders matching f and the total match count.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, int, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM orders`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	column := "created_at"
	if f.SortBy == order.SortTotal {
		column = "total"
	}
	dir := "DESC"
	if f.Asc {
		dir = "ASC"
	}
	sql := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY %s %s, id`, orderColumns, cond, column, dir)
	if f.Limit > 0 {
		args = append(args, f.Limit, (max(f.Page, 1)-1)*f.Limit)
		sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus sets the status of an order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, at time.Time) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updateOrderStatusSQL, id, string(status), at)
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.NotFoundError{Entity: "order", ID: id}
	}
	return nil
}

// Summarize counts orders and sums their totals over [from, to).
func (r *OrderRepository) Summarize(ctx context.Context, from, to time.Time) (order.Summary, error) {
	var s order.Summary
	err := conn(ctx, r.pool).QueryRow(ctx, summarizeOrdersSQL, nullTime(from), nullTime(to)).
		Scan(&s.Orders, &s.Revenue)
	if err != nil {
		return order.Summary{}, fmt.Errorf("summarizing orders: %w", err)
	}
	return s, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (r *OrderRepository) attachLines(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := conn(ctx, r.pool).Query(ctx, linesForOrdersSQL, ids)
	if err != nil {
		return fmt.Errorf("loading order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l           order.Line
			orderID     string
			position    int
			appliedJSON []byte
		)
		if err := rows.Scan(
			&l.ID, &orderID, &position, &l.ProductID, &l.Name, &l.SKU, &l.UnitPrice,
			&l.Quantity, &l.Subtotal, &l.Discount, &l.Total, &appliedJSON,
		); err != nil {
			return fmt.Errorf("scanning order line: %w", err)
		}
		if err := json.Unmarshal(appliedJSON, &l.Promotions); err != nil {
			return fmt.Errorf("decoding applied promotions of line %q: %w", l.ID, err)
		}
		i := index[orderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	return rows.Err()
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.PromotionID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Customer.Address, &o.Subtotal, &o.Discount, &o.Total, &o.Currency, &status,
		&o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}
