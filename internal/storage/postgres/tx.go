package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/domain"
)

const (
	pgErrSerializationFailure = "40001"
	pgErrDeadlockDetected     = "40P01"
	pgErrUniqueViolation      = "23505"
)

var _ domain.TxManager = (*TxManager)(nil)

// TxManager runs functions inside a read-committed transaction, retrying on
// serialization failures and deadlocks.
type TxManager struct {
	pool       *pgxpool.Pool
	maxRetries int
	backoff    time.Duration
}

// NewTxManager creates a TxManager on pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool, maxRetries: 3, backoff: 100 * time.Millisecond}
}

// WithTransaction runs fn in a transaction. A call nested in another
// transaction joins it.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	for attempt := 0; ; attempt++ {
		err := m.runOnce(ctx, fn)
		if err == nil || !retryable(err) || attempt == m.maxRetries {
			return err
		}

		wait := time.Duration(attempt+1) * m.backoff
		zctx.From(ctx).Warn("Retrying transaction",
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (m *TxManager) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			zctx.From(ctx).Warn("Rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgErrSerializationFailure || pgErr.Code == pgErrDeadlockDetected
}

// uniqueField names the field guarded by a unique constraint and the value
// that was rejected.
type uniqueField struct {
	name  string
	value string
}

// conflict converts a unique violation into a *domain.ConflictError.
func conflict(err error, entity string, constraints map[string]uniqueField) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgErrUniqueViolation {
		return err
	}
	f, ok := constraints[pgErr.ConstraintName]
	if !ok {
		f = uniqueField{name: pgErr.ConstraintName, value: pgErr.Detail}
	}
	return &domain.ConflictError{Entity: entity, Field: f.name, Value: f.value}
}
