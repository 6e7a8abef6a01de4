// Package memory implements the domain repositories in process memory. It
// backs local development and the HTTP tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/xenking/promo-engine/internal/domain"
	"github.com/xenking/promo-engine/internal/domain/auth"
	"github.com/xenking/promo-engine/internal/domain/order"
	"github.com/xenking/promo-engine/internal/domain/product"
	"github.com/xenking/promo-engine/internal/domain/promotion"
)

// Store holds every entity behind a single lock.
type Store struct {
	mu         sync.RWMutex
	products   map[string]product.Product
	promotions map[string]promotion.Promotion
	orders     map[string]order.Order
	keys       map[string]auth.APIKeyInfo
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		products:   make(map[string]product.Product),
		promotions: make(map[string]promotion.Promotion),
		orders:     make(map[string]order.Order),
		keys:       make(map[string]auth.APIKeyInfo),
	}
}

// Products returns the product repository view of the store.
func (s *Store) Products() *ProductRepository { return &ProductRepository{store: s} }

// Promotions returns the promotion repository view of the store.
func (s *Store) Promotions() *PromotionRepository { return &PromotionRepository{store: s} }

// Orders returns the order repository view of the store.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{store: s} }

// APIKeys returns the API key repository view of the store.
func (s *Store) APIKeys() *APIKeyRepository { return &APIKeyRepository{store: s} }

// txKey marks a context that already holds the write lock.
type txKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

func (s *Store) rlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.RLock()
	}
}

func (s *Store) runlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.RUnlock()
	}
}

func (s *Store) wlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.Lock()
	}
}

func (s *Store) wunlock(ctx context.Context) {
	if !inTx(ctx) {
		s.mu.Unlock()
	}
}

type snapshot struct {
	products   map[string]product.Product
	promotions map[string]promotion.Promotion
	orders     map[string]order.Order
	keys       map[string]auth.APIKeyInfo
}

// Stored values are replaced on write and never mutated in place, so copying
// the maps is enough to restore them.
func (s *Store) snapshot() snapshot {
	return snapshot{
		products:   maps.Clone(s.products),
		promotions: maps.Clone(s.promotions),
		orders:     maps.Clone(s.orders),
		keys:       maps.Clone(s.keys),
	}
}

func (s *Store) restore(snap snapshot) {
	s.products = snap.products
	s.promotions = snap.promotions
	s.orders = snap.orders
	s.keys = snap.keys
}

var _ domain.TxManager = (*TxManager)(nil)

// TxManager serializes transactions on the store lock and restores the
// previous state when fn fails.
type TxManager struct {
	store *Store
}

// NewTxManager returns a TxManager for store.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// WithTransaction runs fn holding the store write lock. Nested calls join the
// outer transaction.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}
