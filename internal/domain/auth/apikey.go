package auth

import (
	"context"
	"slices"
)

// Scopes granted to API keys.
const (
	ScopeOrders = "orders"
	ScopeAdmin  = "admin"
)

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	// UserID owns the orders placed with this key.
	UserID string
	Scopes []string
	Active bool
}

// HasScope reports whether the key grants scope. The admin scope grants
// everything.
func (k *APIKeyInfo) HasScope(scope string) bool {
	return slices.Contains(k.Scopes, scope) || slices.Contains(k.Scopes, ScopeAdmin)
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
	// Upsert stores a key, replacing any key with the same ID.
	Upsert(ctx context.Context, key *APIKeyInfo) error
}

type keyCtx struct{}

// WithKey attaches an authenticated key to ctx.
func WithKey(ctx context.Context, key *APIKeyInfo) context.Context {
	return context.WithValue(ctx, keyCtx{}, key)
}

// FromContext returns the authenticated key, if any.
func FromContext(ctx context.Context) (*APIKeyInfo, bool) {
	key, ok := ctx.Value(keyCtx{}).(*APIKeyInfo)
	return key, ok
}
