package memory

import (
	"context"
	"slices"

	"github.com/xenking/promo-engine/internal/domain"
	"github.com/xenking/promo-engine/internal/domain/auth"
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository is the in-memory auth.Repository.
type APIKeyRepository struct {
	store *Store
}

func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	r.store.rlock(ctx)
	defer r.store.runlock(ctx)

	for _, k := range r.store.keys {
		if k.Active && k.KeyHash == hash {
			k.Scopes = slices.Clone(k.Scopes)
			return &k, nil
		}
	}
	return nil, &domain.NotFoundError{Entity: "api key", ID: "by hash"}
}

func (r *APIKeyRepository) Upsert(ctx context.Context, key *auth.APIKeyInfo) error {
	r.store.wlock(ctx)
	defer r.store.wunlock(ctx)

	stored := *key
	stored.Scopes = slices.Clone(key.Scopes)
	r.store.keys[key.ID] = stored
	return nil
}
