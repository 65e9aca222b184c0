package services

import (
	"context"

	"github.com/lborres/gatekeep/core"
)

var _ core.IdentityStore = (*CachedIdentityStore)(nil)

// CachedIdentityStore serves repeated lookups from an IdentityCache.
// Identities are never updated in place, so a cached hit stays correct until
// eviction. Misses are not cached: a Register right after a failed Login
// must still see the new record.
type CachedIdentityStore struct {
	store core.IdentityStore
	cache core.IdentityCache
}

func NewCachedIdentityStore(store core.IdentityStore, cache core.IdentityCache) *CachedIdentityStore {
	return &CachedIdentityStore{store: store, cache: cache}
}

func (c *CachedIdentityStore) GetByEmail(ctx context.Context, email string) (*core.Identity, error) {
	if identity, err := c.cache.Get(email); err == nil && identity != nil {
		cp := *identity
		return &cp, nil
	}

	identity, err := c.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	// A failed cache write only costs a future store round trip.
	cp := *identity
	_ = c.cache.Set(email, &cp)
	return identity, nil
}

func (c *CachedIdentityStore) Create(ctx context.Context, identity *core.Identity) error {
	if err := c.store.Create(ctx, identity); err != nil {
		return err
	}
	cp := *identity
	_ = c.cache.Set(identity.Email, &cp)
	return nil
}

func (c *CachedIdentityStore) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}
