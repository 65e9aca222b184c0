package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lborres/gatekeep/core"
	"github.com/lborres/gatekeep/pkg/cache"
)

func newCachedStore() (*CachedIdentityStore, *FakeIdentityStore) {
	backing := NewFakeIdentityStore()
	c := cache.NewInMemoryCache[*core.Identity](core.CacheConfig{TTL: time.Minute, MaxSize: 10})
	return NewCachedIdentityStore(backing, c), backing
}

func TestCachedIdentityStore_ServesRepeatLookupsFromCache(t *testing.T) {
	// Arrange
	store, backing := newCachedStore()
	backing.Put(&core.Identity{ID: "u1", Email: "a@x.com", Role: core.RoleUser, Provider: core.ProviderGoogle})
	ctx := context.Background()

	// Act
	first, err1 := store.GetByEmail(ctx, "a@x.com")
	second, err2 := store.GetByEmail(ctx, "a@x.com")

	// Assert
	if err1 != nil || err2 != nil {
		t.Fatalf("GetByEmail() errors = %v, %v", err1, err2)
	}
	if first.ID != "u1" || second.ID != "u1" {
		t.Errorf("identities = %+v, %+v", first, second)
	}
	if backing.Gets != 1 {
		t.Errorf("backing store reads = %d, want 1", backing.Gets)
	}
}

// Requirement: a miss is never cached, so a later Register is visible at once.
func TestCachedIdentityStore_DoesNotCacheMisses(t *testing.T) {
	store, _ := newCachedStore()
	ctx := context.Background()

	if _, err := store.GetByEmail(ctx, "a@x.com"); !errors.Is(err, core.ErrIdentityNotFound) {
		t.Fatalf("GetByEmail() error = %v, want ErrIdentityNotFound", err)
	}
	if err := store.Create(ctx, &core.Identity{ID: "u1", Email: "a@x.com", Role: core.RoleUser, Provider: core.ProviderGitHub}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.GetByEmail(ctx, "a@x.com")
	if err != nil || got.ID != "u1" {
		t.Errorf("GetByEmail() after Create = %+v, %v", got, err)
	}
}

func TestCachedIdentityStore_CreateConflictPassesThrough(t *testing.T) {
	store, backing := newCachedStore()
	backing.Put(&core.Identity{ID: "u1", Email: "a@x.com", Role: core.RoleUser, Provider: core.ProviderGoogle})

	err := store.Create(context.Background(), &core.Identity{ID: "u2", Email: "a@x.com", Role: core.RoleUser, Provider: core.ProviderGitHub})

	if !errors.Is(err, core.ErrIdentityExists) {
		t.Errorf("Create() error = %v, want ErrIdentityExists", err)
	}
	got, _ := store.GetByEmail(context.Background(), "a@x.com")
	if got.ID != "u1" {
		t.Errorf("losing Create must not poison the cache, got %+v", got)
	}
}

func TestCachedIdentityStore_ReturnsCopies(t *testing.T) {
	store, backing := newCachedStore()
	backing.Put(&core.Identity{ID: "u1", Email: "a@x.com", Role: core.RoleUser, Provider: core.ProviderGoogle})
	ctx := context.Background()

	got, _ := store.GetByEmail(ctx, "a@x.com")
	got.Role = core.RoleAdmin

	again, _ := store.GetByEmail(ctx, "a@x.com")
	if again.Role != core.RoleUser {
		t.Error("mutating a returned identity changed the cached one")
	}
}
