package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/gatekeep"
)

var _ gatekeep.IdentityStore = (*IdentityStore)(nil)

// KEYS[1] identity hash; ARGV id, email, role, provider, password_hash, created_at
var createIdentity = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1],
  'id', ARGV[1], 'email', ARGV[2], 'role', ARGV[3],
  'provider', ARGV[4], 'password_hash', ARGV[5], 'created_at', ARGV[6])
return 1
`)

// IdentityStore keeps one hash per email.
type IdentityStore struct {
	client redis.UniversalClient
	prefix string
}

func (s *IdentityStore) GetByEmail(ctx context.Context, email string) (*gatekeep.Identity, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+email).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, gatekeep.ErrIdentityNotFound
	}

	identity := &gatekeep.Identity{
		ID:           fields["id"],
		Email:        fields["email"],
		Role:         gatekeep.Role(fields["role"]),
		Provider:     gatekeep.Provider(fields["provider"]),
		PasswordHash: fields["password_hash"],
	}
	if raw := fields["created_at"]; raw != "" {
		if identity.CreatedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, fmt.Errorf("identity %s: created_at: %w", email, err)
		}
	}
	if err := identity.Validate(); err != nil {
		return nil, fmt.Errorf("identity %s: %w", email, err)
	}
	return identity, nil
}

// Create writes identity only if no record exists for its email.
func (s *IdentityStore) Create(ctx context.Context, identity *gatekeep.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}

	created, err := createIdentity.Run(ctx, s.client, []string{s.prefix + identity.Email},
		identity.ID,
		identity.Email,
		string(identity.Role),
		string(identity.Provider),
		identity.PasswordHash,
		identity.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return gatekeep.ErrIdentityExists
	}
	return nil
}

func (s *IdentityStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
