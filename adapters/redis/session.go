package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/gatekeep"
	"github.com/lborres/gatekeep/pkg/crypto"
)

var _ gatekeep.SessionStore = (*SessionStore)(nil)

// Each script runs as one atomic unit. The revoke scripts derive the
// per-email set key from the stored owner, so they touch keys not passed in
// KEYS and are meant for a single node or a cluster with hash-tagged prefixes.
var (
	// KEYS[1] token key, KEYS[2] email set
	// ARGV[1] email, ARGV[2] token hash, ARGV[3] ttl in ms
	createSession = redis.NewScript(`
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
local existed = redis.call('EXISTS', KEYS[2])
redis.call('SADD', KEYS[2], ARGV[2])
if existed == 0 then
  redis.call('PEXPIRE', KEYS[2], ARGV[3])
end
return 1
`)

	// KEYS[1] token key
	// ARGV[1] email set prefix, ARGV[2] token hash
	revokeSession = redis.NewScript(`
local email = redis.call('GET', KEYS[1])
if not email then
  return false
end
redis.call('DEL', KEYS[1])
redis.call('SREM', ARGV[1] .. email, ARGV[2])
return email
`)

	// KEYS[1] token key
	// ARGV[1] email set prefix, ARGV[2] token key prefix
	revokeAllSessions = redis.NewScript(`
local email = redis.call('GET', KEYS[1])
if not email then
  return false
end
local set = ARGV[1] .. email
for _, hash in ipairs(redis.call('SMEMBERS', set)) do
  redis.call('DEL', ARGV[2] .. hash)
end
redis.call('DEL', KEYS[1])
redis.call('DEL', set)
return email
`)
)

// SessionStore keeps hash(token) -> email with a TTL, and per email the set
// of its token hashes. Raw tokens never reach Redis.
type SessionStore struct {
	client      redis.UniversalClient
	tokenPrefix string
	emailPrefix string
}

func (s *SessionStore) tokenKey(token string) (key, hash string) {
	hash = crypto.HashToken(token)
	return s.tokenPrefix + hash, hash
}

// Create keeps the set's existing expiry, so a newer login never shortens
// an older session.
func (s *SessionStore) Create(ctx context.Context, refreshToken, email string, ttl time.Duration) error {
	key, hash := s.tokenKey(refreshToken)
	return createSession.Run(ctx, s.client,
		[]string{key, s.emailPrefix + email},
		email, hash, ttl.Milliseconds(),
	).Err()
}

func (s *SessionStore) RevokeOne(ctx context.Context, refreshToken string) (string, error) {
	key, hash := s.tokenKey(refreshToken)
	email, err := revokeSession.Run(ctx, s.client, []string{key}, s.emailPrefix, hash).Text()
	if errors.Is(err, redis.Nil) {
		return "", gatekeep.ErrSessionNotFound
	}
	return email, err
}

func (s *SessionStore) RevokeAll(ctx context.Context, refreshToken string) (string, error) {
	key, _ := s.tokenKey(refreshToken)
	email, err := revokeAllSessions.Run(ctx, s.client, []string{key}, s.emailPrefix, s.tokenPrefix).Text()
	if errors.Is(err, redis.Nil) {
		return "", gatekeep.ErrSessionNotFound
	}
	return email, err
}

func (s *SessionStore) IsLive(ctx context.Context, refreshToken string) (bool, error) {
	key, _ := s.tokenKey(refreshToken)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
