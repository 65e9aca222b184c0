package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/gatekeep"
)

var _ gatekeep.WindowStore = (*WindowStore)(nil)

// WindowStore holds the rate limiter's per-bucket counters.
type WindowStore struct {
	client redis.UniversalClient
}

// IncrWindow sets the expiry only on the increment that created the key.
// A lost EXPIRE after a crash leaves a counter without TTL for one bucket
// key; the next bucket uses a fresh key.
func (w *WindowStore) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := w.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := w.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (w *WindowStore) WindowCount(ctx context.Context, key string) (int64, error) {
	n, err := w.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
