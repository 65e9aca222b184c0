package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "gatekeep"

// Adapter hands out the Redis-backed stores. All of them share one client
// and one key prefix.
type Adapter struct {
	client redis.UniversalClient
	prefix string
}

type Option func(*Adapter)

// WithPrefix namespaces every key; "gatekeep" by default.
func WithPrefix(prefix string) Option {
	return func(a *Adapter) {
		if prefix != "" {
			a.prefix = prefix
		}
	}
}

func New(client redis.UniversalClient, opts ...Option) *Adapter {
	a := &Adapter{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

func (a *Adapter) Sessions() *SessionStore {
	return &SessionStore{
		client:      a.client,
		tokenPrefix: a.prefix + ":session:token:",
		emailPrefix: a.prefix + ":session:email:",
	}
}

func (a *Adapter) Windows() *WindowStore {
	return &WindowStore{client: a.client}
}

func (a *Adapter) Identities() *IdentityStore {
	return &IdentityStore{client: a.client, prefix: a.prefix + ":identity:"}
}
