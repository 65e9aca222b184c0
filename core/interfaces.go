package core

import (
	"context"
	"time"
)

// Ports define interfaces for external dependencies

// ============================================
// STORAGE PORTS
// ============================================

// IdentityStore persists one identity per email.
//
// Create is a compare-and-set on the email: it returns ErrIdentityExists
// when a record for that email is already present and never overwrites it.
type IdentityStore interface {
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	Create(ctx context.Context, identity *Identity) error
	Ping(ctx context.Context) error
}

// SessionStore maps refresh tokens to their owning email and each email to
// the set of its live refresh tokens. Create, RevokeOne and RevokeAll are
// each a single atomic transaction.
type SessionStore interface {
	Create(ctx context.Context, refreshToken, email string, ttl time.Duration) error
	// RevokeOne returns ErrSessionNotFound when the token has no owner.
	RevokeOne(ctx context.Context, refreshToken string) (email string, err error)
	// RevokeAll returns ErrSessionNotFound when the token has no owner.
	RevokeAll(ctx context.Context, refreshToken string) (email string, err error)
	IsLive(ctx context.Context, refreshToken string) (bool, error)
	Ping(ctx context.Context) error
}

// WindowStore holds the fixed-window counters behind the rate limiter.
type WindowStore interface {
	// IncrWindow atomically increments key and, when the increment created
	// the key, sets its expiry to ttl.
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// WindowCount returns the counter at key, or 0 when it is absent.
	WindowCount(ctx context.Context, key string) (int64, error)
}

// IdentityCache caches identity lookups by email.
type IdentityCache interface {
	Get(key string) (*Identity, error)
	Set(key string, identity *Identity) error
	Delete(key string) error
	Clear() error
}

// ============================================
// CRYPTO PORTS
// ============================================

type PasswordHandler interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

// TokenCodec signs and verifies access and refresh tokens.
type TokenCodec interface {
	Issue(kind TokenKind, claims Claims) (string, error)
	// Verify returns ErrInvalidToken for a bad signature, an expired token,
	// a token signed for the other kind, or incomplete claims.
	Verify(token string, kind TokenKind) (*Claims, error)
}

type IDGenerator interface {
	NewID() (string, error)
}

// ============================================
// IDENTITY PROVIDER PORT
// ============================================

// IdentityProvider is a third-party login (Google, GitHub, ...) reduced to
// the one thing the core needs: the email behind an authorization code.
type IdentityProvider interface {
	Name() Provider
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (email string, err error)
}

// ============================================
// OBSERVABILITY PORT
// ============================================

// Observer receives structured events. Implementations must not block and
// their failures never affect the operation being observed.
type Observer interface {
	Observe(ctx context.Context, event Event)
}

// ============================================
// AUTH HANDLER (for HTTP adapters)
// ============================================

// AuthHandler provides authentication operations for HTTP adapters
type AuthHandler interface {
	Register(ctx context.Context, input RegisterInput) (*Identity, error)
	Login(ctx context.Context, input LoginInput) (*TokenPair, error)
	RefreshAccess(ctx context.Context, refreshToken string) (*AccessTokenResult, error)
	RevokeCurrent(ctx context.Context, refreshToken string) (*RevokeResult, error)
	RevokeAll(ctx context.Context, refreshToken string) (*RevokeResult, error)
	OAuthCallback(ctx context.Context, provider Provider, email string) (*TokenPair, error)
	OAuthLogin(ctx context.Context, provider Provider, code, verifier string) (*TokenPair, error)
	AuthCodeURL(provider Provider, state, verifier string) (string, error)
	Authenticate(ctx context.Context, accessToken string) (*Claims, error)
	Health(ctx context.Context) HealthReport
}

// Limiter gates a request for a route and subject (identity id or IP).
type Limiter interface {
	Admit(ctx context.Context, route, subject string) bool
}

// ============================================
// HTTP PORT
// ============================================

type HTTPAdapter interface {
	RegisterRoutes(handler AuthHandler, limiter Limiter, endpoints []*Endpoint) error
}
