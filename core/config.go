package core

import (
	"log"
	"strings"
	"time"
)

type Config struct {
	AccessSecret  string
	RefreshSecret string

	Identities IdentityStore
	Sessions   SessionStore
	Windows    WindowStore

	HTTP HTTPAdapter

	// Optional config
	Providers      []IdentityProvider
	TokenConfig    *TokenConfig
	SessionConfig  *SessionConfig
	RateLimits     *RateLimitConfig
	PasswordHasher PasswordHandler
	IDs            IDGenerator
	Observer       Observer
	Logger         *log.Logger
	// CacheAdapter enables the identity read cache; nil reads the store
	// on every lookup.
	CacheAdapter IdentityCache
	// StoreTimeout bounds every store round trip.
	StoreTimeout time.Duration
}

// TokenConfig configures the token codec.
type TokenConfig struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		Issuer:     "gatekeep",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

// SessionConfig configures the refresh-token session indexes.
type SessionConfig struct {
	// TTL is the lifetime of each token→email entry.
	TTL time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TTL: 7 * 24 * time.Hour,
	}
}

// RateLimitRule is a request budget: Limit requests per Window seconds.
type RateLimitRule struct {
	Limit  int `json:"limit"`
	Window int `json:"window"` // seconds
}

func (r RateLimitRule) Valid() bool {
	return r.Limit > 0 && r.Window > 0
}

// RateLimitConfig holds the default rule and per-route overrides keyed by
// route prefix, e.g. "/api/auth".
type RateLimitConfig struct {
	Default RateLimitRule            `json:"default"`
	Routes  map[string]RateLimitRule `json:"routes"`
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Default: RateLimitRule{Limit: 5, Window: 60},
		Routes: map[string]RateLimitRule{
			"/api/auth":  {Limit: 10, Window: 2 * 60},
			"/api/token": {Limit: 15, Window: 2 * 60},
		},
	}
}

// RuleFor returns the rule of the longest configured route prefix matching
// route on a path-segment boundary, or the default rule.
func (c RateLimitConfig) RuleFor(route string) RateLimitRule {
	best, bestLen := c.Default, -1
	for prefix, rule := range c.Routes {
		if !matchesPrefix(route, prefix) || len(prefix) <= bestLen {
			continue
		}
		best, bestLen = rule, len(prefix)
	}
	return best
}

func matchesPrefix(route, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return false
	}
	if route == prefix {
		return true
	}
	return strings.HasPrefix(route, prefix+"/")
}

type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

// CacheStats are simple counters for cache behavior.
// These are intended for diagnostics and monitoring.
type CacheStats struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Sets      int64         `json:"sets"`
	Deletes   int64         `json:"deletes"`
	Evictions int64         `json:"evictions"`
	Size      int           `json:"size"`
	TTL       time.Duration `json:"ttl"`
}
