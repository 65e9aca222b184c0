// Package config loads gatekeep server settings from GATEKEEP_* environment
// variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/lborres/gatekeep"
)

var (
	ErrUnknownHasher   = errors.New("GATEKEEP_PASSWORD_HASHER must be argon2 or bcrypt")
	ErrUnknownIDFormat = errors.New("GATEKEEP_ID_FORMAT must be uuid or nanoid")
	ErrSessionTTL      = errors.New("GATEKEEP_SESSION_TTL must equal GATEKEEP_REFRESH_TOKEN_TTL")
)

type Config struct {
	Addr          string        `env:"ADDR"                 envDefault:":8080"`
	Issuer        string        `env:"ISSUER"               envDefault:"gatekeep"`
	AccessSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	RefreshSecret string        `env:"REFRESH_TOKEN_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_TTL"     envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_TTL"    envDefault:"168h"`
	// SessionTTL defaults to RefreshTTL and must match it when set.
	SessionTTL   time.Duration `env:"SESSION_TTL"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT"        envDefault:"2s"`

	RedisAddr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"`
	KeyPrefix     string `env:"KEY_PREFIX"     envDefault:"gatekeep"`
	// DatabaseURL switches identities to Postgres; empty keeps them in Redis.
	DatabaseURL string `env:"DATABASE_URL"`

	PasswordHasher string `env:"PASSWORD_HASHER" envDefault:"argon2"`
	BcryptCost     int    `env:"BCRYPT_COST"     envDefault:"10"`
	IDFormat       string `env:"ID_FORMAT"       envDefault:"uuid"`

	// RateLimitsJSON replaces the route table, e.g.
	// {"default":{"limit":5,"window":60},"routes":{"/api/auth":{"limit":10,"window":120}}}
	RateLimitsJSON string `env:"RATE_LIMITS"`

	// IdentityCacheTTL enables the in-process identity cache when positive.
	IdentityCacheTTL time.Duration `env:"IDENTITY_CACHE_TTL" envDefault:"0"`
	LogRequests      bool          `env:"LOG_REQUESTS"       envDefault:"true"`
	SecureCookies    bool          `env:"SECURE_COOKIES"     envDefault:"true"`

	Google Provider `envPrefix:"GOOGLE_"`
	GitHub Provider `envPrefix:"GITHUB_"`
}

type Provider struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURI  string `env:"REDIRECT_URI"`
}

const envPrefix = "GATEKEEP_"

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: envPrefix})
}

// LoadFrom parses environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Prefix: envPrefix, Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if err := gatekeep.ValidateSecrets(c.AccessSecret, c.RefreshSecret); err != nil {
		return err
	}
	switch c.PasswordHasher {
	case "argon2", "bcrypt":
	default:
		return ErrUnknownHasher
	}
	switch c.IDFormat {
	case "uuid", "nanoid":
	default:
		return ErrUnknownIDFormat
	}
	if c.SessionTTL != 0 && c.SessionTTL != c.RefreshTTL {
		return ErrSessionTTL
	}
	if _, err := c.RateLimits(); err != nil {
		return err
	}
	return nil
}

func (c Config) TokenConfig() *gatekeep.TokenConfig {
	return &gatekeep.TokenConfig{
		Issuer:     c.Issuer,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
	}
}

func (c Config) SessionConfig() *gatekeep.SessionConfig {
	if c.SessionTTL == 0 {
		return &gatekeep.SessionConfig{TTL: c.RefreshTTL}
	}
	return &gatekeep.SessionConfig{TTL: c.SessionTTL}
}

// RateLimits returns the route table, the built-in one unless RATE_LIMITS is set.
func (c Config) RateLimits() (*gatekeep.RateLimitConfig, error) {
	limits := gatekeep.DefaultRateLimitConfig()
	if c.RateLimitsJSON == "" {
		return &limits, nil
	}

	var override gatekeep.RateLimitConfig
	if err := json.Unmarshal([]byte(c.RateLimitsJSON), &override); err != nil {
		return nil, fmt.Errorf("GATEKEEP_RATE_LIMITS: %w", err)
	}
	if override.Default.Valid() {
		limits.Default = override.Default
	}
	if override.Routes != nil {
		for route, rule := range override.Routes {
			if !rule.Valid() {
				return nil, fmt.Errorf("GATEKEEP_RATE_LIMITS: route %s: limit and window must be positive", route)
			}
		}
		limits.Routes = override.Routes
	}
	return &limits, nil
}
