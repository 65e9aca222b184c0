package crypto

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lborres/gatekeep/core"
)

var _ core.TokenCodec = (*JWTCodec)(nil)

type JWTConfig struct {
	Issuer        string
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// tokenClaims is the wire form: identity claims next to the registered ones.
// The audience records the token kind so an access token never verifies as
// a refresh token even if both secrets were equal.
type tokenClaims struct {
	UserID   string        `json:"id"`
	Email    string        `json:"email"`
	Role     core.Role     `json:"role"`
	Provider core.Provider `json:"provider"`
	jwt.RegisteredClaims
}

// JWTCodec issues and verifies HS256 tokens, one secret and TTL per kind.
type JWTCodec struct {
	cfg JWTConfig
	ids core.IDGenerator
	now func() time.Time
}

type JWTOption func(*JWTCodec)

// WithClock replaces time.Now for issuing and verifying.
func WithClock(now func() time.Time) JWTOption {
	return func(c *JWTCodec) { c.now = now }
}

// NewJWTCodec builds a codec; ids supplies the unique jti and defaults to
// UUIDGenerator. Missing secrets are reported when a token is issued or
// verified, not here.
func NewJWTCodec(cfg JWTConfig, ids core.IDGenerator, opts ...JWTOption) *JWTCodec {
	defaults := core.DefaultTokenConfig()
	if cfg.Issuer == "" {
		cfg.Issuer = defaults.Issuer
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaults.AccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaults.RefreshTTL
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}

	c := &JWTCodec{cfg: cfg, ids: ids, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *JWTCodec) keyFor(kind core.TokenKind) ([]byte, time.Duration) {
	if kind == core.RefreshToken {
		return []byte(c.cfg.RefreshSecret), c.cfg.RefreshTTL
	}
	return []byte(c.cfg.AccessSecret), c.cfg.AccessTTL
}

func (c *JWTCodec) Issue(kind core.TokenKind, claims core.Claims) (string, error) {
	key, ttl := c.keyFor(kind)
	if len(key) == 0 {
		return "", fmt.Errorf("issue %s token: %w", kind, core.ErrSigningKeyMissing)
	}
	if !claims.Complete() {
		return "", fmt.Errorf("issue %s token: %w", kind, core.ErrIncompleteClaims)
	}

	jti, err := c.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("issue %s token: generate jti: %w", kind, err)
	}

	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		UserID:   claims.ID,
		Email:    claims.Email,
		Role:     claims.Role,
		Provider: claims.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    c.cfg.Issuer,
			Subject:   claims.ID,
			Audience:  jwt.ClaimStrings{kind.String()},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("issue %s token: %w", kind, err)
	}
	return signed, nil
}

func (c *JWTCodec) IssueAccess(claims core.Claims) (string, error) {
	return c.Issue(core.AccessToken, claims)
}

func (c *JWTCodec) IssueRefresh(claims core.Claims) (string, error) {
	return c.Issue(core.RefreshToken, claims)
}

func (c *JWTCodec) Verify(token string, kind core.TokenKind) (*core.Claims, error) {
	key, _ := c.keyFor(kind)
	if len(key) == 0 {
		return nil, fmt.Errorf("verify %s token: %w", kind, core.ErrSigningKeyMissing)
	}

	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithAudience(kind.String()),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	claims := &core.Claims{
		ID:       parsed.UserID,
		Email:    parsed.Email,
		Role:     parsed.Role,
		Provider: parsed.Provider,
	}
	if !claims.Complete() {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidToken, core.ErrIncompleteClaims)
	}
	return claims, nil
}
