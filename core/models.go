package core

import (
	"strings"
	"time"
)

// Role is the authorization level carried in every token.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Provider names how an identity authenticates.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderLocal, ProviderGoogle, ProviderGitHub:
		return true
	}
	return false
}

// External reports whether p is a third-party identity provider.
func (p Provider) External() bool {
	return p.Valid() && p != ProviderLocal
}

// ParseProvider resolves a provider name, case-insensitively.
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	if !p.Valid() {
		return "", ErrUnsupportedProvider
	}
	return p, nil
}

// Identity represents one account, keyed by email.
//
// PasswordHash is present if and only if Provider is local.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	Provider     Provider  `json:"provider"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	CreatedAt    time.Time `json:"createdAt"`
}

// Validate checks the provider/password invariant and enum membership.
func (i *Identity) Validate() error {
	if i.ID == "" || i.Email == "" || !i.Role.Valid() || !i.Provider.Valid() {
		return ErrInvalidIdentity
	}
	if (i.Provider == ProviderLocal) != (i.PasswordHash != "") {
		return ErrInvalidIdentity
	}
	return nil
}

// HasPassword reports whether the identity can log in with a local password.
func (i *Identity) HasPassword() bool {
	return i.Provider == ProviderLocal && i.PasswordHash != ""
}

func (i *Identity) Claims() Claims {
	return Claims{ID: i.ID, Email: i.Email, Role: i.Role, Provider: i.Provider}
}

// Claims is the identity payload signed into access and refresh tokens.
type Claims struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Role     Role     `json:"role"`
	Provider Provider `json:"provider"`
}

// Complete reports whether every required claim is present and valid.
func (c Claims) Complete() bool {
	return c.ID != "" && c.Email != "" && c.Role.Valid() && c.Provider.Valid()
}

// TokenKind selects the secret and TTL used by a TokenCodec.
type TokenKind uint8

const (
	AccessToken TokenKind = iota
	RefreshToken
)

func (k TokenKind) String() string {
	if k == RefreshToken {
		return "refresh"
	}
	return "access"
}

// TokenPair is returned by Login and OAuth callbacks.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AccessTokenResult is returned by RefreshAccess.
type AccessTokenResult struct {
	AccessToken string `json:"accessToken"`
}

// RevokeResult names the owner of the revoked session(s).
type RevokeResult struct {
	Email string `json:"email"`
}

// RegisterInput contains the data needed to register a local identity
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=5,max=30"`
}

// LoginInput contains the credentials for authentication
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=5,max=30"`
}

// RefreshInput carries the refresh token for token endpoints.
type RefreshInput struct {
	RefreshToken string `json:"refreshToken"`
}

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed   bool    `json:"allowed"`
	Limit     int     `json:"limit"`
	Window    int     `json:"window"`
	Current   int64   `json:"current"`
	Previous  int64   `json:"previous"`
	Effective float64 `json:"effective"`
	FailOpen  bool    `json:"failOpen,omitempty"`
}

// HealthReport summarises store connectivity.
type HealthReport struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

func (h HealthReport) Healthy() bool { return h.Status == "ok" }
