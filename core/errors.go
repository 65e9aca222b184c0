package core

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the outcome reported to callers.
type Kind uint8

const (
	KindInternal     Kind = iota // 500
	KindBadRequest               // 400
	KindUnauthorized             // 401
	KindForbidden                // 403
	KindNotFound                 // 404
	KindConflict                 // 409
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error carries the outcome kind of a failed operation together with the
// operation name and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds an *Error. A nil err is replaced by a generic error for the kind.
func E(kind Kind, op string, err error) *Error {
	if err == nil {
		err = errors.New(kind.String())
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the kind of err. Errors that are not an *Error are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Identity errors
var (
	ErrIdentityExists     = errors.New("identity already exists")                      // 409 Conflict
	ErrProviderMismatch   = errors.New("identity is registered with another provider") // 409 Conflict
	ErrIdentityNotFound   = errors.New("identity not found")                           // 404 Not Found
	ErrInvalidCredentials = errors.New("invalid email or password")                    // 401 Unauthorized
	ErrPasswordNotSet     = errors.New("identity has no local password")               // 401 Unauthorized
	ErrInvalidIdentity    = errors.New("identity record violates provider invariants") // 500
)

// Token and session errors
var (
	ErrMissingAuthHeader = errors.New("missing authorization header")                            // 401
	ErrInvalidAuthHeader = errors.New("invalid authorization format, expected 'Bearer <token>'") // 401
	ErrInvalidToken      = errors.New("invalid or expired token")                                // 403 on refresh, 401 on access
	ErrIncompleteClaims  = errors.New("token claims are incomplete")
	ErrSessionNotFound   = errors.New("session not found or revoked") // 404
	ErrSigningKeyMissing = errors.New("token signing key is not configured")
	ErrInsufficientRole  = errors.New("role is not allowed to access this resource") // 401
	ErrProviderRejected  = errors.New("identity provider rejected the login")        // 401
	ErrCacheNotFound     = errors.New("entry not found in cache")
)

// Validation errors (client input)
var (
	ErrEmailRequired       = errors.New("email is required")         // 400
	ErrPasswordRequired    = errors.New("password is required")      // 400
	ErrTokenRequired       = errors.New("refresh token is required") // 400
	ErrCodeRequired        = errors.New("authorization code is required")
	ErrUnsupportedProvider = errors.New("unsupported identity provider")
	ErrInvalidEmail        = errors.New("invalid email format")
	ErrPasswordTooShort    = errors.New("password is too short")
	ErrPasswordTooLong     = errors.New("password is too long")
)

// Config errors (server-side configuration)
var (
	ErrIdentityStoreRequired = errors.New("identity store is required")
	ErrSessionStoreRequired  = errors.New("session store is required")
	ErrWindowStoreRequired   = errors.New("rate limit window store is required")
	ErrHTTPAdapterRequired   = errors.New("adapter is required")
	ErrSecretRequired        = errors.New("secret is required")
	ErrSecretTooShort        = errors.New("secret too short")
	ErrSecretsIdentical      = errors.New("access and refresh secrets must differ")
)
