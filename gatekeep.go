package gatekeep

import (
	"fmt"
	"log"

	"github.com/lborres/gatekeep/core"
	"github.com/lborres/gatekeep/pkg/cache"
	"github.com/lborres/gatekeep/pkg/crypto"
	"github.com/lborres/gatekeep/pkg/telemetry"
	"github.com/lborres/gatekeep/services"
)

// interfaces
type (
	IdentityStore    = core.IdentityStore
	SessionStore     = core.SessionStore
	WindowStore      = core.WindowStore
	IdentityCache    = core.IdentityCache
	IdentityProvider = core.IdentityProvider
	PasswordHandler  = core.PasswordHandler
	TokenCodec       = core.TokenCodec
	IDGenerator      = core.IDGenerator
	Observer         = core.Observer

	AuthHandler = core.AuthHandler
	Limiter     = core.Limiter
	HTTPAdapter = core.HTTPAdapter
)

// structs
type (
	Config          = core.Config
	TokenConfig     = core.TokenConfig
	SessionConfig   = core.SessionConfig
	RateLimitConfig = core.RateLimitConfig
	RateLimitRule   = core.RateLimitRule
	CacheConfig     = core.CacheConfig
	CacheStats      = core.CacheStats
)

type (
	Identity          = core.Identity
	Claims            = core.Claims
	Role              = core.Role
	Provider          = core.Provider
	TokenKind         = core.TokenKind
	TokenPair         = core.TokenPair
	AccessTokenResult = core.AccessTokenResult
	RevokeResult      = core.RevokeResult
	RegisterInput     = core.RegisterInput
	LoginInput        = core.LoginInput
	RefreshInput      = core.RefreshInput
	Decision          = core.Decision
	HealthReport      = core.HealthReport
	Event             = core.Event
	Endpoint          = core.Endpoint
	EndpointMetadata  = core.EndpointMetadata
	Access            = core.Access
	ErrorResponse     = core.ErrorResponse
	Error             = core.Error
	Kind              = core.Kind
)

const (
	RoleUser  = core.RoleUser
	RoleAdmin = core.RoleAdmin

	ProviderLocal  = core.ProviderLocal
	ProviderGoogle = core.ProviderGoogle
	ProviderGitHub = core.ProviderGitHub

	AccessToken  = core.AccessToken
	RefreshToken = core.RefreshToken

	AccessPublic        = core.AccessPublic
	AccessAuthenticated = core.AccessAuthenticated
	AccessAdmin         = core.AccessAdmin

	KindInternal     = core.KindInternal
	KindBadRequest   = core.KindBadRequest
	KindUnauthorized = core.KindUnauthorized
	KindForbidden    = core.KindForbidden
	KindNotFound     = core.KindNotFound
	KindConflict     = core.KindConflict
)

// Operation ids of BaseEndpoints.
const (
	OpRegister      = services.OpRegister
	OpLogin         = services.OpLogin
	OpRefreshAccess = services.OpRefreshAccess
	OpTokenRefresh  = services.OpTokenRefresh
	OpRevokeCurrent = services.OpRevokeCurrent
	OpRevokeAll     = services.OpRevokeAll
	OpOAuthStart    = services.OpOAuthStart
	OpOAuthCallback = services.OpOAuthCallback
	OpMe            = services.OpMe
	OpAdminStatus   = services.OpAdminStatus
	OpHealth        = services.OpHealth
)

const (
	minSecretLen = 32
)

// Constructors & helpers (convenience re-exports)
var (
	NewArgon2              = crypto.NewArgon2
	NewBcrypt              = crypto.NewBcrypt
	ParseProvider          = core.ParseProvider
	KindOf                 = core.KindOf
	DefaultTokenConfig     = core.DefaultTokenConfig
	DefaultSessionConfig   = core.DefaultSessionConfig
	DefaultRateLimitConfig = core.DefaultRateLimitConfig
	NewIdentityCache       = cache.NewInMemoryCache[*core.Identity]
	NewLogger              = telemetry.NewLogger
	NewEndpointRegistry    = services.NewEndpointRegistry
	BaseEndpoints          = services.BaseEndpoints
	NewCachedIdentityStore = services.NewCachedIdentityStore
)

var (
	ErrIdentityExists     = core.ErrIdentityExists
	ErrProviderMismatch   = core.ErrProviderMismatch
	ErrIdentityNotFound   = core.ErrIdentityNotFound
	ErrInvalidCredentials = core.ErrInvalidCredentials
	ErrPasswordNotSet     = core.ErrPasswordNotSet
	ErrInvalidIdentity    = core.ErrInvalidIdentity
)

var (
	ErrMissingAuthHeader = core.ErrMissingAuthHeader
	ErrInvalidAuthHeader = core.ErrInvalidAuthHeader
	ErrInvalidToken      = core.ErrInvalidToken
	ErrIncompleteClaims  = core.ErrIncompleteClaims
	ErrSessionNotFound   = core.ErrSessionNotFound
	ErrSigningKeyMissing = core.ErrSigningKeyMissing
	ErrInsufficientRole  = core.ErrInsufficientRole
	ErrProviderRejected  = core.ErrProviderRejected
	ErrCacheNotFound     = core.ErrCacheNotFound
)

var (
	ErrEmailRequired       = core.ErrEmailRequired
	ErrPasswordRequired    = core.ErrPasswordRequired
	ErrTokenRequired       = core.ErrTokenRequired
	ErrCodeRequired        = core.ErrCodeRequired
	ErrUnsupportedProvider = core.ErrUnsupportedProvider
	ErrInvalidEmail        = core.ErrInvalidEmail
	ErrPasswordTooShort    = core.ErrPasswordTooShort
	ErrPasswordTooLong     = core.ErrPasswordTooLong
)

var (
	ErrIdentityStoreRequired = core.ErrIdentityStoreRequired
	ErrSessionStoreRequired  = core.ErrSessionStoreRequired
	ErrWindowStoreRequired   = core.ErrWindowStoreRequired
	ErrHTTPAdapterRequired   = core.ErrHTTPAdapterRequired
	ErrSecretRequired        = core.ErrSecretRequired
	ErrSecretTooShort        = core.ErrSecretTooShort
	ErrSecretsIdentical      = core.ErrSecretsIdentical
)

// Gatekeep is a wired instance: the orchestrator, the limiter and the
// routes they were mounted on.
type Gatekeep struct {
	Auth      *services.AuthService
	Limiter   *services.RateLimiter
	Sessions  *services.SessionManager
	Tokens    *crypto.JWTCodec
	Endpoints *services.EndpointRegistry
	Logger    *log.Logger
}

// ValidateSecrets checks the signing secrets.
func ValidateSecrets(access, refresh string) error {
	for _, secret := range []string{access, refresh} {
		if secret == "" {
			return ErrSecretRequired
		}
		if len(secret) < minSecretLen {
			return fmt.Errorf("%w - minimum of %d characters", ErrSecretTooShort, minSecretLen)
		}
	}
	if access == refresh {
		return ErrSecretsIdentical
	}
	return nil
}

func New(config Config) (*Gatekeep, error) {
	if err := ValidateSecrets(config.AccessSecret, config.RefreshSecret); err != nil {
		return nil, err
	}
	if config.Identities == nil {
		return nil, ErrIdentityStoreRequired
	}
	if config.Sessions == nil {
		return nil, ErrSessionStoreRequired
	}
	if config.Windows == nil {
		return nil, ErrWindowStoreRequired
	}
	if config.HTTP == nil {
		return nil, ErrHTTPAdapterRequired
	}

	// Set Defaults

	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	observer := config.Observer
	if observer == nil {
		observer = telemetry.NewLogObserver(logger)
	}

	tokenConfig := DefaultTokenConfig()
	if config.TokenConfig != nil {
		tokenConfig = *config.TokenConfig
	}

	// A session lives exactly as long as its refresh token.
	sessionConfig := SessionConfig{TTL: tokenConfig.RefreshTTL}
	if config.SessionConfig != nil && config.SessionConfig.TTL > 0 {
		sessionConfig = *config.SessionConfig
	}

	rateLimits := DefaultRateLimitConfig()
	if config.RateLimits != nil {
		rateLimits = *config.RateLimits
	}

	passwordHasher := config.PasswordHasher
	if passwordHasher == nil {
		passwordHasher = crypto.NewArgon2()
	}

	ids := config.IDs
	if ids == nil {
		ids = crypto.UUIDGenerator{}
	}

	identities := config.Identities
	if config.CacheAdapter != nil {
		identities = services.NewCachedIdentityStore(identities, config.CacheAdapter)
	}

	tokens := crypto.NewJWTCodec(crypto.JWTConfig{
		Issuer:        tokenConfig.Issuer,
		AccessSecret:  config.AccessSecret,
		RefreshSecret: config.RefreshSecret,
		AccessTTL:     tokenConfig.AccessTTL,
		RefreshTTL:    tokenConfig.RefreshTTL,
	}, ids)

	sessions := services.NewSessionManager(sessionConfig, config.Sessions, config.StoreTimeout, observer, logger)

	auth := services.NewAuthService(services.AuthServiceConfig{
		Identities:   identities,
		Sessions:     sessions,
		Tokens:       tokens,
		Passwords:    passwordHasher,
		IDs:          ids,
		Providers:    config.Providers,
		Observer:     observer,
		Logger:       logger,
		StoreTimeout: config.StoreTimeout,
	})

	limiter := services.NewRateLimiter(rateLimits, config.Windows,
		services.WithLimiterTimeout(config.StoreTimeout),
		services.WithLimiterObserver(observer),
		services.WithLimiterLogger(logger),
	)

	endpoints := services.NewEndpointRegistry()

	if err := config.HTTP.RegisterRoutes(auth, limiter, endpoints.Endpoints()); err != nil {
		return nil, err
	}

	return &Gatekeep{
		Auth:      auth,
		Limiter:   limiter,
		Sessions:  sessions,
		Tokens:    tokens,
		Endpoints: endpoints,
		Logger:    logger,
	}, nil
}
