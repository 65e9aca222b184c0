package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/lborres/gatekeep/core"
	"github.com/lborres/gatekeep/pkg/crypto"
)

const defaultStoreTimeout = 2 * time.Second

// Ensure AuthService implements AuthHandler
var _ core.AuthHandler = (*AuthService)(nil)

type AuthServiceConfig struct {
	Identities core.IdentityStore
	Sessions   *SessionManager
	Tokens     core.TokenCodec
	Passwords  core.PasswordHandler
	IDs        core.IDGenerator
	Providers  []core.IdentityProvider
	Observer   core.Observer
	Logger     *log.Logger
	// StoreTimeout bounds each identity store call.
	StoreTimeout time.Duration
	Now          func() time.Time
}

// AuthService orchestrates registration, login, token refresh, revocation
// and third-party login. Every failure it returns is a *core.Error.
type AuthService struct {
	identities core.IdentityStore
	sessions   *SessionManager
	tokens     core.TokenCodec
	passwords  core.PasswordHandler
	ids        core.IDGenerator
	providers  map[core.Provider]core.IdentityProvider
	observer   core.Observer
	logger     *log.Logger
	timeout    time.Duration
	now        func() time.Time
}

func NewAuthService(cfg AuthServiceConfig) *AuthService {
	s := &AuthService{
		identities: cfg.Identities,
		sessions:   cfg.Sessions,
		tokens:     cfg.Tokens,
		passwords:  cfg.Passwords,
		ids:        cfg.IDs,
		providers:  make(map[core.Provider]core.IdentityProvider, len(cfg.Providers)),
		observer:   cfg.Observer,
		logger:     cfg.Logger,
		timeout:    cfg.StoreTimeout,
		now:        cfg.Now,
	}
	for _, p := range cfg.Providers {
		if p != nil {
			s.providers[p.Name()] = p
		}
	}
	if s.passwords == nil {
		s.passwords = crypto.NewArgon2()
	}
	if s.ids == nil {
		s.ids = crypto.UUIDGenerator{}
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.timeout <= 0 {
		s.timeout = defaultStoreTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Register creates a local identity. Any existing identity under the same
// email, whatever its provider, is a conflict.
func (s *AuthService) Register(ctx context.Context, input core.RegisterInput) (identity *core.Identity, err error) {
	const op = "register"
	defer func() { s.record(ctx, core.EventRegister, input.Email, err) }()

	if input.Email == "" {
		return nil, core.E(core.KindBadRequest, op, core.ErrEmailRequired)
	}
	if input.Password == "" {
		return nil, core.E(core.KindBadRequest, op, core.ErrPasswordRequired)
	}

	existing, err := s.lookup(ctx, input.Email)
	if err != nil {
		return nil, core.E(core.KindInternal, op, err)
	}
	if existing != nil {
		if existing.Provider != core.ProviderLocal {
			return nil, core.E(core.KindConflict, op, core.ErrProviderMismatch)
		}
		return nil, core.E(core.KindConflict, op, core.ErrIdentityExists)
	}

	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, core.E(core.KindInternal, op, err)
	}

	identity, err = s.newIdentity(input.Email, core.ProviderLocal, hash)
	if err != nil {
		return nil, core.E(core.KindInternal, op, err)
	}

	if err := s.create(ctx, identity); err != nil {
		if errors.Is(err, core.ErrIdentityExists) {
			return nil, core.E(core.KindConflict, op, err)
		}
		return nil, core.E(core.KindInternal, op, err)
	}

	return identity, nil
}

// Login checks a local password and opens a session.
func (s *AuthService) Login(ctx context.Context, input core.LoginInput) (pair *core.TokenPair, err error) {
	const op = "login"
	defer func() { s.record(ctx, core.EventLogin, input.Email, err) }()

	if input.Email == "" {
		return nil, core.E(core.KindBadRequest, op, core.ErrEmailRequired)
	}
	if input.Password == "" {
		return nil, core.E(core.KindBadRequest, op, core.ErrPasswordRequired)
	}

	identity, err := s.lookup(ctx, input.Email)
	if err != nil {
		return nil, core.E(core.KindInternal, op, err)
	}
	if identity == nil {
		return nil, core.E(core.KindNotFound, op, core.ErrIdentityNotFound)
	}

	// Provider-linked identities have no hash to compare against.
	if !identity.HasPassword() {
		return nil, core.E(core.KindUnauthorized, op, core.ErrPasswordNotSet)
	}

	ok, err := s.passwords.Verify(input.Password, identity.PasswordHash)
	if err != nil {
		return nil, core.E(core.KindInternal, op, err)
	}
	if !ok {
		return nil, core.E(core.KindUnauthorized, op, core.ErrInvalidCredentials)
	}

	return s.openSession(ctx, op, identity)
}

// RefreshAccess mints a new access token from a live refresh token. The
// refresh token itself is left unchanged.
func (s *AuthService) RefreshAccess(ctx context.Context, refreshToken string) (result *core.AccessTokenResult, err error) {
	const op = "refresh"
	defer func() { s.record(ctx, core.EventRefresh, crypto.Fingerprint(refreshToken), err) }()

	if refreshToken == "" {
		return nil, core.E(core.KindBadRequest, op, core.ErrTokenRequired)
	}

	live, err := s.sessions.IsLive(ctx, refreshToken)
	if err != nil {
		return nil, core.E(core.KindInternal, op, err)
	}
	if !live {
		return nil, core.E(core.KindNotFound, op, core.ErrSessionNotFound)
	}

	claims, err := s.tokens.Verify(refreshToken, core.RefreshToken)
	if err != nil {
		if errors.Is(err, core.ErrSigningKeyMissing) {
			return nil, core.E(core.KindInternal, op, err)
		}
		return nil, core.E(core.KindForbidden, op, err)
	}

	access, err := s.tokens.Issue(core.AccessToken, *claims)
	if err != nil {
		return nil, core.E(core.KindInternal, op, err)
	}

	return &core.AccessTokenResult{AccessToken: access}, nil
}

// RevokeCurrent ends the session of one refresh token.
func (s *AuthService) RevokeCurrent(ctx context.Context, refreshToken string) (result *core.RevokeResult, err error) {
	const op = "revoke"
	defer func() { s.record(ctx, core.EventRevoke, crypto.Fingerprint(refreshToken), err) }()

	if refreshToken == "" {
		return nil, core.E(core.KindBadRequest, op, core.ErrTokenRequired)
	}

	email, err := s.sessions.RevokeOne(ctx, refreshToken)
	if err != nil {
		return nil, revokeError(op, err)
	}
	return &core.RevokeResult{Email: email}, nil
}

// RevokeAll ends every session of the identity owning refreshToken.
func (s *AuthService) RevokeAll(ctx context.Context, refreshToken string) (result *core.RevokeResult, err error) {
	const op = "revoke_all"
	defer func() { s.record(ctx, core.EventRevokeAll, crypto.Fingerprint(refreshToken), err) }()

	if refreshToken == "" {
		return nil, core.E(core.KindBadRequest, op, core.ErrTokenRequired)
	}

	email, err := s.sessions.RevokeAll(ctx, refreshToken)
	if err != nil {
		return nil, revokeError(op, err)
	}
	return &core.RevokeResult{Email: email}, nil
}

func revokeError(op string, err error) error {
	if errors.Is(err, core.ErrSessionNotFound) {
		return core.E(core.KindNotFound, op, err)
	}
	return core.E(core.KindInternal, op, err)
}

// OAuthCallback logs in the identity behind a provider-verified email,
// creating it on first sight. A local identity under the same email is a
// conflict, never a silent link.
func (s *AuthService) OAuthCallback(ctx context.Context, provider core.Provider, email string) (pair *core.TokenPair, err error) {
	const op = "oauth"
	defer func() { s.record(ctx, core.EventOAuth, email, err) }()

	if email == "" {
		return nil, core.E(core.KindBadRequest, op, core.ErrEmailRequired)
	}
	if !provider.External() {
		return nil, core.E(core.KindBadRequest, op, core.ErrUnsupportedProvider)
	}

	identity, err := s.lookup(ctx, email)
	if err != nil {
		return nil, core.E(core.KindInternal, op, err)
	}

	if identity == nil {
		identity, err = s.newIdentity(email, provider, "")
		if err != nil {
			return nil, core.E(core.KindInternal, op, err)
		}
		if err := s.create(ctx, identity); err != nil {
			if !errors.Is(err, core.ErrIdentityExists) {
				return nil, core.E(core.KindInternal, op, err)
			}
			// Lost the race to a concurrent writer; use what it stored.
			if identity, err = s.lookup(ctx, email); err != nil || identity == nil {
				return nil, core.E(core.KindInternal, op, errors.Join(core.ErrIdentityExists, err))
			}
		}
	}

	if identity.Provider == core.ProviderLocal {
		return nil, core.E(core.KindConflict, op, core.ErrProviderMismatch)
	}

	return s.openSession(ctx, op, identity)
}

// OAuthLogin exchanges an authorization code with provider and continues
// as OAuthCallback with the email it yields.
func (s *AuthService) OAuthLogin(ctx context.Context, provider core.Provider, code, verifier string) (*core.TokenPair, error) {
	const op = "oauth"

	if code == "" {
		s.record(ctx, core.EventOAuth, string(provider), core.E(core.KindBadRequest, op, core.ErrCodeRequired))
		return nil, core.E(core.KindBadRequest, op, core.ErrCodeRequired)
	}
	p, ok := s.providers[provider]
	if !ok {
		s.record(ctx, core.EventOAuth, string(provider), core.E(core.KindBadRequest, op, core.ErrUnsupportedProvider))
		return nil, core.E(core.KindBadRequest, op, core.ErrUnsupportedProvider)
	}

	email, err := p.Exchange(ctx, code, verifier)
	if err != nil {
		kind := core.KindInternal
		if errors.Is(err, core.ErrProviderRejected) {
			kind = core.KindUnauthorized
		}
		wrapped := core.E(kind, op, err)
		s.record(ctx, core.EventOAuth, string(provider), wrapped)
		return nil, wrapped
	}

	return s.OAuthCallback(ctx, provider, email)
}

// AuthCodeURL returns the consent page of a configured provider.
func (s *AuthService) AuthCodeURL(provider core.Provider, state, verifier string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", core.E(core.KindBadRequest, "oauth", core.ErrUnsupportedProvider)
	}
	return p.AuthCodeURL(state, verifier), nil
}

// Authenticate verifies an access token and returns its claims.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*core.Claims, error) {
	const op = "authenticate"

	if accessToken == "" {
		return nil, core.E(core.KindUnauthorized, op, core.ErrMissingAuthHeader)
	}
	claims, err := s.tokens.Verify(accessToken, core.AccessToken)
	if err != nil {
		if errors.Is(err, core.ErrSigningKeyMissing) {
			return nil, core.E(core.KindInternal, op, err)
		}
		return nil, core.E(core.KindUnauthorized, op, err)
	}
	return claims, nil
}

// Health pings both stores.
func (s *AuthService) Health(ctx context.Context) core.HealthReport {
	report := core.HealthReport{Status: "ok", Components: map[string]string{}}

	check := func(name string, ping func(context.Context) error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if err := ping(ctx); err != nil {
			s.logger.Printf("[WARN] health check %s failed: %v", name, err)
			report.Components[name] = "unavailable"
			report.Status = "degraded"
			return
		}
		report.Components[name] = "ok"
	}
	check("identities", s.identities.Ping)
	check("sessions", s.sessions.Ping)

	return report
}

func (s *AuthService) openSession(ctx context.Context, op string, identity *core.Identity) (*core.TokenPair, error) {
	claims := identity.Claims()

	access, err := s.tokens.Issue(core.AccessToken, claims)
	if err != nil {
		return nil, core.E(core.KindInternal, op, err)
	}
	refresh, err := s.tokens.Issue(core.RefreshToken, claims)
	if err != nil {
		return nil, core.E(core.KindInternal, op, err)
	}

	if err := s.sessions.Create(ctx, refresh, identity.Email); err != nil {
		return nil, core.E(core.KindInternal, op, err)
	}

	return &core.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) newIdentity(email string, provider core.Provider, hash string) (*core.Identity, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return nil, err
	}
	identity := &core.Identity{
		ID:           id,
		Email:        email,
		Role:         core.RoleUser,
		Provider:     provider,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	return identity, identity.Validate()
}

// lookup returns (nil, nil) when no identity exists for email.
func (s *AuthService) lookup(ctx context.Context, email string) (*core.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	identity, err := s.identities.GetByEmail(ctx, email)
	if errors.Is(err, core.ErrIdentityNotFound) {
		return nil, nil
	}
	return identity, err
}

func (s *AuthService) create(ctx context.Context, identity *core.Identity) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.identities.Create(ctx, identity)
}

// record emits the outcome of an operation and logs internal failures.
func (s *AuthService) record(ctx context.Context, typ core.EventType, subject string, err error) {
	event := core.Event{Type: typ, Outcome: core.OutcomeOK, Subject: subject}
	if err != nil {
		event.Err = err
		event.Outcome = core.OutcomeRejected
		if core.KindOf(err) == core.KindInternal {
			event.Outcome = core.OutcomeError
			s.logger.Printf("[ERROR] %s subject=%s: %v", typ, subject, err)
		}
	}
	s.observer.Observe(ctx, event)
}
