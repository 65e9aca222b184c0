package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lborres/gatekeep/core"
	"github.com/lborres/gatekeep/pkg/crypto"
)

// SessionManager bounds every session store call with a timeout and reports
// unexpected store failures. Expected misses (core.ErrSessionNotFound) pass
// through untouched.
type SessionManager struct {
	config   core.SessionConfig
	store    core.SessionStore
	timeout  time.Duration
	observer core.Observer
	logger   *log.Logger
}

func NewSessionManager(config core.SessionConfig, store core.SessionStore, timeout time.Duration, observer core.Observer, logger *log.Logger) *SessionManager {
	if config.TTL <= 0 {
		config.TTL = core.DefaultSessionConfig().TTL
	}
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SessionManager{config: config, store: store, timeout: timeout, observer: observer, logger: logger}
}

func (sm *SessionManager) TTL() time.Duration { return sm.config.TTL }

// Create registers refreshToken as a live session of email.
func (sm *SessionManager) Create(ctx context.Context, refreshToken, email string) error {
	ctx, cancel := context.WithTimeout(ctx, sm.timeout)
	defer cancel()

	if err := sm.store.Create(ctx, refreshToken, email, sm.config.TTL); err != nil {
		return sm.fail(ctx, "session.create", refreshToken, err)
	}
	return nil
}

func (sm *SessionManager) RevokeOne(ctx context.Context, refreshToken string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, sm.timeout)
	defer cancel()

	email, err := sm.store.RevokeOne(ctx, refreshToken)
	if err != nil {
		return "", sm.fail(ctx, "session.revoke_one", refreshToken, err)
	}
	return email, nil
}

func (sm *SessionManager) RevokeAll(ctx context.Context, refreshToken string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, sm.timeout)
	defer cancel()

	email, err := sm.store.RevokeAll(ctx, refreshToken)
	if err != nil {
		return "", sm.fail(ctx, "session.revoke_all", refreshToken, err)
	}
	return email, nil
}

func (sm *SessionManager) IsLive(ctx context.Context, refreshToken string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, sm.timeout)
	defer cancel()

	live, err := sm.store.IsLive(ctx, refreshToken)
	if err != nil {
		return false, sm.fail(ctx, "session.is_live", refreshToken, err)
	}
	return live, nil
}

func (sm *SessionManager) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, sm.timeout)
	defer cancel()
	return sm.store.Ping(ctx)
}

func (sm *SessionManager) fail(ctx context.Context, op, token string, err error) error {
	if errors.Is(err, core.ErrSessionNotFound) {
		return err
	}
	fp := crypto.Fingerprint(token)
	sm.logger.Printf("[ERROR] %s failed token=%s: %v", op, fp, err)
	sm.observer.Observe(ctx, core.Event{
		Type:    core.EventStoreFailure,
		Outcome: core.OutcomeError,
		Subject: fp,
		Op:      op,
		Err:     err,
	})
	return fmt.Errorf("%s: %w", op, err)
}

type nopObserver struct{}

func (nopObserver) Observe(context.Context, core.Event) {}
