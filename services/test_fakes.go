package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lborres/gatekeep/core"
	"github.com/lborres/gatekeep/pkg/crypto"
)

// FakeIdentityStore is a test-only fake implementing core.IdentityStore.
// Exported error fields inject failures.
type FakeIdentityStore struct {
	mu         sync.RWMutex
	identities map[string]*core.Identity

	GetErr    error
	CreateErr error
	PingErr   error

	Gets    int
	Creates int
}

func NewFakeIdentityStore() *FakeIdentityStore {
	return &FakeIdentityStore{identities: make(map[string]*core.Identity)}
}

// Put seeds an identity, bypassing the compare-and-set.
func (f *FakeIdentityStore) Put(identity *core.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *identity
	f.identities[identity.Email] = &cp
}

func (f *FakeIdentityStore) GetByEmail(ctx context.Context, email string) (*core.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Gets++
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	identity, ok := f.identities[email]
	if !ok {
		return nil, core.ErrIdentityNotFound
	}
	cp := *identity
	return &cp, nil
}

func (f *FakeIdentityStore) Create(ctx context.Context, identity *core.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Creates++
	if f.CreateErr != nil {
		return f.CreateErr
	}
	if _, exists := f.identities[identity.Email]; exists {
		return core.ErrIdentityExists
	}
	cp := *identity
	f.identities[identity.Email] = &cp
	return nil
}

func (f *FakeIdentityStore) Ping(ctx context.Context) error {
	return f.PingErr
}

// FakeSessionStore is a test-only fake implementing core.SessionStore with
// the same two indexes as the Redis adapter. When Block is set every call
// waits for the context to end.
type FakeSessionStore struct {
	mu     sync.Mutex
	owners map[string]string              // hash(token) -> email
	sets   map[string]map[string]struct{} // email -> hash(token)

	CreateErr error
	RevokeErr error
	IsLiveErr error
	PingErr   error
	Block     bool

	LastTTL time.Duration
}

func NewFakeSessionStore() *FakeSessionStore {
	return &FakeSessionStore{
		owners: make(map[string]string),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (f *FakeSessionStore) wait(ctx context.Context) error {
	if !f.Block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *FakeSessionStore) Create(ctx context.Context, token, email string, ttl time.Duration) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return f.CreateErr
	}
	hash := crypto.HashToken(token)
	f.owners[hash] = email
	if f.sets[email] == nil {
		f.sets[email] = make(map[string]struct{})
	}
	f.sets[email][hash] = struct{}{}
	f.LastTTL = ttl
	return nil
}

func (f *FakeSessionStore) RevokeOne(ctx context.Context, token string) (string, error) {
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RevokeErr != nil {
		return "", f.RevokeErr
	}
	hash := crypto.HashToken(token)
	email, ok := f.owners[hash]
	if !ok {
		return "", core.ErrSessionNotFound
	}
	delete(f.owners, hash)
	delete(f.sets[email], hash)
	return email, nil
}

func (f *FakeSessionStore) RevokeAll(ctx context.Context, token string) (string, error) {
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RevokeErr != nil {
		return "", f.RevokeErr
	}
	email, ok := f.owners[crypto.HashToken(token)]
	if !ok {
		return "", core.ErrSessionNotFound
	}
	for hash := range f.sets[email] {
		delete(f.owners, hash)
	}
	delete(f.owners, crypto.HashToken(token))
	delete(f.sets, email)
	return email, nil
}

func (f *FakeSessionStore) IsLive(ctx context.Context, token string) (bool, error) {
	if err := f.wait(ctx); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.IsLiveErr != nil {
		return false, f.IsLiveErr
	}
	_, ok := f.owners[crypto.HashToken(token)]
	return ok, nil
}

func (f *FakeSessionStore) Ping(ctx context.Context) error {
	return f.PingErr
}

// SessionCount returns the number of live tokens owned by email.
func (f *FakeSessionStore) SessionCount(email string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sets[email])
}

// FakeWindowStore is a test-only fake implementing core.WindowStore.
type FakeWindowStore struct {
	mu     sync.Mutex
	counts map[string]int64
	ttls   map[string]time.Duration

	IncrErr  error
	CountErr error
	Block    bool
}

func NewFakeWindowStore() *FakeWindowStore {
	return &FakeWindowStore{
		counts: make(map[string]int64),
		ttls:   make(map[string]time.Duration),
	}
}

func (f *FakeWindowStore) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.Block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.IncrErr != nil {
		return 0, f.IncrErr
	}
	f.counts[key]++
	if f.counts[key] == 1 {
		f.ttls[key] = ttl
	}
	return f.counts[key], nil
}

func (f *FakeWindowStore) WindowCount(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CountErr != nil {
		return 0, f.CountErr
	}
	return f.counts[key], nil
}

// Set seeds a counter.
func (f *FakeWindowStore) Set(key string, count int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key] = count
}

// TTL returns the expiry recorded when key was first incremented.
func (f *FakeWindowStore) TTL(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

// Keys lists every counter key.
func (f *FakeWindowStore) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.counts))
	for k := range f.counts {
		keys = append(keys, k)
	}
	return keys
}

// FakePasswordHandler "hashes" by prefixing. It counts calls so tests can
// assert the hasher was never reached.
type FakePasswordHandler struct {
	mu          sync.Mutex
	HashCalls   int
	VerifyCalls int
	HashErr     error
}

const fakeHashPrefix = "hashed:"

func (f *FakePasswordHandler) Hash(password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HashCalls++
	if f.HashErr != nil {
		return "", f.HashErr
	}
	return fakeHashPrefix + password, nil
}

func (f *FakePasswordHandler) Verify(password, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.VerifyCalls++
	if !strings.HasPrefix(hash, fakeHashPrefix) {
		return false, errors.New("fake: malformed hash")
	}
	return hash == fakeHashPrefix+password, nil
}

// SequenceIDs yields deterministic ids: "<prefix>-1", "<prefix>-2", ...
type SequenceIDs struct {
	mu     sync.Mutex
	Prefix string
	n      int
}

func (s *SequenceIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	prefix := s.Prefix
	if prefix == "" {
		prefix = "id"
	}
	return fmt.Sprintf("%s-%d", prefix, s.n), nil
}

// RecordingObserver keeps every event it receives.
type RecordingObserver struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *RecordingObserver) Observe(_ context.Context, e core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *RecordingObserver) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.events...)
}

// Count returns how many events match typ and outcome.
func (r *RecordingObserver) Count(typ core.EventType, outcome string) int {
	n := 0
	for _, e := range r.Events() {
		if e.Type == typ && e.Outcome == outcome {
			n++
		}
	}
	return n
}

// FakeProvider is a test-only core.IdentityProvider returning a fixed email.
type FakeProvider struct {
	Provider    core.Provider
	Email       string
	ExchangeErr error

	LastCode     string
	LastVerifier string
}

func (f *FakeProvider) Name() core.Provider { return f.Provider }

func (f *FakeProvider) AuthCodeURL(state, verifier string) string {
	return "https://idp.test/" + string(f.Provider) + "/authorize?state=" + state
}

func (f *FakeProvider) Exchange(_ context.Context, code, verifier string) (string, error) {
	f.LastCode, f.LastVerifier = code, verifier
	if f.ExchangeErr != nil {
		return "", f.ExchangeErr
	}
	return f.Email, nil
}
