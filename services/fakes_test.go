package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lborres/tanod/adapters/memory"
	"github.com/lborres/tanod/core"
	"github.com/lborres/tanod/pkg/crypto"
)

var errDiskGone = errors.New("disk gone")

// faultTable wraps a real table and fails reads or writes on demand.
type faultTable[R any] struct {
	core.Table[R]

	mu       sync.Mutex
	readErr  error
	writeErr error
}

func (f *faultTable[R]) failReads(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

func (f *faultTable[R]) failWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

func (f *faultTable[R]) errs() (read, write error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readErr, f.writeErr
}

func (f *faultTable[R]) FindAll(ctx context.Context) ([]R, error) {
	if err, _ := f.errs(); err != nil {
		return nil, err
	}
	return f.Table.FindAll(ctx)
}

func (f *faultTable[R]) FindByKey(ctx context.Context, match func(R) bool) (R, error) {
	if err, _ := f.errs(); err != nil {
		var zero R
		return zero, err
	}
	return f.Table.FindByKey(ctx, match)
}

func (f *faultTable[R]) Insert(ctx context.Context, record R) error {
	if _, err := f.errs(); err != nil {
		return err
	}
	return f.Table.Insert(ctx, record)
}

func (f *faultTable[R]) RewriteAll(ctx context.Context, records []R) error {
	if _, err := f.errs(); err != nil {
		return err
	}
	return f.Table.RewriteAll(ctx, records)
}

// Update runs fn first so business errors still win over a write failure,
// matching a store whose disk fails only on commit.
func (f *faultTable[R]) Update(ctx context.Context, fn func([]R) ([]R, error)) error {
	_, writeErr := f.errs()
	if writeErr == nil {
		return f.Table.Update(ctx, fn)
	}
	rows, err := f.Table.FindAll(ctx)
	if err != nil {
		return err
	}
	if _, err := fn(rows); err != nil {
		return err
	}
	return writeErr
}

type faultStore struct {
	accounts *faultTable[core.AccountRecord]
	sessions *faultTable[core.Session]
}

func newFaultStore() *faultStore {
	m := memory.New()
	return &faultStore{
		accounts: &faultTable[core.AccountRecord]{Table: m.Accounts()},
		sessions: &faultTable[core.Session]{Table: m.Sessions()},
	}
}

func (s *faultStore) Accounts() core.Table[core.AccountRecord] { return s.accounts }
func (s *faultStore) Sessions() core.Table[core.Session]       { return s.sessions }
func (s *faultStore) Close() error                             { return nil }

func storageFailure(op string) error {
	return core.NewStorageError(op, errDiskGone)
}

// fakeCache is a map cache that records traffic and fails on demand.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]core.Session
	hits    int
	getErr  error
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]core.Session)}
}

func (c *fakeCache) Get(_ context.Context, tokenHash string) (*core.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	s, ok := c.entries[tokenHash]
	if !ok {
		return nil, core.ErrCacheNotFound
	}
	c.hits++
	return &s, nil
}

func (c *fakeCache) Set(_ context.Context, tokenHash string, s *core.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[tokenHash] = *s
	return nil
}

func (c *fakeCache) Delete(_ context.Context, tokenHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tokenHash)
	return nil
}


func (c *fakeCache) has(tokenHash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[tokenHash]
	return ok
}

func (c *fakeCache) hitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv wires the three services over a fault-injecting memory store.
type testEnv struct {
	store    *faultStore
	cache    *fakeCache
	clock    *fakeClock
	accounts *AccountManager
	sessions *SessionManager
	auth     *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithCache(t, newFakeCache())
}

// newTestEnvWithCache builds an env; a nil cache disables caching.
func newTestEnvWithCache(t *testing.T, cache *fakeCache) *testEnv {
	t.Helper()

	env := &testEnv{
		store: newFaultStore(),
		cache: cache,
		clock: newFakeClock(),
	}
	opts := Options{Clock: env.clock.Now}

	var c core.Cache
	if cache != nil {
		c = cache
	}

	env.accounts = NewAccountManager(env.store.Accounts(), crypto.NewArgon2ForTest(), opts)
	env.sessions = NewSessionManager(core.DefaultSessionConfig(), env.store, c, opts)
	env.auth = NewAuthService(env.accounts, env.sessions, opts)
	return env
}

const (
	testEmail  = "alice@example.com"
	testSecret = "correct horse"
)

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	id, err := e.accounts.Register(context.Background(), core.RegisterInput{
		Email:       email,
		Secret:      testSecret,
		DisplayName: "Alice",
	})
	if err != nil {
		t.Fatalf("Register(%q) failed: %v", email, err)
	}
	return id
}

func (e *testEnv) login(t *testing.T, email string) *core.LoginResult {
	t.Helper()
	res, err := e.auth.Login(context.Background(), email, testSecret)
	if err != nil {
		t.Fatalf("Login(%q) failed: %v", email, err)
	}
	return res
}
