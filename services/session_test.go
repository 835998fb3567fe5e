package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/tanod/core"
	"github.com/lborres/tanod/pkg/crypto"
)

// Requirement: Create issues a session with the configured max age and a raw
// token that is never stored.
func TestSessionManager_Create(t *testing.T) {
	// Arrange
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.register(t, testEmail)

	// Act
	created, err := env.sessions.Create(ctx, id)

	// Assert
	require.NoError(t, err)
	require.NotEmpty(t, created.Token)
	assert.Equal(t, id, created.Session.AccountID)
	assert.True(t, created.Session.IsActive)
	assert.Equal(t, env.clock.Now(), created.Session.CreatedAt)
	assert.Equal(t, env.clock.Now().Add(core.DefaultSessionMaxAge), created.Session.ExpiresAt)

	rows, err := env.store.Sessions().FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEqual(t, created.Token, rows[0].TokenHash, "raw token must not be stored")
	assert.Equal(t, crypto.HashToken(created.Token), rows[0].TokenHash)
}

func TestSessionManager_Create_UniqueTokens(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.register(t, testEmail)

	seen := make(map[string]struct{})
	for range 20 {
		created, err := env.sessions.Create(ctx, id)
		require.NoError(t, err)
		_, dup := seen[created.Token]
		require.False(t, dup, "token issued twice")
		seen[created.Token] = struct{}{}
	}
}

func TestSessionManager_CreateWithTTL_RejectsNonPositive(t *testing.T) {
	env := newTestEnv(t)

	for _, ttl := range []time.Duration{0, -time.Second} {
		_, err := env.sessions.CreateWithTTL(context.Background(), "acc", ttl)
		assert.ErrorIs(t, err, core.ErrInvalidTTL, "ttl %v", ttl)
	}
}

// Requirement: Validate resolves a live token to its account and session.
func TestSessionManager_Validate(t *testing.T) {
	for _, cached := range []bool{true, false} {
		name := "without cache"
		var cache *fakeCache
		if cached {
			name = "with cache"
			cache = newFakeCache()
		}
		t.Run(name, func(t *testing.T) {
			// Arrange
			ctx := context.Background()
			env := newTestEnvWithCache(t, cache)
			id := env.register(t, testEmail)
			created, err := env.sessions.Create(ctx, id)
			require.NoError(t, err)

			// Act
			data, err := env.sessions.Validate(ctx, created.Token)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, id, data.Account.ID)
			assert.Equal(t, testEmail, data.Account.Email)
			assert.Equal(t, created.Session.ExpiresAt, data.Session.ExpiresAt)
		})
	}
}

// Requirement: every rejection matches ErrUnauthenticated and carries its reason.
func TestSessionManager_Validate_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		token      func(t *testing.T, env *testEnv) string
		wantReason error
	}{
		{
			name:       "empty token",
			token:      func(*testing.T, *testEnv) string { return "" },
			wantReason: core.ErrSessionNotFound,
		},
		{
			name:       "unknown token",
			token:      func(*testing.T, *testEnv) string { return "deadbeef" },
			wantReason: core.ErrSessionNotFound,
		},
		{
			name: "revoked session",
			token: func(t *testing.T, env *testEnv) string {
				res := env.login(t, testEmail)
				require.NoError(t, env.sessions.Revoke(context.Background(), res.Token))
				return res.Token
			},
			wantReason: core.ErrSessionRevoked,
		},
		{
			name: "expired session",
			token: func(t *testing.T, env *testEnv) string {
				res := env.login(t, testEmail)
				env.clock.Advance(core.DefaultSessionMaxAge + time.Nanosecond)
				return res.Token
			},
			wantReason: core.ErrSessionExpired,
		},
		{
			name: "deactivated account",
			token: func(t *testing.T, env *testEnv) string {
				res := env.login(t, testEmail)
				// warm the cache so the account check cannot lean on it
				_, err := env.sessions.Validate(context.Background(), res.Token)
				require.NoError(t, err)
				require.NoError(t, env.accounts.Deactivate(context.Background(), res.Account.ID, testSecret))
				return res.Token
			},
			wantReason: core.ErrAccountDeactivated,
		},
		{
			name: "account missing",
			token: func(t *testing.T, env *testEnv) string {
				created, err := env.sessions.CreateWithTTL(context.Background(), "ghost", time.Hour)
				require.NoError(t, err)
				return created.Token
			},
			wantReason: core.ErrAccountDeactivated,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			env := newTestEnv(t)
			env.register(t, testEmail)
			token := test.token(t, env)

			// Act
			data, err := env.sessions.Validate(context.Background(), token)

			// Assert
			assert.Nil(t, data)
			require.ErrorIs(t, err, core.ErrUnauthenticated)
			assert.ErrorIs(t, err, test.wantReason)
		})
	}
}

// Requirement: a session is valid at exactly its expiry instant and invalid after it.
func TestSessionManager_Validate_ExpiryBoundary(t *testing.T) {
	// Arrange
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.register(t, testEmail)
	created, err := env.sessions.CreateWithTTL(ctx, id, time.Hour)
	require.NoError(t, err)

	// Act & Assert
	env.clock.Advance(time.Hour)
	_, err = env.sessions.Validate(ctx, created.Token)
	require.NoError(t, err, "session should be valid at its expiry instant")

	env.clock.Advance(time.Nanosecond)
	_, err = env.sessions.Validate(ctx, created.Token)
	require.ErrorIs(t, err, core.ErrSessionExpired)

	// the row is flagged inactive and the cache entry dropped
	rows, err := env.store.Sessions().FindAll(ctx)
	require.NoError(t, err)
	assert.False(t, rows[0].IsActive)
	assert.False(t, env.cache.has(created.Session.TokenHash))

	_, err = env.sessions.Validate(ctx, created.Token)
	assert.ErrorIs(t, err, core.ErrSessionExpired, "expiry is reported before the inactive flag")
}

// Requirement: failing to flag an expired session does not change the outcome.
func TestSessionManager_Validate_ExpiredMarkFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.register(t, testEmail)
	created, err := env.sessions.CreateWithTTL(ctx, id, time.Minute)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	env.store.sessions.failWrites(storageFailure("sessions.rewrite"))

	_, err = env.sessions.Validate(ctx, created.Token)

	require.ErrorIs(t, err, core.ErrSessionExpired)
	assert.NotErrorIs(t, err, core.ErrStorageUnavailable)
}

// Requirement: storage failures are reported as such, never as unauthenticated.
func TestSessionManager_Validate_StorageFailure(t *testing.T) {
	tests := []struct {
		name   string
		inject func(*faultStore)
	}{
		{name: "sessions unreadable", inject: func(s *faultStore) { s.sessions.failReads(storageFailure("sessions.read")) }},
		{name: "accounts unreadable", inject: func(s *faultStore) { s.accounts.failReads(storageFailure("accounts.read")) }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnvWithCache(t, nil)
			env.register(t, testEmail)
			res := env.login(t, testEmail)
			test.inject(env.store)

			_, err := env.sessions.Validate(ctx, res.Token)

			require.ErrorIs(t, err, core.ErrStorageUnavailable)
			assert.NotErrorIs(t, err, core.ErrUnauthenticated)
		})
	}
}

// Requirement: the cache serves session rows but never account status.
func TestSessionManager_Validate_CacheHit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, testEmail)
	res := env.login(t, testEmail)
	env.store.sessions.failReads(storageFailure("sessions.read"))

	data, err := env.sessions.Validate(ctx, res.Token)

	require.NoError(t, err)
	assert.Equal(t, res.Account.ID, data.Account.ID)
	assert.Equal(t, 1, env.cache.hitCount())
}

// Requirement: a failing cache never fails the operation.
func TestSessionManager_CacheFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	cache.getErr = errors.New("cache down")
	cache.setErr = errors.New("cache down")
	env := newTestEnvWithCache(t, cache)
	id := env.register(t, testEmail)

	created, err := env.sessions.Create(ctx, id)
	require.NoError(t, err)

	_, err = env.sessions.Validate(ctx, created.Token)
	require.NoError(t, err)
	require.NoError(t, env.sessions.Revoke(ctx, created.Token))

	_, err = env.sessions.Validate(ctx, created.Token)
	assert.ErrorIs(t, err, core.ErrSessionRevoked)
}

// Requirement: Revoke is idempotent for known tokens and reports unknown ones.
func TestSessionManager_Revoke(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, testEmail)
	res := env.login(t, testEmail)
	require.True(t, env.cache.has(res.Session.TokenHash))

	require.NoError(t, env.sessions.Revoke(ctx, res.Token))
	assert.False(t, env.cache.has(res.Session.TokenHash), "revoke must invalidate the cache")
	assert.NoError(t, env.sessions.Revoke(ctx, res.Token), "revoking twice succeeds")

	assert.ErrorIs(t, env.sessions.Revoke(ctx, "deadbeef"), core.ErrSessionNotFound)
	assert.ErrorIs(t, env.sessions.Revoke(ctx, ""), core.ErrSessionNotFound)

	rows, err := env.store.Sessions().FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1, "revoked rows stay until swept")
	assert.False(t, rows[0].IsActive)
}

func TestSessionManager_RevokeAllForAccount(t *testing.T) {
	// Arrange
	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, testEmail)
	env.register(t, "bob@example.com")
	a1 := env.login(t, testEmail)
	a2 := env.login(t, testEmail)
	b := env.login(t, "bob@example.com")

	// Act
	n, err := env.sessions.RevokeAllForAccount(ctx, a1.Account.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, token := range []string{a1.Token, a2.Token} {
		_, err := env.sessions.Validate(ctx, token)
		assert.ErrorIs(t, err, core.ErrSessionRevoked)
	}
	_, err = env.sessions.Validate(ctx, b.Token)
	assert.NoError(t, err, "other accounts keep their sessions")

	n, err = env.sessions.RevokeAllForAccount(ctx, a1.Account.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessionManager_ListForAccount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.register(t, testEmail)

	short, err := env.sessions.CreateWithTTL(ctx, id, time.Minute)
	require.NoError(t, err)
	revoked, err := env.sessions.Create(ctx, id)
	require.NoError(t, err)
	live, err := env.sessions.Create(ctx, id)
	require.NoError(t, err)
	_, err = env.sessions.CreateWithTTL(ctx, "someone-else", time.Hour)
	require.NoError(t, err)

	require.NoError(t, env.sessions.Revoke(ctx, revoked.Token))
	env.clock.Advance(time.Hour)

	sessions, err := env.sessions.ListForAccount(ctx, id)

	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, live.Session.TokenHash, sessions[0].TokenHash)
	assert.NotEqual(t, short.Session.TokenHash, sessions[0].TokenHash)
}

// Requirement: Sweep removes expired and revoked rows without changing any
// validation outcome.
func TestSessionManager_Sweep(t *testing.T) {
	// Arrange
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.register(t, testEmail)

	expired, err := env.sessions.CreateWithTTL(ctx, id, time.Minute)
	require.NoError(t, err)
	boundary, err := env.sessions.CreateWithTTL(ctx, id, time.Hour)
	require.NoError(t, err)
	revoked, err := env.sessions.Create(ctx, id)
	require.NoError(t, err)
	live, err := env.sessions.Create(ctx, id)
	require.NoError(t, err)
	require.NoError(t, env.sessions.Revoke(ctx, revoked.Token))
	env.clock.Advance(time.Hour)

	// Act
	removed, err := env.sessions.Sweep(ctx, env.clock.Now())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.False(t, env.cache.has(expired.Session.TokenHash))

	rows, err := env.store.Sessions().FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	for _, token := range []string{boundary.Token, live.Token} {
		_, err := env.sessions.Validate(ctx, token)
		assert.NoError(t, err)
	}
	for _, token := range []string{expired.Token, revoked.Token} {
		_, err := env.sessions.Validate(ctx, token)
		assert.ErrorIs(t, err, core.ErrUnauthenticated)
	}

	removed, err = env.sessions.Sweep(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSessionManager_Sweep_StorageFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.register(t, testEmail)
	created, err := env.sessions.Create(ctx, id)
	require.NoError(t, err)
	require.NoError(t, env.sessions.Revoke(ctx, created.Token))
	env.store.sessions.failWrites(storageFailure("sessions.rewrite"))

	removed, err := env.sessions.Sweep(ctx, env.clock.Now())

	require.ErrorIs(t, err, core.ErrStorageUnavailable)
	assert.Zero(t, removed)
}
