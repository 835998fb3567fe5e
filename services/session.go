package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lborres/tanod/core"
	"github.com/lborres/tanod/pkg/crypto"
	"github.com/lborres/tanod/pkg/metrics"
)

type SessionManager struct {
	config   core.SessionConfig
	sessions core.Table[core.Session]
	accounts core.Table[core.AccountRecord]
	cache    core.Cache // optional, can be nil if caching is disabled
	now      core.Clock
	log      zerolog.Logger
	metrics  *metrics.Metrics

	// cacheMu orders cache fills against invalidations so a fill that read
	// the store before a revoke cannot land after the revoke's delete
	cacheMu sync.Mutex
}

func NewSessionManager(config core.SessionConfig, store core.RecordStore, cache core.Cache, opts Options) *SessionManager {
	if config.MaxAge <= 0 {
		config.MaxAge = core.DefaultSessionMaxAge
	}
	return &SessionManager{
		config:   config,
		sessions: store.Sessions(),
		accounts: store.Accounts(),
		cache:    cache,
		now:      opts.clock(),
		log:      opts.logger(),
		metrics:  opts.Metrics,
	}
}

// Create issues a session with the configured max age.
func (sm *SessionManager) Create(ctx context.Context, accountID string) (*core.CreateSessionResult, error) {
	return sm.CreateWithTTL(ctx, accountID, sm.config.MaxAge)
}

func (sm *SessionManager) CreateWithTTL(ctx context.Context, accountID string, ttl time.Duration) (*core.CreateSessionResult, error) {
	if ttl <= 0 {
		return nil, core.ErrInvalidTTL
	}

	// Generate cryptographic material
	pair, err := crypto.GenerateToken(crypto.DefaultTokenLength)
	if err != nil {
		return nil, err
	}

	now := sm.now()
	session := core.Session{
		TokenHash: pair.Hash,
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		IsActive:  true,
	}

	if err := sm.sessions.Insert(ctx, session); err != nil {
		return nil, err
	}
	sm.metrics.SessionCreated()

	// We don't fail the request if caching fails
	sm.cacheSet(ctx, session)

	return &core.CreateSessionResult{Session: &session, Token: pair.Token}, nil
}

// Validate resolves token to its account.
//
// Every rejection matches core.ErrUnauthenticated and wraps the reason.
// Storage failures are returned as they are, never as unauthenticated.
func (sm *SessionManager) Validate(ctx context.Context, token string) (*core.SessionData, error) {
	if token == "" {
		sm.metrics.Validation("not_found")
		return nil, unauthenticated(core.ErrSessionNotFound)
	}

	tokenHash := crypto.HashToken(token)
	now := sm.now()

	session, err := sm.lookup(ctx, tokenHash)
	if errors.Is(err, core.ErrRecordNotFound) {
		sm.metrics.Validation("not_found")
		return nil, unauthenticated(core.ErrSessionNotFound)
	}
	if err != nil {
		sm.metrics.Validation("error")
		return nil, err
	}

	if session.Expired(now) {
		if session.IsActive {
			sm.markExpired(ctx, tokenHash, now)
		}
		sm.metrics.Validation("expired")
		return nil, unauthenticated(core.ErrSessionExpired)
	}
	if !session.IsActive {
		sm.metrics.Validation("revoked")
		return nil, unauthenticated(core.ErrSessionRevoked)
	}

	// account status is never cached
	acc, err := sm.accounts.FindByKey(ctx, func(r core.AccountRecord) bool { return r.ID == session.AccountID })
	if errors.Is(err, core.ErrRecordNotFound) {
		sm.metrics.Validation("deactivated")
		return nil, unauthenticated(core.ErrAccountDeactivated)
	}
	if err != nil {
		sm.metrics.Validation("error")
		return nil, err
	}
	if !acc.IsActive {
		sm.metrics.Validation("deactivated")
		return nil, unauthenticated(core.ErrAccountDeactivated)
	}

	sm.metrics.Validation("valid")
	return &core.SessionData{Account: acc.Public(), Session: &session}, nil
}

// Revoke deactivates the session for token. Revoking an inactive session
// succeeds; an unknown token is ErrSessionNotFound.
func (sm *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return core.ErrSessionNotFound
	}
	tokenHash := crypto.HashToken(token)

	err := sm.sessions.Update(ctx, func(rows []core.Session) ([]core.Session, error) {
		for i := range rows {
			if rows[i].TokenHash != tokenHash {
				continue
			}
			if !rows[i].IsActive {
				return nil, errUnchanged
			}
			rows[i].IsActive = false
			return rows, nil
		}
		return nil, core.ErrSessionNotFound
	})
	switch {
	case errors.Is(err, errUnchanged):
		return nil
	case err != nil:
		return err
	}

	sm.metrics.Revoked(1)
	sm.cacheDelete(ctx, tokenHash)
	return nil
}

// RevokeAllForAccount deactivates every active session of the account and
// returns how many were revoked.
func (sm *SessionManager) RevokeAllForAccount(ctx context.Context, accountID string) (int, error) {
	var revoked []string

	err := sm.sessions.Update(ctx, func(rows []core.Session) ([]core.Session, error) {
		revoked = revoked[:0]
		for i := range rows {
			if rows[i].AccountID == accountID && rows[i].IsActive {
				rows[i].IsActive = false
				revoked = append(revoked, rows[i].TokenHash)
			}
		}
		if len(revoked) == 0 {
			return nil, errUnchanged
		}
		return rows, nil
	})
	switch {
	case errors.Is(err, errUnchanged):
		return 0, nil
	case err != nil:
		return 0, err
	}

	for _, h := range revoked {
		sm.cacheDelete(ctx, h)
	}
	sm.metrics.Revoked(len(revoked))
	sm.log.Info().Str("account_id", accountID).Int("revoked", len(revoked)).Msg("sessions revoked")

	return len(revoked), nil
}

// ListForAccount returns the account's sessions that are currently valid.
func (sm *SessionManager) ListForAccount(ctx context.Context, accountID string) ([]core.Session, error) {
	rows, err := sm.sessions.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	now := sm.now()
	var out []core.Session
	for _, s := range rows {
		if s.AccountID == accountID && s.ValidAt(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Sweep deletes sessions that expired before now and sessions already
// revoked. Validate treats both as invalid, so sweeping changes no outcome.
func (sm *SessionManager) Sweep(ctx context.Context, now time.Time) (int, error) {
	var removed []string

	err := sm.sessions.Update(ctx, func(rows []core.Session) ([]core.Session, error) {
		removed = removed[:0]
		kept := rows[:0]
		for _, s := range rows {
			if !s.IsActive || s.ExpiresAt.Before(now) {
				removed = append(removed, s.TokenHash)
				continue
			}
			kept = append(kept, s)
		}
		if len(removed) == 0 {
			return nil, errUnchanged
		}
		return kept, nil
	})
	switch {
	case errors.Is(err, errUnchanged):
		return 0, nil
	case err != nil:
		return 0, err
	}

	for _, h := range removed {
		sm.cacheDelete(ctx, h)
	}
	sm.metrics.Swept(len(removed))

	return len(removed), nil
}

// lookup reads a session through the cache.
func (sm *SessionManager) lookup(ctx context.Context, tokenHash string) (core.Session, error) {
	if sm.cache != nil {
		if s, err := sm.cache.Get(ctx, tokenHash); err == nil {
			return *s, nil
		} else if !errors.Is(err, core.ErrCacheNotFound) {
			sm.log.Warn().Err(err).Msg("session cache read failed")
		}
		// Cache miss - fall through to storage
		sm.cacheMu.Lock()
		defer sm.cacheMu.Unlock()
	}

	s, err := sm.sessions.FindByKey(ctx, func(s core.Session) bool { return s.TokenHash == tokenHash })
	if err != nil {
		return s, err
	}
	if s.IsActive {
		sm.cacheSetLocked(ctx, s)
	}
	return s, nil
}

// markExpired flags an expired session inactive. It is housekeeping only:
// expiry is decided by the time comparison, so a failure is logged and
// otherwise ignored.
func (sm *SessionManager) markExpired(ctx context.Context, tokenHash string, now time.Time) {
	sm.cacheDelete(ctx, tokenHash)

	err := sm.sessions.Update(ctx, func(rows []core.Session) ([]core.Session, error) {
		for i := range rows {
			if rows[i].TokenHash == tokenHash && rows[i].IsActive && rows[i].Expired(now) {
				rows[i].IsActive = false
				return rows, nil
			}
		}
		return nil, errUnchanged
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		sm.log.Warn().Err(err).Str("reason", "expired").Msg("failed to mark session inactive")
	}
}

func (sm *SessionManager) cacheSet(ctx context.Context, s core.Session) {
	if sm.cache == nil {
		return
	}
	sm.cacheMu.Lock()
	defer sm.cacheMu.Unlock()
	sm.cacheSetLocked(ctx, s)
}

func (sm *SessionManager) cacheSetLocked(ctx context.Context, s core.Session) {
	if sm.cache == nil {
		return
	}
	if err := sm.cache.Set(ctx, s.TokenHash, &s); err != nil {
		sm.log.Warn().Err(err).Msg("session cache write failed")
	}
}

func (sm *SessionManager) cacheDelete(ctx context.Context, tokenHash string) {
	if sm.cache == nil {
		return
	}
	sm.cacheMu.Lock()
	defer sm.cacheMu.Unlock()
	if err := sm.cache.Delete(ctx, tokenHash); err != nil {
		sm.log.Warn().Err(err).Msg("session cache delete failed")
	}
}

func unauthenticated(reason error) error {
	return fmt.Errorf("%w: %w", core.ErrUnauthenticated, reason)
}
