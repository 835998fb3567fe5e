package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lborres/tanod/core"
	"github.com/lborres/tanod/pkg/metrics"
)

type AuthService struct {
	accounts *AccountManager
	sessions *SessionManager
	now      core.Clock
	log      zerolog.Logger
	metrics  *metrics.Metrics

	dummyOnce   sync.Once
	dummyDigest string
}

func NewAuthService(accounts *AccountManager, sessions *SessionManager, opts Options) *AuthService {
	return &AuthService{
		accounts: accounts,
		sessions: sessions,
		now:      opts.clock(),
		log:      opts.logger(),
		metrics:  opts.Metrics,
	}
}

// Authenticate checks email and secret and records the login time.
//
// An unknown email and a wrong secret both yield ErrInvalidCredentials, and
// both pay for one verification.
func (s *AuthService) Authenticate(ctx context.Context, email, secret string) (*core.Account, error) {
	rec, err := s.accounts.recordByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, core.ErrRecordNotFound) {
		s.burnVerify(secret)
		s.metrics.Login("invalid_credentials")
		return nil, core.ErrInvalidCredentials
	}
	if err != nil {
		s.metrics.Login("error")
		return nil, err
	}

	ok, err := s.accounts.verify(secret, rec.CredentialDigest)
	if !rec.IsActive {
		s.metrics.Login("deactivated")
		return nil, core.ErrAccountDeactivated
	}
	if err != nil {
		s.metrics.Login("error")
		return nil, err
	}
	if !ok {
		s.metrics.Login("invalid_credentials")
		s.log.Info().Str("account_id", rec.ID).Str("reason", "wrong secret").Msg("login failed")
		return nil, core.ErrInvalidCredentials
	}

	updated, err := s.accounts.touchLogin(ctx, rec.ID, s.now())
	if err != nil {
		s.metrics.Login("error")
		return nil, err
	}

	return updated.Public(), nil
}

// Login authenticates and opens a session.
func (s *AuthService) Login(ctx context.Context, email, secret string) (*core.LoginResult, error) {
	acc, err := s.Authenticate(ctx, email, secret)
	if err != nil {
		return nil, err
	}

	created, err := s.sessions.Create(ctx, acc.ID)
	if err != nil {
		s.metrics.Login("error")
		return nil, err
	}

	s.metrics.Login(metrics.ResultSuccess)
	s.log.Info().Str("account_id", acc.ID).Msg("login")

	return &core.LoginResult{
		Account: acc,
		Session: created.Session,
		Token:   created.Token,
	}, nil
}

// Logout revokes the session. An unknown or already revoked token is
// still a success.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	err := s.sessions.Revoke(ctx, token)
	if errors.Is(err, core.ErrSessionNotFound) {
		return nil
	}
	return err
}

func (s *AuthService) ValidateSession(ctx context.Context, token string) (*core.SessionData, error) {
	return s.sessions.Validate(ctx, token)
}

// burnVerify runs a verification against a throwaway digest so unknown
// emails take as long as wrong secrets.
func (s *AuthService) burnVerify(secret string) {
	s.dummyOnce.Do(func() {
		buf := make([]byte, 16)
		_, _ = rand.Read(buf)
		digest, err := s.accounts.passwordHasher.Hash(hex.EncodeToString(buf))
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to prepare dummy digest")
			return
		}
		s.dummyDigest = digest
	})
	if s.dummyDigest != "" {
		_, _ = s.accounts.verify(secret, s.dummyDigest)
	}
}
