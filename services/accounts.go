package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lborres/tanod/core"
	"github.com/lborres/tanod/pkg/crypto"
	"github.com/lborres/tanod/pkg/metrics"
)

// AccountManager owns account records: registration, profile and credential
// changes, deactivation and lookups.
//
// Every read-modify-write goes through one accounts.Update call so the
// unique-active-email rule holds under concurrent registrations.
type AccountManager struct {
	accounts       core.Table[core.AccountRecord]
	passwordHasher crypto.PasswordHandler
	validator      *profileValidator
	now            core.Clock
	log            zerolog.Logger
	metrics        *metrics.Metrics
}

func NewAccountManager(accounts core.Table[core.AccountRecord], passwordHasher crypto.PasswordHandler, opts Options) *AccountManager {
	return &AccountManager{
		accounts:       accounts,
		passwordHasher: passwordHasher,
		validator:      newProfileValidator(),
		now:            opts.clock(),
		log:            opts.logger(),
		metrics:        opts.Metrics,
	}
}

// errUnchanged aborts an Update that has nothing to write.
var errUnchanged = errors.New("unchanged")

// Register creates an active contributor account and returns its id.
func (m *AccountManager) Register(ctx context.Context, input core.RegisterInput) (string, error) {
	email := NormalizeEmail(input.Email)
	if !validEmail(email) {
		m.metrics.Registration("invalid")
		return "", core.ErrInvalidEmail
	}
	if err := checkSecret(input.Secret); err != nil {
		m.metrics.Registration("invalid")
		return "", err
	}

	acc := core.Account{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Profile:     input.Profile,
		CreatedAt:   m.now(),
		IsActive:    true,
		Role:        core.RoleContributor,
	}
	if err := m.validator.check(&acc); err != nil {
		m.metrics.Registration("invalid")
		return "", err
	}

	// Cheap pre-check on the snapshot so a taken email does not pay for a
	// hash. The authoritative check runs under the writer lock below.
	if _, err := m.accounts.FindByKey(ctx, activeEmail(email)); err == nil {
		m.metrics.Registration("taken")
		return "", core.ErrEmailTaken
	} else if !errors.Is(err, core.ErrRecordNotFound) {
		m.metrics.Registration("error")
		return "", err
	}

	digest, err := m.hash(input.Secret)
	if errors.Is(err, core.ErrSecretTooLong) {
		m.metrics.Registration("invalid")
		return "", err
	}
	if err != nil {
		m.metrics.Registration("error")
		return "", err
	}
	rec := core.AccountRecord{Account: acc, CredentialDigest: digest}

	err = m.accounts.Update(ctx, func(rows []core.AccountRecord) ([]core.AccountRecord, error) {
		for _, r := range rows {
			if r.IsActive && r.Email == email {
				return nil, core.ErrEmailTaken
			}
		}
		return append(rows, rec), nil
	})
	if err != nil {
		if errors.Is(err, core.ErrEmailTaken) {
			m.metrics.Registration("taken")
		} else {
			m.metrics.Registration("error")
		}
		return "", err
	}

	m.metrics.Registration(metrics.ResultSuccess)
	m.log.Info().Str("account_id", acc.ID).Msg("account registered")

	return acc.ID, nil
}

// UpdateProfile merges the recognised keys of fields into the account.
func (m *AccountManager) UpdateProfile(ctx context.Context, accountID string, fields map[string]string) (*core.Account, error) {
	var updated core.AccountRecord

	err := m.accounts.Update(ctx, func(rows []core.AccountRecord) ([]core.AccountRecord, error) {
		i := indexByID(rows, accountID)
		if i < 0 {
			return nil, core.ErrRecordNotFound
		}

		r := rows[i]
		for k, v := range fields {
			switch k {
			case core.FieldDisplayName:
				r.DisplayName = strings.TrimSpace(v)
			case core.FieldCulturalBackground:
				r.Profile.CulturalBackground = v
			case core.FieldProfession:
				r.Profile.Profession = v
			case core.FieldLocation:
				r.Profile.Location = v
			}
		}
		if err := m.validator.check(&r.Account); err != nil {
			return nil, err
		}

		rows[i] = r
		updated = r
		return rows, nil
	})
	if err != nil {
		return nil, err
	}

	return updated.Public(), nil
}

// ChangePassword replaces the credential after re-verifying the current one.
func (m *AccountManager) ChangePassword(ctx context.Context, accountID, current, next string) error {
	if err := checkSecret(next); err != nil {
		return err
	}

	rec, err := m.verifyOwner(ctx, accountID, current)
	if err != nil {
		return err
	}

	digest, err := m.hash(next)
	if err != nil {
		return err
	}

	err = m.accounts.Update(ctx, func(rows []core.AccountRecord) ([]core.AccountRecord, error) {
		i := indexByID(rows, accountID)
		if i < 0 {
			return nil, core.ErrRecordNotFound
		}
		// the secret changed while we were verifying
		if rows[i].CredentialDigest != rec.CredentialDigest {
			return nil, core.ErrWrongSecret
		}
		rows[i].CredentialDigest = digest
		return rows, nil
	})
	if err != nil {
		return err
	}

	m.log.Info().Str("account_id", accountID).Msg("password changed")
	return nil
}

// Deactivate soft-deletes the account. Sessions are left in place; they stop
// validating because the account is inactive. Repeating it is a no-op.
func (m *AccountManager) Deactivate(ctx context.Context, accountID, confirmingSecret string) error {
	rec, err := m.verifyOwner(ctx, accountID, confirmingSecret)
	if err != nil {
		return err
	}
	if !rec.IsActive {
		return nil
	}

	err = m.accounts.Update(ctx, func(rows []core.AccountRecord) ([]core.AccountRecord, error) {
		i := indexByID(rows, accountID)
		if i < 0 {
			return nil, core.ErrRecordNotFound
		}
		if !rows[i].IsActive {
			return nil, errUnchanged
		}
		rows[i].IsActive = false
		return rows, nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return err
	}

	m.log.Info().Str("account_id", accountID).Msg("account deactivated")
	return nil
}

// SetRole changes the authorization tag of an account.
func (m *AccountManager) SetRole(ctx context.Context, accountID string, role core.Role) error {
	if !role.Valid() {
		return core.ErrInvalidRole
	}

	return m.accounts.Update(ctx, func(rows []core.AccountRecord) ([]core.AccountRecord, error) {
		i := indexByID(rows, accountID)
		if i < 0 {
			return nil, core.ErrRecordNotFound
		}
		rows[i].Role = role
		return rows, nil
	})
}

// Lookup resolves an account id or, failing that, an email address.
func (m *AccountManager) Lookup(ctx context.Context, identifierOrID string) (*core.Account, error) {
	acc, err := m.LookupByID(ctx, identifierOrID)
	if errors.Is(err, core.ErrRecordNotFound) {
		return m.LookupByEmail(ctx, identifierOrID)
	}
	return acc, err
}

func (m *AccountManager) LookupByID(ctx context.Context, accountID string) (*core.Account, error) {
	rec, err := m.accounts.FindByKey(ctx, func(r core.AccountRecord) bool { return r.ID == accountID })
	if err != nil {
		return nil, err
	}
	return rec.Public(), nil
}

// LookupByEmail prefers the active account; otherwise it returns the most
// recently registered inactive one.
func (m *AccountManager) LookupByEmail(ctx context.Context, email string) (*core.Account, error) {
	rec, err := m.recordByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return rec.Public(), nil
}

// List returns every account in registration order.
func (m *AccountManager) List(ctx context.Context) ([]core.Account, error) {
	rows, err := m.accounts.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]core.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.Public())
	}
	return out, nil
}

func (m *AccountManager) recordByEmail(ctx context.Context, email string) (core.AccountRecord, error) {
	rows, err := m.accounts.FindAll(ctx)
	if err != nil {
		return core.AccountRecord{}, err
	}

	var (
		found core.AccountRecord
		ok    bool
	)
	for _, r := range rows {
		if r.Email != email {
			continue
		}
		if r.IsActive {
			return r, nil
		}
		found, ok = r, true
	}
	if !ok {
		return core.AccountRecord{}, core.ErrRecordNotFound
	}
	return found, nil
}

// verifyOwner loads the account and checks secret against its digest.
func (m *AccountManager) verifyOwner(ctx context.Context, accountID, secret string) (core.AccountRecord, error) {
	rec, err := m.accounts.FindByKey(ctx, func(r core.AccountRecord) bool { return r.ID == accountID })
	if err != nil {
		return rec, err
	}

	ok, err := m.verify(secret, rec.CredentialDigest)
	if err != nil {
		return rec, err
	}
	if !ok {
		return rec, core.ErrWrongSecret
	}
	return rec, nil
}

// touchLogin records a successful login at t and returns the updated record.
func (m *AccountManager) touchLogin(ctx context.Context, accountID string, t time.Time) (core.AccountRecord, error) {
	var updated core.AccountRecord
	err := m.accounts.Update(ctx, func(rows []core.AccountRecord) ([]core.AccountRecord, error) {
		i := indexByID(rows, accountID)
		if i < 0 {
			return nil, core.ErrRecordNotFound
		}
		rows[i].LastLoginAt = &t
		updated = rows[i]
		return rows, nil
	})
	return updated, err
}

func (m *AccountManager) hash(secret string) (string, error) {
	defer m.metrics.ObserveHash("hash", time.Now())

	digest, err := m.passwordHasher.Hash(secret)
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		return "", core.ErrSecretTooLong
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return digest, nil
}

func (m *AccountManager) verify(secret, digest string) (bool, error) {
	defer m.metrics.ObserveHash("verify", time.Now())

	ok, err := m.passwordHasher.Verify(secret, digest)
	if err != nil {
		return false, fmt.Errorf("failed to verify password: %w", err)
	}
	return ok, nil
}

func activeEmail(email string) func(core.AccountRecord) bool {
	return func(r core.AccountRecord) bool { return r.IsActive && r.Email == email }
}

func indexByID(rows []core.AccountRecord, accountID string) int {
	for i, r := range rows {
		if r.ID == accountID {
			return i
		}
	}
	return -1
}
