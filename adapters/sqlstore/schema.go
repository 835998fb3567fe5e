package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lborres/tanod/core"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// schema maps a record type onto one table. The first column is the primary key.
type schema[R any] struct {
	table   string
	columns []string
	key     func(R) string
	values  func(R) []any
	scan    func(scanner) (R, error)
}

// Timestamps are stored as RFC 3339 text in UTC so both dialects share one
// encoding with the flat-file layout.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(col, v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %s: %w", col, err)
	}
	return t, nil
}

var accountSchema = schema[core.AccountRecord]{
	table: "accounts",
	columns: []string{
		"account_id", "email", "credential_digest", "display_name",
		"cultural_background", "profession", "location",
		"created_at", "last_login_at", "is_active", "role",
	},
	key: core.AccountKey,
	values: func(a core.AccountRecord) []any {
		var lastLogin sql.NullString
		if a.LastLoginAt != nil {
			lastLogin = sql.NullString{String: formatTime(*a.LastLoginAt), Valid: true}
		}
		return []any{
			a.ID, a.Email, a.CredentialDigest, a.DisplayName,
			a.Profile.CulturalBackground, a.Profile.Profession, a.Profile.Location,
			formatTime(a.CreatedAt), lastLogin, a.IsActive, string(a.Role),
		}
	},
	scan: func(s scanner) (core.AccountRecord, error) {
		var (
			a         core.AccountRecord
			createdAt string
			lastLogin sql.NullString
			role      string
		)
		err := s.Scan(
			&a.ID, &a.Email, &a.CredentialDigest, &a.DisplayName,
			&a.Profile.CulturalBackground, &a.Profile.Profession, &a.Profile.Location,
			&createdAt, &lastLogin, &a.IsActive, &role,
		)
		if err != nil {
			return a, err
		}

		if a.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return a, err
		}
		if lastLogin.Valid {
			t, err := parseTime("last_login_at", lastLogin.String)
			if err != nil {
				return a, err
			}
			a.LastLoginAt = &t
		}
		a.Role = core.Role(role)
		if a.Role == "" {
			a.Role = core.RoleContributor
		}
		return a, nil
	},
}

var sessionSchema = schema[core.Session]{
	table:   "sessions",
	columns: []string{"token", "account_id", "created_at", "expires_at", "is_active"},
	key:     core.SessionKey,
	values: func(s core.Session) []any {
		return []any{s.TokenHash, s.AccountID, formatTime(s.CreatedAt), formatTime(s.ExpiresAt), s.IsActive}
	},
	scan: func(sc scanner) (core.Session, error) {
		var (
			s                    core.Session
			createdAt, expiresAt string
		)
		if err := sc.Scan(&s.TokenHash, &s.AccountID, &createdAt, &expiresAt, &s.IsActive); err != nil {
			return s, err
		}

		var err error
		if s.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return s, err
		}
		if s.ExpiresAt, err = parseTime("expires_at", expiresAt); err != nil {
			return s, err
		}
		return s, nil
	},
}
