package csv

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lborres/tanod/core"
)

// Column layouts. The header row written to each file is exactly this list;
// on read, columns are located by header name.
var (
	AccountColumns = []string{
		"account_id", "email", "credential_digest", "display_name",
		"cultural_background", "profession", "location",
		"created_at", "last_login_at", "is_active", "role",
	}
	SessionColumns = []string{
		"token", "account_id", "created_at", "expires_at", "is_active",
	}
)

// codec converts one record to and from a flat row.
type codec[R any] struct {
	columns  []string
	required []string
	encode   func(R) []string
	decode   func(row) (R, error)
}

// row is one decoded line addressed by column name.
type row map[string]string

func (r row) time(col string) (time.Time, error) {
	v := r[col]
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %s: %w", col, err)
	}
	return t, nil
}

func (r row) optionalTime(col string) (*time.Time, error) {
	if r[col] == "" {
		return nil, nil
	}
	t, err := r.time(col)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r row) bool(col string, fallback bool) (bool, error) {
	v := r[col]
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("column %s: %w", col, err)
	}
	return b, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

var accountCodec = codec[core.AccountRecord]{
	columns:  AccountColumns,
	required: []string{"account_id", "email", "credential_digest", "created_at"},
	encode: func(a core.AccountRecord) []string {
		return []string{
			a.ID,
			a.Email,
			a.CredentialDigest,
			a.DisplayName,
			a.Profile.CulturalBackground,
			a.Profile.Profession,
			a.Profile.Location,
			formatTime(a.CreatedAt),
			formatOptionalTime(a.LastLoginAt),
			strconv.FormatBool(a.IsActive),
			string(a.Role),
		}
	},
	decode: func(r row) (core.AccountRecord, error) {
		var a core.AccountRecord
		var err error

		a.ID = r["account_id"]
		a.Email = r["email"]
		a.CredentialDigest = r["credential_digest"]
		a.DisplayName = r["display_name"]
		a.Profile = core.Profile{
			CulturalBackground: r["cultural_background"],
			Profession:         r["profession"],
			Location:           r["location"],
		}
		if a.CreatedAt, err = r.time("created_at"); err != nil {
			return a, err
		}
		if a.LastLoginAt, err = r.optionalTime("last_login_at"); err != nil {
			return a, err
		}
		if a.IsActive, err = r.bool("is_active", true); err != nil {
			return a, err
		}
		a.Role = core.Role(r["role"])
		if a.Role == "" {
			a.Role = core.RoleContributor
		}
		return a, nil
	},
}

var sessionCodec = codec[core.Session]{
	columns:  SessionColumns,
	required: []string{"token", "account_id", "created_at", "expires_at"},
	encode: func(s core.Session) []string {
		return []string{
			s.TokenHash,
			s.AccountID,
			formatTime(s.CreatedAt),
			formatTime(s.ExpiresAt),
			strconv.FormatBool(s.IsActive),
		}
	},
	decode: func(r row) (core.Session, error) {
		var s core.Session
		var err error

		s.TokenHash = r["token"]
		s.AccountID = r["account_id"]
		if s.CreatedAt, err = r.time("created_at"); err != nil {
			return s, err
		}
		if s.ExpiresAt, err = r.time("expires_at"); err != nil {
			return s, err
		}
		if s.IsActive, err = r.bool("is_active", true); err != nil {
			return s, err
		}
		return s, nil
	},
}
