package core

import "time"

// Role is the authorization tag carried by an account.
type Role string

const (
	RoleContributor Role = "contributor"
	RoleAdmin       Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleContributor, RoleAdmin:
		return true
	}
	return false
}

// Profile holds the optional, user-editable attributes of an account.
type Profile struct {
	CulturalBackground string `json:"culturalBackground" validate:"max=200"`
	Profession         string `json:"profession" validate:"max=200"`
	Location           string `json:"location" validate:"max=200"`
}

// Account represents a contributor in the system
//
// This is the public view. It never carries the credential digest, so it is
// safe to hand to collaborators and to encode as JSON.
type Account struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName" validate:"max=100"`
	Profile     Profile    `json:"profile"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	IsActive    bool       `json:"isActive"`
	Role        Role       `json:"role"`
}

// AccountRecord is the stored form of an account
//
// Only storage adapters and the services package see this type.
type AccountRecord struct {
	Account
	CredentialDigest string `json:"-"` // Never expose in JSON
}

// Public returns a copy of the account without the credential digest.
func (r AccountRecord) Public() *Account {
	a := r.Account
	if r.LastLoginAt != nil {
		t := *r.LastLoginAt
		a.LastLoginAt = &t
	}
	return &a
}

// Session represents a login session
//
// TokenHash is the SHA-256 of the token handed to the client; the raw token
// is never stored.
type Session struct {
	TokenHash string    `json:"-"` // Never expose in JSON (security!)
	AccountID string    `json:"accountId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsActive  bool      `json:"isActive"`
}

// Expired reports whether the session is past its expiry at now.
// A session is still usable at exactly ExpiresAt.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// ValidAt reports whether the session row by itself is usable at now.
// The referenced account's status is checked separately.
func (s Session) ValidAt(now time.Time) bool {
	return s.IsActive && !s.Expired(now)
}

// SessionData combines account and session info
// The model returned to clients
type SessionData struct {
	Account *Account `json:"account"`
	Session *Session `json:"session"`
}
