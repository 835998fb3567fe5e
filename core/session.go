package core

import "time"

const (
	DefaultSessionMaxAge = 24 * time.Hour
	DefaultSweepInterval = time.Hour
)

type SessionConfig struct {
	// MaxAge is the TTL applied by SessionManager.Create.
	MaxAge time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxAge: DefaultSessionMaxAge,
	}
}

// Clock returns the current time. Components take one so tests can move time.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// CreateSessionResult carries a new session and the raw token handed to the
// client. The token is never stored.
type CreateSessionResult struct {
	Session *Session `json:"session"`
	Token   string   `json:"token"`
}
