package core

import (
	"errors"
	"fmt"
)

// Account errors
var (
	ErrEmailTaken         = errors.New("email already registered")   // 409 Conflict
	ErrRecordNotFound     = errors.New("record not found")           // 404 Not Found
	ErrInvalidCredentials = errors.New("invalid email or password")  // 401 Unauthorized
	ErrAccountDeactivated = errors.New("account is deactivated")     // 403 Forbidden
	ErrWrongSecret        = errors.New("password is incorrect")      // 401 Unauthorized
	ErrDuplicateKey       = errors.New("duplicate key")              // 409 Conflict
	ErrInvalidRole        = errors.New("invalid role")               // 400
	ErrStorageUnavailable = errors.New("storage unavailable")        // 503
	ErrCacheNotFound      = errors.New("session not found in cache") // internal
)

// Session errors
var (
	ErrUnauthenticated = errors.New("unauthenticated")   // 401
	ErrSessionNotFound = errors.New("session not found") // 401
	ErrSessionExpired  = errors.New("session expired")   // 401
	ErrSessionRevoked  = errors.New("session revoked")   // 401
	ErrInvalidTTL      = errors.New("session ttl must be positive")
)

// Validation errors (client input)
var (
	ErrInvalidEmail   = errors.New("invalid email format")                        // 400
	ErrWeakSecret     = errors.New("password must be at least 8 characters long") // 400
	ErrInvalidProfile = errors.New("invalid profile data")                        // 400
	ErrSecretTooLong  = errors.New("password is too long")                        // 400
)

// Config errors (embedding-side configuration)
var (
	ErrStoreRequired = errors.New("record store is required")
)

// StorageError reports an operational failure of a record store.
//
// It matches ErrStorageUnavailable under errors.Is and still unwraps to the
// underlying cause, so business-rule rejections and I/O failures stay
// distinguishable.
type StorageError struct {
	Op  string // e.g. "accounts.rewrite"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorageUnavailable, e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageUnavailable, e.Err}
}

// NewStorageError wraps err as a StorageError for op. A nil err yields nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
