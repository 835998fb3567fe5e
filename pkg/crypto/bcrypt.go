package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBCryptCost = 12
	maxBCryptInput    = 72
)

var ErrPasswordTooLong = errors.New("password must be 72 bytes or fewer")

var _ PasswordHandler = (*BCrypt)(nil)

// BCrypt hashes with bcrypt. The salt and cost are embedded in the digest:
//
//	$2a$12$<22-char salt><31-char hash>
type BCrypt struct {
	Cost int
}

func NewBCrypt() *BCrypt {
	return &BCrypt{Cost: DefaultBCryptCost}
}

// Hash rejects inputs over 72 bytes; bcrypt would silently truncate them.
func (b *BCrypt) Hash(password string) (string, error) {
	if len(password) > maxBCryptInput {
		return "", ErrPasswordTooLong
	}

	cost := b.Cost
	if cost == 0 {
		cost = DefaultBCryptCost
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	return string(hashed), nil
}

func (b *BCrypt) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
}
