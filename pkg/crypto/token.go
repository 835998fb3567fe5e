package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	DefaultTokenLength = 32 // 256 bits
	MinTokenLength     = 16 // 128 bits
)

// TokenPair is a fresh session token and the form kept in storage.
type TokenPair struct {
	Token string // handed to the client, never stored
	Hash  string
}

// GenerateToken returns byteLength random bytes, hex encoded, with the
// token's hash. Lengths below MinTokenLength use the default.
func GenerateToken(byteLength int) (TokenPair, error) {
	if byteLength < MinTokenLength {
		byteLength = DefaultTokenLength
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return TokenPair{}, fmt.Errorf("reading random bytes: %w", err)
	}

	token := hex.EncodeToString(buf)
	return TokenPair{Token: token, Hash: HashToken(token)}, nil
}

// HashToken is the storage form of a session token: hex SHA-256. Tokens
// carry enough entropy that an unsalted fast hash is sufficient.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
