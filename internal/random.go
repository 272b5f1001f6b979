package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	// linkSecretRawSize is the entropy behind verification and reset links.
	// 36 bytes encode to 72 hex characters, which is exactly the input
	// limit bcrypt will hash without truncation.
	linkSecretRawSize = 36

	signInCodeDigits = 5
	signInCodeMax    = 100000

	linkSecretBcryptCost = bcrypt.DefaultCost
)

// NewLinkSecret returns a fresh link token as lowercase hex. The token
// itself travels in the emailed URL; only its bcrypt hash is stored.
func NewLinkSecret() (string, error) {
	var raw [linkSecretRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// HashLinkSecret bcrypt-hashes a link token for storage.
func HashLinkSecret(secret string) ([]byte, error) {
	if len(secret) != linkSecretRawSize*2 {
		return nil, errors.New("invalid link secret size")
	}
	return bcrypt.GenerateFromPassword([]byte(secret), linkSecretBcryptCost)
}

// CompareLinkSecret reports whether the presented token matches the stored
// bcrypt hash. Any mismatch or malformed input reports false.
func CompareLinkSecret(hash []byte, secret string) bool {
	if len(secret) != linkSecretRawSize*2 {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(secret)) == nil
}

// NewSignInCode returns a zero-padded 5 digit code drawn from crypto/rand.
func NewSignInCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(signInCodeMax))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", signInCodeDigits, n.Int64()), nil
}

// HashSignInCode digests a code for storage. Codes are low-entropy and
// short-lived; SHA-256 with replace-on-resend semantics is the tradeoff.
func HashSignInCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// CompareSignInCode compares a stored code digest against the digest of a
// presented code in constant time.
func CompareSignInCode(stored [32]byte, code string) bool {
	presented := HashSignInCode(code)
	return subtle.ConstantTimeCompare(stored[:], presented[:]) == 1
}

// ValidSignInCodeFormat reports whether the input looks like a code at all,
// so obviously malformed input can be rejected before touching the store.
func ValidSignInCodeFormat(code string) bool {
	if len(code) != signInCodeDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
