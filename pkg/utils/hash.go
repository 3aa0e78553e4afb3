package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmptySecret   = errors.New("secret must not be empty")
	ErrSecretTooLong = errors.New("secret must be at most 72 bytes")
)

// DefaultBcryptCost replaces a configured cost below bcrypt.MinCost.
const DefaultBcryptCost = 12

// bcrypt rejects longer input.
const maxSecretBytes = 72

// SecretHasher hashes passwords and one-time codes with the same primitive.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

type BcryptHasher struct {
	cost int
}

// NewBcryptHasher clamps cost into bcrypt's accepted range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost {
		cost = DefaultBcryptCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

func (b *BcryptHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if len(secret) > maxSecretBytes {
		return "", ErrSecretTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify never returns an error: a malformed digest is simply not a match.
func (b *BcryptHasher) Verify(secret, digest string) bool {
	if secret == "" || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}
