package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	digest, err := h.Hash("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", digest)

	assert.True(t, h.Verify("s3cret-pass", digest))
	assert.False(t, h.Verify("other-pass", digest))
}

func TestBcryptHasher_SaltsEachHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	a, err := h.Hash("123456")
	require.NoError(t, err)
	b, err := h.Hash("123456")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("123456", a))
	assert.True(t, h.Verify("123456", b))
}

func TestBcryptHasher_RejectsEmptyAndMalformed(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	_, err := h.Hash("")
	assert.ErrorIs(t, err, ErrEmptySecret)

	assert.False(t, h.Verify("", "$2a$04$abc"))
	assert.False(t, h.Verify("secret", ""))
	assert.False(t, h.Verify("secret", "not-a-bcrypt-digest"))
}

func TestNewBcryptHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewBcryptHasher(0).cost)
	assert.Equal(t, bcrypt.MaxCost, NewBcryptHasher(99).cost)
	assert.Equal(t, 12, NewBcryptHasher(12).cost)
}

func TestBcryptHasher_RejectsSecretOverByteLimit(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	// 40 runes, 80 bytes
	_, err := h.Hash(strings.Repeat("é", 40))
	assert.ErrorIs(t, err, ErrSecretTooLong)

	digest, err := h.Hash(strings.Repeat("a", 72))
	require.NoError(t, err)
	assert.True(t, h.Verify(strings.Repeat("a", 72), digest))
}
