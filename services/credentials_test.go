package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptVerifier(t *testing.T) {
	v := NewBcryptVerifier(bcrypt.MinCost)

	hash, err := v.Hash("admin12345")
	require.NoError(t, err)
	assert.NotEqual(t, "admin12345", hash)
	assert.True(t, v.Verify(hash, "admin12345"))
	assert.False(t, v.Verify(hash, "admin1234"))
	assert.False(t, v.Verify("", ""))

	// hash-looking input is still hashed
	again, err := v.Hash(hash)
	require.NoError(t, err)
	assert.NotEqual(t, hash, again)
	assert.True(t, v.Verify(again, hash))
}

func TestBcryptVerifier_RejectsLongSecrets(t *testing.T) {
	v := NewBcryptVerifier(bcrypt.MinCost)

	_, err := v.Hash(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrCredentialTooLong)

	hash, err := v.Hash(strings.Repeat("x", 72))
	require.NoError(t, err)
	assert.True(t, v.Verify(hash, strings.Repeat("x", 72)))
}

func TestNewBcryptVerifier_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptVerifier(0).Cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptVerifier(99).Cost)
	assert.Equal(t, 12, NewBcryptVerifier(12).Cost)
}
