package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	h, err := HashPassword("longpass1", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "longpass1", h)
	assert.True(t, CheckPassword("longpass1", h))
	assert.False(t, CheckPassword("longpass2", h))
}

func TestHashPassword_Salted(t *testing.T) {
	a, err := HashPassword("same-plaintext", bcrypt.MinCost)
	require.NoError(t, err)
	b, err := HashPassword("same-plaintext", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, CheckPassword("same-plaintext", a))
	assert.True(t, CheckPassword("same-plaintext", b))
}

func TestHashPassword_CustomCost(t *testing.T) {
	h, err := HashPassword("longpass1", 5)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(h))
	require.NoError(t, err)
	assert.Equal(t, 5, cost)
}

func TestCheckPassword_InvalidHash(t *testing.T) {
	assert.False(t, CheckPassword("longpass1", "not-a-bcrypt-hash"))
	assert.False(t, CheckPassword("longpass1", ""))
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "-")
}
