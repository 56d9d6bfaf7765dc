package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("test-secret", "user-123")
	require.NoError(t, err)

	userID, err := ValidateJWT("test-secret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT("test-secret", "user-123")
	require.NoError(t, err)

	_, err = ValidateJWT("other-secret", token)
	assert.Error(t, err)
}

func TestJWTGarbageToken(t *testing.T) {
	_, err := ValidateJWT("test-secret", "not-a-token")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.True(t, CheckPasswordHash("hunter2", hash))
	assert.False(t, CheckPasswordHash("hunter3", hash))
}
