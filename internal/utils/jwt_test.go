package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("test-secret", "anon_123", "amy")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken("test-secret", token)
	require.NoError(t, err)
	assert.Equal(t, "anon_123", claims.UserID)
	assert.Equal(t, "amy", claims.Name)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret-a", "anon_123", "amy")
	require.NoError(t, err)

	claims, err := ParseToken("secret-b", token)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	claims, err := ParseToken("test-secret", "not-a-token")
	assert.Error(t, err)
	assert.Nil(t, claims)
}
