package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("s3cret", "dashboard", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "dashboard", claims.Subject)
	assert.Equal(t, "merge", claims.Scope)
	assert.NotEmpty(t, claims.ID)
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("s3cret", "dashboard", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	assert.True(t, errors.Is(err, jwt.ErrTokenSignatureInvalid))
}

func TestParseToken_Expired(t *testing.T) {
	token, err := GenerateToken("s3cret", "dashboard", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken("s3cret", token)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestToken_RequiresSecretAndSubject(t *testing.T) {
	_, err := GenerateToken("", "dashboard", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)

	_, err = GenerateToken("s3cret", "", time.Hour)
	assert.Error(t, err)

	_, err = ParseToken("", "abc")
	assert.ErrorIs(t, err, ErrNoSecret)
}
