package util

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signingKey = "quickcart-test-signing-key"

func issue(t *testing.T, role string, access, refresh time.Duration) *TokenPair {
	t.Helper()
	pair, err := GenerateTokenPair("u-7", "asha@example.com", role, signingKey, access, refresh)
	require.NoError(t, err)
	return pair
}

func TestGenerateTokenPair_TagsEachToken(t *testing.T) {
	pair := issue(t, "admin", 15*time.Minute, 24*time.Hour)

	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.EqualValues(t, 900, pair.ExpiresIn)

	access, err := ValidateToken(pair.AccessToken, signingKey)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAccess, access.TokenType)
	assert.Equal(t, "u-7", access.UserID)
	assert.Equal(t, "u-7", access.Subject)
	assert.Equal(t, "asha@example.com", access.Email)
	assert.Equal(t, "admin", access.Role)

	refresh, err := ValidateToken(pair.RefreshToken, signingKey)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, refresh.TokenType)
	assert.True(t, refresh.ExpiresAt.After(access.ExpiresAt.Time))
}

func TestValidateToken_Rejections(t *testing.T) {
	pair := issue(t, "user", time.Minute, time.Hour)

	noneSigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u-7"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	access := strings.Split(pair.AccessToken, ".")
	refresh := strings.Split(pair.RefreshToken, ".")
	swapped := access[0] + "." + refresh[1] + "." + access[2]

	cases := map[string]struct {
		token string
		key   string
	}{
		"empty":        {token: "", key: signingKey},
		"garbage":      {token: "not.a.jwt", key: signingKey},
		"other key":    {token: pair.AccessToken, key: "another-key"},
		"unsigned":     {token: noneSigned, key: signingKey},
		"swapped body": {token: swapped, key: signingKey},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			claims, err := ValidateToken(tc.token, tc.key)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestValidateToken_Expired(t *testing.T) {
	pair := issue(t, "user", -time.Minute, -time.Minute)

	for _, token := range []string{pair.AccessToken, pair.RefreshToken} {
		claims, err := ValidateToken(token, signingKey)
		assert.ErrorIs(t, err, ErrExpiredToken)
		assert.NotErrorIs(t, err, ErrInvalidToken)
		assert.Nil(t, claims)
	}
}
