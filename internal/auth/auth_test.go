package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hansade2005/pixel-pilot-sub013/api/models"
)

const testSecret = "test_secret_key_for_auth_tests"

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("StrongPassword123!")
	require.NoError(t, err)
	assert.NotEqual(t, "StrongPassword123!", hash)
	assert.True(t, CheckPasswordHash("StrongPassword123!", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("user-123", testSecret, time.Minute)
	require.NoError(t, err)

	userID, err := ValidateJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)

	_, err = ValidateJWT(token, "another-secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = ValidateJWT("not-a-token", testSecret)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestJWTExpired(t *testing.T) {
	token, err := GenerateJWT("user-123", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateJWT(token, testSecret)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTRejectsForeignTokens(t *testing.T) {
	now := time.Now()
	sign := func(method jwt.SigningMethod, issuer string) string {
		claims := models.CustomClaims{
			UserID: "user-123",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return token
	}

	_, err := ValidateJWT(sign(jwt.SigningMethodHS512, tokenIssuer), testSecret)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = ValidateJWT(sign(jwt.SigningMethodHS256, "someone-else"), testSecret)
	assert.ErrorIs(t, err, ErrTokenClaimsInvalid)

	userID, err := ValidateJWT(sign(jwt.SigningMethodHS256, tokenIssuer), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestGenerateAPIKey(t *testing.T) {
	raw, prefix, hash, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, APIKeyPrefix))
	assert.Len(t, raw, APIKeyLength)
	assert.True(t, strings.HasPrefix(raw, prefix))
	assert.Equal(t, HashAPIKey(raw), hash)
	assert.Len(t, hash, 64)
	assert.True(t, WellFormedAPIKey(raw))

	other, _, otherHash, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, raw, other)
	assert.NotEqual(t, hash, otherHash)
}

func TestWellFormedAPIKey(t *testing.T) {
	raw, _, _, err := GenerateAPIKey()
	require.NoError(t, err)

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"valid", raw, true},
		{"empty", "", false},
		{"wrong prefix", "xx_" + raw[3:], false},
		{"too short", raw[:len(raw)-1], false},
		{"too long", raw + "a", false},
		{"bad alphabet", APIKeyPrefix + strings.Repeat("!", 43), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WellFormedAPIKey(tt.key))
		})
	}
}
