package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/sha3"

	"github.com/Hansade2005/pixel-pilot-sub013/api/models"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/logger"
)

var (
	ErrTokenMalformed     = errors.New("malformed token")
	ErrTokenExpired       = errors.New("token is expired or not valid yet")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenClaimsInvalid = errors.New("invalid token claims")
	ErrInvalidCredentials = errors.New("invalid email or password")
	customLog             = logger.NewLogger()
)

// API keys look like "pp_" followed by 43 base64url characters (32 random bytes).
const (
	APIKeyPrefix     = "pp_"
	apiKeyRandomLen  = 32
	APIKeyLength     = len(APIKeyPrefix) + 43
	apiKeyDisplayLen = len(APIKeyPrefix) + 8
	tokenIssuer      = "pixel-pilot"
	passwordCost     = bcrypt.DefaultCost
)

// --- Password Utilities ---

// HashPassword returns the bcrypt hash stored for a user account.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		customLog.Warnf("Auth: bcrypt rejected password: %v", err)
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPasswordHash reports whether password matches the stored hash.
func CheckPasswordHash(password, hash string) bool {
	switch err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); {
	case err == nil:
		return true
	case !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		customLog.Warnf("Auth: stored password hash is unusable: %v", err)
	}
	return false
}

// --- Session Tokens ---

// GenerateJWT signs a session token for userID issued by this server.
func GenerateJWT(userID, jwtSecret string, jwtExpiration time.Duration) (string, error) {
	now := time.Now()
	claims := models.CustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(jwtExpiration)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	if err != nil {
		customLog.Warnf("Auth: signing session token for %s failed: %v", userID, err)
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// ValidateJWT verifies a session token and returns the user it was issued to.
// Only HS256 tokens from this issuer are accepted.
func ValidateJWT(tokenString, jwtSecret string) (string, error) {
	claims := &models.CustomClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return []byte(jwtSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		customLog.Debugf("Auth: rejected session token: %v", err)
		return "", classifyTokenError(err)
	}
	if claims.UserID == "" || (claims.Subject != "" && claims.Subject != claims.UserID) {
		return "", ErrTokenClaimsInvalid
	}
	return claims.UserID, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrTokenClaimsInvalid
	default:
		return ErrTokenInvalid
	}
}

// --- API Key Utilities ---

// GenerateAPIKey returns a fresh raw key together with its display prefix and hash.
// The raw key is shown to the caller once and never stored.
func GenerateAPIKey() (raw, prefix, hash string, err error) {
	buf := make([]byte, apiKeyRandomLen)
	if _, err := rand.Read(buf); err != nil {
		customLog.Warnf("Error reading random bytes for API key: %v", err)
		return "", "", "", fmt.Errorf("failed to generate api key: %w", err)
	}
	raw = APIKeyPrefix + base64.RawURLEncoding.EncodeToString(buf)
	return raw, raw[:apiKeyDisplayLen], HashAPIKey(raw), nil
}

// HashAPIKey returns the hex SHA3-256 digest of a raw key.
func HashAPIKey(raw string) string {
	sum := sha3.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// WellFormedAPIKey checks the prefix and length convention without touching storage.
func WellFormedAPIKey(raw string) bool {
	if len(raw) != APIKeyLength || !strings.HasPrefix(raw, APIKeyPrefix) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(raw[len(APIKeyPrefix):])
	return err == nil
}
