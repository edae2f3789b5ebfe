package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// --- Session API ---

// SignupRequest creates the account that owns databases.
type SignupRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32,alphanum"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type SignupResponse struct {
	Message  string `json:"message"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the bearer token for the session API. ExpiresIn is in seconds.
type LoginResponse struct {
	Message   string `json:"message"`
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
	UserID    string `json:"user_id"`
}

// UserProfile is the public view of an account.
type UserProfile struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomClaims are the session token claims.
type CustomClaims struct {
	UserID string `json:"userID"`
	jwt.RegisteredClaims
}
