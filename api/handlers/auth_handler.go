// api/handlers/auth_handler.go
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Hansade2005/pixel-pilot-sub013/api/models"
	"github.com/Hansade2005/pixel-pilot-sub013/config"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/auth"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/logger"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

// AuthHandler serves signup, login and the current user's profile.
type AuthHandler struct {
	Store *storage.Store
	Cfg   *config.Config
}

func NewAuthHandler(store *storage.Store, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Store: store, Cfg: cfg}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers an account. Emails are compared case-insensitively.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	email := normalizeEmail(req.Email)

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		_ = c.Error(core.StorageError("Could not register user", err))
		return
	}

	userID, err := h.Store.CreateUser(c.Request.Context(), uuid.NewString(), req.Username, email, hashed)
	if err != nil {
		customLog.Warnf("Signup: could not create user %s: %v", email, err)
		_ = c.Error(err)
		return
	}

	customLog.Printf("Signup: registered user %s (%s)", userID, email)
	c.JSON(http.StatusCreated, models.SignupResponse{
		Message:  "User registered successfully",
		UserID:   userID,
		Username: req.Username,
		Email:    email,
	})
}

// Login exchanges credentials for a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	email := normalizeEmail(req.Email)

	user, err := h.Store.FindUserByEmail(c.Request.Context(), email)
	if err != nil {
		customLog.Warnf("Login: lookup for %s failed: %v", email, err)
		_ = c.Error(err)
		return
	}
	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		customLog.Warnf("Login: wrong password for user %s", user.UserId)
		_ = c.Error(auth.ErrInvalidCredentials)
		return
	}

	token, err := auth.GenerateJWT(user.UserId, h.Cfg.JWTSecret, h.Cfg.JWTExpiration)
	if err != nil {
		_ = c.Error(core.StorageError("Could not issue session token", err))
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Message:   "Login successful",
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(h.Cfg.JWTExpiration / time.Second),
		UserID:    user.UserId,
	})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.Store.FindUserByUserId(c.Request.Context(), userID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.UserProfile{
		UserID:    user.UserId,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}
