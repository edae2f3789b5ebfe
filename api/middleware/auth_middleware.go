// api/middleware/auth_middleware.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Hansade2005/pixel-pilot-sub013/config"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/auth" // Import internal auth logic and errors
	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/logger"
)

var customLog = logger.NewLogger()

// Context keys set by the middlewares in this package.
const (
	UserIDKey     = "userId"
	DatabaseIDKey = "databaseId"
	APIKeyIDKey   = "apiKeyId"
)

// AuthMiddleware creates a gin middleware for checking JWT authentication.
// It depends on the application configuration for the JWT secret.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			_ = c.Error(core.AuthError("Authorization header required"))
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			_ = c.Error(core.AuthError("Authorization header format must be Bearer {token}"))
			c.Abort()
			return
		}

		userID, err := auth.ValidateJWT(strings.TrimSpace(parts[1]), cfg.JWTSecret)
		if err != nil {
			customLog.Printf("AuthMiddleware: Token validation failed: %v", err)
			_ = c.Error(err) // ErrorHandler maps the auth sentinels to 401
			c.Abort()
			return
		}

		customLog.Debugf("AuthMiddleware: Token validated successfully for UserID: %s", userID)
		c.Set(UserIDKey, userID)
		c.Next()
	}
}
