package middleware

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/domain"
)

// AuthorizeFunc checks that ownerID owns databaseID.
type AuthorizeFunc func(ctx context.Context, ownerID string, databaseID int64) (*domain.DatabaseMetadata, error)

// DatabaseScope resolves :db_id for routes behind AuthMiddleware and stores it
// under DatabaseIDKey once the caller is confirmed as the owner. Databases of
// other users are reported as not found.
func DatabaseScope(authorize AuthorizeFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		databaseID, err := ParseDatabaseID(c)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		if _, err := authorize(c.Request.Context(), c.GetString(UserIDKey), databaseID); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(DatabaseIDKey, databaseID)
		c.Next()
	}
}

// ParseDatabaseID reads the :db_id path parameter.
func ParseDatabaseID(c *gin.Context) (int64, error) {
	raw := c.Param("db_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.ValidationError("", "Invalid database id in URL path", map[string]string{"db_id": raw})
	}
	return id, nil
}
