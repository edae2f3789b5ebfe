package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Hansade2005/pixel-pilot-sub013/api/middleware"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
)

// userID is set by AuthMiddleware.
func userID(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

// databaseID is set by DatabaseScope or APIKeyMiddleware once access is checked.
func databaseID(c *gin.Context) int64 {
	return c.GetInt64(middleware.DatabaseIDKey)
}

func tableID(c *gin.Context) (int64, error) {
	raw := c.Param("table_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.ValidationError("", "Invalid table id in URL path", map[string]string{"table_id": raw})
	}
	return id, nil
}

// queryInt reads an optional integer query parameter; absent or malformed
// values yield 0 so the caller's default applies.
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
