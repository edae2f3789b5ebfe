package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/domain"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/gateway"
)

// UsageRecorder stores one public API request for quota accounting.
type UsageRecorder interface {
	Record(ctx context.Context, entry domain.UsageLog)
}

// APIKeyMiddleware guards the public API. The request's :db_id must match the
// database the key was issued for. Every response carries the X-RateLimit-*
// headers once the key's window is known. Usage is recorded after the handler
// ran, off the request path.
func APIKeyMiddleware(gw *gateway.Gateway, usage UsageRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		databaseID, err := ParseDatabaseID(c)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		d := gw.Authorize(c.Request.Context(), c.GetHeader("Authorization"), databaseID)
		if d.State >= gateway.RateChecked {
			setRateHeaders(c, d.Rate)
		}
		if d.Err != nil {
			customLog.Printf("APIKeyMiddleware: request to database %d stopped at %s: %v", databaseID, d.State, d.Err)
			_ = c.Error(d.Err)
			c.Abort()
			return
		}

		c.Set(DatabaseIDKey, databaseID)
		c.Set(APIKeyIDKey, d.Key.ID)
		c.Next()

		// ErrorHandler writes error responses after this returns.
		status := c.Writer.Status()
		if len(c.Errors) > 0 && !c.Writer.Written() {
			status, _ = mapError(c.Errors.Last().Err)
		}
		entry := domain.UsageLog{
			APIKeyID:   d.Key.ID,
			Endpoint:   c.FullPath(),
			Method:     c.Request.Method,
			Status:     status,
			DurationMs: time.Since(start).Milliseconds(),
			CreatedAt:  start.UTC(),
		}
		go usage.Record(context.Background(), entry)
	}
}
