package middleware

import (
	"net"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/gateway"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/ratelimit"
)

// Rate limit response headers.
const (
	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset"
)

func getIP(c *gin.Context) string {
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.ClientIP()
	}
	return ip
}

// setRateHeaders reports the state of the caller's window.
func setRateHeaders(c *gin.Context, res ratelimit.Result) {
	c.Header(HeaderRateLimit, strconv.Itoa(res.Limit))
	c.Header(HeaderRateRemaining, strconv.Itoa(res.Remaining))
	c.Header(HeaderRateReset, strconv.FormatInt(gateway.ResetSeconds(res.ResetIn), 10))
}

// RateLimitMiddleware allows limit requests per window from each client IP.
func RateLimitMiddleware(counter ratelimit.Counter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := getIP(c)
		res, err := counter.Allow(c.Request.Context(), "ip:"+ip, limit, window)
		if err != nil {
			customLog.Warnf("RateLimitMiddleware: counter failed for %s: %v", ip, err)
			_ = c.Error(core.StorageError("rate limit check failed", err))
			c.Abort()
			return
		}
		setRateHeaders(c, res)
		if !res.Allowed {
			customLog.Warnf("RateLimitMiddleware: %s exceeded %d requests per %v", ip, limit, window)
			_ = c.Error(gateway.RateLimitError(res))
			c.Abort()
			return
		}
		c.Next()
	}
}
