package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// allowScript checks and increments a fixed-window counter in one round trip.
// It returns {usage, pttl, allowed}.
var allowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
  return {current, redis.call('PTTL', KEYS[1]), 0}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {current, redis.call('PTTL', KEYS[1]), 1}
`)

// RedisCounter is a fixed-window Counter shared by every server instance.
type RedisCounter struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb, prefix: "ratelimit:"}
}

// ConnectRedis parses url, pings the server and returns a client.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	customLog.Printf("Connected to Redis at %s", opts.Addr)
	return rdb, nil
}

func (rc *RedisCounter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	vals, err := allowScript.Run(ctx, rc.rdb, []string{rc.prefix + key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		customLog.Warnf("RateLimit: redis counter failed for %s: %v", key, err)
		return Result{}, fmt.Errorf("rate limit counter error: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("rate limit counter returned %d values", len(vals))
	}

	res := Result{
		Allowed: vals[2] == 1,
		Limit:   limit,
		Usage:   int(vals[0]),
		ResetIn: time.Duration(vals[1]) * time.Millisecond,
	}
	if res.ResetIn < 0 {
		res.ResetIn = window
	}
	if res.Allowed {
		res.Remaining = limit - res.Usage
	}
	return res, nil
}
