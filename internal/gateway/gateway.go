// Package gateway authorizes public API requests. Each request walks
// Unauthenticated -> KeyExtracted -> KeyValidated -> RateChecked -> Authorized
// and stops at the first stage that fails.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/auth"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/domain"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/logger"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/ratelimit"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/storage"
)

var customLog = logger.NewLogger()

// State is the furthest stage a request reached.
type State int

const (
	Unauthenticated State = iota
	KeyExtracted
	KeyValidated
	RateChecked
	Authorized
)

func (s State) String() string {
	switch s {
	case KeyExtracted:
		return "KeyExtracted"
	case KeyValidated:
		return "KeyValidated"
	case RateChecked:
		return "RateChecked"
	case Authorized:
		return "Authorized"
	default:
		return "Unauthenticated"
	}
}

// KeyStore finds keys by the hash of their raw value.
type KeyStore interface {
	FindAPIKeyByHash(ctx context.Context, hash string) (*domain.APIKey, error)
}

// Decision is the outcome of Authorize. Err is nil only when State is Authorized.
type Decision struct {
	State State
	Key   *domain.APIKey
	Rate  ratelimit.Result
	Err   error
}

// Gateway checks API keys and their rate limits.
type Gateway struct {
	keys    KeyStore
	counter ratelimit.Counter
}

func New(keys KeyStore, counter ratelimit.Counter) *Gateway {
	return &Gateway{keys: keys, counter: counter}
}

// Authorize runs the state machine for a request against databaseID.
func (g *Gateway) Authorize(ctx context.Context, authHeader string, databaseID int64) Decision {
	d := Decision{State: Unauthenticated}

	raw, err := ExtractKey(authHeader)
	if err != nil {
		d.Err = err
		return d
	}
	d.State = KeyExtracted

	key, err := g.keys.FindAPIKeyByHash(ctx, auth.HashAPIKey(raw))
	if err != nil {
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			d.Err = core.AuthError("Invalid API key")
		} else {
			customLog.Warnf("Gateway: API key lookup failed: %v", err)
			d.Err = err
		}
		return d
	}
	if !key.IsActive {
		d.Err = core.AuthError("Invalid API key")
		return d
	}
	if key.DatabaseID != databaseID {
		customLog.Warnf("Gateway: key %s for database %d used against database %d", key.ID, key.DatabaseID, databaseID)
		d.Err = core.ForbiddenError("API key is not valid for this database")
		return d
	}
	d.Key = key
	d.State = KeyValidated

	res, err := g.counter.Allow(ctx, "apikey:"+key.ID, key.RateLimit, key.Window())
	if err != nil {
		d.Err = core.StorageError("rate limit check failed", err)
		return d
	}
	d.Rate = res
	d.State = RateChecked
	if !res.Allowed {
		d.Err = RateLimitError(res)
		return d
	}

	d.State = Authorized
	return d
}

// ExtractKey pulls the raw key out of an "Authorization: Bearer <key>" header
// and checks its shape.
func ExtractKey(header string) (string, error) {
	if header == "" {
		return "", core.AuthError("Authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", core.AuthError("Authorization header format must be Bearer {api_key}")
	}
	raw := strings.TrimSpace(parts[1])
	if !auth.WellFormedAPIKey(raw) {
		return "", core.AuthError("Invalid API key format")
	}
	return raw, nil
}

// RateLimitError builds the 429 error for an exhausted window.
func RateLimitError(res ratelimit.Result) error {
	return core.NewError(core.KindRateLimit, core.CodeRateLimited,
		fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", ResetSeconds(res.ResetIn)),
		map[string]any{
			"limit":    res.Limit,
			"usage":    res.Usage,
			"reset_in": ResetSeconds(res.ResetIn),
		})
}

// ResetSeconds rounds a window remainder up to whole seconds.
func ResetSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
