package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/auth"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/domain"
)

const fallbackRateLimit = 1000

// APIKeyService issues and revokes database API keys and reports their usage.
type APIKeyService struct {
	base
	// DefaultRateLimit applies when a key is created without a limit.
	DefaultRateLimit int
}

// CreatedAPIKey is a newly issued key. Key is the raw value and is never
// returned again.
type CreatedAPIKey struct {
	domain.APIKey
	Key string `json:"key"`
}

// Create issues a key for databaseID. rateLimit <= 0 uses the default limit;
// window is "minute" (default) or "hour".
func (s *APIKeyService) Create(ctx context.Context, databaseID int64, name string, rateLimit int, window string) (*CreatedAPIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.ValidationError(core.CodeInvalidColumn, "API key name is required", nil)
	}
	switch window {
	case "":
		window = domain.WindowMinute
	case domain.WindowMinute, domain.WindowHour:
	default:
		return nil, core.ValidationError(core.CodeInvalidColumn,
			"rate_window must be 'minute' or 'hour'", map[string]string{"rate_window": window})
	}
	if rateLimit <= 0 {
		rateLimit = s.DefaultRateLimit
		if rateLimit <= 0 {
			rateLimit = fallbackRateLimit
		}
	}

	raw, prefix, hash, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, core.StorageError("Failed to generate API key", err)
	}
	key := domain.APIKey{
		ID:         uuid.NewString(),
		DatabaseID: databaseID,
		Name:       name,
		KeyPrefix:  prefix,
		KeyHash:    hash,
		RateLimit:  rateLimit,
		RateWindow: window,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.store.StoreAPIKey(ctx, &key); err != nil {
		return nil, err
	}
	customLog.Printf("Service: issued API key %s (%s) for database %d", key.ID, prefix, databaseID)
	return &CreatedAPIKey{APIKey: key, Key: raw}, nil
}

// List returns the database's keys without their secrets.
func (s *APIKeyService) List(ctx context.Context, databaseID int64) ([]domain.APIKey, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.ListAPIKeys(ctx, databaseID)
}

// Revoke deactivates keyID. Its usage history is kept.
func (s *APIKeyService) Revoke(ctx context.Context, databaseID int64, keyID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.store.RevokeAPIKey(ctx, databaseID, keyID); err != nil {
		return err
	}
	customLog.Printf("Service: revoked API key %s of database %d", keyID, databaseID)
	return nil
}

// Usage summarizes requests made with each of the database's keys since the given time.
func (s *APIKeyService) Usage(ctx context.Context, databaseID int64, since time.Time) ([]domain.UsageSummary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.UsageSummary(ctx, databaseID, since)
}

// Record appends one public API request to the usage log and marks the key
// as used. Failures are logged, never returned.
func (s *APIKeyService) Record(ctx context.Context, entry domain.UsageLog) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.store.TouchAPIKey(ctx, entry.APIKeyID, entry.CreatedAt); err != nil {
		customLog.Warnf("Service: failed to mark API key %s as used: %v", entry.APIKeyID, err)
	}
	if err := s.store.InsertUsageLog(ctx, &entry); err != nil {
		customLog.Warnf("Service: failed to log usage for API key %s: %v", entry.APIKeyID, err)
	}
}
