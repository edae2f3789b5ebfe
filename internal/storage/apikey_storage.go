// internal/storage/apikey_storage.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/domain"
)

const apiKeyColumns = `api_key_id, database_id, name, key_prefix, key_hash, rate_limit, rate_window, last_used_at, is_active, created_at`

// StoreAPIKey inserts a key record. Only the hash of the raw key is stored.
func (s *Store) StoreAPIKey(ctx context.Context, key *domain.APIKey) error {
	insertSQL := `INSERT INTO api_keys (api_key_id, database_id, name, key_prefix, key_hash, rate_limit, rate_window, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.exec(ctx, insertSQL, key.ID, key.DatabaseID, key.Name, key.KeyPrefix, key.KeyHash,
		key.RateLimit, key.RateWindow, s.Dialect.BoolArg(key.IsActive), key.CreatedAt)
	if err != nil {
		customLog.Warnf("Storage: Failed to store API key for DBID %d: %v", key.DatabaseID, err)
		return wrapErr(ctx, "api key creation", err)
	}
	return nil
}

// ListAPIKeys returns the keys of databaseID, newest first.
func (s *Store) ListAPIKeys(ctx context.Context, databaseID int64) ([]domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE database_id = ? ORDER BY created_at DESC`
	rows, err := s.query(ctx, query, databaseID)
	if err != nil {
		customLog.Warnf("Storage: Error querying API keys by database_id '%d': %v", databaseID, err)
		return nil, wrapErr(ctx, "api key listing", err)
	}
	defer rows.Close()

	keys := make([]domain.APIKey, 0)
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			customLog.Warnf("Storage: Error scanning API key data with database_id '%d': %v", databaseID, err)
			return nil, fmt.Errorf("failed processing API key data: %w", err)
		}
		keys = append(keys, *k)
	}
	return keys, wrapErr(ctx, "api key listing", rows.Err())
}

// FindAPIKeyByHash looks a key up by the hash of its raw value.
func (s *Store) FindAPIKeyByHash(ctx context.Context, hash string) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = ? LIMIT 1`
	k, err := scanAPIKey(s.queryRow(ctx, query, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, wrapErr(ctx, "api key lookup", err)
	}
	return k, nil
}

// RevokeAPIKey deactivates keyID of databaseID. Usage history is kept.
func (s *Store) RevokeAPIKey(ctx context.Context, databaseID int64, keyID string) error {
	updateSQL := `UPDATE api_keys SET is_active = ? WHERE database_id = ? AND api_key_id = ?`
	result, err := s.exec(ctx, updateSQL, s.Dialect.BoolArg(false), databaseID, keyID)
	if err != nil {
		customLog.Warnf("Storage: Error revoking api key %s: %v", keyID, err)
		return wrapErr(ctx, "api key revocation", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming api key revocation: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// TouchAPIKey records the last time keyID was used.
func (s *Store) TouchAPIKey(ctx context.Context, keyID string, at time.Time) error {
	_, err := s.exec(ctx, `UPDATE api_keys SET last_used_at = ? WHERE api_key_id = ?`, at.UTC(), keyID)
	return wrapErr(ctx, "api key touch", err)
}

// InsertUsageLog appends one public API request to the usage log.
func (s *Store) InsertUsageLog(ctx context.Context, entry *domain.UsageLog) error {
	insertSQL := `INSERT INTO usage_logs (api_key_id, endpoint, method, status, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.exec(ctx, insertSQL, entry.APIKeyID, entry.Endpoint, entry.Method, entry.Status, entry.DurationMs, entry.CreatedAt.UTC())
	return wrapErr(ctx, "usage log insert", err)
}

// UsageSummary aggregates the usage log of every key of databaseID since the given time.
func (s *Store) UsageSummary(ctx context.Context, databaseID int64, since time.Time) ([]domain.UsageSummary, error) {
	query := `SELECT k.api_key_id, k.name,
		COUNT(u.id),
		COALESCE(SUM(CASE WHEN u.status >= 400 THEN 1 ELSE 0 END), 0),
		AVG(u.duration_ms),
		MAX(u.created_at)
		FROM api_keys k
		LEFT JOIN usage_logs u ON u.api_key_id = k.api_key_id AND u.created_at >= ?
		WHERE k.database_id = ?
		GROUP BY k.api_key_id, k.name
		ORDER BY k.name`
	rows, err := s.query(ctx, query, since.UTC(), databaseID)
	if err != nil {
		customLog.Warnf("Storage: Failed usage summary for database %d: %v", databaseID, err)
		return nil, wrapErr(ctx, "usage summary", err)
	}
	defer rows.Close()

	out := make([]domain.UsageSummary, 0)
	for rows.Next() {
		var sum domain.UsageSummary
		var avg sql.NullFloat64
		var last any
		if err := rows.Scan(&sum.APIKeyID, &sum.Name, &sum.TotalRequests, &sum.ErrorRequests, &avg, &last); err != nil {
			return nil, fmt.Errorf("failed processing usage summary: %w", err)
		}
		if avg.Valid {
			sum.AvgDurationMs = avg.Float64
		}
		if t, ok := asTime(last); ok {
			sum.LastRequestAt = &t
		}
		out = append(out, sum)
	}
	return out, wrapErr(ctx, "usage summary", rows.Err())
}

func scanAPIKey(row rowScanner) (*domain.APIKey, error) {
	var k domain.APIKey
	var lastUsed sql.NullTime
	if err := row.Scan(&k.ID, &k.DatabaseID, &k.Name, &k.KeyPrefix, &k.KeyHash, &k.RateLimit,
		&k.RateWindow, &lastUsed, &k.IsActive, &k.CreatedAt); err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsedAt = &t
	}
	return &k, nil
}

// sqliteTimeLayouts are the text forms go-sqlite3 writes for time.Time values.
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// asTime converts an aggregate timestamp, which SQLite returns untyped.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case []byte:
		return asTime(string(t))
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed.UTC(), true
		}
		t = strings.TrimSuffix(t, "Z")
		for _, layout := range sqliteTimeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), true
			}
		}
	case int64:
		return time.Unix(t, 0).UTC(), true
	}
	return time.Time{}, false
}
