// internal/domain/models.go
package domain

import (
	"time"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
)

// UserMetadata defines the structure for user data in the DB
type UserMetadata struct {
	UserId       string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// DatabaseMetadata is a user's named container of tables.
type DatabaseMetadata struct {
	DatabaseID int64     `json:"database_id"`
	UserID     string    `json:"user_id"`
	DBName     string    `json:"db_name"`
	CreatedAt  time.Time `json:"created_at"`
	Tables     int       `json:"tables"`
	APIKeys    int       `json:"api_keys"`
}

// TableMetadata is a table definition. Version is bumped on every schema change.
type TableMetadata struct {
	TableID    int64       `json:"table_id"`
	DatabaseID int64       `json:"database_id"`
	Name       string      `json:"name"`
	Schema     core.Schema `json:"schema"`
	Version    int64       `json:"version"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Record is one JSON document stored in a table.
type Record struct {
	ID        string         `json:"id"`
	TableID   int64          `json:"table_id"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Flatten returns the document with the system fields merged in, the shape
// the API returns and the search engine scores.
func (r Record) Flatten() map[string]any {
	out := make(map[string]any, len(r.Data)+3)
	for k, v := range r.Data {
		out[k] = v
	}
	out["id"] = r.ID
	out["created_at"] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	out["updated_at"] = r.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return out
}

// Rate-limit windows an API key can be configured with.
const (
	WindowMinute = "minute"
	WindowHour   = "hour"
)

// APIKey is a database-scoped credential for the public API. Only the hash
// of the key is stored; the raw key is returned once on creation.
type APIKey struct {
	ID         string     `json:"id"`
	DatabaseID int64      `json:"database_id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	KeyHash    string     `json:"-"`
	RateLimit  int        `json:"rate_limit"`
	RateWindow string     `json:"rate_window"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Window returns the rate-limit window as a duration.
func (k APIKey) Window() time.Duration {
	if k.RateWindow == WindowHour {
		return time.Hour
	}
	return time.Minute
}

// UsageLog is one request made through the public API.
type UsageLog struct {
	ID         int64     `json:"id"`
	APIKeyID   string    `json:"api_key_id"`
	Endpoint   string    `json:"endpoint"`
	Method     string    `json:"method"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// UsageSummary aggregates the usage log of one key.
type UsageSummary struct {
	APIKeyID      string     `json:"api_key_id"`
	Name          string     `json:"name"`
	TotalRequests int64      `json:"total_requests"`
	ErrorRequests int64      `json:"error_requests"`
	AvgDurationMs float64    `json:"avg_duration_ms"`
	LastRequestAt *time.Time `json:"last_request_at,omitempty"`
}

// IndexStat describes one secondary index on the records table.
type IndexStat struct {
	Name          string `json:"name"`
	Definition    string `json:"definition,omitempty"`
	Scans         int64  `json:"scans"`
	TuplesRead    int64  `json:"tuples_read"`
	TuplesFetched int64  `json:"tuples_fetched"`
	SizeBytes     int64  `json:"size_bytes"`
}
