// Package services holds the table engine's use cases. Every call runs under a
// request-scoped deadline so storage work never outlives the request timeout.
package services

import (
	"context"
	"time"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/indexes"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/logger"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/storage"
)

var customLog = logger.NewLogger()

const defaultTimeout = 30 * time.Second

// Services bundles the use cases the HTTP layer calls.
type Services struct {
	Databases *DatabaseService
	Tables    *TableService
	Records   *RecordService
	Queries   *QueryService
	Indexes   *IndexService
	APIKeys   *APIKeyService
}

// New wires every service over store. timeout bounds each call; zero means 30s.
func New(store *storage.Store, idx *indexes.Manager, timeout time.Duration) *Services {
	b := base{store: store, timeout: timeout}
	if b.timeout <= 0 {
		b.timeout = defaultTimeout
	}
	return &Services{
		Databases: &DatabaseService{base: b, indexes: idx},
		Tables:    &TableService{base: b, indexes: idx},
		Records:   &RecordService{base: b},
		Queries:   &QueryService{base: b},
		Indexes:   &IndexService{base: b, indexes: idx},
		APIKeys:   &APIKeyService{base: b},
	}
}

type base struct {
	store   *storage.Store
	timeout time.Duration
}

func (b base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}
