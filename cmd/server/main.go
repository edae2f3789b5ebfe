// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hansade2005/pixel-pilot-sub013/api"
	"github.com/Hansade2005/pixel-pilot-sub013/config"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/indexes"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/logger"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/ratelimit"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/services"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

const (
	shutdownTimeout = 5 * time.Second
	sweepInterval   = 10 * time.Minute
)

func main() {
	customLog.Println("Starting Pixel Pilot table server...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		customLog.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize Storage
	store, err := storage.Connect(cfg)
	if err != nil {
		customLog.Fatalf("Failed to initialize storage: %v", err)
	}
	defer func() {
		customLog.Println("Closing storage connection...")
		if err := store.Close(); err != nil {
			customLog.Printf("Error closing storage: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Rate-limit counter: Redis when configured, in-process otherwise
	var counter ratelimit.Counter
	if cfg.RedisURL != "" {
		rdb, err := ratelimit.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			customLog.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		counter = ratelimit.NewRedisCounter(rdb)
		customLog.Println("Using Redis rate-limit counter")
	} else {
		mem := ratelimit.NewMemoryCounter()
		go sweep(ctx, mem)
		counter = mem
		customLog.Println("Using in-memory rate-limit counter")
	}

	// 4. Services and Router
	svc := services.New(store, indexes.NewManager(store, cfg.IndexConcurrency), cfg.RequestTimeout)
	svc.APIKeys.DefaultRateLimit = cfg.DefaultAPIRateLimit
	router := api.SetupRouter(store, svc, counter, cfg)

	// 5. Start Server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		customLog.Printf("Server listening on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			customLog.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	customLog.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		customLog.Printf("Server forced to shut down: %v", err)
	}
}

// sweep drops idle windows from the in-memory counter until ctx ends.
func sweep(ctx context.Context, mem *ratelimit.MemoryCounter) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := mem.Sweep(time.Hour); n > 0 {
				customLog.Debugf("Rate limiter: swept %d idle key(s)", n)
			}
		}
	}
}
