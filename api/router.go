// api/router.go
package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Hansade2005/pixel-pilot-sub013/api/handlers"
	"github.com/Hansade2005/pixel-pilot-sub013/api/middleware"
	"github.com/Hansade2005/pixel-pilot-sub013/config"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/gateway"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/ratelimit"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/services"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/storage"
)

// SetupRouter initializes the Gin router and sets up all routes. counter backs
// both the per-IP limit of the auth routes and the per-key limit of the public API.
func SetupRouter(store *storage.Store, svc *services.Services, counter ratelimit.Counter, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), cors.New(corsConfig(cfg)))
	// Runs after the handlers so every attached error becomes one JSON response.
	router.Use(middleware.ErrorHandler())

	authHandler := handlers.NewAuthHandler(store, cfg)
	dbHandler := handlers.NewDatabaseHandler(svc.Databases)
	tableHandler := handlers.NewTableHandler(svc.Tables)
	recordHandler := handlers.NewRecordHandler(svc.Records, svc.Queries)
	indexHandler := handlers.NewIndexHandler(svc.Indexes)
	apiKeyHandler := handlers.NewAPIKeyHandler(svc.APIKeys)

	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	// --- Session Routes ---
	v1 := router.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	authRoutes.Use(middleware.RateLimitMiddleware(counter, cfg.AuthRateLimitPerMinute, time.Minute))
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/login", authHandler.Login)
	}

	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(cfg))
	{
		protected.GET("/me", authHandler.Me)
		protected.GET("/databases", dbHandler.ListDatabases)
		protected.POST("/databases", dbHandler.CreateDatabase)
	}

	dbRoutes := protected.Group("/databases/:db_id")
	dbRoutes.Use(middleware.DatabaseScope(svc.Databases.Authorize))
	{
		dbRoutes.DELETE("", dbHandler.DeleteDatabase)

		dbRoutes.GET("/tables", tableHandler.ListTables)
		dbRoutes.POST("/tables", tableHandler.CreateTable)
		dbRoutes.POST("/tables/bulk", tableHandler.CreateTablesBulk)
		dbRoutes.GET("/tables/:table_id", tableHandler.GetTable)
		dbRoutes.DELETE("/tables/:table_id", tableHandler.DeleteTable)
		dbRoutes.PUT("/tables/:table_id/schema", tableHandler.UpdateSchema)

		registerRecordRoutes(dbRoutes, recordHandler)

		dbRoutes.GET("/tables/:table_id/indexes", indexHandler.ListIndexes)
		dbRoutes.POST("/tables/:table_id/indexes", indexHandler.RunIndexAction)
		dbRoutes.DELETE("/tables/:table_id/indexes", indexHandler.DropIndexes)

		dbRoutes.GET("/api-keys", apiKeyHandler.ListAPIKeys)
		dbRoutes.POST("/api-keys", apiKeyHandler.CreateAPIKey)
		dbRoutes.DELETE("/api-keys/:key_id", apiKeyHandler.RevokeAPIKey)
		dbRoutes.GET("/usage", apiKeyHandler.Usage)
	}

	// --- Public API (API key) ---
	gw := gateway.New(store, counter)
	public := router.Group("/v1/databases/:db_id")
	public.Use(middleware.APIKeyMiddleware(gw, svc.APIKeys))
	{
		public.GET("/tables", tableHandler.ListTables)
		public.GET("/tables/:table_id", tableHandler.GetTable)
		registerRecordRoutes(public, recordHandler)
	}

	return router
}

// registerRecordRoutes mounts the record, query and search surface shared by
// the session and public APIs.
func registerRecordRoutes(g *gin.RouterGroup, h *handlers.RecordHandler) {
	g.GET("/tables/:table_id/records", h.ListRecords)
	g.POST("/tables/:table_id/records", h.CreateRecord)
	g.GET("/tables/:table_id/records/:record_id", h.GetRecord)
	g.PUT("/tables/:table_id/records/:record_id", h.UpdateRecord)
	g.DELETE("/tables/:table_id/records/:record_id", h.DeleteRecord)
	g.GET("/tables/:table_id/query", h.QueryRecords)
	g.POST("/tables/:table_id/search", h.SearchRecords)
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{middleware.HeaderRateLimit, middleware.HeaderRateRemaining, middleware.HeaderRateReset},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORSOrigins) == 0 || slices.Contains(cfg.CORSOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.CORSOrigins
	}
	return c
}
