// api/handlers/database_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Hansade2005/pixel-pilot-sub013/api/models"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/services"
)

// DatabaseHandler holds dependencies for database management handlers.
type DatabaseHandler struct {
	Svc *services.DatabaseService
}

// NewDatabaseHandler creates a new DatabaseHandler.
func NewDatabaseHandler(svc *services.DatabaseService) *DatabaseHandler {
	return &DatabaseHandler{Svc: svc}
}

// CreateDatabase handles requests to register a new user database.
func (h *DatabaseHandler) CreateDatabase(c *gin.Context) {
	var req models.CreateDatabaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	db, err := h.Svc.Create(c.Request.Context(), userID(c), req.DBName)
	if err != nil {
		_ = c.Error(err) // e.g. ErrDatabaseExists
		return
	}

	customLog.Printf("Handler: Successfully registered database '%s' for UserID %s", req.DBName, db.UserID)
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Database registered successfully",
		"database": db,
	})
}

// ListDatabases returns the caller's databases.
func (h *DatabaseHandler) ListDatabases(c *gin.Context) {
	dbs, err := h.Svc.List(c.Request.Context(), userID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"databases": dbs})
}

// DeleteDatabase drops a database with its tables, records, indexes and keys.
func (h *DatabaseHandler) DeleteDatabase(c *gin.Context) {
	id := databaseID(c)
	if err := h.Svc.Delete(c.Request.Context(), userID(c), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Database deleted successfully", "database_id": id})
}
