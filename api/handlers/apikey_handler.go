package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Hansade2005/pixel-pilot-sub013/api/models"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/services"
)

const defaultUsagePeriod = 30 * 24 * time.Hour

// APIKeyHandler manages a database's API keys and reports their usage.
type APIKeyHandler struct {
	Svc *services.APIKeyService
}

func NewAPIKeyHandler(svc *services.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{Svc: svc}
}

// CreateAPIKey issues a key. The raw key is only ever shown in this response.
func (h *APIKeyHandler) CreateAPIKey(c *gin.Context) {
	var req models.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	key, err := h.Svc.Create(c.Request.Context(), databaseID(c), req.Name, req.RateLimit, req.RateWindow)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "API key created. Store it now; it cannot be shown again.",
		"api_key": key,
	})
}

// ListAPIKeys returns the database's keys without their secrets.
func (h *APIKeyHandler) ListAPIKeys(c *gin.Context) {
	keys, err := h.Svc.List(c.Request.Context(), databaseID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": keys})
}

// RevokeAPIKey deactivates one key.
func (h *APIKeyHandler) RevokeAPIKey(c *gin.Context) {
	keyID := c.Param("key_id")
	if err := h.Svc.Revoke(c.Request.Context(), databaseID(c), keyID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "API key revoked", "id": keyID})
}

// Usage summarizes requests per key. since is an RFC 3339 time; the default
// covers the last 30 days.
func (h *APIKeyHandler) Usage(c *gin.Context) {
	since := time.Now().Add(-defaultUsagePeriod)
	if raw := c.Query("since"); raw != "" {
		t, ok := core.ParseTime(raw)
		if !ok {
			_ = c.Error(core.ValidationError(core.CodeInvalidQuery, "since must be an RFC 3339 time or a date",
				map[string]string{"since": raw}))
			return
		}
		since = t
	}
	usage, err := h.Svc.Usage(c.Request.Context(), databaseID(c), since)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"since": since.UTC(), "usage": usage})
}
