package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Hansade2005/pixel-pilot-sub013/api/models"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/services"
)

// IndexHandler exposes index maintenance.
type IndexHandler struct {
	Svc *services.IndexService
}

func NewIndexHandler(svc *services.IndexService) *IndexHandler {
	return &IndexHandler{Svc: svc}
}

// ListIndexes returns the table's indexes with usage counters.
func (h *IndexHandler) ListIndexes(c *gin.Context) {
	tid, err := tableID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	stats, err := h.Svc.Stats(c.Request.Context(), databaseID(c), tid)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"table_id": tid, "indexes": stats})
}

// RunIndexAction creates, rebuilds or analyzes the table's indexes.
func (h *IndexHandler) RunIndexAction(c *gin.Context) {
	tid, err := tableID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req models.IndexActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	res, err := h.Svc.Run(c.Request.Context(), databaseID(c), tid, req.Action)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DropIndexes removes every index of the table.
func (h *IndexHandler) DropIndexes(c *gin.Context) {
	tid, err := tableID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	dropped, err := h.Svc.DropAll(c.Request.Context(), databaseID(c), tid)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"table_id": tid, "indexesDropped": dropped})
}
