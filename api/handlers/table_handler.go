// api/handlers/table_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Hansade2005/pixel-pilot-sub013/api/models"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/services"
)

// TableHandler holds dependencies for table handlers.
type TableHandler struct {
	Svc *services.TableService
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(svc *services.TableService) *TableHandler {
	return &TableHandler{Svc: svc}
}

// CreateTable creates one table and its indexes. An index failure is reported
// in the body next to the created table.
func (h *TableHandler) CreateTable(c *gin.Context) {
	var req models.CreateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.Svc.Create(c.Request.Context(), databaseID(c), req.Name, req.Schema)
	if err != nil && (res == nil || res.Table == nil) {
		_ = c.Error(err)
		return
	}
	body := gin.H{"message": "Table created successfully", "table": res.Table, "indexes": res.Indexes}
	if err != nil {
		customLog.Warnf("Handler: table '%s' created but index step failed: %v", req.Name, err)
		body["warning"] = err.Error()
	}
	c.JSON(http.StatusCreated, body)
}

// CreateTablesBulk creates several tables in dependency order and reports each one.
func (h *TableHandler) CreateTablesBulk(c *gin.Context) {
	var req models.BulkCreateTablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	defs := make([]core.TableDefinition, 0, len(req.Tables))
	for _, t := range req.Tables {
		defs = append(defs, core.TableDefinition{Name: t.Name, RawSchema: t.Schema})
	}
	res, err := h.Svc.CreateBulk(c.Request.Context(), databaseID(c), defs)
	if err != nil {
		_ = c.Error(err)
		return
	}

	status := http.StatusCreated
	switch {
	case res.Created == 0:
		status = http.StatusBadRequest
	case res.Failed > 0:
		status = http.StatusMultiStatus
	}
	c.JSON(status, res)
}

// ListTables returns a page of the database's tables.
func (h *TableHandler) ListTables(c *gin.Context) {
	page, err := h.Svc.List(c.Request.Context(), databaseID(c), queryInt(c, "limit"), queryInt(c, "offset"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetTable returns one table with its record count.
func (h *TableHandler) GetTable(c *gin.Context) {
	id, err := tableID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	t, err := h.Svc.Get(c.Request.Context(), databaseID(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// DeleteTable drops a table, its records and its indexes.
func (h *TableHandler) DeleteTable(c *gin.Context) {
	id, err := tableID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	n, err := h.Svc.Delete(c.Request.Context(), databaseID(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Table deleted successfully", "table_id": id, "records_deleted": n})
}

// UpdateSchema replaces a table's schema and reconciles its indexes.
func (h *TableHandler) UpdateSchema(c *gin.Context) {
	id, err := tableID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req models.UpdateSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	res, err := h.Svc.UpdateSchema(c.Request.Context(), databaseID(c), id, req.Schema, req.Version)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}
