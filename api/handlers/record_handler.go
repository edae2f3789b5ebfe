// api/handlers/record_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Hansade2005/pixel-pilot-sub013/api/models"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/search"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/services"
)

// RecordHandler holds dependencies for record, query and search handlers.
// The same handlers serve the session and the API-key routes.
type RecordHandler struct {
	Records *services.RecordService
	Queries *services.QueryService
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(records *services.RecordService, queries *services.QueryService) *RecordHandler {
	return &RecordHandler{Records: records, Queries: queries}
}

// bindRecord reads a non-empty JSON object body.
func bindRecord(c *gin.Context) (map[string]any, error) {
	var data map[string]any
	if err := c.ShouldBindJSON(&data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, core.ValidationError("", "Request body cannot be empty.", nil)
	}
	return data, nil
}

// CreateRecord handles inserting a new record.
func (h *RecordHandler) CreateRecord(c *gin.Context) {
	tid, err := tableID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	data, err := bindRecord(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	rec, err := h.Records.Create(c.Request.Context(), databaseID(c), tid, data)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, rec.Flatten())
}

// ListRecords returns a page of records. It accepts limit, offset, search,
// orderBy and orderDirection.
func (h *RecordHandler) ListRecords(c *gin.Context) {
	tid, err := tableID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	req, err := core.ParseQueryRequest(c.Request.URL.Query())
	if err != nil {
		_ = c.Error(err)
		return
	}

	page, err := h.Records.List(c.Request.Context(), databaseID(c), tid, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetRecord returns one record.
func (h *RecordHandler) GetRecord(c *gin.Context) {
	tid, err := tableID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	rec, err := h.Records.Get(c.Request.Context(), databaseID(c), tid, c.Param("record_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec.Flatten())
}

// UpdateRecord merges the body into a record.
func (h *RecordHandler) UpdateRecord(c *gin.Context) {
	tid, err := tableID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	patch, err := bindRecord(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	rec, err := h.Records.Update(c.Request.Context(), databaseID(c), tid, c.Param("record_id"), patch)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec.Flatten())
}

// DeleteRecord removes one record.
func (h *RecordHandler) DeleteRecord(c *gin.Context) {
	tid, err := tableID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	id := c.Param("record_id")
	if err := h.Records.Delete(c.Request.Context(), databaseID(c), tid, id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record deleted successfully", "id": id})
}

// QueryRecords runs a structured query described by the query string.
func (h *RecordHandler) QueryRecords(c *gin.Context) {
	tid, err := tableID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	req, err := core.ParseQueryRequest(c.Request.URL.Query())
	if err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.Queries.Query(c.Request.Context(), databaseID(c), tid, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SearchRecords ranks records against a free-text query. Limits above
// search.MaxLimit are capped.
func (h *RecordHandler) SearchRecords(c *gin.Context) {
	tid, err := tableID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	opts := search.Options{
		Query:         req.Query,
		Fields:        req.Fields,
		Fuzzy:         req.Fuzzy == nil || *req.Fuzzy,
		CaseSensitive: req.CaseSensitive,
		Page:          req.Page,
		Limit:         req.Limit,
	}
	res, err := h.Queries.Search(c.Request.Context(), databaseID(c), tid, opts)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}
