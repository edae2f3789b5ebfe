// api/models/database_models.go
package models

import "encoding/json"

// --- Database/Table Request Structs ---

// CreateDatabaseRequest defines the structure for creating a database registration
type CreateDatabaseRequest struct {
	DBName string `json:"db_name" binding:"required,max=63"`
}

// CreateTableRequest defines the body of a single table creation.
// Schema is validated by the engine, not by binding tags.
type CreateTableRequest struct {
	Name   string          `json:"name" binding:"required"`
	Schema json.RawMessage `json:"schema" binding:"required"`
}

// BulkCreateTablesRequest creates several tables in dependency order
type BulkCreateTablesRequest struct {
	Tables []CreateTableRequest `json:"tables" binding:"required,min=1,dive"`
}

// UpdateSchemaRequest replaces a table schema. Version, when set, must match
// the stored schema version.
type UpdateSchemaRequest struct {
	Schema  json.RawMessage `json:"schema" binding:"required"`
	Version *int64          `json:"version" binding:"omitempty,min=1"`
}

// --- Search/Index Request Structs ---

// SearchRequest is the body of a structured search. Fuzzy defaults to true.
type SearchRequest struct {
	Query         string   `json:"query" binding:"required"`
	Fields        []string `json:"fields"`
	Fuzzy         *bool    `json:"fuzzy"`
	CaseSensitive bool     `json:"caseSensitive"`
	Page          int      `json:"page" binding:"omitempty,min=1"`
	Limit         int      `json:"limit" binding:"omitempty,min=1"`
}

// IndexActionRequest selects an index maintenance action
type IndexActionRequest struct {
	Action string `json:"action" binding:"required,oneof=create rebuild analyze"`
}

// --- API Key Request Structs ---

// CreateAPIKeyRequest issues a new key for a database
type CreateAPIKeyRequest struct {
	Name       string `json:"name" binding:"required,max=64"`
	RateLimit  int    `json:"rate_limit" binding:"omitempty,min=1,max=1000000"`
	RateWindow string `json:"rate_window" binding:"omitempty,oneof=minute hour"`
}
