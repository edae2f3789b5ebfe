// Package indexes plans and maintains the secondary indexes derived from
// table schemas. Indexes are never stored separately: the column flags
// indexed, unique and primary_key are the source of truth.
package indexes

import (
	"fmt"
	"hash/fnv"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/storage"
)

// Index kinds.
const (
	KindGIN   = "gin"
	KindBTree = "btree"
)

// maxNameLength is the Postgres identifier limit.
const maxNameLength = 63

// KindFor returns gin for text and json columns, btree otherwise.
func KindFor(t core.ColumnType) string {
	if t == core.TypeText || t == core.TypeJSON {
		return KindGIN
	}
	return KindBTree
}

// Prefix is the name prefix of the plain indexes of tableID.
func Prefix(tableID int64) string {
	return fmt.Sprintf("idx_records_t%d_", tableID)
}

// UniquePrefix is the name prefix of the unique indexes of tableID.
func UniquePrefix(tableID int64) string {
	return fmt.Sprintf("idx_unique_records_t%d_", tableID)
}

// Name builds the deterministic index name for col of tableID. Long names are
// shortened with a hash of the column name so they stay distinct.
func Name(tableID int64, col core.Column) string {
	prefix := Prefix(tableID)
	if col.IsUnique() {
		prefix = UniquePrefix(tableID)
	}
	kind := KindFor(col.Type)
	colPart := storage.SanitizeName(col.Name)
	if len(prefix)+len(colPart)+1+len(kind) > maxNameLength {
		h := fnv.New32a()
		h.Write([]byte(col.Name))
		suffix := fmt.Sprintf("%08x", h.Sum32())
		room := maxNameLength - len(prefix) - len(kind) - len(suffix) - 2
		if room < 1 {
			room = 1
		}
		if room < len(colPart) {
			colPart = colPart[:room]
		}
		colPart += "_" + suffix
	}
	return prefix + colPart + "_" + kind
}

// Plan returns the index specs for every column of schema that needs one,
// in column order.
func Plan(tableID int64, schema core.Schema) []storage.IndexSpec {
	var specs []storage.IndexSpec
	for _, col := range schema.Columns {
		if !col.NeedsIndex() {
			continue
		}
		specs = append(specs, storage.IndexSpec{
			Name:    Name(tableID, col),
			TableID: tableID,
			Field:   col.Name,
			Kind:    KindFor(col.Type),
			Expr:    storage.ExprKindFor(col.Type),
			Unique:  col.IsUnique(),
		})
	}
	return specs
}

// Diff compares two plans by index name and returns what to drop and what to create.
func Diff(current, desired []storage.IndexSpec) (drop []string, create []storage.IndexSpec) {
	want := make(map[string]bool, len(desired))
	for _, ix := range desired {
		want[ix.Name] = true
	}
	have := make(map[string]bool, len(current))
	for _, ix := range current {
		have[ix.Name] = true
		if !want[ix.Name] {
			drop = append(drop, ix.Name)
		}
	}
	for _, ix := range desired {
		if !have[ix.Name] {
			create = append(create, ix)
		}
	}
	return drop, create
}
