// internal/core/dependency.go
package core

import (
	"encoding/json"
	"strings"
)

// MaxBulkTables bounds a single bulk table creation request.
const MaxBulkTables = 8

// TableDefinition is a table to be created: a name plus its raw schema document.
type TableDefinition struct {
	Name      string          `json:"name" yaml:"name"`
	RawSchema json.RawMessage `json:"schema" yaml:"-"`
	Schema    Schema          `json:"-" yaml:"schema"`
}

// SortByDependencies orders defs so that every table appears after the tables
// it references. References to names outside the batch count as resolved and
// self-references are ignored. A cycle fails the whole batch with a
// CIRCULAR_DEPENDENCY conflict naming the table that closed it.
func SortByDependencies(defs []TableDefinition) ([]TableDefinition, error) {
	byName := make(map[string]int, len(defs))
	for i, d := range defs {
		byName[d.Name] = i
	}

	visited := make(map[string]bool, len(defs))
	visiting := make(map[string]bool, len(defs))
	ordered := make([]TableDefinition, 0, len(defs))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}
		if visiting[name] {
			cycle := append(append([]string{}, path...), name)
			return ConflictError(CodeCircularDependency,
				"Circular dependency detected involving table '"+name+"'",
				map[string]any{"table": name, "cycle": strings.Join(cycle, " -> ")})
		}
		idx, inBatch := byName[name]
		if !inBatch {
			return nil
		}
		visiting[name] = true
		path = append(path, name)
		def := defs[idx]
		for _, ref := range def.Schema.ReferencedTables(def.Name) {
			if err := visit(ref); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		delete(visiting, name)
		visited[name] = true
		ordered = append(ordered, def)
		return nil
	}

	for _, d := range defs {
		if err := visit(d.Name); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
