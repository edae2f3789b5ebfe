// internal/core/validation.go
package core

import (
	"regexp"
	"strings"
)

// MaxIdentifierLength matches the Postgres identifier limit.
const MaxIdentifierLength = 63

// Identifiers start with a letter, followed by letters, digits or underscores.
var nameValidationRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// reservedWords may not be used as table names. "users" is deliberately absent.
var reservedWords = map[string]struct{}{
	"all": {}, "alter": {}, "and": {}, "any": {}, "as": {}, "asc": {}, "between": {},
	"by": {}, "case": {}, "check": {}, "column": {}, "constraint": {}, "create": {},
	"database": {}, "default": {}, "delete": {}, "desc": {}, "distinct": {}, "drop": {},
	"else": {}, "end": {}, "exists": {}, "false": {}, "foreign": {}, "from": {},
	"grant": {}, "group": {}, "having": {}, "in": {}, "index": {}, "insert": {},
	"into": {}, "is": {}, "join": {}, "key": {}, "like": {}, "limit": {}, "not": {},
	"null": {}, "offset": {}, "on": {}, "or": {}, "order": {}, "primary": {},
	"records": {}, "references": {}, "revoke": {}, "schema": {}, "select": {},
	"set": {}, "table": {}, "tables": {}, "then": {}, "true": {}, "union": {},
	"unique": {}, "update": {}, "user": {}, "values": {}, "when": {}, "where": {},
}

// systemFields are record attributes outside data_json that queries may reference.
var systemFields = map[string]struct{}{
	"id": {}, "created_at": {}, "updated_at": {},
}

// IsValidIdentifier checks if a string is a valid identifier (database, table or column name).
func IsValidIdentifier(name string) bool {
	return len(name) > 0 && len(name) <= MaxIdentifierLength && nameValidationRegex.MatchString(name)
}

// IsReservedWord reports whether name is reserved, case-insensitively.
func IsReservedWord(name string) bool {
	_, ok := reservedWords[strings.ToLower(name)]
	return ok
}

// IsSystemField reports whether name addresses a record column rather than a document key.
func IsSystemField(name string) bool {
	_, ok := systemFields[name]
	return ok
}

// ValidateTableName applies the identifier rule plus the reserved word list.
func ValidateTableName(name string) error {
	if !IsValidIdentifier(name) {
		return ValidationError(CodeInvalidTableName,
			"Invalid table name. Must start with a letter, contain only letters, digits and underscores, max length 63.",
			map[string]string{"name": name})
	}
	if IsReservedWord(name) {
		return ValidationError(CodeInvalidTableName,
			"Table name '"+name+"' is a reserved word.", map[string]string{"name": name})
	}
	return nil
}
