// internal/core/errors.go
package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindStorage Kind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimit
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindAuth:
		return "AuthError"
	case KindForbidden:
		return "ForbiddenError"
	case KindNotFound:
		return "NotFoundError"
	case KindConflict:
		return "ConflictError"
	case KindRateLimit:
		return "RateLimitError"
	case KindTimeout:
		return "TimeoutError"
	default:
		return "StorageError"
	}
}

// HTTPStatus returns the response status used for errors of this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error codes carried in the "code" field of error responses.
const (
	CodeInvalidSchema        = "INVALID_SCHEMA"
	CodeInvalidColumn        = "INVALID_COLUMN"
	CodeDuplicateColumn      = "DUPLICATE_COLUMN"
	CodeInvalidTableName     = "INVALID_TABLE_NAME"
	CodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	CodeTypeMismatch         = "TYPE_MISMATCH"
	CodeConstraintViolation  = "CONSTRAINT_VIOLATION"
	CodeReferenceNotFound    = "REFERENCE_NOT_FOUND"
	CodeInvalidQuery         = "INVALID_QUERY"
	CodeTableNameConflict    = "TABLE_NAME_CONFLICT"
	CodeCircularDependency   = "CIRCULAR_DEPENDENCY"
	CodeUniqueViolation      = "UNIQUE_VIOLATION"
	CodeSchemaChanged        = "SCHEMA_CHANGED"
	CodeRateLimited          = "RATE_LIMIT_EXCEEDED"
	CodeTimeout              = "TIMEOUT"
)

// Error is the typed error shared by the engine packages.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error of the given kind.
func NewError(kind Kind, code, message string, details any) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Details: details}
}

func ValidationError(code, message string, details any) *Error {
	return NewError(KindValidation, code, message, details)
}

func NotFoundError(message string) *Error {
	return NewError(KindNotFound, "NOT_FOUND", message, nil)
}

func ConflictError(code, message string, details any) *Error {
	return NewError(KindConflict, code, message, details)
}

func ForbiddenError(message string) *Error {
	return NewError(KindForbidden, "FORBIDDEN", message, nil)
}

func AuthError(message string) *Error {
	return NewError(KindAuth, "UNAUTHORIZED", message, nil)
}

// StorageError wraps an unexpected storage failure.
func StorageError(message string, err error) *Error {
	return &Error{Kind: KindStorage, Code: "STORAGE_ERROR", Message: message, Err: err}
}

// TimeoutError reports an operation that outlived its request deadline.
func TimeoutError(operation string, err error) *Error {
	return &Error{Kind: KindTimeout, Code: CodeTimeout, Message: operation + " timed out", Err: err}
}

// KindOf reports the kind of err. Deadline expiry maps to KindTimeout and
// anything unclassified to KindStorage.
func KindOf(err error) Kind {
	if err == nil {
		return KindStorage
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindStorage
}

// AsError returns the typed error inside err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// FieldError is one problem found while validating a schema or a record.
type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// FieldErrors is the error list returned by the validators. A nil list means valid.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	msgs := make([]string, 0, len(fe))
	for _, e := range fe {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// HasCode reports whether any entry carries code.
func (fe FieldErrors) HasCode(code string) bool {
	for _, e := range fe {
		if e.Code == code {
			return true
		}
	}
	return false
}

// Err converts a non-empty list into a ValidationError whose details are the list.
// The code of the first entry becomes the error code.
func (fe FieldErrors) Err(message string) error {
	if len(fe) == 0 {
		return nil
	}
	return ValidationError(fe[0].Code, message, []FieldError(fe))
}

func ferr(code, field, format string, args ...any) FieldError {
	return FieldError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}
