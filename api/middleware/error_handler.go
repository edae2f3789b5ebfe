// api/middleware/error_handler.go
package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10" // Import validator for binding errors

	"github.com/Hansade2005/pixel-pilot-sub013/internal/auth"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/core"
	"github.com/Hansade2005/pixel-pilot-sub013/internal/storage"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

type bindingFieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ErrorHandler creates a Gin middleware for centralized error handling.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// Only the last error decides the response.
		err := c.Errors.Last().Err
		status, body := mapError(err)

		if status >= http.StatusInternalServerError {
			customLog.Errorf("[ErrorHandler] %s %s failed: %v | Type: %T", c.Request.Method, c.Request.URL.Path, err, err)
		} else {
			customLog.Debugf("[ErrorHandler] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		}

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(status, body)
		} else {
			customLog.Warnf("[ErrorHandler] Response already written before handling error: %v", err)
		}
	}
}

func mapError(err error) (int, ErrorResponse) {
	if e, ok := core.AsError(err); ok {
		status := e.Kind.HTTPStatus()
		msg := e.Message
		if status == http.StatusInternalServerError {
			msg = "An unexpected internal server error occurred."
		}
		return status, ErrorResponse{Error: msg, Details: e.Details, Code: e.Code}
	}

	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, storage.ErrDatabaseNotFound),
		errors.Is(err, storage.ErrTableNotFound),
		errors.Is(err, storage.ErrRecordNotFound),
		errors.Is(err, storage.ErrAPIKeyNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error()}

	case errors.Is(err, storage.ErrEmailExists),
		errors.Is(err, storage.ErrDatabaseExists):
		return http.StatusConflict, ErrorResponse{Error: err.Error()}
	case errors.Is(err, storage.ErrTableExists):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: core.CodeTableNameConflict}
	case errors.Is(err, storage.ErrVersionConflict):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: core.CodeSchemaChanged}

	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{Error: "Invalid email or password."}
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, ErrorResponse{Error: "Authentication token has expired."}
	case errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenClaimsInvalid):
		return http.StatusUnauthorized, ErrorResponse{Error: "Invalid or malformed authentication token."}

	case errors.As(err, &validationErrs):
		details := make([]bindingFieldError, 0, len(validationErrs))
		for _, fe := range validationErrs {
			details = append(details, bindingFieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
		return http.StatusBadRequest, ErrorResponse{Error: "Validation failed. Please check your input.", Details: details}
	case isBindingError(err):
		return http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "An unexpected internal server error occurred."}
}

// isBindingError reports whether err came from decoding a malformed request body.
func isBindingError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
