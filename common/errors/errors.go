package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
// This lets callers match against the package-level kinds below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error kinds
var (
	ErrBadRequest   = New(http.StatusBadRequest, "Bad request", nil)
	ErrUnauthorized = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrForbidden    = New(http.StatusForbidden, "Forbidden", nil)
	ErrNotFound     = New(http.StatusNotFound, "Not found", nil)
	ErrInternal     = New(http.StatusInternalServerError, "Internal server error", nil)
)

// NotFound builds a 404 error.
func NotFound(message string) *Error {
	return New(http.StatusNotFound, message, nil)
}

// Forbidden builds a 403 error.
func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message, nil)
}

// Validation builds a 400 error.
func Validation(message string) *Error {
	return New(http.StatusBadRequest, message, nil)
}

// Storage builds a 500 error wrapping the persistence failure.
func Storage(message string, err error) *Error {
	return New(http.StatusInternalServerError, message, err)
}

// From converts any error into an *Error, defaulting to 500.
func From(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return New(http.StatusInternalServerError, ErrInternal.Message, err)
}

// Respond writes err as {"error": message} with its status code.
func Respond(c *gin.Context, err error) {
	appErr := From(err)
	c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message})
}

// ErrorMiddleware renders the last error attached with c.Error
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			Respond(c, c.Errors.Last().Err)
		}
	}
}
