// Package apperr holds the error taxonomy shared by every controller and the
// mapping from those errors to HTTP responses.
package apperr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrPaymentGateway    = errors.New("payment gateway error")
	ErrPaymentExecution  = errors.New("payment execution failed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// Error attaches a client-facing message to one of the sentinel kinds above.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind error, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) error { return New(ErrValidation, message) }

func NotFound(message string) error { return New(ErrNotFound, message) }

// Status maps an error to the HTTP status code returned to clients.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidAddress):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrPaymentGateway), errors.Is(err, ErrPaymentExecution):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	for _, kind := range []error{
		ErrValidation, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrEmptyCart,
		ErrIllegalTransition, ErrInvalidAddress, ErrPaymentGateway, ErrPaymentExecution,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "internal server error"
}

// Body builds the JSON error body. Server-side and gateway failures carry the
// underlying error text.
func Body(err error) gin.H {
	status := Status(err)
	body := gin.H{"message": Message(err)}
	if status >= http.StatusInternalServerError {
		body["error"] = err.Error()
	}
	return body
}

// Respond writes err as JSON and aborts the Gin chain.
func Respond(c *gin.Context, err error) {
	status := Status(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"path", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, Body(err))
}
