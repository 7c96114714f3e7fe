package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/beaconsearch/beacon/internal/compile"
	"github.com/beaconsearch/beacon/internal/filters"
	"github.com/beaconsearch/beacon/internal/propagate"
	"github.com/beaconsearch/beacon/internal/query"
	"github.com/beaconsearch/beacon/internal/storage"
)

// APIError represents an error with an associated HTTP status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
	}
}

// ErrBadRequest returns a 400 Bad Request error.
func ErrBadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, message)
}

// ErrNotFound returns a 404 Not Found error.
func ErrNotFound(message string) *APIError {
	return NewAPIError(http.StatusNotFound, message)
}

// ErrPayloadTooLarge returns a 413 Payload Too Large error.
func ErrPayloadTooLarge(message string) *APIError {
	return NewAPIError(http.StatusRequestEntityTooLarge, message)
}

// ErrInternalServer returns a 500 Internal Server Error.
func ErrInternalServer(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, message)
}

// ErrGatewayTimeout returns a 504 error when a query exceeds its deadline.
func ErrGatewayTimeout(message string) *APIError {
	return NewAPIError(http.StatusGatewayTimeout, message)
}

// ErrInvalidJSON returns a 400 error for invalid JSON.
func ErrInvalidJSON() *APIError {
	return ErrBadRequest("invalid JSON in request body")
}

// FromError maps an entry point error to its HTTP form. Request errors keep
// their message; store failures are reported without detail.
func FromError(err error) *APIError {
	var apiErr *APIError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, compile.ErrUnsupportedField),
		errors.Is(err, compile.ErrInvalidRange),
		errors.Is(err, filters.ErrInvalidFilter),
		errors.Is(err, query.ErrInvalidRequest),
		errors.Is(err, query.ErrInvalidPagination):
		return ErrBadRequest(err.Error())
	case errors.Is(err, propagate.ErrUnknownTarget),
		errors.Is(err, storage.ErrUnknownCollection):
		return ErrNotFound(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return ErrGatewayTimeout("query timed out")
	default:
		return ErrInternalServer("internal error")
	}
}
