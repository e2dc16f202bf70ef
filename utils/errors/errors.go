package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// APIError represents a custom error type for API responses
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an APIError with the same code, so
// errors.Is(err, ErrNotFound) holds for any not-found variant.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput = NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrUnauthorized = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotFound     = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrInternal     = NewAPIError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrConflict     = NewAPIError("CONFLICT", "Resource conflict", http.StatusConflict)
	ErrTooLarge     = NewAPIError("PAYLOAD_TOO_LARGE", "Request payload too large", http.StatusRequestEntityTooLarge)
)

// Invalid returns a 400 error carrying the reason in Details.
func Invalid(details string) *APIError {
	return NewAPIError(ErrInvalidInput.Code, ErrInvalidInput.Message, ErrInvalidInput.Status, details)
}

// NotFound returns a 404 error naming the missing resource.
func NotFound(resource string) *APIError {
	return NewAPIError(ErrNotFound.Code, resource+" not found", ErrNotFound.Status)
}

func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

func Wrap(err error, code, message string, status int) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return NewAPIError(code, message, status, err.Error())
}
