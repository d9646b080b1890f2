// Package core provides the domain types and error taxonomy shared by the posts API.
package core

import (
	"fmt"
	"net/http"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed request body (400)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeNotFound indicates an unknown or malformed resource identifier (404)
	ErrorTypeNotFound ErrorType = "not_found_error"
	// ErrorTypeValidation indicates a well-formed request that failed field validation (422)
	ErrorTypeValidation ErrorType = "validation_error"
	// ErrorTypeInternal indicates an unexpected server-side failure (500)
	ErrorTypeInternal ErrorType = "internal_error"
)

// APIError is the base error type for every error surfaced to HTTP clients.
type APIError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	// Field names the offending request field for validation errors
	Field string `json:"field,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *APIError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to a JSON-compatible map
func (e *APIError) ToJSON() map[string]interface{} {
	body := map[string]interface{}{
		"type":    e.Type,
		"message": e.Message,
	}
	if e.Field != "" {
		body["field"] = e.Field
	}
	return map[string]interface{}{
		"error": body,
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *APIError {
	return &APIError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewValidationError creates a new validation error (422) for the given field.
func NewValidationError(field, message string) *APIError {
	return &APIError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Field:      field,
	}
}

// NewInternalError wraps an unexpected failure (500). The message sent to
// clients is fixed; err is kept for logging.
func NewInternalError(err error) *APIError {
	return &APIError{
		Type:       ErrorTypeInternal,
		Message:    "an unexpected error occurred",
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
