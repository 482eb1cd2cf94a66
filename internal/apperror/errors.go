// Package apperror defines the errors the audit service's HTTP surface hands
// back to callers. Each one pairs a status code with a message that is safe
// to put on the wire; the app's error handler renders them as JSON.
//
// Storage and pipeline errors stay internal. Handlers and services wrap them
// with NewInternal before they reach a response.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types reported in the "type" field of error responses.
const (
	TypeBadRequest   = "bad_request"
	TypeUnauthorized = "unauthorized"
	TypeNotFound     = "not_found"
	TypeValidation   = "validation_error"
	TypeInternal     = "internal_error"
)

// internalMessage is all a caller learns about a server-side failure.
const internalMessage = "An unexpected error occurred. Please try again."

// AppError is an error with an HTTP status and a caller-safe message.
type AppError struct {
	// Code is the HTTP status written to the response.
	Code int `json:"-"`

	// Type is one of the Type* constants.
	Type string `json:"type"`

	// Message goes to the caller verbatim.
	Message string `json:"message"`

	// Internal is the cause, logged by the error handler and never sent.
	Internal error `json:"-"`
}

func newError(code int, typ, message string) *AppError {
	return &AppError{Code: code, Type: typ, Message: message}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal == nil {
		return e.Type + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Internal)
}

// Unwrap exposes Internal to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// NewBadRequest reports a request the service could not decode, such as a
// malformed notification batch or query filter.
func NewBadRequest(message string) *AppError {
	return newError(http.StatusBadRequest, TypeBadRequest, message)
}

// NewUnauthorized reports a missing or wrong ingest key.
func NewUnauthorized(message string) *AppError {
	return newError(http.StatusUnauthorized, TypeUnauthorized, message)
}

// NewNotFound reports an unknown log record.
func NewNotFound(message string) *AppError {
	return newError(http.StatusNotFound, TypeNotFound, message)
}

// NewValidation reports a well-formed request whose values are out of range.
func NewValidation(message string) *AppError {
	return newError(http.StatusUnprocessableEntity, TypeValidation, message)
}

// NewInternal hides err behind a generic 500.
func NewInternal(err error) *AppError {
	e := newError(http.StatusInternalServerError, TypeInternal, internalMessage)
	e.Internal = err
	return e
}

// SafeMessage is the message to send for err: an AppError's own message, or
// a generic one so nothing about storage leaks.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// SafeCode is the HTTP status for err, 500 unless err is an AppError.
func SafeCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
