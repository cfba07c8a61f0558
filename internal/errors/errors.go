// Package errors provides custom error types for the dashboard client.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSymbolNotFound     = errors.New("symbol not found")
	ErrConnectionFailed   = errors.New("connection failed")
	ErrDecode             = errors.New("unexpected response body")
	ErrServer             = errors.New("server error")
	ErrLoadInFlight       = errors.New("page load already in flight")
	ErrNoMorePages        = errors.New("no more pages")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrDatabaseError      = errors.New("database error")
	ErrInputValidation    = errors.New("input validation failed")
)

// APIError represents a failed call against the stock backend.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
	Err      error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api error [%s %d]: %s: %v", e.Endpoint, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("api error [%s %d]: %s", e.Endpoint, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new APIError.
func NewAPIError(endpoint string, status int, message string, err error) *APIError {
	return &APIError{
		Endpoint: endpoint,
		Status:   status,
		Message:  message,
		Err:      err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets callers match any validation failure with ErrInputValidation.
func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// StoreError represents a preference store failure.
type StoreError struct {
	Username string
	Key      string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s/%s]: %v", e.Username, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(username, key string, err error) *StoreError {
	return &StoreError{
		Username: username,
		Key:      key,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
