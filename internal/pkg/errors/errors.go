// Package errors provides custom error types and error handling utilities.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	// Caller errors.
	CodeValidation = "VALIDATION_ERROR"
	CodeConfig     = "CONFIG_ERROR"
	CodeNotFound   = "NOT_FOUND"

	// Environment errors.
	CodeLoad        = "LOAD_ERROR"
	CodeWrite       = "WRITE_ERROR"
	CodeStore       = "STORE_ERROR"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal    = "INTERNAL_ERROR"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Convenience constructors.

// ValidationError creates a validation error.
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// ConfigError reports an unrecognised or out-of-range configuration value.
// The offending parameter name and value are carried both in the message and
// in Details so callers can surface them without parsing.
func ConfigError(param, value string) *AppError {
	return New(CodeConfig, fmt.Sprintf("invalid %s: %q", param, value)).
		WithDetail("param", param).
		WithDetail("value", value)
}

// LoadError wraps an I/O or parse failure while loading an input file.
func LoadError(path string, err error) *AppError {
	return Wrap(CodeLoad, fmt.Sprintf("loading %s", path), err).
		WithDetail("path", path)
}

// WriteError wraps a failure while flushing an output file.
func WriteError(path string, err error) *AppError {
	return Wrap(CodeWrite, fmt.Sprintf("writing %s", path), err).
		WithDetail("path", path)
}

// NotFoundError creates a not found error.
func NotFoundError(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// StoreError creates a persistence backend error.
func StoreError(message string, err error) *AppError {
	return Wrap(CodeStore, message, err)
}

// InternalError creates an internal error.
func InternalError(message string, err error) *AppError {
	return Wrap(CodeInternal, message, err)
}

// ServiceUnavailableError creates a service unavailable error.
func ServiceUnavailableError(service string) *AppError {
	message := "service unavailable"
	if service != "" {
		message = fmt.Sprintf("%s is unavailable", service)
	}
	return New(CodeUnavailable, message)
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsNotFound checks if error is a not found error.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsValidation checks if error is a validation error.
func IsValidation(err error) bool {
	return CodeOf(err) == CodeValidation
}

// IsConfig checks if error is a configuration error.
func IsConfig(err error) bool {
	return CodeOf(err) == CodeConfig
}

// IsLoad checks if error is an input loading error.
func IsLoad(err error) bool {
	return CodeOf(err) == CodeLoad
}
