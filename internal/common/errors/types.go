// Package errors defines the typed error scheme shared across the cache tiers.
//
// Only caller-attributable errors (invalid TTL, failed compute functions)
// cross the coordinator boundary; transport and serialization failures are
// converted to these types, logged, and absorbed so a degraded cache never
// fails a caller's request.
package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeInvalidTTL represents a non-positive TTL passed by a caller
	ErrTypeInvalidTTL ErrorType = "invalid_ttl"
	// ErrTypeSerialization represents payloads that cannot be encoded or decoded
	ErrTypeSerialization ErrorType = "serialization"
	// ErrTypeRemote represents remote store timeouts and transport failures
	ErrTypeRemote ErrorType = "remote_unavailable"
	// ErrTypeCompute represents an error raised by a caller-supplied compute function
	ErrTypeCompute ErrorType = "compute"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// InvalidTTLError creates an error for a non-positive TTL
func InvalidTTLError(ttlSeconds float64) *AppError {
	return &AppError{
		Type:    ErrTypeInvalidTTL,
		Message: fmt.Sprintf("ttl must be positive, got %gs", ttlSeconds),
	}
}

// SerializationError creates an error for an unencodable or undecodable payload
func SerializationError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeSerialization,
		Message: msg,
		Cause:   cause,
	}
}

// RemoteError creates an error for a remote store transport failure
func RemoteError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeRemote,
		Message: msg,
		Cause:   cause,
	}
}

// ComputeError wraps an error raised by a caller-supplied compute function.
// Unwrap exposes the original error so callers can match it with errors.Is.
func ComputeError(cause error) *AppError {
	return &AppError{
		Type:    ErrTypeCompute,
		Message: "compute function failed",
		Cause:   cause,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return ErrTypeInternal
	}

	return appErr.Type
}
