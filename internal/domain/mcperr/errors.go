// Package mcperr defines the closed error taxonomy that travels through the
// gateway and the formatting rules for surfacing each kind to the agent.
package mcperr

import (
	"errors"
	"fmt"
)

// UserInputError indicates the caller gave bad input (bad query syntax,
// missing required parameter). Never logged to telemetry.
type UserInputError struct {
	Message string
}

// Error implements the error interface.
func (e *UserInputError) Error() string { return e.Message }

// NewUserInputError creates a UserInputError with a formatted message.
func NewUserInputError(format string, args ...any) *UserInputError {
	return &UserInputError{Message: fmt.Sprintf(format, args...)}
}

// ConfigurationError indicates an environmental or deployment problem
// (DNS failure, missing token, LLM provider not configured).
type ConfigurationError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string { return e.Message }

// Unwrap exposes the original error for debugging without leaking it to the agent.
func (e *ConfigurationError) Unwrap() error { return e.Cause }

// NewConfigurationError creates a ConfigurationError wrapping cause.
// Cause may be nil.
func NewConfigurationError(cause error, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...), Cause: cause}
}

// APIError is a 4xx/5xx response from the upstream API.
type APIError struct {
	Status int
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string { return e.Detail }

// NewAPIError creates an APIError for the given status and detail message.
func NewAPIError(status int, detail string) *APIError {
	return &APIError{Status: status, Detail: detail}
}

// IsUserInput reports whether err is a UserInputError.
func IsUserInput(err error) bool {
	var uie *UserInputError
	return errors.As(err, &uie)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == 404
}
